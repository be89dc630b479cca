package booking

import (
	"github.com/shopspring/decimal"

	"eventcircle/internal/money"
)

// DefaultCommissionRate is the platform's cut of each paid ticket.
var DefaultCommissionRate = decimal.RequireFromString("0.13")

type Settlement struct {
	Price           money.Amount `json:"price"`
	Commission      money.Amount `json:"commission"`
	CreatorEarnings money.Amount `json:"creator_earnings"`
}

// ComputeSettlement splits price between platform and creator. The
// commission is rounded half-up to the minor unit and the creator gets the
// remainder, so the two parts always add back to price.
func ComputeSettlement(price money.Amount, rate decimal.Decimal) Settlement {
	commission := price.MulRate(rate)
	return Settlement{
		Price:           price,
		Commission:      commission,
		CreatorEarnings: price - commission,
	}
}
