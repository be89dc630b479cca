package gateway

import (
	"context"
	"errors"
	"strings"

	"eventcircle/internal/money"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

// StripeClient implements Client with Checkout Sessions and Payouts with
// Connect transfers. The session id is the payment reference.
type StripeClient struct {
	api         *client.API
	productName string
}

func NewStripeClient(secretKey string) *StripeClient {
	return newStripeClient(secretKey, nil)
}

// newStripeClient uses the given backends, or Stripe's defaults when nil.
func newStripeClient(secretKey string, backends *stripe.Backends) *StripeClient {
	return &StripeClient{
		api:         client.New(secretKey, backends),
		productName: "Event ticket",
	}
}

func (s *StripeClient) InitializeTransaction(ctx context.Context, req InitRequest) (*InitResult, error) {
	callback := withSessionPlaceholder(req.CallbackURL)
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		CustomerEmail: stripe.String(req.Email),
		SuccessURL:    stripe.String(callback),
		CancelURL:     stripe.String(callback),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(strings.ToLower(req.Currency)),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(s.productName),
					},
					UnitAmount: stripe.Int64(req.Amount.Minor()),
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	for k, v := range req.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, stripeError("initialize", err)
	}
	return &InitResult{AuthorizationURL: sess.URL, Reference: sess.ID}, nil
}

func (s *StripeClient) VerifyTransaction(ctx context.Context, reference string) (*Verification, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	sess, err := s.api.CheckoutSessions.Get(reference, params)
	if err != nil {
		return nil, stripeError("verify", err)
	}
	return stripeVerification(sess), nil
}

func (s *StripeClient) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	params := &stripe.TransferParams{
		Amount:      stripe.Int64(req.Amount.Minor()),
		Currency:    stripe.String(strings.ToLower(req.Currency)),
		Destination: stripe.String(req.Recipient),
		Description: stripe.String(req.Reason),
	}
	params.Context = ctx
	params.SetIdempotencyKey(req.Reference)

	tr, err := s.api.Transfers.New(params)
	if err != nil {
		return nil, stripeError("transfer", err)
	}
	return &TransferResult{TransferCode: tr.ID, Status: StatusSuccess}, nil
}

func stripeVerification(sess *stripe.CheckoutSession) *Verification {
	status := string(sess.PaymentStatus)
	if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
		status = StatusSuccess
	}
	return &Verification{
		Reference: sess.ID,
		Status:    status,
		Amount:    money.FromMinor(sess.AmountTotal),
		Currency:  strings.ToUpper(string(sess.Currency)),
		Metadata:  sess.Metadata,
	}
}

func withSessionPlaceholder(callbackURL string) string {
	sep := "?"
	if strings.Contains(callbackURL, "?") {
		sep = "&"
	}
	return callbackURL + sep + "reference={CHECKOUT_SESSION_ID}"
}

func stripeError(op string, err error) error {
	var se *stripe.Error
	if errors.As(err, &se) {
		return &Error{Op: op, StatusCode: se.HTTPStatusCode, Message: se.Msg, Err: err}
	}
	return &Error{Op: op, Err: err}
}
