package booking

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"eventcircle/internal/clock"
	"eventcircle/internal/gateway"
	"eventcircle/internal/logger"
	"eventcircle/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// State is a step of one booking attempt.
type State string

const (
	StateStart            State = "start"
	StateEligible         State = "eligible"
	StateDenied           State = "denied"
	StateFreeSettled      State = "free_settled"
	StatePaymentInitiated State = "payment_initiated"
	StatePaymentVerified  State = "payment_verified"
	StateSettled          State = "settled"
	StatePaymentFailed    State = "payment_failed"
)

type Options struct {
	// CommissionRate nil means DefaultCommissionRate. Zero is honoured.
	CommissionRate *decimal.Decimal
	Currency       string
	// CallbackURL is the absolute URL of the payment verify endpoint.
	CallbackURL   string
	VerifyTimeout time.Duration
}

type Result struct {
	State            State
	Message          string
	AuthorizationURL string
	Reference        string
	Booking          *models.EventBooking
	Settlement       *Settlement
	// AlreadySettled is set when a callback found the booking in place.
	AlreadySettled bool
}

type Service struct {
	store     LedgerStore
	gateway   gateway.Client
	sessions  SessionStore
	publisher EventPublisher
	clock     clock.Clock
	logger    *logger.Logger
	opts      Options
}

func NewService(store LedgerStore, gw gateway.Client, sessions SessionStore, publisher EventPublisher, clk clock.Clock, log *logger.Logger, opts Options) *Service {
	if sessions == nil {
		sessions = noopSessions{}
	}
	if publisher == nil {
		publisher = noopPublisher{}
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	if opts.CommissionRate == nil {
		rate := DefaultCommissionRate
		opts.CommissionRate = &rate
	}
	if opts.VerifyTimeout <= 0 {
		opts.VerifyTimeout = 15 * time.Second
	}
	if opts.Currency == "" {
		opts.Currency = "ZAR"
	}
	return &Service{
		store:     store,
		gateway:   gw,
		sessions:  sessions,
		publisher: publisher,
		clock:     clk,
		logger:    log,
		opts:      opts,
	}
}

// RequestBooking books a free event immediately or opens a gateway checkout
// for a paid one. The paid path writes nothing to the ledger.
func (s *Service) RequestBooking(ctx context.Context, userID, eventID string) (*Result, error) {
	if err := validateIDs(userID, eventID); err != nil {
		return nil, err
	}
	key := bookingKey(eventID, userID)
	s.logger.LogBooking(string(StateStart), key, "booking requested")

	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	event, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if err := CheckEligibility(user, event, s.clock.Now()); err != nil {
		s.logger.LogBooking(string(StateDenied), key, err.Error())
		return nil, err
	}
	if event.HasBooked(userID) {
		s.logger.LogBooking(string(StateDenied), key, ErrAlreadyBooked.Error())
		return nil, ErrAlreadyBooked
	}
	s.logger.LogBooking(string(StateEligible), key, fmt.Sprintf("price %s, %d seats left", event.TicketPrice, event.MaxCapacity))

	if event.IsFree() {
		return s.bookFree(ctx, user, event)
	}
	return s.initiatePayment(ctx, user, event)
}

func (s *Service) bookFree(ctx context.Context, user *models.User, event *models.Event) (*Result, error) {
	key := bookingKey(event.ID, user.ID)
	now := s.clock.Now()

	var (
		booking    *models.EventBooking
		settlement Settlement
	)
	err := s.store.WithTx(ctx, func(txCtx context.Context) error {
		booked, err := s.store.IsBooked(txCtx, event.ID, user.ID)
		if err != nil {
			return err
		}
		if booked {
			return ErrAlreadyBooked
		}
		booking, settlement, err = s.settleBooking(txCtx, event, user.ID, "", now)
		return err
	})
	if err != nil {
		if Classify(err) == KindDenied {
			s.logger.LogBooking(string(StateDenied), key, err.Error())
		} else {
			s.logger.Error("BOOKING", fmt.Sprintf("free settlement for %s aborted: %v", key, err))
		}
		return nil, err
	}

	s.logger.LogBooking(string(StateFreeSettled), key, "booking "+booking.ID)
	s.publishConfirmed(ctx, event, booking, settlement)

	return &Result{
		State:      StateFreeSettled,
		Message:    "Event booked successfully",
		Booking:    booking,
		Settlement: &settlement,
	}, nil
}

func (s *Service) initiatePayment(ctx context.Context, user *models.User, event *models.Event) (*Result, error) {
	key := bookingKey(event.ID, user.ID)
	if event.TicketPrice <= 0 {
		return nil, fmt.Errorf("booking: event %s has invalid ticket price %s", event.ID, event.TicketPrice)
	}

	res, err := s.gateway.InitializeTransaction(ctx, gateway.InitRequest{
		Amount:      event.TicketPrice,
		Currency:    s.opts.Currency,
		Email:       user.Email,
		CallbackURL: s.callbackURL(event.ID, user.ID),
		Metadata: map[string]string{
			"event_id": event.ID,
			"user_id":  user.ID,
		},
	})
	if err != nil {
		s.logger.LogBooking(string(StatePaymentFailed), key, fmt.Sprintf("initialize failed: %v", err))
		return nil, fmt.Errorf("%w: %v", ErrPaymentInitFailed, err)
	}
	if res == nil || res.AuthorizationURL == "" || res.Reference == "" {
		s.logger.LogBooking(string(StatePaymentFailed), key, "gateway returned no authorization url or reference")
		return nil, fmt.Errorf("%w: gateway returned no authorization url or reference", ErrPaymentInitFailed)
	}

	session := &models.PaymentSession{
		Reference: res.Reference,
		EventID:   event.ID,
		UserID:    user.ID,
		Amount:    event.TicketPrice,
		Currency:  s.opts.Currency,
		Status:    models.PaymentSessionInitiated,
		CreatedAt: s.clock.Now(),
	}
	if err := s.sessions.Save(ctx, session); err != nil {
		s.logger.Warn("BOOKING", fmt.Sprintf("could not record payment session %s: %v", res.Reference, err))
	}

	s.logger.LogBooking(string(StatePaymentInitiated), key, "reference "+res.Reference)
	return &Result{
		State:            StatePaymentInitiated,
		Message:          "Payment initialized",
		AuthorizationURL: res.AuthorizationURL,
		Reference:        res.Reference,
	}, nil
}

// ConfirmPayment handles the gateway callback. It is safe to call any number
// of times for the same reference: only the first successful call settles.
func (s *Service) ConfirmPayment(ctx context.Context, reference, eventID, userID string) (*Result, error) {
	if reference == "" || eventID == "" || userID == "" {
		return nil, ErrMissingParams
	}
	if err := validateIDs(userID, eventID); err != nil {
		return nil, err
	}
	key := bookingKey(eventID, userID)

	session := s.lookupSession(ctx, reference)
	if session != nil {
		if !session.Matches(eventID, userID) {
			s.logger.LogSecurity("PAYMENT_MISMATCH", fmt.Sprintf("reference %s replayed for %s", reference, key))
			return nil, fmt.Errorf("%w: reference was issued for another booking", ErrPaymentVerificationFailed)
		}
		if session.Status == models.PaymentSessionSettled {
			s.logger.LogPayment("DUPLICATE", reference, "callback for settled session")
			return alreadySettled(reference), nil
		}
	}

	verification, err := s.verify(ctx, reference)
	if err != nil {
		s.logger.LogBooking(string(StatePaymentFailed), key, err.Error())
		return nil, err
	}
	if metadataConflicts(verification.Metadata, eventID, userID) {
		s.logger.LogSecurity("PAYMENT_MISMATCH", fmt.Sprintf("gateway metadata for %s does not match %s", reference, key))
		return nil, fmt.Errorf("%w: payment belongs to another booking", ErrPaymentVerificationFailed)
	}
	s.logger.LogBooking(string(StatePaymentVerified), key, fmt.Sprintf("reference %s, %s %s", reference, verification.Amount, verification.Currency))

	now := s.clock.Now()
	var (
		result  *Result
		event   *models.Event
		settled Settlement
	)
	err = s.store.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		event, err = s.store.GetEvent(txCtx, eventID)
		if err != nil {
			return err
		}
		if _, err := s.store.GetUser(txCtx, userID); err != nil {
			return err
		}

		if verification.Amount != event.TicketPrice || !strings.EqualFold(verification.Currency, s.opts.Currency) {
			return fmt.Errorf("%w: paid %s %s, ticket costs %s %s", ErrAmountMismatch,
				verification.Amount, verification.Currency, event.TicketPrice, s.opts.Currency)
		}

		booked, err := s.store.IsBooked(txCtx, eventID, userID)
		if err != nil {
			return err
		}
		if booked {
			result = alreadySettled(reference)
			return nil
		}
		if event.MaxCapacity <= 0 {
			return ErrSoldOut
		}

		booking, settlement, err := s.settleBooking(txCtx, event, userID, reference, now)
		if err != nil {
			return err
		}
		settled = settlement
		result = &Result{
			State:      StateSettled,
			Message:    "Payment verified and event booked successfully",
			Reference:  reference,
			Booking:    booking,
			Settlement: &settlement,
		}
		return nil
	})
	if errors.Is(err, ErrSoldOut) {
		// The last seat may have gone to a concurrent callback for this same booking.
		if booked, berr := s.store.IsBooked(ctx, eventID, userID); berr == nil && booked {
			err = ErrAlreadyBooked
		}
	}
	if errors.Is(err, ErrAlreadyBooked) {
		// A concurrent callback for the same booking committed first.
		result, err = alreadySettled(reference), nil
	}
	if err != nil {
		s.logger.LogBooking(string(StatePaymentFailed), key, fmt.Sprintf("settlement aborted: %v", err))
		return nil, err
	}

	if err := s.sessions.MarkSettled(ctx, reference); err != nil {
		s.logger.Warn("BOOKING", fmt.Sprintf("could not mark session %s settled: %v", reference, err))
	}
	if result.AlreadySettled {
		s.logger.LogBooking(string(StateSettled), key, "already settled, nothing to do")
		return result, nil
	}

	s.logger.LogBooking(string(StateSettled), key, fmt.Sprintf("booking %s, commission %s", result.Booking.ID, settled.Commission))
	s.publishConfirmed(ctx, event, result.Booking, settled)
	return result, nil
}

// settleBooking writes one confirmed booking. ctx must carry a transaction.
func (s *Service) settleBooking(ctx context.Context, event *models.Event, userID, reference string, now time.Time) (*models.EventBooking, Settlement, error) {
	if err := s.store.ReserveSeat(ctx, event.ID); err != nil {
		return nil, Settlement{}, err
	}

	booking := &models.EventBooking{
		ID:               uuid.NewString(),
		EventID:          event.ID,
		UserID:           userID,
		AmountPaid:       event.TicketPrice,
		PaymentReference: reference,
		BookedAt:         now,
	}
	if err := s.store.AddBooking(ctx, booking); err != nil {
		return nil, Settlement{}, err
	}
	if err := s.store.AddUserTicket(ctx, &models.UserTicket{UserID: userID, EventID: event.ID, BookedAt: now}); err != nil {
		return nil, Settlement{}, err
	}

	settlement := ComputeSettlement(event.TicketPrice, *s.opts.CommissionRate)
	if !settlement.CreatorEarnings.IsZero() {
		if err := s.store.CreditEarnings(ctx, event.CreatedBy, settlement.CreatorEarnings); err != nil {
			return nil, Settlement{}, err
		}
	}

	earning := &models.PlatformEarning{
		ID:              uuid.NewString(),
		EventID:         event.ID,
		UserID:          userID,
		Amount:          settlement.Commission,
		TransactionDate: now,
	}
	if reference != "" {
		earning.PaymentReference = &reference
	}
	if err := s.store.CreatePlatformEarning(ctx, earning); err != nil {
		return nil, Settlement{}, err
	}
	return booking, settlement, nil
}

func (s *Service) verify(ctx context.Context, reference string) (*gateway.Verification, error) {
	vctx, cancel := context.WithTimeout(ctx, s.opts.VerifyTimeout)
	defer cancel()

	v, err := s.gateway.VerifyTransaction(vctx, reference)
	if err != nil {
		if errors.Is(vctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: gateway did not answer within %s", ErrPaymentVerificationFailed, s.opts.VerifyTimeout)
		}
		return nil, fmt.Errorf("%w: %v", ErrPaymentVerificationFailed, err)
	}
	if v == nil || !v.Succeeded() {
		status := "empty response"
		if v != nil {
			status = "status " + v.Status
		}
		return nil, fmt.Errorf("%w: %s", ErrPaymentVerificationFailed, status)
	}
	if v.Reference != "" && v.Reference != reference {
		return nil, fmt.Errorf("%w: gateway answered for reference %s", ErrPaymentVerificationFailed, v.Reference)
	}
	return v, nil
}

func (s *Service) lookupSession(ctx context.Context, reference string) *models.PaymentSession {
	session, err := s.sessions.Get(ctx, reference)
	if err != nil {
		s.logger.Warn("BOOKING", fmt.Sprintf("payment session lookup for %s failed: %v", reference, err))
		return nil
	}
	return session
}

func (s *Service) publishConfirmed(ctx context.Context, event *models.Event, booking *models.EventBooking, settlement Settlement) {
	msg := models.BookingConfirmed{
		BookingID:       booking.ID,
		EventID:         booking.EventID,
		UserID:          booking.UserID,
		CreatorID:       event.CreatedBy,
		Reference:       booking.PaymentReference,
		Free:            settlement.Price.IsZero(),
		Price:           settlement.Price,
		Commission:      settlement.Commission,
		CreatorEarnings: settlement.CreatorEarnings,
		ConfirmedAt:     booking.BookedAt,
	}
	if err := s.publisher.PublishBookingConfirmed(ctx, msg); err != nil {
		s.logger.Error("KAFKA", fmt.Sprintf("booking %s committed but event not published: %v", booking.ID, err))
	}
}

func (s *Service) callbackURL(eventID, userID string) string {
	q := url.Values{}
	q.Set("eventId", eventID)
	q.Set("userId", userID)
	sep := "?"
	if strings.Contains(s.opts.CallbackURL, "?") {
		sep = "&"
	}
	return s.opts.CallbackURL + sep + q.Encode()
}

// MyTickets lists the events userID holds a ticket for.
func (s *Service) MyTickets(ctx context.Context, userID string) ([]models.TicketSummary, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, ErrInvalidID
	}
	return s.store.ListUserTickets(ctx, userID)
}

func (s *Service) GetBooking(ctx context.Context, eventID, userID string) (*models.EventBooking, error) {
	if err := validateIDs(userID, eventID); err != nil {
		return nil, err
	}
	return s.store.GetBooking(ctx, eventID, userID)
}

func alreadySettled(reference string) *Result {
	return &Result{
		State:          StateSettled,
		Message:        "Payment already verified, booking confirmed",
		Reference:      reference,
		AlreadySettled: true,
	}
}

func validateIDs(ids ...string) error {
	for _, id := range ids {
		if _, err := uuid.Parse(id); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidID, id)
		}
	}
	return nil
}

// metadataConflicts reports whether the gateway echoed back ids for a
// different booking. Missing metadata is not a conflict.
func metadataConflicts(meta map[string]string, eventID, userID string) bool {
	if v := meta["event_id"]; v != "" && v != eventID {
		return true
	}
	if v := meta["user_id"]; v != "" && v != userID {
		return true
	}
	return false
}

func bookingKey(eventID, userID string) string {
	return eventID + "/" + userID
}
