package booking_test

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"testing"
	"time"

	"eventcircle/internal/booking"
	bookingdb "eventcircle/internal/booking/db"
	"eventcircle/internal/clock"
	"eventcircle/internal/gateway"
	"eventcircle/internal/logger"
	"eventcircle/internal/models"
	"eventcircle/internal/money"
	"eventcircle/internal/testutil"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
)

var testNow = time.Date(2025, time.June, 15, 12, 0, 0, 0, time.UTC)

// fakeGateway hands out sequential references and verifies whatever the
// test registered for them.
type fakeGateway struct {
	mu            sync.Mutex
	seq           int
	inits         []gateway.InitRequest
	verifications map[string]*gateway.Verification
	initErr       error
	emptyInit     bool
	hang          bool
	verifyCalls   int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{verifications: map[string]*gateway.Verification{}}
}

func (f *fakeGateway) InitializeTransaction(_ context.Context, req gateway.InitRequest) (*gateway.InitResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inits = append(f.inits, req)
	if f.initErr != nil {
		return nil, f.initErr
	}
	if f.emptyInit {
		return &gateway.InitResult{}, nil
	}
	f.seq++
	ref := fmt.Sprintf("ref-%d", f.seq)
	return &gateway.InitResult{AuthorizationURL: "https://pay.test/" + ref, Reference: ref}, nil
}

func (f *fakeGateway) VerifyTransaction(ctx context.Context, reference string) (*gateway.Verification, error) {
	f.mu.Lock()
	f.verifyCalls++
	hang := f.hang
	v, ok := f.verifications[reference]
	f.mu.Unlock()

	if hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if !ok {
		return &gateway.Verification{Reference: reference, Status: "abandoned"}, nil
	}
	return v, nil
}

// pay registers a successful payment of amount for reference.
func (f *fakeGateway) pay(reference string, amount money.Amount, eventID, userID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.verifications[reference] = &gateway.Verification{
		Reference: reference,
		Status:    gateway.StatusSuccess,
		Amount:    amount,
		Currency:  "ZAR",
		Metadata:  map[string]string{"event_id": eventID, "user_id": userID},
	}
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]*models.PaymentSession
}

func newMemSessions() *memSessions {
	return &memSessions{sessions: map[string]*models.PaymentSession{}}
}

func (m *memSessions) Save(_ context.Context, s *models.PaymentSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.sessions[s.Reference] = &cp
	return nil
}

func (m *memSessions) Get(_ context.Context, ref string) (*models.PaymentSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[ref]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memSessions) MarkSettled(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[ref]; ok {
		s.Status = models.PaymentSessionSettled
	}
	return nil
}

type recordingPublisher struct {
	mu   sync.Mutex
	msgs []models.BookingConfirmed
}

func (r *recordingPublisher) PublishBookingConfirmed(_ context.Context, msg models.BookingConfirmed) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, msg)
	return nil
}

func (r *recordingPublisher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.msgs)
}

type harness struct {
	db        *bun.DB
	store     *bookingdb.DB
	gateway   *fakeGateway
	sessions  *memSessions
	publisher *recordingPublisher
	svc       *booking.Service
}

func newHarness(t *testing.T, opts ...func(*booking.Options)) *harness {
	t.Helper()
	bunDB := testutil.NewSQLiteDB(t)
	h := &harness{
		db:        bunDB,
		store:     &bookingdb.DB{Bun: bunDB},
		gateway:   newFakeGateway(),
		sessions:  newMemSessions(),
		publisher: &recordingPublisher{},
	}
	o := booking.Options{
		Currency:      "ZAR",
		CallbackURL:   "http://localhost:8084/api/events/payment/verify",
		VerifyTimeout: time.Second,
	}
	for _, fn := range opts {
		fn(&o)
	}
	h.svc = booking.NewService(h.store, h.gateway, h.sessions, h.publisher, clock.NewFixed(testNow), logger.NewDiscard(), o)
	return h
}

func (h *harness) event(t *testing.T, id string) *models.Event {
	t.Helper()
	e, err := h.store.GetEvent(context.Background(), id)
	require.NoError(t, err)
	return e
}

func (h *harness) user(t *testing.T, id string) *models.User {
	t.Helper()
	u, err := h.store.GetUser(context.Background(), id)
	require.NoError(t, err)
	return u
}

func (h *harness) count(t *testing.T, model any) int {
	t.Helper()
	n, err := h.db.NewSelect().Model(model).Count(context.Background())
	require.NoError(t, err)
	return n
}

func (h *harness) assertNoLedgerWrites(t *testing.T) {
	t.Helper()
	assert.Zero(t, h.count(t, (*models.EventBooking)(nil)))
	assert.Zero(t, h.count(t, (*models.UserTicket)(nil)))
	assert.Zero(t, h.count(t, (*models.PlatformEarning)(nil)))
}

func TestRequestBooking_FreeEvent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator := testutil.SeedUser(t, h.db)
	attendee := testutil.SeedUser(t, h.db)
	event := testutil.SeedEvent(t, h.db, creator.ID, testutil.WithCapacity(5))

	res, err := h.svc.RequestBooking(ctx, attendee.ID, event.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StateFreeSettled, res.State)
	require.NotNil(t, res.Booking)
	assert.Equal(t, money.Amount(0), res.Settlement.Commission)

	got := h.event(t, event.ID)
	assert.Equal(t, 4, got.MaxCapacity)
	assert.Equal(t, 1, got.TicketsSold)
	assert.Equal(t, []string{attendee.ID}, got.BookedTickets)
	assert.Equal(t, []string{event.ID}, h.user(t, attendee.ID).MyTickets)
	assert.Equal(t, money.Amount(0), h.user(t, creator.ID).TotalEarnings)

	var earnings []models.PlatformEarning
	require.NoError(t, h.db.NewSelect().Model(&earnings).Scan(ctx))
	require.Len(t, earnings, 1)
	assert.Equal(t, money.Amount(0), earnings[0].Amount)
	assert.Nil(t, earnings[0].PaymentReference)
	assert.Equal(t, 1, h.publisher.count())
	assert.Empty(t, h.gateway.inits)
}

func TestRequestBooking_FreeEventTwice(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator := testutil.SeedUser(t, h.db)
	attendee := testutil.SeedUser(t, h.db)
	event := testutil.SeedEvent(t, h.db, creator.ID)

	_, err := h.svc.RequestBooking(ctx, attendee.ID, event.ID)
	require.NoError(t, err)

	_, err = h.svc.RequestBooking(ctx, attendee.ID, event.ID)
	assert.ErrorIs(t, err, booking.ErrAlreadyBooked)
	assert.Equal(t, 1, h.count(t, (*models.EventBooking)(nil)))
	assert.Equal(t, 4, h.event(t, event.ID).MaxCapacity)
}

func TestRequestBooking_SoldOut(t *testing.T) {
	h := newHarness(t)
	creator := testutil.SeedUser(t, h.db)
	attendee := testutil.SeedUser(t, h.db)
	event := testutil.SeedEvent(t, h.db, creator.ID, testutil.WithCapacity(0), testutil.WithPrice(money.MustParse("100")))

	_, err := h.svc.RequestBooking(context.Background(), attendee.ID, event.ID)
	assert.ErrorIs(t, err, booking.ErrSoldOut)

	h.assertNoLedgerWrites(t)
	assert.Empty(t, h.gateway.inits)
	assert.Equal(t, 0, h.event(t, event.ID).MaxCapacity)
}

func TestRequestBooking_Restrictions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator := testutil.SeedUser(t, h.db)
	minor := testutil.SeedUser(t, h.db, testutil.WithBirthDate(testNow.AddDate(-17, 0, 0)), testutil.WithGender("female"))
	adult := testutil.SeedUser(t, h.db, testutil.WithBirthDate(testNow.AddDate(-18, 0, 0)), testutil.WithGender("male"))

	adultsOnly := testutil.SeedEvent(t, h.db, creator.ID, testutil.WithAgeRestriction(models.AgeUnder18))
	womenOnly := testutil.SeedEvent(t, h.db, creator.ID, testutil.WithGenderRestriction(models.GenderMale))

	_, err := h.svc.RequestBooking(ctx, minor.ID, adultsOnly.ID)
	assert.ErrorIs(t, err, booking.ErrAgeRestricted)

	_, err = h.svc.RequestBooking(ctx, adult.ID, adultsOnly.ID)
	assert.NoError(t, err)

	_, err = h.svc.RequestBooking(ctx, adult.ID, womenOnly.ID)
	assert.ErrorIs(t, err, booking.ErrGenderRestricted)

	_, err = h.svc.RequestBooking(ctx, minor.ID, womenOnly.ID)
	assert.NoError(t, err)
}

func TestRequestBooking_InvalidAndUnknownIDs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator := testutil.SeedUser(t, h.db)
	event := testutil.SeedEvent(t, h.db, creator.ID)

	_, err := h.svc.RequestBooking(ctx, "not-a-uuid", event.ID)
	assert.ErrorIs(t, err, booking.ErrInvalidID)

	_, err = h.svc.RequestBooking(ctx, creator.ID, "42")
	assert.ErrorIs(t, err, booking.ErrInvalidID)

	_, err = h.svc.RequestBooking(ctx, "6f1c7b52-5a8e-4f0e-9d1f-0a7c2b3d4e5f", event.ID)
	assert.ErrorIs(t, err, booking.ErrUserNotFound)

	_, err = h.svc.RequestBooking(ctx, creator.ID, "6f1c7b52-5a8e-4f0e-9d1f-0a7c2b3d4e5f")
	assert.ErrorIs(t, err, booking.ErrEventNotFound)
}

func TestRequestBooking_PaidEventInitiatesWithoutWrites(t *testing.T) {
	h := newHarness(t)
	creator := testutil.SeedUser(t, h.db)
	attendee := testutil.SeedUser(t, h.db)
	event := testutil.SeedEvent(t, h.db, creator.ID, testutil.WithPrice(money.MustParse("200")))

	res, err := h.svc.RequestBooking(context.Background(), attendee.ID, event.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StatePaymentInitiated, res.State)
	assert.Equal(t, "https://pay.test/ref-1", res.AuthorizationURL)
	assert.Equal(t, "ref-1", res.Reference)

	require.Len(t, h.gateway.inits, 1)
	init := h.gateway.inits[0]
	assert.Equal(t, money.FromMinor(20000), init.Amount)
	assert.Equal(t, attendee.Email, init.Email)
	assert.Equal(t, event.ID, init.Metadata["event_id"])

	cb, err := url.Parse(init.CallbackURL)
	require.NoError(t, err)
	assert.Equal(t, "/api/events/payment/verify", cb.Path)
	assert.Equal(t, event.ID, cb.Query().Get("eventId"))
	assert.Equal(t, attendee.ID, cb.Query().Get("userId"))

	h.assertNoLedgerWrites(t)
	assert.Equal(t, 5, h.event(t, event.ID).MaxCapacity)

	session, _ := h.sessions.Get(context.Background(), "ref-1")
	require.NotNil(t, session)
	assert.Equal(t, models.PaymentSessionInitiated, session.Status)
}

func TestRequestBooking_PaymentInitFailure(t *testing.T) {
	h := newHarness(t)
	creator := testutil.SeedUser(t, h.db)
	attendee := testutil.SeedUser(t, h.db)
	event := testutil.SeedEvent(t, h.db, creator.ID, testutil.WithPrice(money.MustParse("50")))

	h.gateway.emptyInit = true
	_, err := h.svc.RequestBooking(context.Background(), attendee.ID, event.ID)
	assert.ErrorIs(t, err, booking.ErrPaymentInitFailed)

	h.gateway.emptyInit = false
	h.gateway.initErr = errors.New("connection refused")
	_, err = h.svc.RequestBooking(context.Background(), attendee.ID, event.ID)
	assert.ErrorIs(t, err, booking.ErrPaymentInitFailed)

	h.assertNoLedgerWrites(t)
}

// bookPaid initiates a paid booking and registers the matching payment.
func (h *harness) bookPaid(t *testing.T, userID string, event *models.Event) string {
	t.Helper()
	res, err := h.svc.RequestBooking(context.Background(), userID, event.ID)
	require.NoError(t, err)
	h.gateway.pay(res.Reference, event.TicketPrice, event.ID, userID)
	return res.Reference
}

func TestConfirmPayment_SettlesPaidBooking(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator := testutil.SeedUser(t, h.db)
	attendee := testutil.SeedUser(t, h.db)
	event := testutil.SeedEvent(t, h.db, creator.ID, testutil.WithPrice(money.MustParse("200")))

	ref := h.bookPaid(t, attendee.ID, event)

	res, err := h.svc.ConfirmPayment(ctx, ref, event.ID, attendee.ID)
	require.NoError(t, err)
	assert.Equal(t, booking.StateSettled, res.State)
	assert.False(t, res.AlreadySettled)
	assert.Equal(t, "26.00", res.Settlement.Commission.String())

	got := h.event(t, event.ID)
	assert.Equal(t, 4, got.MaxCapacity)
	assert.Equal(t, 1, got.TicketsSold)
	assert.Equal(t, []string{attendee.ID}, got.BookedTickets)
	assert.Equal(t, money.FromMinor(17400), h.user(t, creator.ID).TotalEarnings)

	var earnings []models.PlatformEarning
	require.NoError(t, h.db.NewSelect().Model(&earnings).Scan(ctx))
	require.Len(t, earnings, 1)
	assert.Equal(t, money.FromMinor(2600), earnings[0].Amount)
	require.NotNil(t, earnings[0].PaymentReference)
	assert.Equal(t, ref, *earnings[0].PaymentReference)

	b, err := h.svc.GetBooking(ctx, event.ID, attendee.ID)
	require.NoError(t, err)
	assert.Equal(t, ref, b.PaymentReference)
	assert.Equal(t, money.FromMinor(20000), b.AmountPaid)

	session, _ := h.sessions.Get(ctx, ref)
	assert.Equal(t, models.PaymentSessionSettled, session.Status)
	require.Equal(t, 1, h.publisher.count())
	assert.Equal(t, creator.ID, h.publisher.msgs[0].CreatorID)
	assert.False(t, h.publisher.msgs[0].Free)
}

func TestConfirmPayment_ZeroCommissionRate(t *testing.T) {
	zero := decimal.Zero
	h := newHarness(t, func(o *booking.Options) { o.CommissionRate = &zero })
	creator := testutil.SeedUser(t, h.db)
	attendee := testutil.SeedUser(t, h.db)
	event := testutil.SeedEvent(t, h.db, creator.ID, testutil.WithPrice(money.MustParse("200")))

	ref := h.bookPaid(t, attendee.ID, event)

	res, err := h.svc.ConfirmPayment(context.Background(), ref, event.ID, attendee.ID)
	require.NoError(t, err)
	assert.True(t, res.Settlement.Commission.IsZero())
	assert.Equal(t, money.FromMinor(20000), h.user(t, creator.ID).TotalEarnings)
}

func TestConfirmPayment_IsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator := testutil.SeedUser(t, h.db)
	attendee := testutil.SeedUser(t, h.db)
	event := testutil.SeedEvent(t, h.db, creator.ID, testutil.WithPrice(money.MustParse("100")))

	ref := h.bookPaid(t, attendee.ID, event)

	_, err := h.svc.ConfirmPayment(ctx, ref, event.ID, attendee.ID)
	require.NoError(t, err)

	again, err := h.svc.ConfirmPayment(ctx, ref, event.ID, attendee.ID)
	require.NoError(t, err)
	assert.True(t, again.AlreadySettled)

	// Without a session the ledger itself must recognise the booking.
	h.sessions = newMemSessions()
	thrice, err := booking.NewService(h.store, h.gateway, h.sessions, h.publisher, clock.NewFixed(testNow), logger.NewDiscard(), booking.Options{}).
		ConfirmPayment(ctx, ref, event.ID, attendee.ID)
	require.NoError(t, err)
	assert.True(t, thrice.AlreadySettled)

	assert.Equal(t, 1, h.count(t, (*models.EventBooking)(nil)))
	assert.Equal(t, 1, h.count(t, (*models.PlatformEarning)(nil)))
	assert.Equal(t, 4, h.event(t, event.ID).MaxCapacity)
	assert.Equal(t, money.MustParse("87.00"), h.user(t, creator.ID).TotalEarnings)
	assert.Equal(t, 1, h.publisher.count())
}

func TestConfirmPayment_ConcurrentDuplicateCallbacks(t *testing.T) {
	h := newHarness(t)
	creator := testutil.SeedUser(t, h.db)
	attendee := testutil.SeedUser(t, h.db)
	event := testutil.SeedEvent(t, h.db, creator.ID, testutil.WithPrice(money.MustParse("100")), testutil.WithCapacity(1))

	ref := h.bookPaid(t, attendee.ID, event)

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = h.svc.ConfirmPayment(context.Background(), ref, event.ID, attendee.ID)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, h.count(t, (*models.EventBooking)(nil)))
	assert.Equal(t, 1, h.count(t, (*models.PlatformEarning)(nil)))
	assert.Equal(t, 0, h.event(t, event.ID).MaxCapacity)
	assert.Equal(t, money.MustParse("87.00"), h.user(t, creator.ID).TotalEarnings)
}

func TestConfirmPayment_AmountMismatch(t *testing.T) {
	h := newHarness(t)
	creator := testutil.SeedUser(t, h.db)
	attendee := testutil.SeedUser(t, h.db)
	event := testutil.SeedEvent(t, h.db, creator.ID, testutil.WithPrice(money.MustParse("200")))

	res, err := h.svc.RequestBooking(context.Background(), attendee.ID, event.ID)
	require.NoError(t, err)
	h.gateway.pay(res.Reference, money.FromMinor(19999), event.ID, attendee.ID)

	_, err = h.svc.ConfirmPayment(context.Background(), res.Reference, event.ID, attendee.ID)
	assert.ErrorIs(t, err, booking.ErrAmountMismatch)

	h.assertNoLedgerWrites(t)
	assert.Equal(t, 5, h.event(t, event.ID).MaxCapacity)
	assert.Equal(t, money.Amount(0), h.user(t, creator.ID).TotalEarnings)
}

func TestConfirmPayment_CurrencyMismatch(t *testing.T) {
	h := newHarness(t)
	creator := testutil.SeedUser(t, h.db)
	attendee := testutil.SeedUser(t, h.db)
	event := testutil.SeedEvent(t, h.db, creator.ID, testutil.WithPrice(money.MustParse("10")))

	ref := h.bookPaid(t, attendee.ID, event)
	h.gateway.verifications[ref].Currency = "USD"

	_, err := h.svc.ConfirmPayment(context.Background(), ref, event.ID, attendee.ID)
	assert.ErrorIs(t, err, booking.ErrAmountMismatch)
	h.assertNoLedgerWrites(t)
}

func TestConfirmPayment_NotSuccessful(t *testing.T) {
	h := newHarness(t)
	creator := testutil.SeedUser(t, h.db)
	attendee := testutil.SeedUser(t, h.db)
	event := testutil.SeedEvent(t, h.db, creator.ID, testutil.WithPrice(money.MustParse("10")))

	res, err := h.svc.RequestBooking(context.Background(), attendee.ID, event.ID)
	require.NoError(t, err)

	_, err = h.svc.ConfirmPayment(context.Background(), res.Reference, event.ID, attendee.ID)
	assert.ErrorIs(t, err, booking.ErrPaymentVerificationFailed)
	h.assertNoLedgerWrites(t)
}

func TestConfirmPayment_VerifyTimeout(t *testing.T) {
	h := newHarness(t, func(o *booking.Options) { o.VerifyTimeout = 20 * time.Millisecond })
	creator := testutil.SeedUser(t, h.db)
	attendee := testutil.SeedUser(t, h.db)
	event := testutil.SeedEvent(t, h.db, creator.ID, testutil.WithPrice(money.MustParse("10")))

	ref := h.bookPaid(t, attendee.ID, event)
	h.gateway.hang = true

	start := time.Now()
	_, err := h.svc.ConfirmPayment(context.Background(), ref, event.ID, attendee.ID)
	assert.ErrorIs(t, err, booking.ErrPaymentVerificationFailed)
	assert.Less(t, time.Since(start), 2*time.Second)
	h.assertNoLedgerWrites(t)
}

func TestConfirmPayment_ReferenceReplayedForAnotherBooking(t *testing.T) {
	h := newHarness(t)
	creator := testutil.SeedUser(t, h.db)
	payer := testutil.SeedUser(t, h.db)
	other := testutil.SeedUser(t, h.db)
	event := testutil.SeedEvent(t, h.db, creator.ID, testutil.WithPrice(money.MustParse("10")))

	ref := h.bookPaid(t, payer.ID, event)

	_, err := h.svc.ConfirmPayment(context.Background(), ref, event.ID, other.ID)
	assert.ErrorIs(t, err, booking.ErrPaymentVerificationFailed)
	assert.Zero(t, h.gateway.verifyCalls)

	// Same replay with the session gone is caught by the gateway metadata.
	h.sessions.sessions = map[string]*models.PaymentSession{}
	_, err = h.svc.ConfirmPayment(context.Background(), ref, event.ID, other.ID)
	assert.ErrorIs(t, err, booking.ErrPaymentVerificationFailed)

	h.assertNoLedgerWrites(t)
}

func TestConfirmPayment_MissingParams(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.ConfirmPayment(context.Background(), "", "a", "b")
	assert.ErrorIs(t, err, booking.ErrMissingParams)

	_, err = h.svc.ConfirmPayment(context.Background(), "ref", "a", "b")
	assert.ErrorIs(t, err, booking.ErrInvalidID)
}

func TestConfirmPayment_SeatGoneBeforeCallback(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator := testutil.SeedUser(t, h.db)
	first := testutil.SeedUser(t, h.db)
	second := testutil.SeedUser(t, h.db)
	event := testutil.SeedEvent(t, h.db, creator.ID, testutil.WithPrice(money.MustParse("10")), testutil.WithCapacity(1))

	ref1 := h.bookPaid(t, first.ID, event)
	ref2 := h.bookPaid(t, second.ID, event)

	_, err := h.svc.ConfirmPayment(ctx, ref1, event.ID, first.ID)
	require.NoError(t, err)

	_, err = h.svc.ConfirmPayment(ctx, ref2, event.ID, second.ID)
	assert.ErrorIs(t, err, booking.ErrSoldOut)

	got := h.event(t, event.ID)
	assert.Equal(t, 0, got.MaxCapacity)
	assert.Equal(t, []string{first.ID}, got.BookedTickets)
	assert.Equal(t, 1, h.count(t, (*models.PlatformEarning)(nil)))
}

func TestConcurrentFreeBookings_NeverOversell(t *testing.T) {
	h := newHarness(t)
	creator := testutil.SeedUser(t, h.db)
	event := testutil.SeedEvent(t, h.db, creator.ID, testutil.WithCapacity(3))

	users := make([]*models.User, 10)
	for i := range users {
		users[i] = testutil.SeedUser(t, h.db)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		ok      int
		soldOut int
	)
	for _, u := range users {
		wg.Add(1)
		go func(userID string) {
			defer wg.Done()
			_, err := h.svc.RequestBooking(context.Background(), userID, event.ID)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, booking.ErrSoldOut):
				soldOut++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(u.ID)
	}
	wg.Wait()

	assert.Equal(t, 3, ok)
	assert.Equal(t, 7, soldOut)

	got := h.event(t, event.ID)
	assert.Equal(t, 0, got.MaxCapacity)
	assert.Equal(t, 3, got.TicketsSold)
	assert.Len(t, got.BookedTickets, 3)
	assert.Equal(t, 3, h.count(t, (*models.PlatformEarning)(nil)))
}

func TestConcurrentFreeBookings_SameUserOnce(t *testing.T) {
	h := newHarness(t)
	creator := testutil.SeedUser(t, h.db)
	attendee := testutil.SeedUser(t, h.db)
	event := testutil.SeedEvent(t, h.db, creator.ID, testutil.WithCapacity(10))

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.RequestBooking(context.Background(), attendee.ID, event.ID)
			if err != nil && !errors.Is(err, booking.ErrAlreadyBooked) {
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, h.count(t, (*models.EventBooking)(nil)))
	assert.Equal(t, 9, h.event(t, event.ID).MaxCapacity)
}

func TestMyTickets(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	creator := testutil.SeedUser(t, h.db)
	attendee := testutil.SeedUser(t, h.db)
	event := testutil.SeedEvent(t, h.db, creator.ID)

	_, err := h.svc.RequestBooking(ctx, attendee.ID, event.ID)
	require.NoError(t, err)

	tickets, err := h.svc.MyTickets(ctx, attendee.ID)
	require.NoError(t, err)
	require.Len(t, tickets, 1)
	assert.Equal(t, event.ID, tickets[0].EventID)
	assert.Equal(t, "Launch Party", tickets[0].Title)

	_, err = h.svc.MyTickets(ctx, "nope")
	assert.ErrorIs(t, err, booking.ErrInvalidID)
}
