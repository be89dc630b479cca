package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventcircle/internal/auth"
	"eventcircle/internal/booking"
	"eventcircle/internal/booking/booking_api"
	bookingdb "eventcircle/internal/booking/db"
	bookingredis "eventcircle/internal/booking/redis"
	"eventcircle/internal/clock"
	"eventcircle/internal/config"
	"eventcircle/internal/database"
	"eventcircle/internal/database/migrations"
	"eventcircle/internal/earnings"
	earningsdb "eventcircle/internal/earnings/db"
	"eventcircle/internal/earnings/earnings_api"
	"eventcircle/internal/gateway"
	"eventcircle/internal/kafka"
	"eventcircle/internal/logger"
	"eventcircle/internal/money"
	"eventcircle/internal/tickets"
	ticketdb "eventcircle/internal/tickets/db"
	"eventcircle/internal/tickets/qr"
	"eventcircle/internal/tickets/ticket_api"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

func newGateway(cfg config.PaymentConfig, log *logger.Logger) *gateway.Retrying {
	policy := gateway.DefaultRetryPolicy(cfg.VerifyAttempts)
	switch cfg.Provider {
	case "stripe":
		c := gateway.NewStripeClient(cfg.SecretKey)
		log.Info("PAYMENT", "Using Stripe checkout")
		return gateway.WithRetry(c, c, policy, log)
	default:
		c := gateway.NewPaystackClient(cfg.SecretKey, cfg.BaseURL, &http.Client{Timeout: 10 * time.Second})
		log.Info("PAYMENT", "Using Paystack checkout")
		return gateway.WithRetry(c, c, policy, log)
	}
}

func newVerifier(ctx context.Context, cfg config.AuthConfig, log *logger.Logger) (auth.Verifier, error) {
	if cfg.OIDCIssuer != "" {
		log.Info("AUTH", fmt.Sprintf("Verifying tokens against OIDC issuer %s", cfg.OIDCIssuer))
		return auth.NewOIDCVerifier(ctx, cfg.OIDCIssuer)
	}
	log.Info("AUTH", "Verifying HS256 tokens with JWT_SECRET")
	return auth.NewHMACVerifier(cfg.JWTSecret), nil
}

func requestLogger(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.LogAPI(r.Method, r.URL.Path, fmt.Sprintf("%d", ww.Status()), time.Since(start).String())
		})
	}
}

func main() {
	envErr := godotenv.Load()

	log := logger.NewLogger("api")
	defer log.Close()

	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	} else {
		log.Info("CONFIG", "Loaded environment variables from .env file")
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatal("CONFIG", err.Error())
	}

	ctx := context.Background()

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if cfg.Database.AutoMigrate {
		runner, err := migrations.NewRunner(cfg.Database.DSN, log)
		if err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
		if err := runner.Up(); err != nil {
			log.Fatal("MIGRATE", err.Error())
		}
		runner.Close()
	}

	var sessions booking.SessionStore
	redisClient, err := bookingredis.Connect(cfg.Redis, log)
	if err != nil {
		log.Warn("REDIS", fmt.Sprintf("Payment sessions disabled: %v", err))
	} else {
		defer redisClient.Close()
		sessions = bookingredis.NewSessions(redisClient, cfg.Redis.SessionTTL)
	}

	var (
		bookingPublisher    booking.EventPublisher
		withdrawalPublisher earnings.Publisher
	)
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, cfg.Kafka.Topics.All(), log); err != nil {
			log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
		}
		producer := kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics, log)
		defer producer.Close()
		bookingPublisher = producer
		withdrawalPublisher = producer
	} else {
		log.Warn("KAFKA", "Kafka disabled, booking events will not be published")
	}

	gw := newGateway(cfg.Payment, log)
	clk := clock.NewSystem()

	commission := decimal.RequireFromString(cfg.Booking.CommissionRate)
	ledger := &bookingdb.DB{Bun: bunDB}
	bookingService := booking.NewService(ledger, gw, sessions, bookingPublisher, clk, log, booking.Options{
		CommissionRate: &commission,
		Currency:       cfg.Payment.Currency,
		CallbackURL:    cfg.Payment.CallbackBaseURL + "/api/events/payment/verify",
		VerifyTimeout:  cfg.Payment.VerifyTimeout,
	})

	passes, err := qr.NewQRGenerator(cfg.Ticket.QRSecret)
	if err != nil {
		log.Fatal("TICKETS", err.Error())
	}
	ticketService := &tickets.Service{
		Counts:   &ticketdb.DB{Bun: bunDB},
		Bookings: ledger,
		Passes:   passes,
		Logger:   log,
	}

	minimum, err := money.Parse(cfg.Withdrawal.Minimum)
	if err != nil {
		log.Fatal("CONFIG", fmt.Sprintf("WITHDRAWAL_MINIMUM: %v", err))
	}
	earningsService := earnings.NewService(&earningsdb.DB{Bun: bunDB}, gw, withdrawalPublisher, clk, log, minimum, cfg.Payment.Currency)

	verifier, err := newVerifier(ctx, cfg.Auth, log)
	if err != nil {
		log.Fatal("AUTH", err.Error())
	}

	bookingHandler := booking_api.NewHandler(bookingService, passes, cfg.Booking.FrontendURL, log)
	ticketHandler := ticket_api.NewHandler(ticketService, log)
	earningsEngine := earnings_api.NewEarningsHandler(earningsService, cfg.Auth.AdminUserIDs, log).Engine()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.Booking.FrontendURL},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// --- Public Routes ---
	r.Get("/api/events/payment/verify", bookingHandler.VerifyPayment)
	r.Get("/api/events/{eventId}/sales", ticketHandler.GetSales)

	// --- Protected Routes ---
	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(verifier, log))

		r.Post("/api/events/book/{eventId}", bookingHandler.BookEvent)
		r.Get("/api/events/{eventId}/ticket", bookingHandler.TicketPass)
		r.Post("/api/events/{eventId}/passes/check", ticketHandler.CheckPass)
		r.Get("/api/users/me/tickets", bookingHandler.MyTickets)

		for _, path := range earnings_api.Paths {
			r.Handle(path, earningsEngine)
		}
	})
	log.Info("ROUTER", "Booking, ticket and earnings routes registered")

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("HTTP", fmt.Sprintf("EventCircle API running on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP", fmt.Sprintf("HTTP server error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	log.Info("APP", "Shutdown signal received, initiating graceful shutdown")
	ctxShutdown, cancel := context.WithTimeout(ctx, cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(ctxShutdown); err != nil {
		log.Error("HTTP", fmt.Sprintf("Server shutdown failed: %v", err))
	} else {
		log.Info("HTTP", "EventCircle API shutdown complete")
	}
}
