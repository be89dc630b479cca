package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"eventcircle/internal/booking/db"
	"eventcircle/internal/config"
	"eventcircle/internal/database"
	"eventcircle/internal/kafka"
	"eventcircle/internal/logger"
	"eventcircle/internal/tickets"
	ticketdb "eventcircle/internal/tickets/db"

	"github.com/joho/godotenv"
)

// ticketing-worker turns booking.confirmed events into daily sales counters.
func main() {
	envErr := godotenv.Load()

	log := logger.NewLogger("ticketing-worker")
	defer log.Close()

	if envErr != nil {
		log.Warn("CONFIG", ".env file not found, using environment variables")
	}

	cfg := config.Load()
	if !cfg.Kafka.Enabled {
		log.Fatal("CONFIG", "KAFKA_ENABLED is false, nothing to consume")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	bunDB, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", err.Error())
	}
	defer bunDB.Close()

	if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.Topics.BookingConfirmed}, log); err != nil {
		log.Warn("KAFKA", fmt.Sprintf("Topic creation might have failed: %v", err))
	}

	service := &tickets.Service{
		Counts:   &ticketdb.DB{Bun: bunDB},
		Bookings: &db.DB{Bun: bunDB},
		Logger:   log,
	}

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.Topics.BookingConfirmed, cfg.Kafka.GroupID, log)
	defer consumer.Close()

	log.Info("APP", fmt.Sprintf("Consuming %s as group %s", cfg.Kafka.Topics.BookingConfirmed, cfg.Kafka.GroupID))
	if err := consumer.Run(ctx, service.HandleMessage); err != nil {
		log.Error("KAFKA", fmt.Sprintf("Consumer stopped: %v", err))
		return
	}
	log.Info("APP", "Ticketing worker shutdown complete")
}
