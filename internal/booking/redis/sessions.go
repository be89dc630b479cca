package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"eventcircle/internal/config"
	"eventcircle/internal/logger"
	"eventcircle/internal/models"

	"github.com/go-redis/redis/v8"
)

const sessionKeyPrefix = "payment_session:"

// Connect opens a client and pings it once.
func Connect(cfg config.RedisConfig, log *logger.Logger) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: 10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Addr, err)
	}

	log.Info("REDIS", fmt.Sprintf("Connected to Redis at %s for payment sessions", cfg.Addr))
	return client, nil
}

// Sessions stores payment sessions as JSON under payment_session:<reference>.
type Sessions struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewSessions(client *redis.Client, ttl time.Duration) *Sessions {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &Sessions{Client: client, TTL: ttl}
}

func sessionKey(reference string) string {
	return sessionKeyPrefix + reference
}

// Save records a new session. A reference already on file is left untouched.
func (s *Sessions) Save(ctx context.Context, session *models.PaymentSession) error {
	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	ok, err := s.Client.SetNX(ctx, sessionKey(session.Reference), data, s.TTL).Result()
	if err != nil {
		return fmt.Errorf("save payment session %s: %w", session.Reference, err)
	}
	if !ok {
		return fmt.Errorf("payment session %s already exists", session.Reference)
	}
	return nil
}

func (s *Sessions) Get(ctx context.Context, reference string) (*models.PaymentSession, error) {
	data, err := s.Client.Get(ctx, sessionKey(reference)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get payment session %s: %w", reference, err)
	}

	session := new(models.PaymentSession)
	if err := json.Unmarshal(data, session); err != nil {
		return nil, fmt.Errorf("decode payment session %s: %w", reference, err)
	}
	return session, nil
}

// MarkSettled flips the status and keeps the remaining TTL. A session that
// already expired is not recreated.
func (s *Sessions) MarkSettled(ctx context.Context, reference string) error {
	session, err := s.Get(ctx, reference)
	if err != nil || session == nil {
		return err
	}
	session.Status = models.PaymentSessionSettled

	data, err := json.Marshal(session)
	if err != nil {
		return err
	}
	err = s.Client.SetXX(ctx, sessionKey(reference), data, redis.KeepTTL).Err()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("mark payment session %s settled: %w", reference, err)
	}
	return nil
}
