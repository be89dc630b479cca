package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"eventcircle/internal/config"
	"eventcircle/internal/logger"
	"eventcircle/internal/models"

	"github.com/cenkalti/backoff/v4"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafka.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

var testTopics = config.TopicConfig{
	BookingConfirmed:    "test.booking.confirmed",
	WithdrawalCompleted: "test.withdrawal.completed",
}

func TestProducer_PublishBookingConfirmed(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{Writer: w, Topics: testTopics, Logger: logger.NewDiscard()}

	msg := models.BookingConfirmed{BookingID: "b1", EventID: "e1", UserID: "u1", Price: 20000, Commission: 2600, CreatorEarnings: 17400}
	require.NoError(t, p.PublishBookingConfirmed(context.Background(), msg))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "test.booking.confirmed", w.msgs[0].Topic)
	assert.Equal(t, "e1", string(w.msgs[0].Key))

	var got map[string]any
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &got))
	assert.Equal(t, 200.0, got["price"])
	assert.Equal(t, 26.0, got["commission"])
}

func TestProducer_PublishWithdrawalCompleted(t *testing.T) {
	w := &fakeWriter{}
	p := &Producer{Writer: w, Topics: testTopics, Logger: logger.NewDiscard()}

	require.NoError(t, p.PublishWithdrawalCompleted(context.Background(), models.WithdrawalPaid{WithdrawalID: "w1", UserID: "u1", Amount: 5000}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, "test.withdrawal.completed", w.msgs[0].Topic)
	assert.Equal(t, "u1", string(w.msgs[0].Key))
}

func TestProducer_WriteError(t *testing.T) {
	p := &Producer{Writer: &fakeWriter{err: errors.New("broker down")}, Topics: testTopics, Logger: logger.NewDiscard()}

	err := p.PublishBookingConfirmed(context.Background(), models.BookingConfirmed{EventID: "e1"})
	assert.ErrorContains(t, err, "broker down")
}

type fakeReader struct {
	mu        sync.Mutex
	queue     []kafka.Message
	committed []int64
}

func (f *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	f.mu.Lock()
	if len(f.queue) > 0 {
		msg := f.queue[0]
		f.queue = f.queue[1:]
		f.mu.Unlock()
		return msg, nil
	}
	f.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (f *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range msgs {
		f.committed = append(f.committed, m.Offset)
	}
	return nil
}

func (f *fakeReader) Close() error { return nil }

func constantBackOff() backoff.BackOff {
	return backoff.NewConstantBackOff(time.Millisecond)
}

func TestConsumer_RetriesFailedMessageBeforeMovingOn(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Offset: 1}, {Offset: 2}, {Offset: 3}}}
	c := &Consumer{Reader: r, Logger: logger.NewDiscard(), NewBackOff: constantBackOff}

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	attempts := map[int64]int{}
	var handled []int64
	err := c.Run(ctx, func(_ context.Context, msg kafka.Message) error {
		attempts[msg.Offset]++
		if msg.Offset == 2 && attempts[2] < 3 {
			return errors.New("database unavailable")
		}
		handled = append(handled, msg.Offset)
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, map[int64]int{1: 1, 2: 3, 3: 1}, attempts)
	assert.Equal(t, []int64{1, 2, 3}, handled)
	assert.Equal(t, []int64{1, 2, 3}, r.committed)
}

func TestConsumer_StopsRetryingOnShutdownWithoutCommitting(t *testing.T) {
	r := &fakeReader{queue: []kafka.Message{{Offset: 1}, {Offset: 2}}}
	c := &Consumer{Reader: r, Logger: logger.NewDiscard(), NewBackOff: constantBackOff}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	var seen []int64
	err := c.Run(ctx, func(_ context.Context, msg kafka.Message) error {
		if len(seen) == 0 || seen[len(seen)-1] != msg.Offset {
			seen = append(seen, msg.Offset)
		}
		return errors.New("database unavailable")
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{1}, seen)
	assert.Empty(t, r.committed)
}

func TestMissingTopics(t *testing.T) {
	existing := []string{"__consumer_offsets", "eventcircle.booking.confirmed"}
	wanted := []string{"eventcircle.booking.confirmed", "eventcircle.withdrawal.completed", "eventcircle.withdrawal.completed"}

	assert.Equal(t, []string{"eventcircle.withdrawal.completed"}, missingTopics(existing, wanted))
	assert.Empty(t, missingTopics(wanted, wanted[:1]))
}
