package gateway_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"eventcircle/internal/gateway"
	"eventcircle/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type MockClient struct {
	mock.Mock
}

func (m *MockClient) InitializeTransaction(ctx context.Context, req gateway.InitRequest) (*gateway.InitResult, error) {
	args := m.Called(req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.InitResult), args.Error(1)
}

func (m *MockClient) VerifyTransaction(ctx context.Context, reference string) (*gateway.Verification, error) {
	args := m.Called(reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gateway.Verification), args.Error(1)
}

func fastPolicy(attempts int) gateway.RetryPolicy {
	return gateway.RetryPolicy{MaxAttempts: attempts, InitialInterval: time.Millisecond, MaxInterval: 2 * time.Millisecond}
}

func TestRetry_VerifyRecoversFromTemporaryError(t *testing.T) {
	m := new(MockClient)
	m.On("VerifyTransaction", "ref").Return(nil, &gateway.Error{Op: "verify", StatusCode: http.StatusServiceUnavailable}).Twice()
	m.On("VerifyTransaction", "ref").Return(&gateway.Verification{Reference: "ref", Status: gateway.StatusSuccess}, nil).Once()

	r := gateway.WithRetry(m, nil, fastPolicy(3), logger.NewDiscard())
	v, err := r.VerifyTransaction(context.Background(), "ref")

	require.NoError(t, err)
	assert.True(t, v.Succeeded())
	m.AssertNumberOfCalls(t, "VerifyTransaction", 3)
}

func TestRetry_VerifyStopsOnPermanentError(t *testing.T) {
	m := new(MockClient)
	m.On("VerifyTransaction", "ref").Return(nil, &gateway.Error{Op: "verify", StatusCode: http.StatusNotFound, Message: "Transaction reference not found"})

	r := gateway.WithRetry(m, nil, fastPolicy(5), logger.NewDiscard())
	_, err := r.VerifyTransaction(context.Background(), "ref")

	var gwErr *gateway.Error
	require.True(t, errors.As(err, &gwErr))
	assert.Equal(t, http.StatusNotFound, gwErr.StatusCode)
	m.AssertNumberOfCalls(t, "VerifyTransaction", 1)
}

func TestRetry_InitializeIsNotRetried(t *testing.T) {
	m := new(MockClient)
	m.On("InitializeTransaction", mock.Anything).Return(nil, &gateway.Error{Op: "initialize", StatusCode: http.StatusBadGateway})

	r := gateway.WithRetry(m, nil, fastPolicy(5), logger.NewDiscard())
	_, err := r.InitializeTransaction(context.Background(), gateway.InitRequest{})

	assert.Error(t, err)
	m.AssertNumberOfCalls(t, "InitializeTransaction", 1)
}

func TestRetry_GivesUpAfterMaxAttempts(t *testing.T) {
	m := new(MockClient)
	m.On("VerifyTransaction", "ref").Return(nil, &gateway.Error{Op: "verify", Err: errors.New("connection reset")})

	r := gateway.WithRetry(m, nil, fastPolicy(3), logger.NewDiscard())
	_, err := r.VerifyTransaction(context.Background(), "ref")

	assert.Error(t, err)
	m.AssertNumberOfCalls(t, "VerifyTransaction", 3)
}
