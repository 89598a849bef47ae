package apiclient

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirely/hirely-cli/internal/apierr"
)

func TestCall_RetriesTransientStatus(t *testing.T) {
	rec := &sleepRecorder{}
	c := New(WithSleep(rec.Sleep))

	calls := 0
	got, errResp := Call(context.Background(), c, func(context.Context) ([]string, error) {
		calls++
		if calls < 3 {
			return nil, &apierr.StatusError{Status: http.StatusServiceUnavailable, Message: "busy"}
		}
		return []string{"a", "b"}, nil
	})

	require.Nil(t, errResp)
	assert.Equal(t, []string{"a", "b"}, got)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second}, rec.delays)
}

func TestCall_DoesNotRetryClientError(t *testing.T) {
	c := New(WithSleep((&sleepRecorder{}).Sleep))

	calls := 0
	_, errResp := Call(context.Background(), c, func(context.Context) (int, error) {
		calls++
		return 0, &apierr.StatusError{Status: http.StatusForbidden, Message: "row level security"}
	})

	require.NotNil(t, errResp)
	assert.Equal(t, apierr.TypeAuthorization, errResp.Type)
	assert.False(t, errResp.Retryable)
	assert.Equal(t, 1, calls)
}

func TestCall_ExhaustsOnNetworkErrors(t *testing.T) {
	c := New(WithSleep((&sleepRecorder{}).Sleep), WithDefaults(Options{Retries: 2}))

	calls := 0
	_, errResp := Call(context.Background(), c, func(context.Context) (int, error) {
		calls++
		return 0, errors.New("dial tcp: connection refused")
	})

	require.NotNil(t, errResp)
	assert.Equal(t, apierr.TypeNetwork, errResp.Type)
	assert.Equal(t, 3, calls)
}

func TestCall_TimeoutPerAttempt(t *testing.T) {
	c := New(WithSleep((&sleepRecorder{}).Sleep), WithDefaults(Options{Timeout: 20 * time.Millisecond, Retries: NoRetry}))

	_, errResp := Call(context.Background(), c, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})

	require.NotNil(t, errResp)
	assert.Equal(t, apierr.TypeNetwork, errResp.Type)
	assert.ErrorIs(t, errResp.OriginalError, apierr.ErrTimeout)
}

func TestCall_Offline(t *testing.T) {
	c := New(WithConnectivity(staticConn(false)))

	called := false
	_, errResp := Call(context.Background(), c, func(context.Context) (int, error) {
		called = true
		return 1, nil
	})

	require.NotNil(t, errResp)
	assert.Equal(t, apierr.TypeNetwork, errResp.Type)
	assert.False(t, called)
}
