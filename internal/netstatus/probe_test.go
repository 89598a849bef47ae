package netstatus

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProber_Online(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodHead, r.Method)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	online, err := NewProber(srv.URL, time.Second, nil).Online(context.Background())
	require.NoError(t, err)
	assert.True(t, online, "any HTTP response means the network is reachable")
}

func TestProber_Offline(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	online, err := NewProber(url, time.Second, nil).Online(context.Background())
	require.NoError(t, err)
	assert.False(t, online)
}

func TestWatch_FeedsMonitor(t *testing.T) {
	m := NewMonitor()
	var state atomic.Bool
	state.Store(true)
	sig := SignalFunc(func(context.Context) (bool, error) { return state.Load(), nil })

	transitions := make(chan bool, 4)
	m.Subscribe(func(online bool) { transitions <- online })
	<-transitions // initial call

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		Watch(ctx, m, sig, 5*time.Millisecond)
		close(done)
	}()

	state.Store(false)
	select {
	case online := <-transitions:
		assert.False(t, online)
	case <-time.After(2 * time.Second):
		t.Fatal("expected offline transition")
	}

	cancel()
	<-done
}

func TestWatch_NilSignal(t *testing.T) {
	m := NewMonitor()
	Watch(context.Background(), m, nil, time.Millisecond)
	assert.True(t, m.IsOnline())
}
