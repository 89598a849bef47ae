package netstatus

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Signal is the platform connectivity capability.
type Signal interface {
	Online(ctx context.Context) (bool, error)
}

// SignalFunc adapts a function to Signal.
type SignalFunc func(ctx context.Context) (bool, error)

// Online implements Signal.
func (f SignalFunc) Online(ctx context.Context) (bool, error) { return f(ctx) }

// Prober checks reachability of a URL with a HEAD request. Any HTTP response,
// whatever its status, counts as online.
type Prober struct {
	url     string
	timeout time.Duration
	http    *http.Client
}

// NewProber creates a Prober for url.
func NewProber(url string, timeout time.Duration, hc *http.Client) *Prober {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	if hc == nil {
		hc = &http.Client{}
	}
	return &Prober{url: url, timeout: timeout, http: hc}
}

// Online implements Signal.
func (p *Prober) Online(ctx context.Context) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.url, nil)
	if err != nil {
		return false, eris.Wrap(err, "netstatus: create probe request")
	}
	resp, err := p.http.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return false, eris.Wrap(err, "netstatus: probe cancelled")
		}
		return false, nil
	}
	resp.Body.Close()
	return true, nil
}

// Watch polls sig every interval and feeds the result to m until ctx is done.
// A signal that errors leaves the last known state untouched.
func Watch(ctx context.Context, m *Monitor, sig Signal, interval time.Duration) {
	if sig == nil {
		return
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}

	check := func() {
		online, err := sig.Online(ctx)
		if err != nil {
			if ctx.Err() == nil {
				zap.L().Debug("network probe failed", zap.Error(err))
			}
			return
		}
		m.Set(online)
	}

	check()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			check()
		}
	}
}
