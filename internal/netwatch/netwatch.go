// Package netwatch tracks whether the remote endpoint is reachable and
// announces transitions on the bus.
package netwatch

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/matheus3301/camlog/internal/bus"
	"github.com/matheus3301/camlog/internal/config"
)

const (
	DefaultInterval = 15 * time.Second
	dialTimeout     = 5 * time.Second
)

// Pinger checks reachability once.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingerFunc adapts a function to Pinger.
type PingerFunc func(ctx context.Context) error

func (f PingerFunc) Ping(ctx context.Context) error { return f(ctx) }

// TCPPinger dials the endpoint's host.
type TCPPinger struct {
	Addr string
}

// NewTCPPinger derives host:port from an http(s) endpoint URL.
func NewTCPPinger(endpoint string) (*TCPPinger, error) {
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if u.Hostname() == "" {
		return nil, fmt.Errorf("endpoint %q has no host", endpoint)
	}
	port := u.Port()
	if port == "" {
		port = "443"
		if u.Scheme == "http" {
			port = "80"
		}
	}
	return &TCPPinger{Addr: net.JoinHostPort(u.Hostname(), port)}, nil
}

func (p *TCPPinger) Ping(ctx context.Context) error {
	d := net.Dialer{Timeout: dialTimeout}
	conn, err := d.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return err
	}
	return conn.Close()
}

// Watcher pings at a fixed interval.
type Watcher struct {
	pinger   Pinger
	interval time.Duration
	bus      *bus.Bus
	logger   *zap.Logger

	online atomic.Bool
	mu     sync.Mutex
	known  bool
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a watcher. With no pinger the network is always considered
// up; uploads then fail on their own when it is not.
func New(cfg config.NetwatchConfig, pinger Pinger, b *bus.Bus, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}
	w := &Watcher{pinger: pinger, interval: interval, bus: b, logger: logger}
	w.online.Store(true)
	return w
}

// NewFromConfig builds a watcher probing the configured remote endpoint.
func NewFromConfig(cfg *config.Config, b *bus.Bus, logger *zap.Logger) *Watcher {
	var pinger Pinger
	if cfg.Remote.Configured() {
		p, err := NewTCPPinger(cfg.Remote.Endpoint)
		if err != nil {
			logger.Warn("connectivity check disabled", zap.Error(err))
		} else {
			pinger = p
		}
	}
	return New(cfg.Netwatch, pinger, b, logger)
}

// Online reports the last observed state.
func (w *Watcher) Online() bool {
	return w.online.Load()
}

// Observe records a reachability result and publishes net.online or
// net.offline when it differs from the previous one. The first
// observation only publishes when it is online.
func (w *Watcher) Observe(online bool) {
	w.mu.Lock()
	prev := w.online.Load()
	first := !w.known
	w.known = true
	w.online.Store(online)
	w.mu.Unlock()

	if !first && prev == online {
		return
	}
	if first && !online {
		w.logger.Info("network unreachable")
		return
	}
	if online {
		w.logger.Info("network reachable")
		w.bus.Emit(bus.NetOnline, nil)
	} else {
		w.logger.Warn("network lost")
		w.bus.Emit(bus.NetOffline, nil)
	}
}

// Check pings once and records the result.
func (w *Watcher) Check(ctx context.Context) bool {
	if w.pinger == nil {
		w.Observe(true)
		return true
	}
	err := w.pinger.Ping(ctx)
	if err != nil {
		w.logger.Debug("ping failed", zap.Error(err))
	}
	w.Observe(err == nil)
	return err == nil
}

// Start pings immediately and then at every interval until Stop.
func (w *Watcher) Start(ctx context.Context) {
	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		w.Check(ctx)
		for {
			select {
			case <-ticker.C:
				w.Check(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop ends the ping loop and waits for it.
func (w *Watcher) Stop() {
	if w.cancel != nil {
		w.cancel()
		<-w.done
	}
}
