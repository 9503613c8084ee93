package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/vyrodovalexey/transitgw/internal/observability"
)

// Listener is one HTTP server bound to an address.
type Listener struct {
	name    string
	addr    string
	server  *http.Server
	ln      net.Listener
	logger  observability.Logger
	running atomic.Bool
}

// ListenerOption is a functional option for configuring a listener.
type ListenerOption func(*Listener)

// WithListenerLogger sets the logger for the listener.
func WithListenerLogger(logger observability.Logger) ListenerOption {
	return func(l *Listener) {
		l.logger = logger
	}
}

// NewListener creates a listener for handler on addr.
func NewListener(name, addr string, handler http.Handler, opts ...ListenerOption) *Listener {
	l := &Listener{
		name:   name,
		addr:   addr,
		logger: observability.NopLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}

	l.server = &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}
	return l
}

// Name returns the listener name.
func (l *Listener) Name() string {
	return l.name
}

// Address returns the bound address, or the configured one before Listen.
func (l *Listener) Address() string {
	if l.ln != nil {
		return l.ln.Addr().String()
	}
	return l.addr
}

// Listen binds the address without serving.
func (l *Listener) Listen(ctx context.Context) error {
	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "tcp", l.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", l.addr, err)
	}
	l.ln = ln
	return nil
}

// Serve accepts connections until Shutdown. It returns nil after a
// graceful shutdown.
func (l *Listener) Serve() error {
	if l.ln == nil {
		return fmt.Errorf("listener %s is not bound", l.name)
	}
	if !l.running.CompareAndSwap(false, true) {
		return fmt.Errorf("listener %s is already running", l.name)
	}
	defer l.running.Store(false)

	l.logger.Info("listener started",
		observability.String("name", l.name),
		observability.String("address", l.Address()),
	)

	if err := l.server.Serve(l.ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listener %s: %w", l.name, err)
	}
	return nil
}

// Shutdown stops the listener gracefully, closing it outright if the
// drain does not finish before ctx ends.
func (l *Listener) Shutdown(ctx context.Context) error {
	l.logger.Info("stopping listener", observability.String("name", l.name))

	if err := l.server.Shutdown(ctx); err != nil {
		if closeErr := l.server.Close(); closeErr != nil {
			return fmt.Errorf("failed to close listener: %w", closeErr)
		}
		return fmt.Errorf("failed to shutdown listener gracefully: %w", err)
	}

	l.logger.Info("listener stopped", observability.String("name", l.name))
	return nil
}

// IsRunning returns true if the listener is serving.
func (l *Listener) IsRunning() bool {
	return l.running.Load()
}
