// Package server runs the HTTP listener with graceful shutdown and a SIGHUP
// reload hook.
package server

import (
	"context"
	"crypto/tls"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dd0wney/gridcascade/pkg/logging"
)

// DefaultShutdownTimeout bounds how long in-flight requests may drain.
const DefaultShutdownTimeout = 30 * time.Second

// ReloadFunc is called on SIGHUP. The server wires it to a topology refresh
// followed by a centrality recompute.
type ReloadFunc func(ctx context.Context) error

// GracefulServer wraps an http.Server whose lifetime follows a context.
type GracefulServer struct {
	server          *http.Server
	logger          logging.Logger
	shutdownTimeout time.Duration

	shutdownCh   chan struct{}
	shutdownOnce sync.Once

	reloadMu sync.RWMutex
	reloadFn ReloadFunc
}

// Option configures a GracefulServer.
type Option func(*GracefulServer)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(gs *GracefulServer) { gs.logger = logger }
}

// WithShutdownTimeout overrides DefaultShutdownTimeout.
func WithShutdownTimeout(d time.Duration) Option {
	return func(gs *GracefulServer) {
		if d > 0 {
			gs.shutdownTimeout = d
		}
	}
}

// WithReloadFunc sets the SIGHUP handler.
func WithReloadFunc(fn ReloadFunc) Option {
	return func(gs *GracefulServer) { gs.reloadFn = fn }
}

// WithTLSConfig serves HTTPS with tc.
func WithTLSConfig(tc *tls.Config) Option {
	return func(gs *GracefulServer) { gs.server.TLSConfig = tc }
}

// NewGracefulServer creates a server for handler on addr.
func NewGracefulServer(addr string, handler http.Handler, opts ...Option) *GracefulServer {
	gs := &GracefulServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       30 * time.Second,
			WriteTimeout:      60 * time.Second,
			IdleTimeout:       120 * time.Second,
			MaxHeaderBytes:    1 << 20,
		},
		logger:          logging.NewNopLogger(),
		shutdownTimeout: DefaultShutdownTimeout,
		shutdownCh:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(gs)
	}
	gs.logger = gs.logger.With(logging.Component("http"))
	return gs
}

// Run listens on the configured address and serves until ctx is cancelled,
// then drains in-flight requests.
func (gs *GracefulServer) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", gs.server.Addr)
	if err != nil {
		return err
	}
	return gs.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (gs *GracefulServer) Serve(ctx context.Context, ln net.Listener) error {
	go gs.watchReload(ctx)

	scheme := "http"
	if gs.server.TLSConfig != nil {
		ln = tls.NewListener(ln, gs.server.TLSConfig)
		scheme = "https"
	}

	errCh := make(chan error, 1)
	go func() {
		gs.logger.Info("http server listening",
			logging.String("addr", ln.Addr().String()),
			logging.String("scheme", scheme),
		)
		errCh <- gs.server.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return gs.Shutdown(gs.shutdownTimeout)
	}
}

// Shutdown stops accepting connections and waits up to timeout for
// in-flight requests. Only the first call has effect.
func (gs *GracefulServer) Shutdown(timeout time.Duration) error {
	var err error
	gs.shutdownOnce.Do(func() {
		close(gs.shutdownCh)

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		gs.logger.Info("http server shutting down", logging.Duration("timeout", timeout))
		if err = gs.server.Shutdown(ctx); err != nil {
			gs.logger.Error("http server shutdown", logging.Error(err))
			return
		}
		gs.logger.Info("http server stopped")
	})
	return err
}

// IsShuttingDown reports whether Shutdown has been called.
func (gs *GracefulServer) IsShuttingDown() bool {
	select {
	case <-gs.shutdownCh:
		return true
	default:
		return false
	}
}

// SetReloadFunc replaces the SIGHUP handler.
func (gs *GracefulServer) SetReloadFunc(fn ReloadFunc) {
	gs.reloadMu.Lock()
	defer gs.reloadMu.Unlock()
	gs.reloadFn = fn
}

// Reload runs the reload function, if any.
func (gs *GracefulServer) Reload(ctx context.Context) error {
	gs.reloadMu.RLock()
	fn := gs.reloadFn
	gs.reloadMu.RUnlock()

	if fn == nil {
		gs.logger.Warn("reload requested but no reload function configured")
		return nil
	}

	timer := logging.StartTimer(gs.logger, "reload complete", logging.Operation("reload"))
	if err := fn(ctx); err != nil {
		timer.EndError(err)
		return err
	}
	timer.End()
	return nil
}

func (gs *GracefulServer) watchReload(ctx context.Context) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-gs.shutdownCh:
			return
		case <-sigCh:
			gs.logger.Info("received SIGHUP")
			_ = gs.Reload(ctx)
		}
	}
}
