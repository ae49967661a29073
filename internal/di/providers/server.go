package providers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/samber/do/v2"

	"github.com/iemanja/iemanjad/internal/api"
	"github.com/iemanja/iemanjad/internal/config"
	"github.com/iemanja/iemanjad/internal/logger"
	"github.com/iemanja/iemanjad/internal/ratelimit"
	"github.com/iemanja/iemanjad/internal/store"
)

// RateLimiterHandle wraps the per-client limiter. Limiter is nil when rate
// limiting is disabled.
type RateLimiterHandle struct {
	Limiter *ratelimit.KeyedRateLimiter
}

// Shutdown implements do.Shutdownable.
func (h *RateLimiterHandle) Shutdown() error {
	if h.Limiter != nil {
		h.Limiter.Stop()
	}
	return nil
}

// ProvideRateLimiter provides the per-client rate limiter.
func ProvideRateLimiter(i do.Injector) (*RateLimiterHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)

	if !cfg.RateLimit.Enabled() {
		log.Info("Rate limiting disabled")
		return &RateLimiterHandle{}, nil
	}

	limiter := ratelimit.New(float64(cfg.RateLimit.RPS), cfg.RateLimit.Burst, limiterCleanupInterval)
	log.Info("Rate limiting enabled", "rps", cfg.RateLimit.RPS, "burst", cfg.RateLimit.Burst)

	return &RateLimiterHandle{Limiter: limiter}, nil
}

// HTTPServerHandle wraps http.Server with Shutdownable.
type HTTPServerHandle struct {
	*http.Server
	bind    config.APIBind
	timeout time.Duration
	addr    net.Addr
}

// ListenAddr returns the address the server is listening on.
func (h *HTTPServerHandle) ListenAddr() net.Addr {
	return h.addr
}

// Shutdown implements do.Shutdownable.
func (h *HTTPServerHandle) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), h.timeout)
	defer cancel()

	err := h.Server.Shutdown(ctx)
	if h.bind.Network == "unix" {
		if rmErr := os.Remove(h.bind.Address); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
			err = errors.Join(err, rmErr)
		}
	}
	return err
}

// ProvideHTTPServer provides the HTTP server. The listener is opened before
// returning so bind errors fail startup; serving happens in the background.
func ProvideHTTPServer(i do.Injector) (*HTTPServerHandle, error) {
	cfg := do.MustInvoke[*config.Config](i)
	log := do.MustInvoke[*logger.Logger](i)
	backend := do.MustInvoke[*BackendHandle](i)
	tags := do.MustInvoke[store.TagRepository](i)
	posts := do.MustInvoke[store.PostRepository](i)
	limiter := do.MustInvoke[*RateLimiterHandle](i)

	handler := api.NewServer(tags, posts, backend, limiter.Limiter, log.Logger)

	bind := cfg.Server.APIBind
	ln, err := listen(bind)
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", bind, err)
	}

	srv := &http.Server{
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Start in background
	go func() {
		log.Info("HTTP server starting", "addr", ln.Addr().String(), "network", bind.Network)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("HTTP server error", "error", err)
		}
	}()

	return &HTTPServerHandle{
		Server:  srv,
		bind:    bind,
		timeout: cfg.Server.ShutdownTimeout,
		addr:    ln.Addr(),
	}, nil
}

// listen opens the TCP or Unix listener for bind. A leftover socket file
// from a previous run is removed unless something still answers on it.
func listen(bind config.APIBind) (net.Listener, error) {
	if bind.Network == "unix" {
		if err := removeStaleSocket(bind.Address); err != nil {
			return nil, err
		}
	}
	return net.Listen(bind.Network, bind.Address)
}

func removeStaleSocket(path string) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return fmt.Errorf("%s exists and is not a socket", path)
	}

	if conn, err := net.DialTimeout("unix", path, time.Second); err == nil {
		conn.Close()
		return fmt.Errorf("%s is in use by another process", path)
	}
	return os.Remove(path)
}
