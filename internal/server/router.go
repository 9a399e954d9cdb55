package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/otiai10/authbridge/internal/bridge"
	"github.com/otiai10/authbridge/internal/security"
	"github.com/otiai10/authbridge/internal/version"
)

// RouterConfig holds dependencies for the router
type RouterConfig struct {
	Identity Identity

	// BaseContext bounds every channel; cancelling it closes open connections.
	// nil means context.Background().
	BaseContext context.Context

	Origins       *security.OriginPolicy // nil allows any origin
	ConnRateLimit *RateLimitConfig       // nil means no limit on /channel
	BridgeOptions []bridge.Option

	// TrustProxyHeaders takes the client IP from X-Forwarded-For / X-Real-IP.
	// Off, any client could pick its own rate limit key.
	TrustProxyHeaders bool
}

// NewRouter creates the HTTP router:
//
//	GET /health   -> {"status":"ok","hash":"<commit>"}
//	GET /channel  -> WebSocket upgrade
func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	if cfg.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(RecoveryMiddleware)
	r.Use(LoggingMiddleware)

	r.With(JSONContentTypeMiddleware).Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(fmt.Sprintf(`{"status":"ok","hash":"%s"}`, version.CommitHash)))
	})

	baseCtx := cfg.BaseContext
	if baseCtx == nil {
		baseCtx = context.Background()
	}
	checkOrigin := func(*http.Request) bool { return true }
	if cfg.Origins != nil {
		checkOrigin = cfg.Origins.CheckOrigin
	}

	var channelRoute http.Handler = &channelHandler{
		baseCtx:  baseCtx,
		identity: cfg.Identity,
		upgrader: newUpgrader(checkOrigin),
		opts:     cfg.BridgeOptions,
	}
	if cfg.ConnRateLimit != nil && cfg.ConnRateLimit.RequestsPerMinute > 0 {
		limiter := NewInMemoryRateLimiter(*cfg.ConnRateLimit)
		go sweep(baseCtx, limiter)
		channelRoute = NewRateLimitMiddleware(limiter)(channelRoute)
	}
	r.Method(http.MethodGet, "/channel", channelRoute)

	return r
}

// sweep drops idle rate limiter entries until ctx is done
func sweep(ctx context.Context, limiter *InMemoryRateLimiter) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			limiter.Cleanup(10 * time.Minute)
		}
	}
}
