// Package http exposes the operator API: the cash ledger rows, the plate
// payout panel and the printable report. Handlers delegate all state to the
// ledger store and payout aggregator; this layer only translates HTTP.
package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"cashdesk/internal/cache"
	"cashdesk/internal/cashapi"
	"cashdesk/internal/ledger"
	"cashdesk/internal/log"
	"cashdesk/internal/middleware/trace"
	"cashdesk/internal/view"
)

const (
	rowsCacheKey   = "rows"
	reportCacheKey = "report"

	// Read responses may be served from cache for this long; every mutation
	// invalidates both caches immediately.
	readCacheTTL = 15 * time.Second
)

// Server is the operator-facing HTTP server.
type Server struct {
	http.Server

	store   *ledger.Store
	payout  *ledger.Payout
	credits cashapi.CreditRegistrar
	render  view.Renderer

	rowsCache   *cache.LRUCache[[]byte]
	reportCache *cache.LRUCache[string]
	caches      *cache.Manager

	limiter *rateLimiter
	metrics *securityMetrics
	trace   *trace.Middleware

	shutdownOnce sync.Once
}

// NewServer wires the routes and the middleware chain. The credit registrar
// may be nil when the configured backend has no credit source; the endpoint
// then answers 503.
func NewServer(addr string, store *ledger.Store, payout *ledger.Payout, credits cashapi.CreditRegistrar, render view.Renderer, logger *log.Logger) *Server {
	s := &Server{
		store:   store,
		payout:  payout,
		credits: credits,
		render:  render,

		rowsCache:   cache.NewLRUCache[[]byte](4, readCacheTTL),
		reportCache: cache.NewLRUCache[string](4, readCacheTTL),
		caches:      cache.NewManager(),

		limiter: newRateLimiter(60),
		metrics: &securityMetrics{},
		trace:   trace.NewMiddleware(extractClientIP, logger),
	}

	s.caches.Register(s.rowsCache)
	s.caches.Register(s.reportCache)
	s.caches.StartCleanup(time.Minute)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /cash/rows", s.handleListRows)
	mux.HandleFunc("POST /cash/rows", s.handleCreateRow)
	mux.HandleFunc("PATCH /cash/rows/{id}", s.handlePatchRow)
	mux.HandleFunc("DELETE /cash/rows/{id}", s.handleDeleteRow)
	mux.HandleFunc("GET /cash/plate-payouts", s.handlePayoutPreview)
	mux.HandleFunc("POST /cash/plate-payouts/pay", s.handlePayoutCommit)
	mux.HandleFunc("POST /cash/plate-credits", s.handleRegisterCredit)
	mux.HandleFunc("GET /cash/report", s.handleReport)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	handler := log.Middleware(logger)(
		s.trace.Middleware(
			log.RequestIDMiddleware(func(r *http.Request) string {
				return trace.GetRequestID(r.Context())
			})(s.withProtection(mux))))

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return s
}

// Shutdown stops the background cleanup goroutines before draining the
// listener. Safe to call more than once.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(func() {
		s.limiter.stop()
		s.caches.Stop()
	})
	return s.Server.Shutdown(ctx)
}

// invalidateReadCaches drops cached read responses after a mutation.
func (s *Server) invalidateReadCaches() {
	s.rowsCache.Delete(rowsCacheKey)
	s.reportCache.Delete(reportCacheKey)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReady(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}
