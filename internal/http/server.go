package http

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"bilant/internal/lock"
	"bilant/internal/log"
	"bilant/internal/middleware/ratelimit"
	"bilant/internal/middleware/security"
	"bilant/internal/middleware/trace"
	"bilant/internal/services"
)

type Server struct {
	http.Server
	ledger *services.Ledger
	idle   *lock.IdleLock
	logger *log.Logger

	limiter  *ratelimit.Limiter
	detector *security.Detector
	tracer   *trace.Middleware

	shutdownOnce sync.Once
}

// Options tune the middleware chain. The zero value uses the defaults of
// each middleware.
type Options struct {
	RateLimit      ratelimit.Config
	Headers        *security.HeadersConfig
	TrustedProxies []string
}

// NewServer wires the API routes for ledger behind the middleware chain.
// idle may be nil, in which case the API is never locked.
func NewServer(addr string, ledger *services.Ledger, idle *lock.IdleLock, logger *log.Logger, opts Options) *Server {
	if logger == nil {
		logger = log.Discard()
	}
	if idle == nil {
		idle = lock.New(nil)
	}
	headers := security.DefaultHeadersConfig()
	if opts.Headers != nil {
		headers = *opts.Headers
	}

	s := &Server{
		ledger:   ledger,
		idle:     idle,
		logger:   logger.WithComponent(log.ComponentHTTP),
		limiter:  ratelimit.NewLimiter(opts.RateLimit),
		detector: security.NewDetector(),
	}
	for _, cidr := range opts.TrustedProxies {
		if err := s.detector.AddTrustedProxy(cidr); err != nil {
			s.logger.Warn("Ignoring trusted proxy", log.FieldError, err)
		}
	}
	s.tracer = trace.NewMiddleware(logger, s.detector.ExtractClientIP)

	mux := http.NewServeMux()
	s.routes(mux)

	var h http.Handler = mux
	h = s.withActivity(h)
	h = s.limiter.Middleware(s.detector.ExtractClientIP, isProbe, s.handleRateLimited)(h)
	h = s.withDetection(h)
	h = security.NewHeadersMiddleware(headers).Middleware(h)
	h = s.tracer.Middleware(h)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	mux.HandleFunc("GET /api/date", s.handleGetDate)
	mux.HandleFunc("PUT /api/date", s.guarded(s.handleSetDate))

	mux.HandleFunc("GET /api/datasets", s.handleListDatasets)
	mux.HandleFunc("GET /api/datasets/{id}/rows", s.handleGetRows)
	mux.HandleFunc("PUT /api/datasets/{id}/rows", s.guarded(s.handleSetRows))
	mux.HandleFunc("POST /api/datasets/{id}/rows/add", s.guarded(s.handleAddRow))
	mux.HandleFunc("POST /api/datasets/{id}/rows/update", s.guarded(s.handleUpdateCell))
	mux.HandleFunc("POST /api/datasets/{id}/rows/delete", s.guarded(s.handleDeleteRow))
	mux.HandleFunc("POST /api/datasets/{id}/rows/undo", s.guarded(s.handleUndo))
	mux.HandleFunc("GET /api/datasets/{id}/compare", s.handleGetCompare)
	mux.HandleFunc("PUT /api/datasets/{id}/compare", s.guarded(s.handleSetCompare))
	mux.HandleFunc("GET /api/datasets/{id}/export.csv", s.handleExportDataset)

	mux.HandleFunc("GET /api/balance", s.handleBalance)
	mux.HandleFunc("GET /api/balance/series", s.handleBalanceSeries)
	mux.HandleFunc("GET /api/monthly", s.handleMonthly)
	mux.HandleFunc("GET /api/monthly/export.csv", s.handleExportMonthly)
	mux.HandleFunc("POST /api/monthly/reset-day", s.guarded(s.handleResetMonthlyDay))

	mux.HandleFunc("GET /api/config", s.handleGetConfig)
	mux.HandleFunc("PUT /api/config", s.guarded(s.handleSetConfig))
	mux.HandleFunc("GET /api/tax", s.handleTax)
	mux.HandleFunc("GET /api/installments", s.handleGetInstallments)
	mux.HandleFunc("PUT /api/installments", s.guarded(s.handleSetInstallments))
	mux.HandleFunc("GET /api/projection/settings", s.handleGetProjectionSettings)
	mux.HandleFunc("PUT /api/projection/settings", s.guarded(s.handleSetProjectionSettings))
	mux.HandleFunc("GET /api/projection", s.handleProjection)
	mux.HandleFunc("GET /api/projection.csv", s.handleProjectionCSV)
	mux.HandleFunc("GET /api/projection.pdf", s.handleProjectionPDF)
	mux.HandleFunc("GET /api/tab", s.handleGetTab)
	mux.HandleFunc("PUT /api/tab", s.guarded(s.handleSetTab))

	mux.HandleFunc("GET /api/backup", s.handleBackupStatus)
	mux.HandleFunc("POST /api/backup/export", s.guarded(s.handleBackupExport))
	mux.HandleFunc("POST /api/backup/import", s.guarded(s.handleBackupImport))
	mux.HandleFunc("POST /api/reset", s.guarded(s.handleReset))
	mux.HandleFunc("POST /api/sheets/push", s.guarded(s.handleSheetsPush))

	mux.HandleFunc("GET /api/lock", s.handleLockState)
	mux.HandleFunc("POST /api/lock", s.handleLockNow)
	mux.HandleFunc("POST /api/lock/unlock", s.handleUnlock)
	mux.HandleFunc("POST /api/lock/activity", s.handleActivity)

	mux.HandleFunc("/api/", s.handleNotFound)
}

// guarded rejects the request with 423 while the idle lock is engaged.
// Passing the guard counts as activity.
func (s *Server) guarded(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.idle.Guard(); err != nil {
			writeError(w, r, err)
			return
		}
		next(w, r)
	}
}

// withActivity rearms the idle timer on API reads. Lock endpoints manage
// the timer themselves.
func (s *Server) withActivity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/api/") && !strings.HasPrefix(r.URL.Path, "/api/lock") {
			s.idle.Activity()
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withDetection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.detector.DetectSuspiciousRequest(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.detector.ExtractClientIP(r))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleRateLimited(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusTooManyRequests, errorBody{
		Error:     "rate limit exceeded, please try again later",
		Code:      "rate_limited",
		RequestID: trace.GetRequestID(r.Context()),
	})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusNotFound, errorBody{
		Error:     "no such endpoint: " + r.Method + " " + r.URL.Path,
		Code:      "not_found",
		RequestID: trace.GetRequestID(r.Context()),
	})
}

// isProbe exempts health checks from rate limiting.
func isProbe(r *http.Request) bool {
	return r.URL.Path == "/healthz" || r.URL.Path == "/readyz"
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type readiness struct {
	Status     string                    `json:"status"`
	Date       string                    `json:"date"`
	Lock       lock.State                `json:"lock"`
	Requests   trace.Metrics             `json:"requests"`
	RateLimit  ratelimit.Metrics         `json:"rateLimit"`
	Detections security.DetectionMetrics `json:"detections"`
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, readiness{
		Status:     "ready",
		Date:       s.ledger.Date().String(),
		Lock:       s.idle.State(),
		Requests:   s.tracer.GetMetrics(),
		RateLimit:  s.limiter.GetMetrics(),
		Detections: s.detector.GetMetrics(),
	})
}

// Shutdown stops accepting requests, then releases the limiter and the
// idle timer.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.Server.Shutdown(ctx)
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		s.idle.Stop()
	})
	return err
}
