package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"pnldash/internal/log"
	"pnldash/internal/middleware/ratelimit"
	"pnldash/internal/middleware/security"
	"pnldash/internal/middleware/trace"
	"pnldash/internal/services"
	appweb "pnldash/web"
)

// renderTimeout bounds one fetch, normalize and extract cycle per request.
const renderTimeout = 15 * time.Second

// ReadinessCheck is an extra dependency probe run by /readyz.
type ReadinessCheck func(ctx context.Context) error

// Options configures a Server.
type Options struct {
	Addr     string
	SourceID string
	SubRange string

	// RefreshPerMinute limits POST /refresh per client.
	RefreshPerMinute int

	// CacheEntries reports the fetch cache size for /metrics; may be nil.
	CacheEntries func() int

	// Checks are named probes added to /readyz.
	Checks map[string]ReadinessCheck

	Logger *log.Logger
}

type appMetrics struct {
	uptime        time.Time
	reportsServed atomic.Int64
	renderErrors  atomic.Int64
	exportsServed atomic.Int64
	refreshes     atomic.Int64
}

type Server struct {
	http.Server
	templates *template.Template
	reports   *services.ReportService
	refresher *services.RefreshService
	opts      Options
	logger    *log.Logger

	rateLimiter      *ratelimit.Limiter
	securityDetector *security.Detector
	traceMiddleware  *trace.Middleware
	appMetrics       *appMetrics

	shutdownOnce sync.Once
}

// NewServer configures routes and templates, returning a ready-to-run http.Server.
func NewServer(reports *services.ReportService, refresher *services.RefreshService, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.RefreshPerMinute <= 0 {
		opts.RefreshPerMinute = 6
	}
	logger := opts.Logger.WithComponent(log.ComponentHTTP)

	detector := security.NewDetector()
	s := &Server{
		reports:          reports,
		refresher:        refresher,
		opts:             opts,
		logger:           logger,
		rateLimiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerWindow: opts.RefreshPerMinute, Window: time.Minute}),
		securityDetector: detector,
		traceMiddleware:  trace.NewMiddleware(opts.Logger, detector.ExtractClientIP),
		appMetrics:       &appMetrics{uptime: time.Now()},
	}

	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		logger.Error("Failed parsing templates", log.FieldError, err, log.FieldComponent, log.ComponentTemplate)
	} else {
		s.templates = t
	}

	mux := http.NewServeMux()

	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("/static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		logger.Warn("Failed to mount embedded static FS", log.FieldError, err)
	}

	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)

	// UI partials
	mux.HandleFunc("/ui/table", s.handleTablePartial)
	mux.HandleFunc("/theme", s.handleTheme)

	// JSON API
	mux.HandleFunc("/api/kpis", s.handleKPIs)
	mux.HandleFunc("/api/series", s.handleSeries)
	mux.HandleFunc("/api/history", s.handleHistory)

	// Exports
	mux.HandleFunc("/export.csv", s.handleExportCSV)
	mux.HandleFunc("/export.xlsx", s.handleExportXLSX)

	limited := s.rateLimiter.Middleware(detector.ExtractClientIP, s.onRateLimited)
	mux.Handle("/refresh", limited(http.HandlerFunc(s.handleRefresh)))

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           headers.Middleware(s.traceMiddleware.Middleware(s.withDetection(mux))),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	return s
}

// withDetection logs requests that look like scanner probes.
func (s *Server) withDetection(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.securityDetector.DetectSuspiciousRequest(r) {
			log.FromContext(r.Context()).WarnContext(r.Context(), "Suspicious request",
				log.FieldMethod, r.Method,
				log.FieldPath, r.URL.Path,
				log.FieldClientIP, s.securityDetector.ExtractClientIP(r))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldComponent, log.ComponentRateLimit,
		log.FieldPath, r.URL.Path,
		log.FieldClientIP, s.securityDetector.ExtractClientIP(r))
	NewHTMXResponse().
		Status(http.StatusTooManyRequests).
		TriggerErrorNotification("Too many refreshes, try again in a minute").
		BodyHTML(`<div class="error">Rate limit exceeded. Please try again later.</div>`).
		Write(w)
}

// Shutdown gracefully shuts down the server and cleanup routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.rateLimiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})
	return shutdownErr
}
