// Package http serves the dashboard pages, the htmx partials, the JSON API and
// the CSV export.
package http

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"financeboard/internal/amqp"
	"financeboard/internal/budget"
	"financeboard/internal/core"
	"financeboard/internal/log"
	"financeboard/internal/middleware/ratelimit"
	"financeboard/internal/middleware/security"
	"financeboard/internal/middleware/trace"
	"financeboard/internal/services"
	appweb "financeboard/web"

	"github.com/shopspring/decimal"
)

// DefaultPollInterval is how often the dashboard reloads the summary partial.
const DefaultPollInterval = 60 * time.Second

// Refresher runs the fetch, ingest and upsert pipeline in-process.
type Refresher interface {
	Refresh(ctx context.Context, month core.Month) services.RefreshReport
	ForceRefresh(ctx context.Context, month core.Month) services.RefreshReport
	LastReport() (services.RefreshReport, bool)
}

// RefreshPublisher hands refresh requests to the worker.
type RefreshPublisher interface {
	PublishRefresh(ctx context.Context, req *amqp.RefreshRequest) error
}

// Options wires a Server. Budget is required.
type Options struct {
	Addr   string
	Budget *budget.Service
	// Refresher is used when Publisher is nil or publishing fails.
	Refresher Refresher
	Publisher RefreshPublisher
	Logger    *log.Logger

	Currency           string
	RateLimitPerMinute int
	PollInterval       time.Duration
	Now                func() time.Time
}

type Server struct {
	http.Server
	templates *template.Template
	budget    *budget.Service
	refresher Refresher
	publisher RefreshPublisher
	limiter   *ratelimit.Limiter
	detector  *security.Detector
	logger    *log.Logger

	currency string
	poll     time.Duration
	now      func() time.Time
	started  time.Time

	shutdownOnce sync.Once
}

// NewServer parses the embedded templates and mounts every route.
func NewServer(opts Options) (*Server, error) {
	if opts.Budget == nil {
		return nil, errors.New("http server needs a budget service")
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}

	s := &Server{
		budget:    opts.Budget,
		refresher: opts.Refresher,
		publisher: opts.Publisher,
		detector:  security.NewDetector(),
		logger:    opts.Logger.WithComponent(log.ComponentHTTP),
		currency:  opts.Currency,
		poll:      opts.PollInterval,
		now:       opts.Now,
		started:   opts.Now(),
	}
	s.limiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute}, opts.Logger)

	t, err := template.New("").Funcs(s.templateFuncs()).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.limiter.Stop()
		return nil, fmt.Errorf("parse templates: %w", err)
	}
	s.templates = t

	mux := http.NewServeMux()
	static, err := fs.Sub(appweb.StaticFS, "static")
	if err != nil {
		s.limiter.Stop()
		return nil, fmt.Errorf("mount static assets: %w", err)
	}
	mux.Handle("/static/", security.StaticAssetMiddleware(3600)(http.StripPrefix("/static/", http.FileServer(http.FS(static)))))

	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)

	mux.HandleFunc("/", s.handleDashboard)
	mux.HandleFunc("/ui/summary", s.handleSummaryPartial)
	mux.HandleFunc("/ui/settings", s.handleSettingsPartial)
	mux.HandleFunc("/ui/settings/reset", s.handleSettingsReset)
	mux.HandleFunc("/ui/refresh", s.handleUIRefresh)

	mux.HandleFunc("/api/summary", s.handleAPISummary)
	mux.HandleFunc("/api/settings", s.handleAPISettings)
	mux.HandleFunc("/api/daily", s.handleAPIDaily)
	mux.HandleFunc("/api/refresh", s.handleAPIRefresh)

	mux.HandleFunc("/export/transactions.csv", s.handleExportTransactions)

	tracer := trace.NewMiddleware(opts.Logger, s.detector.ExtractClientIP)
	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())

	var handler http.Handler = mux
	handler = s.limiter.Middleware(s.detector.ExtractClientIP)(handler)
	handler = headers.Middleware(handler)
	handler = s.detector.Middleware(handler)
	handler = tracer.Handler(handler)

	s.Server = http.Server{
		Addr:              opts.Addr,
		Handler:           handler,
		ReadTimeout:       10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
		MaxHeaderBytes:    1 << 16,
	}
	return s, nil
}

// Shutdown stops the rate limiter and drains the server. Safe to call twice.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		s.limiter.Stop()
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) templateFuncs() template.FuncMap {
	return template.FuncMap{
		"money":   func(d decimal.Decimal) string { return formatMoney(s.currency, d) },
		"percent": formatPercent,
		"date":    core.FormatDate,
		"lower":   strings.ToLower,
	}
}

// render executes a named template into a buffer first so a failing template
// never leaves a half-written page behind.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf strings.Builder
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.NewFields().WithOperation(log.OpRender).WithError(err).ToSlice()...)
		InternalServerError("Could not render page").Write(w)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}

// renderPartial is render behind an htmx response builder so triggers can be
// attached.
func (s *Server) renderPartial(w http.ResponseWriter, r *http.Request, b *HTMXResponseBuilder, name string, data any) {
	var buf strings.Builder
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Partial execution failed",
			log.NewFields().WithOperation(log.OpRender).WithError(err).ToSlice()...)
		InternalServerError("Could not render partial").Write(w)
		return
	}
	b.BodyHTML(buf.String()).Write(w)
}
