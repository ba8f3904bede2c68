package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"os"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/offer-goat/offer-goat/internal/analytics"
	"github.com/offer-goat/offer-goat/internal/dashboard"
	"github.com/offer-goat/offer-goat/internal/stats"
	"github.com/offer-goat/offer-goat/internal/store"
)

// Options tunes a Server. Zero values fall back to defaults.
type Options struct {
	Port           int
	TokenFile      string
	AllowedOrigins []string
	BeaconRPS      float64
	BeaconBurst    int
	Tiers          stats.TierThresholds
}

type Server struct {
	store     *store.SQLiteStore
	analytics *analytics.Service
	port      int
	token     string
	tokenFile string
	router    chi.Router
	templates *template.Template
	limiter   *rate.Limiter
	startTime time.Time
}

func New(s *store.SQLiteStore, opts Options) *Server {
	if opts.Port == 0 {
		opts.Port = 8080
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	if opts.BeaconRPS <= 0 {
		opts.BeaconRPS = 50
	}
	if opts.BeaconBurst <= 0 {
		opts.BeaconBurst = 100
	}
	if opts.Tiers == (stats.TierThresholds{}) {
		opts.Tiers = stats.DefaultTierThresholds
	}

	srv := &Server{
		store:     s,
		analytics: analytics.NewService(s, opts.Tiers),
		port:      opts.Port,
		token:     generateToken(),
		tokenFile: opts.TokenFile,
		templates: template.Must(template.ParseFS(dashboard.Templates, "templates/*.html")),
		limiter:   rate.NewLimiter(rate.Limit(opts.BeaconRPS), opts.BeaconBurst),
		startTime: time.Now(),
	}

	srv.setupRoutes(opts.AllowedOrigins)
	return srv
}

func (s *Server) setupRoutes(allowedOrigins []string) {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         300,
	}))

	// Public endpoints
	r.Get("/health", s.handleHealth)
	r.Get("/og.js", s.handleTrackingJS)
	r.Get("/v/assign", s.handleAssign)
	r.With(s.rateLimit).Post("/v/visit", s.handleVisit)
	r.With(s.rateLimit).Post("/v/event", s.handleEvent)
	r.Handle("/metrics", promhttp.Handler())

	// Dashboard endpoints (protected)
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)
		r.Get("/dashboard", s.handleDashboard)
		r.Get("/dashboard/experiments/{name}", s.handleDashboardExperiment)
		r.Get("/dashboard/api/experiments", s.handleDashboardAPI)
		r.Get("/dashboard/api/experiments/{name}", s.handleDashboardAPIExperiment)
	})

	s.router = r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, printMessages bool) error {
	// Write token to file for the token command
	if s.tokenFile != "" {
		if err := os.WriteFile(s.tokenFile, []byte(s.token), 0o600); err != nil {
			zap.L().Warn("failed to write token file", zap.String("path", s.tokenFile), zap.Error(err))
		}
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if printMessages {
		fmt.Println()
		fmt.Printf("offer-goat running on http://localhost:%d\n", s.port)
		fmt.Printf("Dashboard: http://localhost:%d/dashboard?token=%s\n", s.port, s.token)
		fmt.Println()
		fmt.Println("Press Ctrl+C to stop")
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", s.port))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

func (s *Server) Token() string {
	return s.token
}

func (s *Server) Handler() http.Handler {
	return s.router
}

func generateToken() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		// Fallback to a simple token if crypto/rand fails
		return "a1b2c3d4e5f60718"
	}
	return hex.EncodeToString(bytes)
}
