// Package api exposes the deal workflows over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"

	"github.com/sells-group/dealdesk/internal/auth"
	"github.com/sells-group/dealdesk/internal/dcf"
	"github.com/sells-group/dealdesk/internal/negotiation"
	"github.com/sells-group/dealdesk/internal/research"
	"github.com/sells-group/dealdesk/internal/resilience"
)

const defaultMaxBody = 10 << 20

var (
	errBadBody       = eris.New("api: invalid request body")
	errNotConfigured = eris.New("Research is not configured on this server")
)

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures the router.
type Options struct {
	AllowedOrigins []string
	RatePerSec     float64
	RateBurst      int
	MaxBodyBytes   int64
}

// Server holds the services behind the HTTP routes.
type Server struct {
	Models       *dcf.Service
	Negotiations *negotiation.Service
	// Research is optional; its routes answer 503 when nil.
	Research *research.Service
	Verifier *auth.Verifier
	Breakers *resilience.Breakers
	Store    Pinger

	opts Options
}

// NewRouter builds the chi router for s.
func NewRouter(s *Server, opts Options) http.Handler {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBody
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	s.opts = opts

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "X-Client-Info", "Apikey"},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         300,
	}))
	r.Use(rateLimit(opts.RatePerSec, opts.RateBurst))

	r.Get("/health", s.health)

	r.Route("/v1", func(r chi.Router) {
		r.Use(authenticate(s.Verifier))

		r.Route("/models", func(r chi.Router) {
			r.Post("/", s.startModel)
			r.Get("/", s.modelHistory)
			r.Get("/{id}", s.modelStatus)
		})

		r.Route("/negotiations", func(r chi.Router) {
			guard := r.With(blockExternalSend(s.Negotiations, opts.MaxBodyBytes))
			guard.Post("/", s.createOrUpdateNegotiation)
			r.Get("/", s.listNegotiations)
			guard.Post("/{id}/generate", s.generateNegotiation)
			guard.Post("/{id}/approve", s.approveNegotiation)
			guard.Post("/{id}/archive", s.archiveNegotiation)
			r.Get("/{id}/history", s.negotiationHistory)
		})

		r.Route("/research", func(r chi.Router) {
			r.Post("/", s.analyzeCompany)
			r.Get("/usage", s.researchUsage)
		})
	})

	return r
}

type healthResponse struct {
	Status   string            `json:"status"`
	Store    string            `json:"store"`
	Circuits map[string]string `json:"circuits"`
	Time     time.Time         `json:"time"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{Status: "ok", Store: "ok", Circuits: map[string]string{}, Time: time.Now().UTC()}
	if s.Breakers != nil {
		resp.Circuits = s.Breakers.States()
	}

	status := http.StatusOK
	if s.Store != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.Store.Ping(ctx); err != nil {
			resp.Status, resp.Store = "degraded", "unreachable"
			status = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, status, resp)
}

func chiParam(r *http.Request, key string) string {
	return chi.URLParam(r, key)
}
