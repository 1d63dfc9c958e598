package twin

import (
	"errors"
	"net/http"
	"time"

	"github.com/MrEthical07/goRewards/jwt"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

// Route names used for request counting and fault injection.
const (
	RouteLogin          = "login"
	RouteOptin          = "optin"
	RouteJoin           = "join"
	RouteOptInStatus    = "ois"
	RouteDiscover       = "discover"
	RouteSeasonMetadata = "season-meta"
	RouteSeasonState    = "season-state"
	RoutePoints         = "points-estimation"
	RouteReferral       = "referral"
	RouteGeo            = "geolocation"
)

const (
	headerAccessToken = "rewards-access-token"

	// DefaultTimestampTolerance bounds how far a signed timestamp may drift
	// from the twin's clock.
	DefaultTimestampTolerance = 30 * time.Second
)

// Config configures a Handler.
type Config struct {
	Tokens             *jwt.Manager
	Logger             zerolog.Logger
	TimestampTolerance time.Duration
}

// Handler serves the rewards backend API from a MemoryStore.
type Handler struct {
	store     *MemoryStore
	tokens    *jwt.Manager
	log       zerolog.Logger
	tolerance time.Duration
}

// NewHandler creates a Handler.
func NewHandler(s *MemoryStore, cfg Config) (*Handler, error) {
	if s == nil {
		return nil, errors.New("twin store required")
	}
	if cfg.Tokens == nil {
		return nil, errors.New("twin token manager required")
	}
	if cfg.TimestampTolerance <= 0 {
		cfg.TimestampTolerance = DefaultTimestampTolerance
	}
	return &Handler{
		store:     s,
		tokens:    cfg.Tokens,
		log:       cfg.Logger.With().Str("component", "rewards-twin").Logger(),
		tolerance: cfg.TimestampTolerance,
	}, nil
}

// Routes registers all rewards API routes on the given router.
func (h *Handler) Routes(r chi.Router) {
	r.Use(middleware.Recoverer)
	r.Use(h.requestLog)
	r.Use(h.delay)

	r.Route("/auth", func(r chi.Router) {
		r.With(h.route(RouteLogin)).Post("/mobile-login", h.Login)
		r.With(h.route(RouteOptin)).Post("/mobile-optin", h.Optin)
	})
	r.With(h.route(RouteJoin)).Post("/wr/subscriptions/mobile-join", h.Join)

	r.Route("/public", func(r chi.Router) {
		r.With(h.route(RouteOptInStatus)).Post("/rewards/ois", h.OptInStatus)
		r.With(h.route(RouteDiscover)).Get("/seasons/status", h.DiscoverSeasons)
		r.With(h.route(RouteSeasonMetadata)).Get("/seasons/{id}/meta", h.SeasonMetadata)
	})
	r.With(h.route(RouteSeasonState)).Get("/seasons/{id}/state", h.SeasonState)

	r.With(h.route(RoutePoints)).Post("/points-estimation", h.EstimatePoints)
	r.With(h.route(RouteReferral)).Get("/referral/validate", h.ValidateReferralCode)
	r.With(h.route(RouteGeo)).Get("/geolocation", h.GeoLocation)
}

// route counts requests to name and serves pending injected faults.
func (h *Handler) route(name string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h.store.countRequest(name)
			if f, ok := h.store.takeFault(name); ok {
				writeError(w, f.status, f.message)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *Handler) delay(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if d := h.store.Delay(); d > 0 {
			select {
			case <-time.After(d):
			case <-r.Context().Done():
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		h.log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}

// now is the twin's clock including the configured skew.
func (h *Handler) now() time.Time {
	return time.Now().Add(h.store.ClockSkew())
}
