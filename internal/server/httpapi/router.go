// Package httpapi exposes the auth flows over HTTP. Refresh tokens travel
// only in the HttpOnly x-token cookie; access tokens are returned in the
// body and in the a-token cookie.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dmitrijs2005/gophauth/internal/logging"
	"github.com/dmitrijs2005/gophauth/internal/server/config"
	"github.com/dmitrijs2005/gophauth/internal/server/metrics"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
	"github.com/dmitrijs2005/gophauth/internal/server/services"
)

// Service is the part of services.AuthService used by the handlers.
type Service interface {
	Signup(ctx context.Context, identifier, password, nickname string, client services.ClientInfo) (*services.TokenPair, error)
	Signin(ctx context.Context, identifier, password string, client services.ClientInfo) (*services.TokenPair, error)
	RenewAccess(ctx context.Context, refreshToken string) (*services.TokenPair, error)
	RenewRefresh(ctx context.Context, refreshToken string, client services.ClientInfo) (*services.TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	Authenticate(ctx context.Context, accessToken string) (string, error)
	LogoutAll(ctx context.Context, userID string) (int64, error)
	ListSessions(ctx context.Context, userID string) ([]models.Session, error)
	ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error
}

type Options struct {
	Cookie         config.CookieConfig
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	Logger         logging.Logger
}

type Handler struct {
	auth    Service
	cookies cookieJar
	logger  logging.Logger
}

// NewRouter builds the chi router wrapped in otelhttp. Spans are no-ops
// until a tracer provider is installed globally.
func NewRouter(svc Service, opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logging.Nop{}
	}
	h := &Handler{
		auth:    svc,
		cookies: newCookieJar(opts.Cookie),
		logger:  log.With("module", "http_api"),
	}

	corsOpts := cors.Options{
		AllowedOrigins:   opts.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", headerBrowser, headerBrowserVersion, headerOS, headerOSVersion},
		AllowCredentials: true,
		MaxAge:           int((10 * time.Minute).Seconds()),
	}
	if len(corsOpts.AllowedOrigins) == 0 {
		// same origin only; an empty list would make cors allow any origin
		corsOpts.AllowOriginFunc = func(*http.Request, string) bool { return false }
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.requestLogger)
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Method(http.MethodGet, "/metrics", opts.Metrics.Handler())

	r.Post("/join", h.join)
	r.Post("/signin", h.signin)
	r.Post("/access-token", h.renewAccess)
	r.Post("/refresh-token", h.renewRefresh)
	r.Post("/logout", h.logout)

	r.Group(func(r chi.Router) {
		r.Use(h.requireAccess)
		r.Post("/logout-all", h.logoutAll)
		r.Get("/sessions", h.listSessions)
		r.Post("/password", h.changePassword)
	})

	return otelhttp.NewHandler(r, "gophauth")
}

func (h *Handler) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debug(r.Context(), "http",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
