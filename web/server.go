package web

import (
	"errors"
	"net"
	"net/http"

	log "github.com/chi-middleware/logrus-logger"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/nexhealth/nexauth"
	"github.com/nexhealth/nexauth/classify"
)

// Config wires the handler's dependencies.
type Config struct {
	Engine     *nexauth.Engine
	Classifier classify.Classifier
	Logger     *logrus.Logger

	// SecureCookies marks session cookies Secure; enable whenever the
	// portal is served over https.
	SecureCookies bool
}

func NewHandler(cfg Config) (*Handler, error) {
	if cfg.Engine == nil {
		return nil, errors.New("web: engine required")
	}
	if cfg.Classifier == nil {
		return nil, errors.New("web: classifier required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logrus.StandardLogger()
	}

	pages, err := parsePages()
	if err != nil {
		return nil, err
	}

	return &Handler{
		engine:        cfg.Engine,
		classifier:    cfg.Classifier,
		logger:        cfg.Logger,
		pages:         pages,
		secureCookies: cfg.SecureCookies,
	}, nil
}

// Router builds the portal's route table.
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(log.Logger("router", h.logger))
	r.Use(clientIP)

	r.Get("/", h.welcome)

	r.Get("/login/", h.loginPage)
	r.Post("/login/", h.loginSubmit)
	r.Get("/verify_code/", h.verifyCodePage)
	r.Post("/verify_code/", h.verifyCodeSubmit)

	r.Get("/register/", h.registerPage)
	r.Post("/register/", h.registerSubmit)

	r.Get("/forgot_password/", h.forgotPasswordPage)
	r.Post("/forgot_password/", h.forgotPasswordSubmit)
	r.Get("/verify_reset_code/", h.verifyResetCodePage)
	r.Post("/verify_reset_code/", h.verifyResetCodeSubmit)
	r.Get("/reset_password/", h.resetPasswordPage)
	r.Post("/reset_password/", h.resetPasswordSubmit)

	r.Get("/logout/", h.logout)

	r.Get("/home/", h.requireAuth(h.home))
	r.Get("/historia_clinica/", h.requireAuth(h.historiaClinica))

	r.Get("/prediccion/", h.prediccionPage)
	r.Post("/prediccion/", h.prediccionSubmit)

	return r
}

// clientIP copies the request's remote address into the context so the
// engine can key its per-IP rate limits.
func clientIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if ip != "" {
			r = r.WithContext(nexauth.WithClientIP(r.Context(), ip))
		}
		next.ServeHTTP(w, r)
	})
}
