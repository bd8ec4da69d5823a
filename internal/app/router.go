package app

import (
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/gotrak-digital/gotrak/internal/auth"
	"github.com/gotrak-digital/gotrak/internal/observability"
	"github.com/gotrak-digital/gotrak/internal/shared"
	"github.com/gotrak-digital/gotrak/internal/view"
	"github.com/gotrak-digital/gotrak/web"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	Templates      *view.Engine
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager
	AuthHandler    *auth.Handler
	AuthService    *auth.Service
	Metrics        *observability.Metrics
}

// NewRouter constructs the chi.Router with GOTRAK defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	// Entry page: authenticated visitors go straight to the home area.
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		user, err := params.AuthService.CurrentUser(r.Context(), sess)
		if err != nil {
			params.Logger.Error("resolve current user", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if user != nil {
			http.Redirect(w, r, "/home", http.StatusSeeOther)
			return
		}
		renderPage(params, w, r, "pages/landing.html", "GOTRAK", nil)
	})

	params.AuthHandler.MountRoutes(r)

	gate := auth.NewGate(params.Logger, params.AuthService, "/login")
	r.Group(func(r chi.Router) {
		r.Use(gate.RequireUser)
		r.Get("/home", func(w http.ResponseWriter, r *http.Request) {
			user := auth.UserFromContext(r.Context())
			renderPage(params, w, r, "pages/home.html", "Beranda", user)
		})
		r.Get("/survey", func(w http.ResponseWriter, r *http.Request) {
			user := auth.UserFromContext(r.Context())
			renderPage(params, w, r, "pages/survey.html", "Survei", user)
		})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	staticFS, err := fs.Sub(web.Static, "static")
	if err != nil {
		params.Logger.Error("create static sub filesystem", slog.Any("error", err))
	} else {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.FS(staticFS)))
		r.Handle("/static/*", staticCacheHandler(fileServer))
	}

	return r
}

func renderPage(params RouterParams, w http.ResponseWriter, r *http.Request, page, title string, user *auth.User) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := params.CSRFManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	data := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        user,
	}
	if err := params.Templates.Render(w, page, data); err != nil {
		params.Logger.Error("render "+page, slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// staticCacheHandler wraps a file server with Cache-Control headers.
func staticCacheHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "public, max-age=3600")
		next.ServeHTTP(w, r)
	})
}
