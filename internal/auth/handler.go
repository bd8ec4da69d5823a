package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/gotrak-digital/gotrak/internal/oauth"
	"github.com/gotrak-digital/gotrak/internal/observability"
	"github.com/gotrak-digital/gotrak/internal/shared"
	"github.com/gotrak-digital/gotrak/internal/view"
)

const (
	oauthStateKey    = "oauth_state"
	oauthVerifierKey = "oauth_verifier"
)

// Handler wires HTTP endpoints for both login paths.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	google         *oauth.Client
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	metrics        *observability.Metrics
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance. Metrics may be nil.
func NewHandler(logger *slog.Logger, service *Service, google *oauth.Client, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager, metrics *observability.Metrics) *Handler {
	return &Handler{
		logger:         logger,
		service:        service,
		google:         google,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		metrics:        metrics,
		validator:      validator.New(),
	}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/register", h.showRegister)
	r.Post("/register", h.handleRegister)
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Get("/login/google", h.googleLogin)
	r.Get("/login/google/callback", h.googleCallback)
	r.Get("/logout", h.handleLogout)
}

type registerForm struct {
	Email    string `validate:"required,email"`
	Username string `validate:"required,min=3,max=64"`
	Password string `validate:"required,min=8"`
}

type loginForm struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type authPageData struct {
	Email    string
	Username string
	Errors   map[string]string
}

func (h *Handler) showRegister(w http.ResponseWriter, r *http.Request) {
	h.renderAuthPage(w, r, "pages/register.html", "Daftar", authPageData{}, http.StatusOK)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	form := registerForm{
		Email:    r.PostFormValue("email"),
		Username: r.PostFormValue("username"),
		Password: r.PostFormValue("password"),
	}
	fieldErrors := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				fieldErrors[fieldErr.Field()] = fieldErr.Error()
			}
		}
	}

	if len(fieldErrors) == 0 {
		_, err := h.service.Register(r.Context(), form.Email, form.Username, form.Password)
		switch {
		case err == nil:
			if sess != nil {
				sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Registrasi berhasil! Silakan login."})
			}
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		case errors.Is(err, shared.ErrDuplicateEmail):
			fieldErrors["general"] = "Email sudah terdaftar!"
		case errors.Is(err, shared.ErrDuplicateUsername):
			fieldErrors["general"] = "Username sudah digunakan!"
		default:
			h.logger.Error("register", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	}

	data := authPageData{Email: form.Email, Username: form.Username, Errors: fieldErrors}
	h.renderAuthPage(w, r, "pages/register.html", "Daftar", data, http.StatusBadRequest)
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	h.renderAuthPage(w, r, "pages/login.html", "Masuk", authPageData{}, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	sess := shared.SessionFromContext(r.Context())

	form := loginForm{
		Email:    r.PostFormValue("email"),
		Password: r.PostFormValue("password"),
	}
	fieldErrors := make(map[string]string)
	if err := h.validator.Struct(form); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fieldErr := range verrs {
				fieldErrors[fieldErr.Field()] = fieldErr.Error()
			}
		}
	}

	if len(fieldErrors) == 0 {
		user, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
		switch {
		case err == nil:
			h.metrics.RecordLogin("local", "success")
			h.bindSession(w, r, sess, user)
			return
		case errors.Is(err, shared.ErrInvalidCredentials):
			// One message for unknown email and wrong password alike.
			h.metrics.RecordLogin("local", "failure")
			fieldErrors["general"] = "Email atau password salah!"
		default:
			h.logger.Error("authenticate", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
	}

	data := authPageData{Email: form.Email, Errors: fieldErrors}
	h.renderAuthPage(w, r, "pages/login.html", "Masuk", data, http.StatusBadRequest)
}

func (h *Handler) googleLogin(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	state, err := oauth.GenerateState()
	if err != nil {
		h.logger.Error("generate oauth state", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	verifier := oauth.GenerateVerifier()
	sess.Set(oauthStateKey, state)
	sess.Set(oauthVerifierKey, verifier)
	http.Redirect(w, r, h.google.AuthCodeURL(state, verifier), http.StatusFound)
}

func (h *Handler) googleCallback(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	expectedState := sess.Get(oauthStateKey)
	verifier := sess.Get(oauthVerifierKey)
	sess.Delete(oauthStateKey)
	sess.Delete(oauthVerifierKey)

	if code == "" || state == "" || expectedState == "" || state != expectedState {
		h.logger.Warn("google callback state mismatch")
		h.failGoogleLogin(w, r, sess)
		return
	}

	profile, err := h.google.FetchProfile(r.Context(), code, verifier)
	if err != nil {
		h.logger.Warn("fetch google profile", slog.Any("error", err))
		h.failGoogleLogin(w, r, sess)
		return
	}

	user, err := h.service.ResolveGoogle(r.Context(), profile)
	if err != nil {
		if errors.Is(err, shared.ErrFederatedLookup) {
			h.failGoogleLogin(w, r, sess)
			return
		}
		h.logger.Error("resolve google profile", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: fmt.Sprintf("Login berhasil sebagai %s!", user.Email)})
	}
	h.metrics.RecordLogin("google", "success")
	h.bindSession(w, r, sess, user)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if sess.ID != "" {
			if err := h.service.RemoveSession(r.Context(), sess.ID); err != nil {
				h.logger.Warn("remove login session", slog.Any("error", err))
			}
		}
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// bindSession marks the session authenticated and redirects to the home
// area. Both login paths converge here.
func (h *Handler) bindSession(w http.ResponseWriter, r *http.Request, sess *shared.Session, user *User) {
	if sess == nil {
		h.logger.Error("session missing during login")
		http.Redirect(w, r, "/home", http.StatusSeeOther)
		return
	}
	sess.Bind(user.ID, user.Username)
	if sess.ID != "" {
		expiresAt := time.Now().Add(h.sessionManager.TTL())
		if err := h.service.RegisterSession(r.Context(), sess.ID, user.ID, expiresAt, r.RemoteAddr, r.UserAgent()); err != nil {
			h.logger.Warn("register login session", slog.Any("error", err))
		}
	}
	http.Redirect(w, r, "/home", http.StatusSeeOther)
}

func (h *Handler) failGoogleLogin(w http.ResponseWriter, r *http.Request, sess *shared.Session) {
	h.metrics.RecordLogin("google", "failure")
	if sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "error", Message: "Gagal mengambil data dari Google."})
	}
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

func (h *Handler) renderAuthPage(w http.ResponseWriter, r *http.Request, page, title string, data authPageData, status int) {
	sess := shared.SessionFromContext(r.Context())
	csrfToken, _ := h.csrfManager.EnsureToken(r.Context(), sess)
	var flash *shared.FlashMessage
	if sess != nil {
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if status != http.StatusOK {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
	}
	if err := h.templates.Render(w, page, viewData); err != nil {
		h.logger.Error("render "+page, slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// ShowLoginForTest exposes the GET handler for tests.
func (h *Handler) ShowLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.showLogin(w, r)
}

// HandleLoginForTest exposes the POST handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}

// HandleRegisterForTest exposes the POST handler for tests.
func (h *Handler) HandleRegisterForTest(w http.ResponseWriter, r *http.Request) {
	h.handleRegister(w, r)
}

// GoogleCallbackForTest exposes the callback handler for tests.
func (h *Handler) GoogleCallbackForTest(w http.ResponseWriter, r *http.Request) {
	h.googleCallback(w, r)
}
