package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gotrak-digital/gotrak/internal/shared"
)

type userContextKey struct{}

// ContextWithUser stores the resolved user in context.
func ContextWithUser(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, user)
}

// UserFromContext extracts the user placed by the Gate, nil when anonymous.
func UserFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(userContextKey{}).(*User)
	return user
}

// Gate guards protected endpoints. The session binding is resolved against
// the store on every request; a binding that no longer resolves is treated
// the same as no binding.
type Gate struct {
	logger   *slog.Logger
	service  *Service
	loginURL string
}

// NewGate constructs a Gate redirecting unauthenticated callers to loginURL.
func NewGate(logger *slog.Logger, service *Service, loginURL string) *Gate {
	return &Gate{logger: logger, service: service, loginURL: loginURL}
}

// RequireUser admits requests whose session resolves to a user, placing the
// user in the request context, and redirects everyone else to the login
// entry point.
func (g *Gate) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		user, err := g.service.CurrentUser(r.Context(), sess)
		if err != nil {
			g.logger.Error("resolve current user", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if user == nil {
			http.Redirect(w, r, g.loginURL, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
	})
}
