package auth

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/sakif/taskboard/internal/model"
)

// SessionCookie is the HttpOnly cookie that carries the session token.
const SessionCookie = "session"

// contextKey is an unexported type used for context keys in this package.
// Only this package can create a key of this type, so no other package can
// read or shadow the caller stored under it.
type contextKey string

const userKey contextKey = "user"

// Authenticator turns a session token into the user it belongs to.
// service.AuthService implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*model.User, error)
}

// Identify resolves the session cookie into a user and stores it in the
// request context.
//
// It never blocks a request. A missing cookie, a bad or revoked token and an
// unknown user all leave the context without a user, and each procedure
// decides whether it needs one. Chi applies it before every /api route.
func Identify(authn Authenticator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookie)
			if err != nil || cookie.Value == "" {
				// http.ErrNoCookie: anonymous, not an error
				next.ServeHTTP(w, r)
				return
			}

			user, err := authn.Authenticate(r.Context(), cookie.Value)
			if err != nil {
				logger.Debug("session not accepted",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), user)))
		})
	}
}

// ContextWithUser returns a copy of ctx carrying user.
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// UserFromContext returns the caller stored by Identify.
//
// Returns (nil, false) if the request is anonymous.
//
// Usage in handlers:
//
//	user, _ := auth.UserFromContext(r.Context())
//	tasks, err := h.tasks.List(r.Context(), user)
func UserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok && user != nil
}
