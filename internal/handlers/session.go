package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/mzaid0/Nestora/internal/logging"
	"github.com/mzaid0/Nestora/types"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated user attached to a request.
type Identity struct {
	UserID string
	User   types.User
}

// IdentityFromContext returns the identity stored by RequireSession.
func IdentityFromContext(ctx context.Context) (Identity, bool) {
	identity, ok := ctx.Value(identityKey).(Identity)
	return identity, ok && identity.UserID != ""
}

// WithIdentity returns a copy of ctx carrying identity.
func WithIdentity(ctx context.Context, identity Identity) context.Context {
	return context.WithValue(ctx, identityKey, identity)
}

// Authenticator resolves a session token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (types.User, error)
}

// RequireSession rejects requests without a valid session with 401 and
// attaches the session user to the context of the others. The token is read
// from the cookieName cookie, falling back to an Authorization bearer header.
func RequireSession(users Authenticator, cookieName string, log logging.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := users.Authenticate(r.Context(), sessionToken(r, cookieName))
			if err != nil {
				writeServiceError(w, r, log, err)
				return
			}

			ctx := WithIdentity(r.Context(), Identity{UserID: user.ID, User: user})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func sessionToken(r *http.Request, cookieName string) string {
	if cookie, err := r.Cookie(cookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}

	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
