package middleware

import (
	"context"
	"net/http"
	"strings"

	"collabnotes-server/pkg/jwt"
	"collabnotes-server/pkg/response"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity is the authenticated caller. Username is what permissions and
// locks are keyed on.
type Identity struct {
	UserID   string
	Username string
}

func AuthMiddleware(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := BearerToken(r)
			if !ok {
				response.Unauthorized(w, "Missing or malformed authorization header")
				return
			}

			claims, err := jwt.ValidateTokenOfType(token, jwtSecret, jwt.TokenTypeAccess)
			if err != nil {
				response.Unauthorized(w, "Invalid or expired token")
				return
			}

			id := Identity{UserID: claims.UserID, Username: claims.Username}
			recordUser(r.Context(), id.Username)
			next.ServeHTTP(w, r.WithContext(ContextWithIdentity(r.Context(), id)))
		})
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	parts := strings.Fields(r.Header.Get("Authorization"))
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func ContextWithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey).(Identity)
	return id, ok
}

func GetUserID(r *http.Request) string {
	id, _ := IdentityFrom(r.Context())
	return id.UserID
}

func GetUsername(r *http.Request) string {
	id, _ := IdentityFrom(r.Context())
	return id.Username
}
