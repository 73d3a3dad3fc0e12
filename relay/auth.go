package relay

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// AdminAuthenticator guards the admin adapter-registration route with a
// bearer JWT signed with an HMAC secret; every other route is open, since
// §4.8's register_adapter is the only operation that mutates shared state.
type AdminAuthenticator struct {
	secret []byte
}

// NewAdminAuthenticator constructs an authenticator for the given HMAC
// secret. An empty secret disables the route entirely rather than allowing
// unauthenticated admin access.
func NewAdminAuthenticator(secret string) *AdminAuthenticator {
	return &AdminAuthenticator{secret: []byte(secret)}
}

// Middleware rejects requests lacking a valid bearer token signed with the
// configured secret.
func (a *AdminAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.secret) == 0 {
			http.Error(w, "admin route disabled: no admin_jwt_secret configured", http.StatusServiceUnavailable)
			return
		}
		token := bearerToken(r.Header.Get("Authorization"))
		if token == "" {
			http.Error(w, "missing bearer token", http.StatusUnauthorized)
			return
		}
		if err := a.verify(token); err != nil {
			http.Error(w, "invalid token: "+err.Error(), http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (a *AdminAuthenticator) verify(tokenString string) error {
	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return a.secret, nil
	})
	if err != nil {
		return err
	}
	if !parsed.Valid {
		return errors.New("token not valid")
	}
	return nil
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimPrefix(header, prefix)
}
