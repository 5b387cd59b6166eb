package auth

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/ride-share/internal/models"
	"github.com/example/ride-share/internal/storage"
)

type contextKey string

const userKey contextKey = "user"

// Middleware verifies the bearer token on every request and resolves it to
// the internal user record before the handler runs.
type Middleware struct {
	Verifier TokenVerifier
	Store    storage.Store
	Logger   *slog.Logger
}

// Require rejects requests without a valid token or a registered user.
func (m *Middleware) Require(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := m.identity(w, r)
		if !ok {
			return
		}
		user, err := m.Store.GetUserByAuthUID(r.Context(), identity.UID)
		if errors.Is(err, storage.ErrNotFound) {
			writeJSONError(w, http.StatusNotFound, "user not registered, please complete signup")
			return
		}
		if err != nil {
			m.Logger.Error("auth user lookup failed", "uid", identity.UID, "error", err)
			writeJSONError(w, http.StatusInternalServerError, "internal error")
			return
		}
		ctx := context.WithValue(r.Context(), userKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// BearerIdentity verifies the token without requiring a registered user.
// The register handler uses it to bootstrap new accounts.
func (m *Middleware) BearerIdentity(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	return m.identity(w, r)
}

func (m *Middleware) identity(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	header := r.Header.Get("Authorization")
	if header == "" || !strings.HasPrefix(header, "Bearer ") {
		writeJSONError(w, http.StatusUnauthorized, "no token provided")
		return Identity{}, false
	}
	identity, err := m.Verifier.Verify(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		writeJSONError(w, http.StatusUnauthorized, "invalid or expired token")
		return Identity{}, false
	}
	return identity, true
}

// UserFromContext returns the authenticated user placed by Require.
func UserFromContext(ctx context.Context) (*models.User, bool) {
	u, ok := ctx.Value(userKey).(*models.User)
	return u, ok
}

func writeJSONError(w http.ResponseWriter, code int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": msg})
}
