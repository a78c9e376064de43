package api

import (
	"context"
	"net/http"
	"strings"

	"rentcrm/internal/domain"
)

type identityKey struct{}

func withIdentity(ctx context.Context, id domain.Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// IdentityFromContext returns the agent authenticated by the auth middleware.
func IdentityFromContext(ctx context.Context) (domain.Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(domain.Identity)
	return id, ok && id.AgentID != ""
}

// HTTPAuth authenticates agents by session token, taken from the
// Authorization header or the session cookie.
type HTTPAuth struct {
	verifier   domain.IdentityVerifier
	cookieName string
}

func NewHTTPAuth(verifier domain.IdentityVerifier, cookieName string) *HTTPAuth {
	return &HTTPAuth{verifier: verifier, cookieName: cookieName}
}

func (a *HTTPAuth) Wrap(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := a.token(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		identity, err := a.verifier.VerifyIdentity(r.Context(), token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}

		next.ServeHTTP(w, r.WithContext(withIdentity(r.Context(), identity)))
	})
}

func (a *HTTPAuth) token(r *http.Request) string {
	if h := strings.TrimSpace(r.Header.Get("Authorization")); h != "" {
		if scheme, tok, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	if a.cookieName == "" {
		return ""
	}
	if c, err := r.Cookie(a.cookieName); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}
