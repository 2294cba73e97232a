package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/agentstation/boardstream/internal/auth"
	"github.com/agentstation/boardstream/internal/server/response"
)

// InternalKeyHeader carries the shared secret for the broadcast endpoint.
const InternalKeyHeader = "X-Internal-Key"

// TokenVerifier validates end-user stream tokens.
type TokenVerifier interface {
	Verify(token string) (auth.Principal, error)
}

type principalKey struct{}

// PrincipalFrom returns the principal stored by RequireToken.
func PrincipalFrom(ctx context.Context) (auth.Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(auth.Principal)
	return p, ok
}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p auth.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// TokenFromRequest returns the token from the "token" query parameter,
// falling back to an "Authorization: Bearer" header. Browser EventSource
// cannot set headers, so the query parameter is checked first.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if authz := r.Header.Get("Authorization"); strings.HasPrefix(authz, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(authz, "Bearer "))
	}
	return ""
}

// RequireToken rejects requests without a valid end-user token.
func RequireToken(verifier TokenVerifier, logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal, err := verifier.Verify(TokenFromRequest(r))
			if err != nil {
				logger.Warn().
					Err(err).
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Msg("Authentication failed")
				response.AuthFailed(w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithPrincipal(r.Context(), principal)))
		})
	}
}

// InternalKey rejects requests whose X-Internal-Key header does not match
// key. An empty key rejects every request.
func InternalKey(key string, logger *zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(InternalKeyHeader)
			if key == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(key)) != 1 {
				logger.Warn().
					Str("path", r.URL.Path).
					Str("remote_addr", r.RemoteAddr).
					Bool("key_provided", provided != "").
					Msg("Broadcast unauthorized")
				response.Forbidden(w, "Broadcast unauthorized", "Provide the internal key in the "+InternalKeyHeader+" header")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// NoStore marks responses as private and uncacheable.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, private")
		w.Header().Set("Pragma", "no-cache")
		next.ServeHTTP(w, r)
	})
}
