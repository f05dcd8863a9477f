package middleware

import (
	"net/http"
	"strings"

	"reqforge/internal/auth"
	"reqforge/internal/httputil"
)

// publicPaths are served without a token.
var publicPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

// wsPath accepts the token as ?access_token= since browsers cannot set
// headers on a WebSocket handshake.
const wsPath = "/ws"

// AuthMiddleware verifies the bearer token and stores the user ID in the
// request context.
func AuthMiddleware(verifier auth.JWTVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions || publicPaths[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			token := bearerToken(r)
			if token == "" && r.URL.Path == wsPath {
				token = r.URL.Query().Get("access_token")
			}
			if token == "" {
				httputil.RespondError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := verifier.VerifyToken(token)
			if err != nil {
				httputil.RespondError(w, http.StatusUnauthorized, "invalid or expired token")
				return
			}

			next.ServeHTTP(w, httputil.WithUserID(r, claims.GetUserID()))
		})
	}
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
