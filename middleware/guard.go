package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/authmint/authmint"
)

type authResultContextKey struct{}

// AuthResultFromContext returns the validated token claims injected by
// [Guard], or false when the request did not pass through it.
func AuthResultFromContext(ctx context.Context) (*authmint.AuthResult, bool) {
	res, ok := ctx.Value(authResultContextKey{}).(*authmint.AuthResult)
	return res, ok
}

// Guard returns middleware that rejects requests lacking a valid bearer
// access token. Every failure is a plain 401; the reason is never leaked
// to the client.
func Guard(engine *authmint.Engine) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if engine == nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			res, err := engine.Validate(r.Context(), token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), authResultContextKey{}, res)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if !strings.HasPrefix(value, bearer) {
		return "", false
	}

	token := value[len(bearer):]
	if token == "" {
		return "", false
	}

	return token, true
}
