package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mxn2020/prompt-verse-io/pkg/handlers"
)

// Middleware rejects requests whose bearer token fails verification and
// stores the verified owner in the request context.
func Middleware(verifier Verifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			owner, err := verifier.Verify(r.Context(), bearerToken(r))
			if err != nil {
				handlers.RespondError(w, logger, http.StatusUnauthorized, err)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithOwner(r.Context(), owner)))
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

// RequireOwner returns the owner stored in the request context, writing a
// 401 response when there is none.
func RequireOwner(w http.ResponseWriter, r *http.Request, logger *slog.Logger) (uuid.UUID, bool) {
	owner, ok := Owner(r.Context())
	if !ok {
		handlers.RespondError(w, logger, http.StatusUnauthorized, ErrUnauthorized)
	}
	return owner, ok
}
