package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/handlers/render"
	"github.com/nkiryanov/ledger/internal/handlers/userctx"
	"github.com/nkiryanov/ledger/internal/models"
)

type authService interface {
	Authorize(ctx context.Context, token string) (models.User, error)
	RequireSuperuser(ctx context.Context, token string) (models.User, error)
}

type AuthMiddleware struct {
	auth authService
}

func NewAuth(auth authService) *AuthMiddleware {
	return &AuthMiddleware{auth: auth}
}

// Auth admits activated users only
func (m *AuthMiddleware) Auth(next http.Handler) http.Handler {
	return m.gate(m.auth.Authorize, next)
}

// Superuser admits activated superusers only
// Other users get the same response as for missing resource
func (m *AuthMiddleware) Superuser(next http.Handler) http.Handler {
	return m.gate(m.auth.RequireSuperuser, next)
}

func (m *AuthMiddleware) gate(authorize func(context.Context, string) (models.User, error), next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		user, err := authorize(r.Context(), token)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrForbidden):
			render.NotFound(w)
			return
		case errors.Is(err, apperrors.ErrStorage):
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		default:
			render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
			return
		}

		ctx := userctx.New(r.Context(), user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Token from 'Authorization: Bearer <token>' header
func bearerToken(r *http.Request) (string, bool) {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)
	return token, token != ""
}
