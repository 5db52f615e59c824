package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/handlers/render"
	"github.com/nkiryanov/ledger/internal/logger"
)

type successResponse struct {
	Success bool `json:"success"`
}

func handleLogin(authService authService, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required"`
		Password string `json:"password" validate:"required"`
	}
	type response struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at,omitzero"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		token, err := authService.Login(r.Context(), data.Username, data.Password)
		switch {
		case err == nil:
			w.Header().Set("Authorization", "Bearer "+token.Value)
			render.JSON(w, response{Token: token.Value, ExpiresAt: token.ExpiresAt})
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusUnauthorized)
		case errors.Is(err, apperrors.ErrUserNotActivated):
			render.ServiceError(w, "User is not activated", http.StatusForbidden)
		default:
			l.Error("Failed to login", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleRegister(userService userService, l logger.Logger) http.Handler {
	type request struct {
		Username string `json:"username" validate:"required,min=2,max=50"`
		Password string `json:"password" validate:"required,min=8"`
	}
	type response struct {
		ActivateLink string `json:"activate_link"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		user, err := userService.Register(r.Context(), data.Username, data.Password)
		switch {
		case err == nil:
			render.JSON(w, response{ActivateLink: r.Host + "/activate/" + user.ActivationToken.String()})
		case errors.Is(err, apperrors.ErrUserAlreadyExists):
			render.ServiceError(w, "User already exists", http.StatusConflict)
		default:
			l.Error("Failed to register user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleActivate(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := uuid.Parse(chi.URLParam(r, "token"))
		if err != nil {
			render.NotFound(w)
			return
		}

		_, err = userService.Activate(r.Context(), token)
		switch {
		case err == nil:
			render.JSON(w, successResponse{Success: true})
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.NotFound(w)
		default:
			l.Error("Failed to activate user", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
