package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/handlers/render"
	"github.com/nkiryanov/ledger/internal/handlers/userctx"
	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/models"
	"github.com/nkiryanov/ledger/internal/money"
)

type accountResponse struct {
	ID      int64        `json:"id"`
	UserID  int64        `json:"user_id"`
	Balance money.Amount `json:"balance"`
}

type userResponse struct {
	ID        int64             `json:"id"`
	Username  string            `json:"username"`
	Activated bool              `json:"activated"`
	Superuser bool              `json:"superuser"`
	CreatedAt time.Time         `json:"created_at"`
	Accounts  []accountResponse `json:"accounts,omitempty"`
}

func newAccountResponse(a models.Account) accountResponse {
	return accountResponse{ID: a.ID, UserID: a.UserID, Balance: a.Balance}
}

func newUserResponse(u models.User, accounts []models.Account) userResponse {
	resp := userResponse{
		ID:        u.ID,
		Username:  u.Username,
		Activated: u.Activated,
		Superuser: u.Superuser,
		CreatedAt: u.CreatedAt,
	}
	for _, a := range accounts {
		resp.Accounts = append(resp.Accounts, newAccountResponse(a))
	}
	return resp
}

// Path parameter as positive int64
func pathID(r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	return id, err == nil && id > 0
}

func handleUserMe(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok := userctx.FromContext(r.Context())
		if !ok {
			render.ServiceError(w, "Internal service error", http.StatusInternalServerError)
			return
		}

		accounts, err := userService.ListAccounts(r.Context(), user.ID)
		if err != nil {
			l.Error("Failed to list accounts", "error", err, "user_id", user.ID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, newUserResponse(user, accounts))
	})
}

func handleListUsers(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		users, err := userService.ListUsers(r.Context())
		if err != nil {
			l.Error("Failed to list users", "error", err)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		resp := make([]userResponse, 0, len(users))
		for _, u := range users {
			resp = append(resp, newUserResponse(u, nil))
		}
		render.JSON(w, resp)
	})
}

func handleGetUser(userService userService, l logger.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := pathID(r, "id")
		if !ok {
			render.NotFound(w)
			return
		}

		user, err := userService.GetUserByID(r.Context(), userID)
		switch {
		case err == nil:
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.NotFound(w)
			return
		default:
			l.Error("Failed to get user", "error", err, "user_id", userID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		accounts, err := userService.ListAccounts(r.Context(), user.ID)
		if err != nil {
			l.Error("Failed to list accounts", "error", err, "user_id", user.ID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		render.JSON(w, newUserResponse(user, accounts))
	})
}

func handleSetActivated(userService userService, activated bool, l logger.Logger) http.Handler {
	type request struct {
		UserID int64 `json:"user_id" validate:"required,gt=0"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, err := render.BindAndValidate[request](w, r)
		if err != nil {
			return
		}

		_, err = userService.SetActivated(r.Context(), data.UserID, activated)
		switch {
		case err == nil:
			render.JSON(w, successResponse{Success: true})
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.NotFound(w)
		default:
			l.Error("Failed to change user activation", "error", err, "user_id", data.UserID)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}
