package handlers

import (
	"errors"
	"net/http"

	"github.com/nkiryanov/ledger/internal/apperrors"
	"github.com/nkiryanov/ledger/internal/handlers/render"
	"github.com/nkiryanov/ledger/internal/logger"
	"github.com/nkiryanov/ledger/internal/service/webhook"
)

// Provider retries on 5xx only, so rejected notifications are 4xx
func handleWebhook(webhookService webhookService, l logger.Logger) http.Handler {
	type response struct {
		Success        bool `json:"success"`
		AlreadyApplied bool `json:"already_applied"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, err := render.BindAndValidate[webhook.Payload](w, r)
		if err != nil {
			return
		}

		result, err := webhookService.Process(r.Context(), payload)
		switch {
		case err == nil:
			render.JSON(w, response{Success: true, AlreadyApplied: result.AlreadyApplied})
		case errors.Is(err, apperrors.ErrMissingFields):
			render.ServiceError(w, "Required fields are missing", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrBadSignature):
			render.ServiceError(w, "Wrong signature", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrInvalidAmount):
			render.ServiceError(w, "Invalid amount", http.StatusBadRequest)
		case errors.Is(err, apperrors.ErrUserNotFound):
			render.ServiceError(w, "User not found", http.StatusUnprocessableEntity)
		default:
			l.Error("Failed to process webhook", "error", err, "state", result.State)
			render.ServiceError(w, "Internal server error", http.StatusInternalServerError)
		}
	})
}

func handleSignWebhook(webhookService webhookService) http.Handler {
	type response struct {
		Signature string `json:"signature"`
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload, err := render.BindAndValidate[webhook.Payload](w, r)
		if err != nil {
			return
		}

		signature, err := webhookService.Sign(payload)
		switch {
		case err == nil:
			render.JSON(w, response{Signature: signature})
		case errors.Is(err, apperrors.ErrInvalidAmount):
			render.ServiceError(w, "Invalid amount", http.StatusBadRequest)
		default:
			render.ServiceError(w, "Required fields are missing", http.StatusBadRequest)
		}
	})
}
