package transport

import (
	"errors"
	"net/http"

	"coffee-market/internal/middleware"
	"coffee-market/internal/service"

	"go.uber.org/zap"
)

type errorMapping struct {
	err    error
	status int
}

// statusMappings is checked in order; the first match wins.
var statusMappings = []errorMapping{
	{service.ErrProductNotFound, http.StatusNotFound},
	{service.ErrUserNotFound, http.StatusNotFound},
	{service.ErrNoProducts, http.StatusNotFound},
	{service.ErrNoCategories, http.StatusNotFound},
	{service.ErrCartEmpty, http.StatusNotFound},

	{service.ErrProductNotForSale, http.StatusBadRequest},
	{service.ErrInsufficientStock, http.StatusBadRequest},
	{service.ErrInvalidQuantity, http.StatusBadRequest},
	{service.ErrSellerMismatch, http.StatusBadRequest},
	{service.ErrInvalidSignature, http.StatusBadRequest},
	{service.ErrInvalidWallet, http.StatusBadRequest},
	{service.ErrInvalidCategory, http.StatusBadRequest},

	{service.ErrStockConflict, http.StatusConflict},
	{service.ErrNonceConflict, http.StatusConflict},
	{service.ErrProductExists, http.StatusConflict},

	{service.ErrSignatureMismatch, http.StatusUnauthorized},
	{service.ErrTokenExpired, http.StatusUnauthorized},
	{service.ErrInvalidToken, http.StatusUnauthorized},
}

// statusFor maps a service error to its HTTP status
func statusFor(err error) int {
	for _, m := range statusMappings {
		if errors.Is(err, m.err) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}

// messageFor returns the client-facing text of err. Persistence failures never
// expose driver messages.
func messageFor(err error, status int) string {
	if status == http.StatusInternalServerError {
		return "internal server error"
	}
	for _, m := range statusMappings {
		if errors.Is(err, m.err) {
			return m.err.Error()
		}
	}
	return err.Error()
}

func respondWithServiceError(w http.ResponseWriter, logger *zap.Logger, msg string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error(msg, zap.Error(err))
	} else {
		logger.Debug(msg, zap.Error(err))
	}
	middleware.RespondWithError(w, status, messageFor(err, status))
}

func respondWithDecodeError(w http.ResponseWriter, logger *zap.Logger, err error) {
	logger.Debug("Request validation failed", zap.Error(err))

	if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
		middleware.RespondWithValidationErrors(w, validationErrors)
		return
	}

	middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
}
