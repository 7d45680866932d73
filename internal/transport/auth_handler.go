package transport

import (
	"net/http"
	"time"

	"coffee-market/internal/middleware"
	"coffee-market/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// VerifyRequest represents the signature verification payload
type VerifyRequest struct {
	WalletAddress string `json:"wallet_address" validate:"required,eth_addr"`
	Signature     string `json:"signature" validate:"required"`
}

// NonceResponse carries the challenge nonce of a wallet
type NonceResponse struct {
	Nonce string `json:"nonce"`
}

// TokenResponse carries the bearer credential issued after verification
type TokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// AuthHandler handles the wallet challenge-response endpoints
type AuthHandler struct {
	authService service.AuthService
	logger      *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService service.AuthService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// RegisterRoutes registers the authentication routes behind rateLimit
func (h *AuthHandler) RegisterRoutes(r chi.Router, rateLimit func(http.Handler) http.Handler) {
	r.Route("/users/auth", func(r chi.Router) {
		r.Use(rateLimit)
		r.Get("/nonce/{wallet}", h.GetNonce)
		r.Post("/verify", h.Verify)
	})
}

// GetNonce returns the current challenge nonce of a wallet
func (h *AuthHandler) GetNonce(w http.ResponseWriter, r *http.Request) {
	wallet := chi.URLParam(r, "wallet")
	if err := middleware.ValidateVar(wallet, "required,eth_addr"); err != nil {
		h.logger.Debug("Rejected nonce request", zap.String("wallet", wallet), zap.Error(err))
		middleware.RespondWithErrorDetails(w, http.StatusBadRequest, "validation failed", map[string]any{
			"validation_errors": []middleware.ValidationError{{Field: "wallet", Message: "Invalid wallet address"}},
		})
		return
	}

	nonce, err := h.authService.IssueNonce(r.Context(), wallet)
	if err != nil {
		respondWithServiceError(w, h.logger, "Nonce issuance failed", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, NonceResponse{Nonce: nonce})
}

// Verify checks a signed challenge and returns a bearer credential
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req VerifyRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, h.logger, err)
		return
	}

	issued, err := h.authService.Verify(r.Context(), req.WalletAddress, req.Signature)
	if err != nil {
		respondWithServiceError(w, h.logger, "Signature verification failed", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, TokenResponse{
		Token:     issued.Token,
		ExpiresAt: issued.ExpiresAt,
	})
}
