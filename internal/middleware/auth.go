package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"coffee-market/internal/token"

	"go.uber.org/zap"
)

type contextKey string

const WalletKey contextKey = "wallet_address"

// Authenticator resolves a bearer credential to the wallet it was issued to
type Authenticator interface {
	Authenticate(tokenString string) (string, error)
}

// AuthMiddleware validates bearer credentials and stores the wallet in the request context
func AuthMiddleware(auth Authenticator, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract token from Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Debug("Missing authorization header")
				RespondWithError(w, http.StatusUnauthorized, "missing authorization header")
				return
			}

			parts := strings.Split(authHeader, " ")
			if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
				logger.Debug("Invalid authorization header format")
				RespondWithError(w, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			wallet, err := auth.Authenticate(parts[1])
			if err != nil {
				logger.Debug("Token validation failed", zap.Error(err))
				if errors.Is(err, token.ErrExpired) {
					RespondWithError(w, http.StatusUnauthorized, "token expired")
				} else {
					RespondWithError(w, http.StatusUnauthorized, "invalid token")
				}
				return
			}

			ctx := context.WithValue(r.Context(), WalletKey, wallet)

			logger.Debug("Wallet authenticated", zap.String("wallet", wallet))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetWallet extracts the authenticated wallet address from request context
func GetWallet(ctx context.Context) (string, bool) {
	wallet, ok := ctx.Value(WalletKey).(string)
	return wallet, ok && wallet != ""
}
