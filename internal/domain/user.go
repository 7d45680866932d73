package domain

import (
	"strings"
	"time"
)

// User is a wallet holder. WalletAddress is always stored lower-cased.
type User struct {
	ID            int64     `json:"id" db:"user_id"`
	WalletAddress string    `json:"walletAddress" db:"wallet_address"`
	Nonce         string    `json:"-" db:"nonce"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt     time.Time `json:"updatedAt" db:"updated_at"`
}

// NormalizeWallet case-folds a wallet address into its canonical identity.
func NormalizeWallet(wallet string) string {
	return strings.ToLower(strings.TrimSpace(wallet))
}
