package service

import (
	"errors"
	"fmt"

	"coffee-market/internal/repository"
	"coffee-market/internal/signature"
	"coffee-market/internal/token"
)

var (
	// Not found
	ErrProductNotFound = repository.ErrProductNotFound
	ErrUserNotFound    = repository.ErrUserNotFound

	// Purchase rejections
	ErrProductNotForSale = errors.New("product is not for sale")
	ErrInsufficientStock = errors.New("insufficient quantity available")
	ErrInvalidQuantity   = errors.New("quantity must be positive")
	ErrSellerMismatch    = errors.New("seller does not own this product")

	// Concurrent-write contention
	ErrStockConflict = repository.ErrStockConflict
	ErrNonceConflict = repository.ErrNonceConflict

	// Wallet authentication
	ErrInvalidWallet     = errors.New("wallet address is required")
	ErrInvalidSignature  = signature.ErrInvalidSignature
	ErrSignatureMismatch = errors.New("signature verification failed")
	ErrInvalidToken      = token.ErrInvalid
	ErrTokenExpired      = token.ErrExpired

	// Catalog reads and listings
	ErrProductExists   = repository.ErrProductAlreadyExists
	ErrNoProducts      = errors.New("no products found")
	ErrNoCategories    = errors.New("no categories found")
	ErrInvalidCategory = errors.New("category name is required")
	ErrCartEmpty       = errors.New("no products found in the cart")

	// ErrPersistence marks failures of the store itself: unreachable
	// database, failed writes, failed commits.
	ErrPersistence = errors.New("persistence failure")
)

// callerErrors are the expected, user-actionable outcomes.
var callerErrors = []error{
	ErrProductNotFound,
	ErrUserNotFound,
	ErrProductNotForSale,
	ErrInsufficientStock,
	ErrInvalidQuantity,
	ErrSellerMismatch,
	ErrStockConflict,
	ErrNonceConflict,
	ErrInvalidWallet,
	ErrInvalidSignature,
	ErrSignatureMismatch,
	ErrInvalidToken,
	ErrTokenExpired,
	ErrProductExists,
	ErrNoProducts,
	ErrNoCategories,
	ErrInvalidCategory,
	ErrCartEmpty,
}

func isCallerError(err error) bool {
	for _, target := range callerErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// classify passes caller errors through and marks everything else as a
// persistence failure.
func classify(op string, err error) error {
	if err == nil || isCallerError(err) {
		return err
	}
	return fmt.Errorf("%w: failed to %s: %w", ErrPersistence, op, err)
}
