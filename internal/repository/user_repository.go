package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"coffee-market/internal/domain"
)

var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user with this wallet already exists")
	// ErrNonceConflict means the stored nonce is no longer the one the caller consumed.
	ErrNonceConflict = errors.New("nonce changed concurrently")
)

// UserRepository defines the interface for user data access
type UserRepository interface {
	Create(ctx context.Context, wallet, nonce string) (*domain.User, error)
	FindByWallet(ctx context.Context, wallet string) (*domain.User, error)
	FindByWalletForUpdate(ctx context.Context, wallet string) (*domain.User, error)
	UpdateNonce(ctx context.Context, wallet, oldNonce, newNonce string) error
}

type userRepository struct {
	db DBTX
}

// NewUserRepository creates a new instance of UserRepository
func NewUserRepository(db DBTX) UserRepository {
	return &userRepository{db: db}
}

// Create inserts a wallet holder with its first nonce
func (r *userRepository) Create(ctx context.Context, wallet, nonce string) (*domain.User, error) {
	query := `
		INSERT INTO users (wallet_address, nonce)
		VALUES ($1, $2)
		RETURNING user_id, wallet_address, nonce, created_at, updated_at
	`

	user := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, domain.NormalizeWallet(wallet), nonce).Scan(
		&user.ID,
		&user.WalletAddress,
		&user.Nonce,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUserAlreadyExists
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return user, nil
}

// FindByWallet retrieves a user by wallet address
func (r *userRepository) FindByWallet(ctx context.Context, wallet string) (*domain.User, error) {
	query := `
		SELECT user_id, wallet_address, nonce, created_at, updated_at
		FROM users
		WHERE wallet_address = $1
	`
	return r.findOne(ctx, query, wallet)
}

// FindByWalletForUpdate retrieves a user and locks the row for the rest of the transaction
func (r *userRepository) FindByWalletForUpdate(ctx context.Context, wallet string) (*domain.User, error) {
	query := `
		SELECT user_id, wallet_address, nonce, created_at, updated_at
		FROM users
		WHERE wallet_address = $1
		FOR UPDATE
	`
	return r.findOne(ctx, query, wallet)
}

func (r *userRepository) findOne(ctx context.Context, query, wallet string) (*domain.User, error) {
	user := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, domain.NormalizeWallet(wallet)).Scan(
		&user.ID,
		&user.WalletAddress,
		&user.Nonce,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to find user by wallet: %w", err)
	}

	return user, nil
}

// UpdateNonce replaces oldNonce with newNonce. The update only applies while
// the row still holds oldNonce, which makes each nonce single-use.
func (r *userRepository) UpdateNonce(ctx context.Context, wallet, oldNonce, newNonce string) error {
	query := `
		UPDATE users
		SET nonce = $3, updated_at = NOW()
		WHERE wallet_address = $1 AND nonce = $2
	`

	result, err := r.db.ExecContext(ctx, query, domain.NormalizeWallet(wallet), oldNonce, newNonce)
	if err != nil {
		return fmt.Errorf("failed to update nonce: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrNonceConflict
	}

	return nil
}
