package repository

import (
	"context"
	"fmt"

	"coffee-market/internal/domain"
)

// TransactionRepository is the append-only purchase ledger
type TransactionRepository interface {
	Append(ctx context.Context, tx *domain.Transaction) error
	ListForUser(ctx context.Context, userID int64) ([]*domain.Transaction, error)
}

type transactionRepository struct {
	db DBTX
}

// NewTransactionRepository creates a new instance of TransactionRepository
func NewTransactionRepository(db DBTX) TransactionRepository {
	return &transactionRepository{db: db}
}

// Append records a ledger entry and sets its generated id
func (r *transactionRepository) Append(ctx context.Context, tx *domain.Transaction) error {
	query := `
		INSERT INTO transactions (product_id, buyer_id, seller_id, destination, quantity, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING transaction_id
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		tx.ProductID,
		tx.BuyerID,
		tx.SellerID,
		tx.Destination,
		tx.Quantity,
		tx.Timestamp,
	).Scan(&tx.ID)

	if err != nil {
		return fmt.Errorf("failed to append transaction: %w", err)
	}

	return nil
}

// ListForUser returns every entry where the user bought or sold, newest first
func (r *transactionRepository) ListForUser(ctx context.Context, userID int64) ([]*domain.Transaction, error) {
	query := `
		SELECT t.transaction_id, t.product_id, t.buyer_id, t.seller_id, t.destination,
		       t.quantity, t.timestamp, COALESCE(p.name, '')
		FROM transactions t
		LEFT JOIN products p ON t.product_id = p.product_id
		WHERE t.buyer_id = $1 OR t.seller_id = $1
		ORDER BY t.timestamp DESC
	`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []*domain.Transaction{}
	for rows.Next() {
		tx := &domain.Transaction{}
		err := rows.Scan(
			&tx.ID,
			&tx.ProductID,
			&tx.BuyerID,
			&tx.SellerID,
			&tx.Destination,
			&tx.Quantity,
			&tx.Timestamp,
			&tx.ProductName,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return transactions, nil
}
