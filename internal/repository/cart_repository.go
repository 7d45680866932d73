package repository

import (
	"context"
	"fmt"

	"coffee-market/internal/domain"
)

// CartRepository reads shopping carts. Carts are filled by the dapp, not by this API.
type CartRepository interface {
	ListForWallet(ctx context.Context, wallet string) ([]*domain.CartItem, error)
}

type cartRepository struct {
	db DBTX
}

// NewCartRepository creates a new instance of CartRepository
func NewCartRepository(db DBTX) CartRepository {
	return &cartRepository{db: db}
}

// ListForWallet returns the cart of the given wallet, most recently added first
func (r *cartRepository) ListForWallet(ctx context.Context, wallet string) ([]*domain.CartItem, error) {
	query := `
		SELECT sc.cart_id, p.product_id, p.name, p.price, COALESCE(p.image_src, ''), p.owner_address, sc.added_at
		FROM shopping_cart sc
		JOIN products p ON sc.product_id = p.id
		JOIN users u ON u.user_id = sc.user_id
		WHERE u.wallet_address = $1
		ORDER BY sc.added_at DESC
	`

	rows, err := r.db.QueryContext(ctx, query, domain.NormalizeWallet(wallet))
	if err != nil {
		return nil, fmt.Errorf("failed to list cart items: %w", err)
	}
	defer rows.Close()

	items := []*domain.CartItem{}
	for rows.Next() {
		item := &domain.CartItem{}
		err := rows.Scan(
			&item.ID,
			&item.ProductID,
			&item.Name,
			&item.Price,
			&item.Image,
			&item.Creator,
			&item.AddedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan cart item: %w", err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating cart items: %w", err)
	}

	return items, nil
}
