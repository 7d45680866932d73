package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"coffee-market/internal/domain"
)

var (
	ErrProductNotFound      = errors.New("product not found")
	ErrProductAlreadyExists = errors.New("product with this id already exists")
	// ErrStockConflict means the row no longer holds the quantity the caller read.
	ErrStockConflict = errors.New("product stock changed concurrently")
)

const productColumns = `
	p.id, p.product_id, p.name, p.category_id, COALESCE(c.name, ''), p.harvest_date, p.expiration_date,
	p.current_status, p.owner_address, p.region, p.image_src, p.quantity, p.price, p.is_for_sale, p.description`

// ProductRepository defines the interface for product data access
type ProductRepository interface {
	Create(ctx context.Context, product *domain.Product) error
	FindByProductID(ctx context.Context, productID int64) (*domain.Product, error)
	FindByProductIDForUpdate(ctx context.Context, productID int64) (*domain.Product, error)
	UpdateStock(ctx context.Context, productID int64, expectedQuantity, newQuantity int, isForSale bool) error
	ListForSale(ctx context.Context, limit int) ([]*domain.Product, error)
}

type productRepository struct {
	db DBTX
}

// NewProductRepository creates a new instance of ProductRepository
func NewProductRepository(db DBTX) ProductRepository {
	return &productRepository{db: db}
}

// Create inserts a new product listing
func (r *productRepository) Create(ctx context.Context, product *domain.Product) error {
	query := `
		INSERT INTO products (product_id, name, category_id, harvest_date, expiration_date, current_status,
		                      owner_address, region, image_src, quantity, price, is_for_sale, description)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`

	err := r.db.QueryRowContext(
		ctx,
		query,
		product.ProductID,
		product.Name,
		product.CategoryID,
		product.HarvestDate,
		product.ExpirationDate,
		product.CurrentStatus,
		domain.NormalizeWallet(product.OwnerAddress),
		nullString(product.Region),
		nullString(product.ImageSrc),
		product.Quantity,
		product.Price,
		product.IsForSale && product.Quantity > 0,
		nullString(product.Description),
	).Scan(&product.ID)

	if err != nil {
		if isUniqueViolation(err) {
			return ErrProductAlreadyExists
		}
		return fmt.Errorf("failed to create product: %w", err)
	}

	return nil
}

// FindByProductID retrieves a product by its external id, joined with its category name
func (r *productRepository) FindByProductID(ctx context.Context, productID int64) (*domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products p
		LEFT JOIN category c ON c.category_id = p.category_id
		WHERE p.product_id = $1
	`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to find product by ID: %w", err)
	}

	return product, nil
}

// FindByProductIDForUpdate reads the product row and holds a row lock on it
// until the surrounding transaction ends. Must run inside a unit of work.
func (r *productRepository) FindByProductIDForUpdate(ctx context.Context, productID int64) (*domain.Product, error) {
	query := `
		SELECT
			p.id, p.product_id, p.name, p.category_id, '', p.harvest_date, p.expiration_date,
			p.current_status, p.owner_address, p.region, p.image_src, p.quantity, p.price, p.is_for_sale, p.description
		FROM products p
		WHERE p.product_id = $1
		FOR UPDATE
	`

	product, err := scanProduct(r.db.QueryRowContext(ctx, query, productID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to lock product: %w", err)
	}

	return product, nil
}

// UpdateStock writes the new quantity and for-sale flag in one statement,
// conditional on the row still holding expectedQuantity.
func (r *productRepository) UpdateStock(ctx context.Context, productID int64, expectedQuantity, newQuantity int, isForSale bool) error {
	query := `
		UPDATE products
		SET quantity = $2, is_for_sale = $3, updated_at = NOW()
		WHERE product_id = $1 AND quantity = $4
	`

	result, err := r.db.ExecContext(ctx, query, productID, newQuantity, isForSale, expectedQuantity)
	if err != nil {
		return fmt.Errorf("failed to update product stock: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return ErrStockConflict
	}

	return nil
}

// ListForSale returns listed products, newest external id first. A limit of
// zero or less returns every listing.
func (r *productRepository) ListForSale(ctx context.Context, limit int) ([]*domain.Product, error) {
	query := `
		SELECT ` + productColumns + `
		FROM products p
		LEFT JOIN category c ON c.category_id = p.category_id
		WHERE p.is_for_sale = TRUE
		ORDER BY p.product_id DESC
	`
	args := []any{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := []*domain.Product{}
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating products: %w", err)
	}

	return products, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var (
		product     domain.Product
		categoryID  sql.NullInt64
		harvest     sql.NullTime
		expiration  sql.NullTime
		status      string
		region      sql.NullString
		imageSrc    sql.NullString
		description sql.NullString
	)

	err := row.Scan(
		&product.ID,
		&product.ProductID,
		&product.Name,
		&categoryID,
		&product.CategoryName,
		&harvest,
		&expiration,
		&status,
		&product.OwnerAddress,
		&region,
		&imageSrc,
		&product.Quantity,
		&product.Price,
		&product.IsForSale,
		&description,
	)
	if err != nil {
		return nil, err
	}

	if categoryID.Valid {
		product.CategoryID = &categoryID.Int64
	}
	if harvest.Valid {
		product.HarvestDate = &harvest.Time
	}
	if expiration.Valid {
		product.ExpirationDate = &expiration.Time
	}
	product.CurrentStatus = domain.ProductStatus(status)
	product.Region = region.String
	product.ImageSrc = imageSrc.String
	product.Description = description.String

	return &product, nil
}
