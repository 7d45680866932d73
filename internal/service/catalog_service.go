package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"coffee-market/internal/domain"
	"coffee-market/internal/repository"

	"go.uber.org/zap"
)

// CatalogService serves the read-through parts of the marketplace: listings,
// categories, carts and transaction history.
type CatalogService interface {
	CreateProduct(ctx context.Context, ownerWallet string, product *domain.Product) (*domain.Product, error)
	ListProducts(ctx context.Context, limit int) ([]*domain.Product, error)
	GetProduct(ctx context.Context, productID int64) (*domain.Product, error)
	ListCategories(ctx context.Context) ([]string, error)
	EnsureCategory(ctx context.Context, name string) (*domain.Category, error)
	CartForWallet(ctx context.Context, wallet string) ([]*domain.CartItem, error)
	TransactionsForWallet(ctx context.Context, wallet string) ([]*domain.Transaction, error)
}

type catalogService struct {
	products     repository.ProductRepository
	categories   repository.CategoryRepository
	carts        repository.CartRepository
	transactions repository.TransactionRepository
	users        repository.UserRepository
	logger       *zap.Logger
}

// NewCatalogService creates a new instance of CatalogService
func NewCatalogService(
	products repository.ProductRepository,
	categories repository.CategoryRepository,
	carts repository.CartRepository,
	transactions repository.TransactionRepository,
	users repository.UserRepository,
	logger *zap.Logger,
) CatalogService {
	return &catalogService{
		products:     products,
		categories:   categories,
		carts:        carts,
		transactions: transactions,
		users:        users,
		logger:       logger,
	}
}

// CreateProduct lists a new batch owned by the calling wallet
func (s *catalogService) CreateProduct(ctx context.Context, ownerWallet string, product *domain.Product) (*domain.Product, error) {
	ownerWallet = domain.NormalizeWallet(ownerWallet)
	if ownerWallet == "" {
		return nil, ErrInvalidWallet
	}
	if product.Quantity < 0 {
		return nil, ErrInvalidQuantity
	}

	product.OwnerAddress = ownerWallet
	if product.CurrentStatus == "" {
		product.CurrentStatus = domain.ProductStatusFresh
	}
	if product.Quantity == 0 {
		product.IsForSale = false
	}

	if err := s.products.Create(ctx, product); err != nil {
		return nil, classify("create product", err)
	}

	s.logger.Info("Product listed",
		zap.Int64("product_id", product.ProductID),
		zap.String("owner", ownerWallet),
		zap.Int("quantity", product.Quantity),
	)

	return product, nil
}

// ListProducts returns products currently for sale. A limit of zero or less lists all of them.
func (s *catalogService) ListProducts(ctx context.Context, limit int) ([]*domain.Product, error) {
	products, err := s.products.ListForSale(ctx, limit)
	if err != nil {
		return nil, classify("list products", err)
	}
	if len(products) == 0 {
		return nil, ErrNoProducts
	}
	return products, nil
}

// GetProduct retrieves one product by its external id
func (s *catalogService) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	product, err := s.products.FindByProductID(ctx, productID)
	if err != nil {
		return nil, classify("get product", err)
	}
	return product, nil
}

// ListCategories returns the category names
func (s *catalogService) ListCategories(ctx context.Context) ([]string, error) {
	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, classify("list categories", err)
	}
	if len(categories) == 0 {
		return nil, ErrNoCategories
	}

	names := make([]string, 0, len(categories))
	for _, c := range categories {
		names = append(names, c.Name)
	}
	return names, nil
}

// EnsureCategory returns the category called name, creating it when missing
func (s *catalogService) EnsureCategory(ctx context.Context, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrInvalidCategory
	}

	category, err := s.categories.Create(ctx, name)
	if err == nil {
		s.logger.Info("Category created", zap.String("name", name))
		return category, nil
	}
	if !errors.Is(err, repository.ErrCategoryAlreadyExists) {
		return nil, classify("create category", err)
	}

	categories, err := s.categories.List(ctx)
	if err != nil {
		return nil, classify("list categories", err)
	}
	for _, c := range categories {
		if strings.EqualFold(c.Name, name) {
			return c, nil
		}
	}
	return nil, classify("find category", fmt.Errorf("category %q reported as duplicate but not listed", name))
}

// CartForWallet returns the shopping cart of wallet
func (s *catalogService) CartForWallet(ctx context.Context, wallet string) ([]*domain.CartItem, error) {
	items, err := s.carts.ListForWallet(ctx, domain.NormalizeWallet(wallet))
	if err != nil {
		return nil, classify("list cart", err)
	}
	if len(items) == 0 {
		return nil, ErrCartEmpty
	}
	return items, nil
}

// TransactionsForWallet returns every ledger entry the wallet bought or sold in
func (s *catalogService) TransactionsForWallet(ctx context.Context, wallet string) ([]*domain.Transaction, error) {
	user, err := s.users.FindByWallet(ctx, domain.NormalizeWallet(wallet))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, classify("find user", err)
	}

	history, err := s.transactions.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, classify("list transactions", err)
	}
	return history, nil
}
