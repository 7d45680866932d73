package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coffee-market/internal/domain"
	"coffee-market/internal/metrics"
	"coffee-market/internal/repository"

	"go.uber.org/zap"
)

// DefaultPurchaseRetries bounds how often a purchase is retried after a stock conflict.
const DefaultPurchaseRetries = 3

// PurchaseRequest describes one buy of a listed product.
type PurchaseRequest struct {
	ProductID   int64
	Quantity    int
	Destination string
	BuyerWallet string
	// SellerWallet is the owner address the buyer believes it pays. When empty
	// the product's stored owner is used.
	SellerWallet string
}

// PurchaseService is the only path that removes units from stock.
type PurchaseService interface {
	Purchase(ctx context.Context, req PurchaseRequest) (*domain.PurchaseReceipt, error)
}

type purchaseService struct {
	uow        repository.UnitOfWork
	maxRetries int
	now        func() time.Time
	metrics    *metrics.Metrics
	logger     *zap.Logger
}

// NewPurchaseService creates a new instance of PurchaseService
func NewPurchaseService(uow repository.UnitOfWork, maxRetries int, m *metrics.Metrics, logger *zap.Logger) PurchaseService {
	if maxRetries < 0 {
		maxRetries = DefaultPurchaseRetries
	}
	return &purchaseService{
		uow:        uow,
		maxRetries: maxRetries,
		now:        time.Now,
		metrics:    m,
		logger:     logger,
	}
}

// Purchase decrements stock and appends the ledger entry in one unit of work.
func (s *purchaseService) Purchase(ctx context.Context, req PurchaseRequest) (*domain.PurchaseReceipt, error) {
	if req.Quantity <= 0 {
		s.metrics.ObservePurchase(metrics.OutcomeRejected, 0)
		return nil, ErrInvalidQuantity
	}

	req.BuyerWallet = domain.NormalizeWallet(req.BuyerWallet)
	req.SellerWallet = domain.NormalizeWallet(req.SellerWallet)

	var (
		receipt *domain.PurchaseReceipt
		err     error
	)
	for attempt := 0; ; attempt++ {
		receipt, err = s.purchaseOnce(ctx, req)
		if !errors.Is(err, ErrStockConflict) || attempt >= s.maxRetries || ctx.Err() != nil {
			break
		}

		s.metrics.ObservePurchaseRetry()
		s.logger.Debug("Retrying purchase after stock conflict",
			zap.Int64("product_id", req.ProductID),
			zap.Int("attempt", attempt+1),
		)
	}

	if err != nil {
		err = classify("purchase product", err)
		s.observeFailure(req, err)
		return nil, err
	}

	s.metrics.ObservePurchase(metrics.OutcomeSuccess, receipt.QuantityPurchased)
	s.logger.Info("Purchase committed",
		zap.Int64("product_id", req.ProductID),
		zap.Int64("transaction_id", receipt.TransactionID),
		zap.Int("quantity", receipt.QuantityPurchased),
		zap.Int("remaining", receipt.RemainingQuantity),
		zap.String("buyer", req.BuyerWallet),
	)

	return receipt, nil
}

func (s *purchaseService) purchaseOnce(ctx context.Context, req PurchaseRequest) (*domain.PurchaseReceipt, error) {
	var receipt *domain.PurchaseReceipt

	err := s.uow.Do(ctx, func(ctx context.Context, repos repository.Repositories) error {
		product, err := repos.Products.FindByProductIDForUpdate(ctx, req.ProductID)
		if err != nil {
			return err
		}

		if !product.IsForSale {
			return ErrProductNotForSale
		}

		if product.Quantity < req.Quantity {
			return ErrInsufficientStock
		}

		buyer, err := repos.Users.FindByWallet(ctx, req.BuyerWallet)
		if err != nil {
			return fmt.Errorf("buyer: %w", err)
		}

		sellerWallet := req.SellerWallet
		if sellerWallet == "" {
			sellerWallet = product.OwnerAddress
		} else if !product.OwnedBy(sellerWallet) {
			return ErrSellerMismatch
		}

		seller, err := repos.Users.FindByWallet(ctx, sellerWallet)
		if err != nil {
			return fmt.Errorf("seller: %w", err)
		}

		remaining := product.Quantity - req.Quantity
		if err := repos.Products.UpdateStock(ctx, product.ProductID, product.Quantity, remaining, remaining > 0); err != nil {
			return err
		}

		record := &domain.Transaction{
			ProductID:   product.ProductID,
			BuyerID:     buyer.ID,
			SellerID:    seller.ID,
			Destination: req.Destination,
			Quantity:    req.Quantity,
			Timestamp:   s.now().UTC(),
		}
		if err := repos.Transactions.Append(ctx, record); err != nil {
			return err
		}

		receipt = &domain.PurchaseReceipt{
			TransactionID:       record.ID,
			QuantityPurchased:   req.Quantity,
			RemainingQuantity:   remaining,
			Destination:         req.Destination,
			TransactionRecorded: true,
			Timestamp:           record.Timestamp,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return receipt, nil
}

func (s *purchaseService) observeFailure(req PurchaseRequest, err error) {
	fields := []zap.Field{
		zap.Int64("product_id", req.ProductID),
		zap.Int("quantity", req.Quantity),
		zap.String("buyer", req.BuyerWallet),
		zap.Error(err),
	}

	switch {
	case errors.Is(err, ErrPersistence):
		s.metrics.ObservePurchase(metrics.OutcomeError, 0)
		s.logger.Error("Purchase rolled back", fields...)
	case errors.Is(err, ErrStockConflict):
		s.metrics.ObservePurchase(metrics.OutcomeConflict, 0)
		s.logger.Warn("Purchase gave up after repeated stock conflicts", fields...)
	default:
		s.metrics.ObservePurchase(metrics.OutcomeRejected, 0)
		s.logger.Debug("Purchase rejected", fields...)
	}
}
