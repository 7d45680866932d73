package transport

import (
	"net/http"
	"strconv"
	"time"

	"coffee-market/internal/domain"
	"coffee-market/internal/middleware"
	"coffee-market/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CreateProductRequest represents a new listing
type CreateProductRequest struct {
	ProductID      int64                `json:"productId" validate:"required,gt=0"`
	Name           string               `json:"name" validate:"required,max=255"`
	CategoryID     *int64               `json:"categoryId"`
	HarvestDate    *time.Time           `json:"harvestDate"`
	ExpirationDate *time.Time           `json:"expirationDate"`
	CurrentStatus  domain.ProductStatus `json:"currentStatus" validate:"omitempty,oneof=Fresh Expired"`
	Region         string               `json:"region" validate:"max=255"`
	ImageSrc       string               `json:"imageSrc" validate:"max=255"`
	IsForSale      *bool                `json:"isForSale"`
	Quantity       int                  `json:"quantity" validate:"gte=0"`
	Price          string               `json:"price" validate:"required,numeric,max=255"`
	Description    string               `json:"description" validate:"max=255"`
}

// CreateProductResponse acknowledges a new listing
type CreateProductResponse struct {
	Message   string `json:"message"`
	ProductID int64  `json:"productId"`
}

// BuyRequest represents the purchase payload
type BuyRequest struct {
	Quantity     int    `json:"quantity" validate:"required,gte=1"`
	Destination  string `json:"destination" validate:"required,max=255"`
	OwnerAddress string `json:"owner_address" validate:"omitempty,eth_addr"`
}

// BuyResponse is the purchase receipt
type BuyResponse struct {
	Message string `json:"message"`
	*domain.PurchaseReceipt
}

// ProductHandler handles listing and purchase endpoints
type ProductHandler struct {
	catalog   service.CatalogService
	purchases service.PurchaseService
	logger    *zap.Logger
}

// NewProductHandler creates a new ProductHandler
func NewProductHandler(catalog service.CatalogService, purchases service.PurchaseService, logger *zap.Logger) *ProductHandler {
	return &ProductHandler{
		catalog:   catalog,
		purchases: purchases,
		logger:    logger,
	}
}

// RegisterRoutes registers all product routes
func (h *ProductHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Route("/products", func(r chi.Router) {
		// Public routes
		r.Get("/", h.ListProducts)
		r.Get("/limit/{limit}", h.ListProductsLimited)
		r.Get("/{productID}", h.GetProduct)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(authMiddleware)
			r.Post("/", h.CreateProduct)
			r.Post("/buy/{productID}", h.Buy)
		})
	})
}

// ListProducts returns every product for sale
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	h.listProducts(w, r, 0)
}

// ListProductsLimited returns at most {limit} products for sale
func (h *ProductHandler) ListProductsLimited(w http.ResponseWriter, r *http.Request) {
	limit, err := strconv.Atoi(chi.URLParam(r, "limit"))
	if err != nil || limit <= 0 {
		middleware.RespondWithError(w, http.StatusBadRequest, "limit must be a positive integer")
		return
	}
	h.listProducts(w, r, limit)
}

func (h *ProductHandler) listProducts(w http.ResponseWriter, r *http.Request, limit int) {
	products, err := h.catalog.ListProducts(r.Context(), limit)
	if err != nil {
		respondWithServiceError(w, h.logger, "Failed to list products", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, products)
}

// GetProduct returns one product by its external id
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := parseProductID(w, r)
	if !ok {
		return
	}

	product, err := h.catalog.GetProduct(r.Context(), productID)
	if err != nil {
		respondWithServiceError(w, h.logger, "Failed to get product", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, product)
}

// CreateProduct lists a new batch owned by the authenticated wallet
func (h *ProductHandler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	wallet, ok := middleware.GetWallet(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req CreateProductRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, h.logger, err)
		return
	}

	isForSale := true
	if req.IsForSale != nil {
		isForSale = *req.IsForSale
	}

	product, err := h.catalog.CreateProduct(r.Context(), wallet, &domain.Product{
		ProductID:      req.ProductID,
		Name:           req.Name,
		CategoryID:     req.CategoryID,
		HarvestDate:    req.HarvestDate,
		ExpirationDate: req.ExpirationDate,
		CurrentStatus:  req.CurrentStatus,
		Region:         req.Region,
		ImageSrc:       req.ImageSrc,
		Quantity:       req.Quantity,
		Price:          req.Price,
		IsForSale:      isForSale,
		Description:    req.Description,
	})
	if err != nil {
		respondWithServiceError(w, h.logger, "Failed to create product", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, CreateProductResponse{
		Message:   "Product created",
		ProductID: product.ProductID,
	})
}

// Buy purchases units of a product for the authenticated wallet
func (h *ProductHandler) Buy(w http.ResponseWriter, r *http.Request) {
	wallet, ok := middleware.GetWallet(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	productID, ok := parseProductID(w, r)
	if !ok {
		return
	}

	var req BuyRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, h.logger, err)
		return
	}

	receipt, err := h.purchases.Purchase(r.Context(), service.PurchaseRequest{
		ProductID:    productID,
		Quantity:     req.Quantity,
		Destination:  req.Destination,
		BuyerWallet:  wallet,
		SellerWallet: req.OwnerAddress,
	})
	if err != nil {
		respondWithServiceError(w, h.logger, "Purchase failed", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, BuyResponse{
		Message:         "Product purchased successfully",
		PurchaseReceipt: receipt,
	})
}

func parseProductID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	productID, err := strconv.ParseInt(chi.URLParam(r, "productID"), 10, 64)
	if err != nil || productID <= 0 {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid product id")
		return 0, false
	}
	return productID, true
}
