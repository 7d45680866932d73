package transport

import (
	"net/http"

	"coffee-market/internal/middleware"
	"coffee-market/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CreateCategoryRequest names a category to register
type CreateCategoryRequest struct {
	Name string `json:"name" validate:"required,max=255"`
}

// AccountHandler serves categories and the per-wallet cart and history
type AccountHandler struct {
	catalog service.CatalogService
	logger  *zap.Logger
}

// NewAccountHandler creates a new AccountHandler
func NewAccountHandler(catalog service.CatalogService, logger *zap.Logger) *AccountHandler {
	return &AccountHandler{
		catalog: catalog,
		logger:  logger,
	}
}

// RegisterRoutes registers category, cart and transaction routes
func (h *AccountHandler) RegisterRoutes(r chi.Router, authMiddleware func(http.Handler) http.Handler) {
	r.Get("/categories", h.ListCategories)

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware)
		r.Post("/categories", h.CreateCategory)
		r.Get("/cart", h.GetCart)
		r.Get("/transactions/user/me", h.GetMyTransactions)
	})
}

// ListCategories returns the category names
func (h *AccountHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.catalog.ListCategories(r.Context())
	if err != nil {
		respondWithServiceError(w, h.logger, "Failed to list categories", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, categories)
}

// CreateCategory registers a category, returning the existing one when the name is taken
func (h *AccountHandler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if err := middleware.DecodeAndValidate(r, &req); err != nil {
		respondWithDecodeError(w, h.logger, err)
		return
	}

	category, err := h.catalog.EnsureCategory(r.Context(), req.Name)
	if err != nil {
		respondWithServiceError(w, h.logger, "Failed to create category", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusCreated, category)
}

// GetCart returns the authenticated wallet's cart
func (h *AccountHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	wallet, ok := middleware.GetWallet(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	items, err := h.catalog.CartForWallet(r.Context(), wallet)
	if err != nil {
		respondWithServiceError(w, h.logger, "Failed to get cart", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, items)
}

// GetMyTransactions returns the authenticated wallet's purchases and sales
func (h *AccountHandler) GetMyTransactions(w http.ResponseWriter, r *http.Request) {
	wallet, ok := middleware.GetWallet(r.Context())
	if !ok {
		middleware.RespondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	history, err := h.catalog.TransactionsForWallet(r.Context(), wallet)
	if err != nil {
		respondWithServiceError(w, h.logger, "Failed to get transactions", err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, history)
}
