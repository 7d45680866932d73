package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"coffee-market/internal/domain"
	"coffee-market/internal/middleware"
	"coffee-market/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testWallet = "0x52908400098527886e0f7030069857d2e4169ee7"

type mockAuthService struct {
	nonces   map[string]string
	verifyFn func(wallet, sig string) (*service.IssuedToken, error)
}

func (m *mockAuthService) IssueNonce(ctx context.Context, wallet string) (string, error) {
	wallet = domain.NormalizeWallet(wallet)
	if wallet == "" {
		return "", service.ErrInvalidWallet
	}
	if nonce, ok := m.nonces[wallet]; ok {
		return nonce, nil
	}
	m.nonces[wallet] = "123456"
	return "123456", nil
}

func (m *mockAuthService) Verify(ctx context.Context, wallet, sig string) (*service.IssuedToken, error) {
	return m.verifyFn(wallet, sig)
}

func (m *mockAuthService) Authenticate(tokenString string) (string, error) {
	if tokenString == "good" {
		return testWallet, nil
	}
	return "", service.ErrInvalidToken
}

type mockPurchaseService struct {
	last service.PurchaseRequest
	err  error
}

func (m *mockPurchaseService) Purchase(ctx context.Context, req service.PurchaseRequest) (*domain.PurchaseReceipt, error) {
	m.last = req
	if m.err != nil {
		return nil, m.err
	}
	return &domain.PurchaseReceipt{
		TransactionID:       9,
		QuantityPurchased:   req.Quantity,
		RemainingQuantity:   2,
		Destination:         req.Destination,
		TransactionRecorded: true,
		Timestamp:           time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC),
	}, nil
}

type mockCatalogService struct {
	products   []*domain.Product
	categories []string
	created    *domain.Product
	err        error
}

func (m *mockCatalogService) CreateProduct(ctx context.Context, owner string, p *domain.Product) (*domain.Product, error) {
	if m.err != nil {
		return nil, m.err
	}
	p.OwnerAddress = owner
	m.created = p
	return p, nil
}

func (m *mockCatalogService) ListProducts(ctx context.Context, limit int) ([]*domain.Product, error) {
	if len(m.products) == 0 {
		return nil, service.ErrNoProducts
	}
	if limit > 0 && limit < len(m.products) {
		return m.products[:limit], nil
	}
	return m.products, nil
}

func (m *mockCatalogService) GetProduct(ctx context.Context, productID int64) (*domain.Product, error) {
	for _, p := range m.products {
		if p.ProductID == productID {
			return p, nil
		}
	}
	return nil, service.ErrProductNotFound
}

func (m *mockCatalogService) ListCategories(ctx context.Context) ([]string, error) {
	if len(m.categories) == 0 {
		return nil, service.ErrNoCategories
	}
	return m.categories, nil
}

func (m *mockCatalogService) EnsureCategory(ctx context.Context, name string) (*domain.Category, error) {
	m.categories = append(m.categories, name)
	return &domain.Category{ID: int64(len(m.categories)), Name: name}, nil
}

func (m *mockCatalogService) CartForWallet(ctx context.Context, wallet string) ([]*domain.CartItem, error) {
	return nil, service.ErrCartEmpty
}

func (m *mockCatalogService) TransactionsForWallet(ctx context.Context, wallet string) ([]*domain.Transaction, error) {
	if m.err != nil {
		return nil, m.err
	}
	return []*domain.Transaction{{ID: 1, ProductID: 42, Quantity: 1}}, nil
}

func passThrough(next http.Handler) http.Handler { return next }

type fixture struct {
	router    chi.Router
	auth      *mockAuthService
	purchases *mockPurchaseService
	catalog   *mockCatalogService
}

func newFixture() *fixture {
	f := &fixture{
		auth: &mockAuthService{
			nonces: map[string]string{},
			verifyFn: func(wallet, sig string) (*service.IssuedToken, error) {
				return &service.IssuedToken{Token: "good", Wallet: wallet, ExpiresAt: time.Now().Add(time.Hour)}, nil
			},
		},
		purchases: &mockPurchaseService{},
		catalog: &mockCatalogService{
			products: []*domain.Product{
				{ProductID: 3, Name: "Huila", Quantity: 4, Price: "900", IsForSale: true},
				{ProductID: 2, Name: "Kona", Quantity: 1, Price: "3000", IsForSale: true},
			},
		},
	}

	logger := zap.NewNop()
	authMiddleware := middleware.AuthMiddleware(f.auth, logger)

	r := chi.NewRouter()
	NewAuthHandler(f.auth, logger).RegisterRoutes(r, passThrough)
	NewProductHandler(f.catalog, f.purchases, logger).RegisterRoutes(r, authMiddleware)
	NewAccountHandler(f.catalog, logger).RegisterRoutes(r, authMiddleware)
	f.router = r
	return f
}

func (f *fixture) do(method, path string, body any, authenticated bool) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if authenticated {
		req.Header.Set("Authorization", "Bearer good")
	}

	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) middleware.ErrorResponse {
	t.Helper()
	var response middleware.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

func TestGetNonceIsStableAcrossCase(t *testing.T) {
	f := newFixture()

	first := f.do("GET", "/users/auth/nonce/0x"+strings.ToUpper(testWallet[2:]), nil, false)
	second := f.do("GET", "/users/auth/nonce/"+testWallet, nil, false)

	require.Equal(t, http.StatusOK, first.Code)
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.JSONEq(t, `{"nonce":"123456"}`, first.Body.String())
}

func TestGetNonceRejectsMalformedWallet(t *testing.T) {
	f := newFixture()

	for _, wallet := range []string{
		"0xABC",
		"not-a-wallet",
		testWallet + "00",
		"0x" + strings.Repeat("a", 300),
	} {
		w := f.do("GET", "/users/auth/nonce/"+wallet, nil, false)
		assert.Equal(t, http.StatusBadRequest, w.Code, wallet)
		assert.Contains(t, decodeError(t, w).Error.Details, "validation_errors")
	}
	assert.Empty(t, f.auth.nonces, "no user is registered for a malformed wallet")
}

func TestVerifyReturnsToken(t *testing.T) {
	f := newFixture()

	w := f.do("POST", "/users/auth/verify", map[string]string{
		"wallet_address": testWallet,
		"signature":      "0xabcdef",
	}, false)

	require.Equal(t, http.StatusOK, w.Code)
	var response TokenResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Equal(t, "good", response.Token)
	assert.False(t, response.ExpiresAt.IsZero())
}

func TestVerifyRejectsMalformedWallet(t *testing.T) {
	f := newFixture()

	w := f.do("POST", "/users/auth/verify", map[string]string{
		"wallet_address": "not-a-wallet",
		"signature":      "0xabcdef",
	}, false)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, decodeError(t, w).Error.Details, "validation_errors")
}

func TestVerifyErrorStatuses(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{service.ErrUserNotFound, http.StatusNotFound},
		{service.ErrInvalidSignature, http.StatusBadRequest},
		{service.ErrSignatureMismatch, http.StatusUnauthorized},
		{service.ErrNonceConflict, http.StatusConflict},
		{fmt.Errorf("%w: failed to verify signature: dial tcp: refused", service.ErrPersistence), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			f := newFixture()
			f.auth.verifyFn = func(string, string) (*service.IssuedToken, error) { return nil, tt.err }

			w := f.do("POST", "/users/auth/verify", map[string]string{
				"wallet_address": testWallet,
				"signature":      "0xabcdef",
			}, false)

			assert.Equal(t, tt.status, w.Code)
			assert.NotContains(t, w.Body.String(), "dial tcp")
		})
	}
}

func TestBuyPassesAuthenticatedBuyer(t *testing.T) {
	f := newFixture()

	w := f.do("POST", "/products/buy/42", map[string]any{
		"quantity":      3,
		"destination":   "Rotterdam",
		"owner_address": "0x0000000000000000000000000000000000000001",
	}, true)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(42), f.purchases.last.ProductID)
	assert.Equal(t, testWallet, f.purchases.last.BuyerWallet)
	assert.Equal(t, 3, f.purchases.last.Quantity)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Product purchased successfully", body["message"])
	assert.Equal(t, float64(3), body["quantityPurchased"])
	assert.Equal(t, float64(2), body["remainingQuantity"])
	assert.Equal(t, true, body["transactionRecorded"])
}

func TestBuyRequiresCredential(t *testing.T) {
	f := newFixture()

	w := f.do("POST", "/products/buy/42", map[string]any{"quantity": 1, "destination": "X"}, false)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, service.PurchaseRequest{}, f.purchases.last)
}

func TestBuyRejectsBadInput(t *testing.T) {
	f := newFixture()

	w := f.do("POST", "/products/buy/abc", map[string]any{"quantity": 1, "destination": "X"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do("POST", "/products/buy/42", map[string]any{"quantity": 0, "destination": "X"}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProperty_PurchaseErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{service.ErrProductNotFound, http.StatusNotFound},
		{service.ErrProductNotForSale, http.StatusBadRequest},
		{service.ErrInsufficientStock, http.StatusBadRequest},
		{service.ErrInvalidQuantity, http.StatusBadRequest},
		{service.ErrSellerMismatch, http.StatusBadRequest},
		{fmt.Errorf("buyer: %w", service.ErrUserNotFound), http.StatusNotFound},
		{service.ErrStockConflict, http.StatusConflict},
		{fmt.Errorf("%w: failed to purchase product: %w", service.ErrPersistence, errors.New("pq: deadlock")), http.StatusInternalServerError},
	}

	properties := gopter.NewProperties(nil)

	properties.Property("every purchase error has a fixed status and a JSON envelope", prop.ForAll(
		func(i int) bool {
			tc := cases[i]
			f := newFixture()
			f.purchases.err = tc.err

			w := f.do("POST", "/products/buy/42", map[string]any{"quantity": 1, "destination": "X"}, true)
			if w.Code != tc.status {
				t.Logf("FAIL: %v mapped to %d, want %d", tc.err, w.Code, tc.status)
				return false
			}

			var response middleware.ErrorResponse
			if err := json.Unmarshal(w.Body.Bytes(), &response); err != nil {
				return false
			}
			if tc.status == http.StatusInternalServerError {
				return response.Error.Message == "internal server error"
			}
			return response.Error.Message != ""
		},
		gen.IntRange(0, len(cases)-1),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestCreateProductUsesCallerWallet(t *testing.T) {
	f := newFixture()

	w := f.do("POST", "/products", map[string]any{
		"productId":    77,
		"name":         "Geisha",
		"ownerAddress": "0xsomeoneelse",
		"quantity":     10,
		"price":        "15000",
	}, true)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"message":"Product created","productId":77}`, w.Body.String())
	assert.Equal(t, testWallet, f.catalog.created.OwnerAddress)
	assert.True(t, f.catalog.created.IsForSale)
}

func TestCreateProductDuplicateIsConflict(t *testing.T) {
	f := newFixture()
	f.catalog.err = service.ErrProductExists

	w := f.do("POST", "/products", map[string]any{"productId": 2, "name": "Kona", "quantity": 1, "price": "1"}, true)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestListProducts(t *testing.T) {
	f := newFixture()

	w := f.do("GET", "/products", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	var all []domain.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	w = f.do("GET", "/products/limit/1", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	var limited []domain.Product
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &limited))
	assert.Len(t, limited, 1)

	w = f.do("GET", "/products/limit/0", nil, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	f.catalog.products = nil
	w = f.do("GET", "/products", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestGetProduct(t *testing.T) {
	f := newFixture()

	w := f.do("GET", "/products/3", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"name":"Huila"`)

	w = f.do("GET", "/products/99", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAccountRoutes(t *testing.T) {
	f := newFixture()

	w := f.do("GET", "/categories", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)

	f.catalog.categories = []string{"Arabica"}
	w = f.do("GET", "/categories", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `["Arabica"]`, w.Body.String())

	w = f.do("GET", "/cart", nil, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do("GET", "/cart", nil, true)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, service.ErrCartEmpty.Error(), decodeError(t, w).Error.Message)

	w = f.do("GET", "/transactions/user/me", nil, true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"productId":42`)
}

func TestCreateCategory(t *testing.T) {
	f := newFixture()

	w := f.do("POST", "/categories", map[string]string{"name": "Geisha"}, false)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = f.do("POST", "/categories", map[string]string{"name": ""}, true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = f.do("POST", "/categories", map[string]string{"name": "Geisha"}, true)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.JSONEq(t, `{"id":1,"name":"Geisha"}`, w.Body.String())
	assert.Equal(t, []string{"Geisha"}, f.catalog.categories)
}

func TestServiceErrorsRenderMappedEnvelope(t *testing.T) {
	for _, m := range statusMappings {
		t.Run(m.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			respondWithServiceError(w, zap.NewNop(), "Request failed", fmt.Errorf("failed to handle request: %w", m.err))

			require.Equal(t, m.status, w.Code)
			response := decodeError(t, w)
			assert.Equal(t, http.StatusText(m.status), response.Error.Code)
			assert.Equal(t, m.err.Error(), response.Error.Message)
		})
	}

	w := httptest.NewRecorder()
	respondWithServiceError(w, zap.NewNop(), "Request failed",
		fmt.Errorf("%w: failed to load cart: %w", service.ErrPersistence, errors.New(`pq: relation "carts" does not exist`)))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, "internal server error", decodeError(t, w).Error.Message)
	assert.NotContains(t, w.Body.String(), "relation")
}
