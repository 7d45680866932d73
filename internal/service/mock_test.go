package service

import (
	"context"
	"sort"
	"strings"
	"sync"

	"coffee-market/internal/domain"
	"coffee-market/internal/repository"
)

// memStore is an in-memory database. A unit of work holds mu for its whole
// duration and restores a snapshot when it fails.
type memStore struct {
	mu           sync.Mutex
	products     map[int64]domain.Product
	users        map[string]domain.User
	transactions []domain.Transaction
	categories   []string
	carts        map[string][]domain.CartItem
	nextUserID   int64
	nextTxID     int64

	// failAppend makes the next ledger append fail
	failAppend error
	// stockConflicts is the number of UpdateStock calls that report a conflict
	stockConflicts int
}

func newMemStore() *memStore {
	return &memStore{
		products: make(map[int64]domain.Product),
		users:    make(map[string]domain.User),
		carts:    make(map[string][]domain.CartItem),
	}
}

func (s *memStore) addProduct(productID int64, quantity int, owner string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.products[productID] = domain.Product{
		ID:            productID,
		ProductID:     productID,
		Name:          "Batch",
		CurrentStatus: domain.ProductStatusFresh,
		OwnerAddress:  domain.NormalizeWallet(owner),
		Quantity:      quantity,
		Price:         "1000",
		IsForSale:     quantity > 0,
	}
}

func (s *memStore) addUser(wallet, nonce string) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUserID++
	user := domain.User{ID: s.nextUserID, WalletAddress: domain.NormalizeWallet(wallet), Nonce: nonce}
	s.users[user.WalletAddress] = user
	return user
}

func (s *memStore) product(productID int64) domain.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[productID]
}

func (s *memStore) user(wallet string) domain.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.users[domain.NormalizeWallet(wallet)]
}

func (s *memStore) ledger() []domain.Transaction {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Transaction(nil), s.transactions...)
}

type snapshot struct {
	products     map[int64]domain.Product
	users        map[string]domain.User
	transactions []domain.Transaction
	nextUserID   int64
	nextTxID     int64
}

func (s *memStore) snapshot() snapshot {
	snap := snapshot{
		products:     make(map[int64]domain.Product, len(s.products)),
		users:        make(map[string]domain.User, len(s.users)),
		transactions: append([]domain.Transaction(nil), s.transactions...),
		nextUserID:   s.nextUserID,
		nextTxID:     s.nextTxID,
	}
	for k, v := range s.products {
		snap.products[k] = v
	}
	for k, v := range s.users {
		snap.users[k] = v
	}
	return snap
}

func (s *memStore) restore(snap snapshot) {
	s.products = snap.products
	s.users = snap.users
	s.transactions = snap.transactions
	s.nextUserID = snap.nextUserID
	s.nextTxID = snap.nextTxID
}

// enter locks the store for a single call made outside a unit of work.
func (s *memStore) enter(inTx bool) func() {
	if inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

type memUnitOfWork struct {
	store *memStore
}

func (u *memUnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	u.store.mu.Lock()
	defer u.store.mu.Unlock()

	snap := u.store.snapshot()
	repos := repository.Repositories{
		Products:     &memProductRepository{store: u.store, inTx: true},
		Users:        &memUserRepository{store: u.store, inTx: true},
		Transactions: &memTransactionRepository{store: u.store, inTx: true},
	}
	if err := fn(ctx, repos); err != nil {
		u.store.restore(snap)
		return err
	}
	return nil
}

type memProductRepository struct {
	store *memStore
	inTx  bool
}

func (r *memProductRepository) Create(ctx context.Context, product *domain.Product) error {
	defer r.store.enter(r.inTx)()
	if _, exists := r.store.products[product.ProductID]; exists {
		return repository.ErrProductAlreadyExists
	}
	product.ID = int64(len(r.store.products) + 1)
	product.OwnerAddress = domain.NormalizeWallet(product.OwnerAddress)
	product.IsForSale = product.IsForSale && product.Quantity > 0
	r.store.products[product.ProductID] = *product
	return nil
}

func (r *memProductRepository) FindByProductID(ctx context.Context, productID int64) (*domain.Product, error) {
	defer r.store.enter(r.inTx)()
	product, exists := r.store.products[productID]
	if !exists {
		return nil, repository.ErrProductNotFound
	}
	return &product, nil
}

func (r *memProductRepository) FindByProductIDForUpdate(ctx context.Context, productID int64) (*domain.Product, error) {
	return r.FindByProductID(ctx, productID)
}

func (r *memProductRepository) UpdateStock(ctx context.Context, productID int64, expectedQuantity, newQuantity int, isForSale bool) error {
	defer r.store.enter(r.inTx)()
	if r.store.stockConflicts > 0 {
		r.store.stockConflicts--
		return repository.ErrStockConflict
	}
	product, exists := r.store.products[productID]
	if !exists || product.Quantity != expectedQuantity {
		return repository.ErrStockConflict
	}
	product.Quantity = newQuantity
	product.IsForSale = isForSale
	r.store.products[productID] = product
	return nil
}

func (r *memProductRepository) ListForSale(ctx context.Context, limit int) ([]*domain.Product, error) {
	defer r.store.enter(r.inTx)()
	products := []*domain.Product{}
	for _, p := range r.store.products {
		if p.IsForSale {
			product := p
			products = append(products, &product)
		}
	}
	sort.Slice(products, func(i, j int) bool { return products[i].ProductID > products[j].ProductID })
	if limit > 0 && len(products) > limit {
		products = products[:limit]
	}
	return products, nil
}

type memUserRepository struct {
	store *memStore
	inTx  bool
}

func (r *memUserRepository) Create(ctx context.Context, wallet, nonce string) (*domain.User, error) {
	defer r.store.enter(r.inTx)()
	wallet = domain.NormalizeWallet(wallet)
	if _, exists := r.store.users[wallet]; exists {
		return nil, repository.ErrUserAlreadyExists
	}
	r.store.nextUserID++
	user := domain.User{ID: r.store.nextUserID, WalletAddress: wallet, Nonce: nonce}
	r.store.users[wallet] = user
	return &user, nil
}

func (r *memUserRepository) FindByWallet(ctx context.Context, wallet string) (*domain.User, error) {
	defer r.store.enter(r.inTx)()
	user, exists := r.store.users[domain.NormalizeWallet(wallet)]
	if !exists {
		return nil, repository.ErrUserNotFound
	}
	return &user, nil
}

func (r *memUserRepository) FindByWalletForUpdate(ctx context.Context, wallet string) (*domain.User, error) {
	return r.FindByWallet(ctx, wallet)
}

func (r *memUserRepository) UpdateNonce(ctx context.Context, wallet, oldNonce, newNonce string) error {
	defer r.store.enter(r.inTx)()
	wallet = domain.NormalizeWallet(wallet)
	user, exists := r.store.users[wallet]
	if !exists || user.Nonce != oldNonce {
		return repository.ErrNonceConflict
	}
	user.Nonce = newNonce
	r.store.users[wallet] = user
	return nil
}

type memTransactionRepository struct {
	store *memStore
	inTx  bool
}

func (r *memTransactionRepository) Append(ctx context.Context, tx *domain.Transaction) error {
	defer r.store.enter(r.inTx)()
	if r.store.failAppend != nil {
		err := r.store.failAppend
		r.store.failAppend = nil
		return err
	}
	r.store.nextTxID++
	tx.ID = r.store.nextTxID
	r.store.transactions = append(r.store.transactions, *tx)
	return nil
}

func (r *memTransactionRepository) ListForUser(ctx context.Context, userID int64) ([]*domain.Transaction, error) {
	defer r.store.enter(r.inTx)()
	history := []*domain.Transaction{}
	for i := len(r.store.transactions) - 1; i >= 0; i-- {
		tx := r.store.transactions[i]
		if tx.BuyerID == userID || tx.SellerID == userID {
			history = append(history, &tx)
		}
	}
	return history, nil
}

type memCategoryRepository struct {
	store *memStore
}

func (r *memCategoryRepository) Create(ctx context.Context, name string) (*domain.Category, error) {
	defer r.store.enter(false)()
	for _, existing := range r.store.categories {
		if strings.EqualFold(existing, name) {
			return nil, repository.ErrCategoryAlreadyExists
		}
	}
	r.store.categories = append(r.store.categories, name)
	return &domain.Category{ID: int64(len(r.store.categories)), Name: name}, nil
}

func (r *memCategoryRepository) List(ctx context.Context) ([]*domain.Category, error) {
	defer r.store.enter(false)()
	categories := []*domain.Category{}
	for i, name := range r.store.categories {
		categories = append(categories, &domain.Category{ID: int64(i + 1), Name: name})
	}
	return categories, nil
}

type memCartRepository struct {
	store *memStore
}

func (r *memCartRepository) ListForWallet(ctx context.Context, wallet string) ([]*domain.CartItem, error) {
	defer r.store.enter(false)()
	items := []*domain.CartItem{}
	for _, item := range r.store.carts[domain.NormalizeWallet(wallet)] {
		it := item
		items = append(items, &it)
	}
	return items, nil
}
