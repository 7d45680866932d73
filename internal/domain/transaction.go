package domain

import "time"

// Transaction is an append-only ledger entry written by a successful purchase.
type Transaction struct {
	ID          int64     `json:"transactionId" db:"transaction_id"`
	ProductID   int64     `json:"productId" db:"product_id"`
	BuyerID     int64     `json:"buyerId" db:"buyer_id"`
	SellerID    int64     `json:"sellerId" db:"seller_id"`
	Destination string    `json:"destination" db:"destination"`
	Quantity    int       `json:"quantity" db:"quantity"`
	Timestamp   time.Time `json:"timestamp" db:"timestamp"`
	ProductName string    `json:"productName,omitempty" db:"product_name"`
}

// PurchaseReceipt is returned to the buyer once the purchase has committed.
type PurchaseReceipt struct {
	TransactionID       int64     `json:"transactionId"`
	QuantityPurchased   int       `json:"quantityPurchased"`
	RemainingQuantity   int       `json:"remainingQuantity"`
	Destination         string    `json:"destination"`
	TransactionRecorded bool      `json:"transactionRecorded"`
	Timestamp           time.Time `json:"timestamp"`
}
