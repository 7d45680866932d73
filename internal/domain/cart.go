package domain

import "time"

// CartItem is a product saved in a user's shopping cart.
type CartItem struct {
	ID        int64     `json:"id" db:"cart_id"`
	ProductID int64     `json:"productId" db:"product_id"`
	Name      string    `json:"name" db:"name"`
	Price     string    `json:"price" db:"price"`
	Image     string    `json:"image" db:"image_src"`
	Creator   string    `json:"creator" db:"owner_address"`
	AddedAt   time.Time `json:"addedAt" db:"added_at"`
}
