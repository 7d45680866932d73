package domain

import (
	"strings"
	"time"
)

// ProductStatus is the freshness label of a coffee batch.
type ProductStatus string

const (
	ProductStatusFresh   ProductStatus = "Fresh"
	ProductStatusExpired ProductStatus = "Expired"
)

// Product is a listed coffee batch.
//
// ID is the internal row id; ProductID is the stable external id shared with the chain.
type Product struct {
	ID             int64         `json:"id" db:"id"`
	ProductID      int64         `json:"productId" db:"product_id"`
	Name           string        `json:"name" db:"name"`
	CategoryID     *int64        `json:"categoryId,omitempty" db:"category_id"`
	CategoryName   string        `json:"categoryName,omitempty" db:"category_name"`
	HarvestDate    *time.Time    `json:"harvestDate,omitempty" db:"harvest_date"`
	ExpirationDate *time.Time    `json:"expirationDate,omitempty" db:"expiration_date"`
	CurrentStatus  ProductStatus `json:"currentStatus" db:"current_status"`
	OwnerAddress   string        `json:"ownerAddress" db:"owner_address"`
	Region         string        `json:"region,omitempty" db:"region"`
	ImageSrc       string        `json:"imageSrc,omitempty" db:"image_src"`
	Quantity       int           `json:"quantity" db:"quantity"`
	Price          string        `json:"price" db:"price"`
	IsForSale      bool          `json:"isForSale" db:"is_for_sale"`
	Description    string        `json:"description,omitempty" db:"description"`
}

// OwnedBy reports whether wallet is the product's owner, ignoring case.
func (p *Product) OwnedBy(wallet string) bool {
	return strings.EqualFold(p.OwnerAddress, wallet)
}

// Category represents a coffee category
type Category struct {
	ID   int64  `json:"id" db:"category_id"`
	Name string `json:"name" db:"name"`
}
