package repository

import (
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
)

var productColumnNames = []string{
	"id", "product_id", "name", "category_id", "category_name", "harvest_date", "expiration_date",
	"current_status", "owner_address", "region", "image_src", "quantity", "price", "is_for_sale", "description",
}

func newMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock new: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func productRows(productID int64, quantity int, forSale bool, owner string) *sqlmock.Rows {
	return sqlmock.NewRows(productColumnNames).AddRow(
		int64(1), productID, "Yirgacheffe", nil, "", nil, nil,
		"Fresh", owner, "Ethiopia", "coffee-1.jpg", int64(quantity), "1000", forSale, nil,
	)
}
