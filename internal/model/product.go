package model

import "github.com/shopspring/decimal"

func init() {
	// prices go out as JSON numbers: {"price":9.99}
	decimal.MarshalJSONWithoutQuotes = true
}

type Product struct {
	ID    int64           `json:"id" db:"id"`
	Name  string          `json:"name" db:"name"`
	Price decimal.Decimal `json:"price" db:"price"`
	Stock int             `json:"stock" db:"stock"`
}

// NewProduct is the input of an insert; the id is assigned by the store.
type NewProduct struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
}
