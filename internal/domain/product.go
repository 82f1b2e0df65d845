package domain

import "github.com/shopspring/decimal"

// Shoe sizes sold by the store. Sizes outside this range are rejected
// at the edges; a nil size means the product has no size dimension.
const (
	MinSize = 30
	MaxSize = 50
)

// Product is the snapshot of a catalog product carried inside a line
// item. Price and OldPrice are captured when the item is created and
// are not revalidated afterwards.
type Product struct {
	ID       string           `json:"id"`
	Brand    string           `json:"brandName,omitempty"`
	Model    string           `json:"model,omitempty"`
	Image    string           `json:"image,omitempty"`
	Price    decimal.Decimal  `json:"price"`
	OldPrice *decimal.Decimal `json:"oldPrice,omitempty"`

	// SelectedSize is the size variant the customer picked, nil for
	// sizeless products. Together with ID it forms the item key.
	SelectedSize *int `json:"selectedSize,omitempty"`
}

// ValidSize reports whether s is inside the store's size range.
func ValidSize(s int) bool {
	return s >= MinSize && s <= MaxSize
}
