package catalog

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested catalog entry does not exist.
var ErrNotFound = errors.New("catalog entry not found")

// Category partitions the catalog into ticket SKUs and add-on SKUs.
type Category string

const (
	CategoryTicket Category = "ticket"
	CategoryAddon  Category = "addon"
)

// Entry is a sellable item as published by the content store. Entries are
// immutable per fetch; the checkout core only reads snapshots and never
// writes back.
type Entry struct {
	SKU         string
	Name        string
	Description string
	Category    Category
	Price       decimal.Decimal
	Currency    string
	Badge       string
	Available   bool
	SortOrder   int
}

// Repository defines read operations for the catalog. It is the leaf
// dependency of the checkout pipeline: pricing always goes through here,
// never through client-submitted values.
type Repository interface {
	ListByCategory(ctx context.Context, category Category) ([]Entry, error)
	GetBySKUs(ctx context.Context, skus []string) ([]Entry, error)
}
