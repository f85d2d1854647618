// Package cart models the client-held cart as an explicit session object.
// The browser owns cart contents; the server receives the lines in checkout
// requests and treats them purely as a selection, never as a price source.
package cart

import (
	"fmt"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// Line is a single cart selection: a SKU, a quantity, and an optional set of
// festival dates the selection applies to.
type Line struct {
	SKU      string
	Category string
	Quantity int
	// Dates holds selected calendar days in YYYY-MM-DD form. NormalizeDates
	// deduplicates and sorts them so equal selections share an identity key.
	Dates []string
}

// Key returns the line's identity key, category:sku[@d1,d2,...]. Two lines
// with equal keys are the same selection and merge on Add.
func (l Line) Key() string {
	var b strings.Builder
	b.WriteString(l.Category)
	b.WriteByte(':')
	b.WriteString(l.SKU)
	if len(l.Dates) > 0 {
		b.WriteByte('@')
		b.WriteString(strings.Join(l.Dates, ","))
	}
	return b.String()
}

// NormalizeDates deduplicates and sorts the line's date selection in place.
func (l *Line) NormalizeDates() {
	if len(l.Dates) == 0 {
		return
	}
	seen := make(map[string]struct{}, len(l.Dates))
	out := l.Dates[:0]
	for _, d := range l.Dates {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Strings(out)
	l.Dates = out
}

// Cart is an ordered collection of lines keyed by line identity.
type Cart struct {
	lines []Line
	index map[string]int
}

// New returns an empty cart.
func New() *Cart {
	return &Cart{index: make(map[string]int)}
}

// Add normalizes the line and merges it into the cart. A line whose identity
// key matches an existing line increments that line's quantity instead of
// appending a duplicate entry.
func (c *Cart) Add(l Line) {
	l.NormalizeDates()
	key := l.Key()
	if i, ok := c.index[key]; ok {
		c.lines[i].Quantity += l.Quantity
		return
	}
	c.index[key] = len(c.lines)
	c.lines = append(c.lines, l)
}

// Lines returns the cart contents in insertion order.
func (c *Cart) Lines() []Line {
	return c.lines
}

// Len returns the number of distinct lines.
func (c *Cart) Len() int {
	return len(c.lines)
}

// SKUs returns the distinct SKUs present in the cart, in insertion order.
func (c *Cart) SKUs() []string {
	seen := make(map[string]struct{}, len(c.lines))
	skus := make([]string, 0, len(c.lines))
	for _, l := range c.lines {
		if _, ok := seen[l.SKU]; ok {
			continue
		}
		seen[l.SKU] = struct{}{}
		skus = append(skus, l.SKU)
	}
	return skus
}

// Subtotal computes the cart subtotal from the given unit prices. It returns
// an error when a line's SKU has no price, since a subtotal computed from
// partial pricing would silently undercharge.
func (c *Cart) Subtotal(prices map[string]decimal.Decimal) (decimal.Decimal, error) {
	sum := decimal.Zero
	for _, l := range c.lines {
		price, ok := prices[l.SKU]
		if !ok {
			return decimal.Zero, fmt.Errorf("no price for sku %s", l.SKU)
		}
		sum = sum.Add(price.Mul(decimal.NewFromInt(int64(l.Quantity))))
	}
	return sum, nil
}
