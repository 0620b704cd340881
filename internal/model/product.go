package model

import (
	"fmt"
	"strconv"
)

// Product identifies one monitored storefront product page
type Product struct {
	Key  string `json:"key"`  // state key, defaults to URL
	Name string `json:"name"` // display name used in messages
	URL  string `json:"url"`
}

// DisplayName returns the product name, falling back to its URL
func (p Product) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.URL
}

// Observation is a point-in-time read of a product's stock.
// A nil field means no source reported it.
type Observation struct {
	Quantity *int   `json:"quantity"`
	InStock  *bool  `json:"in_stock"`
	Source   string `json:"source,omitempty"` // strategies that contributed, e.g. "variant-json+cart-probe"
}

// Known reports whether any field carries information
func (o Observation) Known() bool {
	return o.Quantity != nil || o.InStock != nil
}

// Normalize clamps negative quantities to zero and marks a positive
// quantity as in stock. Availability without a quantity is left alone.
func (o Observation) Normalize() Observation {
	out := Observation{Source: o.Source}
	if o.Quantity != nil {
		q := *o.Quantity
		if q < 0 {
			q = 0
		}
		out.Quantity = &q
	}
	if o.InStock != nil {
		s := *o.InStock
		out.InStock = &s
	}
	if out.Quantity != nil && *out.Quantity > 0 {
		out.InStock = BoolPtr(true)
	}
	return out
}

// Available reports the effective availability used in messages
func (o Observation) Available() bool {
	if o.InStock != nil {
		return *o.InStock
	}
	return o.Quantity != nil && *o.Quantity > 0
}

func (o Observation) String() string {
	return fmt.Sprintf("qty=%s in_stock=%s", FormatQuantity(o.Quantity), FormatBool(o.InStock))
}

// IntPtr returns a pointer to v
func IntPtr(v int) *int {
	return &v
}

// BoolPtr returns a pointer to v
func BoolPtr(v bool) *bool {
	return &v
}

// FormatQuantity renders an optional quantity, "unknown" when absent
func FormatQuantity(q *int) string {
	if q == nil {
		return "unknown"
	}
	return strconv.Itoa(*q)
}

// FormatBool renders an optional flag, "unknown" when absent
func FormatBool(b *bool) string {
	if b == nil {
		return "unknown"
	}
	return strconv.FormatBool(*b)
}
