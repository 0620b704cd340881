package scraper

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrNotShopify is returned for URLs that do not point at a storefront product page
var ErrNotShopify = errors.New("not a storefront product URL")

// ProductRef locates a product on a storefront: https://host[/locale]/products/handle
type ProductRef struct {
	Base   string // scheme://host
	Prefix string // locale prefix such as "/en-us", may be empty
	Handle string
}

// ParseProductURL splits a product page URL into base, locale prefix and handle
func ParseProductURL(raw string) (ProductRef, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ProductRef{}, fmt.Errorf("%w: %v", ErrNotShopify, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return ProductRef{}, fmt.Errorf("%w: %q has no scheme or host", ErrNotShopify, raw)
	}

	ref := ProductRef{Base: u.Scheme + "://" + u.Host}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")

	switch {
	case len(parts) >= 2 && parts[0] == "products":
		ref.Handle = parts[1]
	case len(parts) >= 3 && parts[1] == "products" && parts[0] != "collections":
		ref.Prefix = "/" + parts[0]
		ref.Handle = parts[2]
	default:
		// /collections/x/products/handle and similar deep links
		for i := 0; i+1 < len(parts); i++ {
			if parts[i] == "products" {
				ref.Handle = parts[i+1]
				break
			}
		}
	}

	ref.Handle = strings.TrimSuffix(ref.Handle, ".js")
	if ref.Handle == "" {
		return ProductRef{}, fmt.Errorf("%w: no product handle in %q", ErrNotShopify, raw)
	}
	return ref, nil
}

func (r ProductRef) root() string {
	return r.Base + r.Prefix
}

// ProductJSURL is the storefront's machine readable product document
func (r ProductRef) ProductJSURL() string {
	return r.root() + "/products/" + url.PathEscape(r.Handle) + ".js"
}

// VariantURL is the detail record of one variant
func (r ProductRef) VariantURL(id int64) string {
	return fmt.Sprintf("%s/variants/%d.json", r.root(), id)
}

// CartURL returns a cart endpoint such as "add.js"; an empty action is the cart itself
func (r ProductRef) CartURL(action string) string {
	if action == "" {
		return r.root() + "/cart.js"
	}
	return r.root() + "/cart/" + action
}

// PageURL is the human facing product page
func (r ProductRef) PageURL() string {
	return r.root() + "/products/" + url.PathEscape(r.Handle)
}

type productJS struct {
	ID       int64       `json:"id"`
	Title    string      `json:"title"`
	Handle   string      `json:"handle"`
	Variants []variantJS `json:"variants"`
}

type variantJS struct {
	ID        int64  `json:"id"`
	Title     string `json:"title"`
	Available bool   `json:"available"`
}

type variantDetail struct {
	Variant struct {
		ID                int64 `json:"id"`
		InventoryQuantity *int  `json:"inventory_quantity"`
		Available         *bool `json:"available"`
	} `json:"variant"`
}

type cart struct {
	Token string     `json:"token"`
	Items []cartItem `json:"items"`
}

type cartItem struct {
	ID        int64  `json:"id"`
	VariantID int64  `json:"variant_id"`
	Key       string `json:"key"`
	Quantity  int    `json:"quantity"`
}

// line returns the cart line for a variant
func (c cart) line(variantID int64) (cartItem, bool) {
	for _, it := range c.Items {
		if it.VariantID == variantID || it.ID == variantID {
			return it, true
		}
	}
	return cartItem{}, false
}

// selectVariant picks the first available variant, else the first listed
func selectVariant(variants []variantJS) (variantJS, bool) {
	if len(variants) == 0 {
		return variantJS{}, false
	}
	for _, v := range variants {
		if v.Available {
			return v, true
		}
	}
	return variants[0], true
}

// anyAvailable reports whether any variant is flagged available
func anyAvailable(variants []variantJS) bool {
	for _, v := range variants {
		if v.Available {
			return true
		}
	}
	return false
}
