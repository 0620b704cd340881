package scraper

import (
	"context"
	"encoding/json"
	"fmt"

	"stock-watch/internal/model"
)

var ajaxHeaders = map[string]string{
	"accept":           "application/json, text/javascript, */*; q=0.01",
	"x-requested-with": "XMLHttpRequest",
}

// VariantJSON reads the storefront's product and variant documents
type VariantJSON struct {
	client *Client
}

// NewVariantJSON creates the structured variant strategy
func NewVariantJSON(client *Client) *VariantJSON {
	return &VariantJSON{client: client}
}

func (s *VariantJSON) Name() string { return "variant-json" }

// Attempt selects a variant from products/<handle>.js and then reads its
// inventory count from variants/<id>.json. When only the first request
// succeeds the variant's availability is still returned.
func (s *VariantJSON) Attempt(ctx context.Context, t *Target, _ model.Observation) (model.Observation, error) {
	if t.RefErr != nil {
		return model.Observation{}, t.RefErr
	}

	var product productJS
	if err := s.getJSON(ctx, t.Ref.ProductJSURL(), &product); err != nil {
		return model.Observation{}, fmt.Errorf("product document: %w", err)
	}
	v, ok := selectVariant(product.Variants)
	if !ok {
		return model.Observation{}, fmt.Errorf("product %q has no variants: %w", product.Handle, ErrNoSignal)
	}
	t.VariantID = v.ID

	obs := model.Observation{InStock: model.BoolPtr(anyAvailable(product.Variants))}

	var detail variantDetail
	if err := s.getJSON(ctx, t.Ref.VariantURL(v.ID), &detail); err != nil {
		return obs, fmt.Errorf("variant %d document: %w", v.ID, err)
	}
	if q := detail.Variant.InventoryQuantity; q != nil {
		n := *q
		if n < 0 {
			n = 0
		}
		obs.Quantity = &n
	}
	if a := detail.Variant.Available; a != nil {
		obs.InStock = model.BoolPtr(*a)
	}
	return obs, nil
}

func (s *VariantJSON) getJSON(ctx context.Context, url string, out any) error {
	res, err := s.client.Get(ctx, url, ajaxHeaders)
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}
	if err := json.Unmarshal(res.Body, out); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", url, err)
	}
	return nil
}
