package scraper

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"stock-watch/internal/model"
)

// DefaultProbeCeiling is the quantity requested when probing a cart
const DefaultProbeCeiling = 999

const cartCleanupTimeout = 15 * time.Second

// CartProbe asks the storefront how many units of a variant it will accept
// into a throwaway cart. Each attempt uses its own cookie session and leaves
// that cart empty on every exit path.
type CartProbe struct {
	client  *Client
	ceiling int
}

// NewCartProbe creates the cart probe strategy
func NewCartProbe(client *Client, ceiling int) *CartProbe {
	if ceiling <= 1 {
		ceiling = DefaultProbeCeiling
	}
	return &CartProbe{client: client, ceiling: ceiling}
}

func (s *CartProbe) Name() string { return "cart-probe" }

// Wants runs the probe only for an in-stock variant without a known quantity
func (s *CartProbe) Wants(t *Target, acc model.Observation) bool {
	return t.VariantID != 0 && acc.Quantity == nil && acc.InStock != nil && *acc.InStock
}

// Attempt adds the ceiling quantity and reads back what the cart accepted.
// Accepting the full ceiling means the storefront does not track a finite
// count, reported as in stock with unknown quantity.
func (s *CartProbe) Attempt(ctx context.Context, t *Target, _ model.Observation) (model.Observation, error) {
	if t.RefErr != nil {
		return model.Observation{}, t.RefErr
	}
	if t.VariantID == 0 {
		return model.Observation{}, fmt.Errorf("no variant selected: %w", ErrNoSignal)
	}

	session := s.client.NewSession()
	ref := t.Ref

	if err := s.clear(ctx, session, ref); err != nil {
		return model.Observation{}, fmt.Errorf("initial cart clear: %w", err)
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cartCleanupTimeout)
		defer cancel()
		if err := s.clear(cleanupCtx, session, ref); err != nil {
			slog.WarnContext(ctx, "failed to clear probe cart", "url", t.URL, "err", err)
		}
	}()

	accepted, err := s.probe(ctx, session, ref, t.VariantID)
	if err != nil {
		return model.Observation{}, err
	}

	switch {
	case accepted >= s.ceiling:
		return model.Observation{InStock: model.BoolPtr(true)}, nil
	case accepted <= 0:
		return model.Observation{Quantity: model.IntPtr(0), InStock: model.BoolPtr(false)}, nil
	}
	return model.Observation{Quantity: model.IntPtr(accepted), InStock: model.BoolPtr(true)}, nil
}

// probe returns the quantity of the variant's cart line after asking for the ceiling
func (s *CartProbe) probe(ctx context.Context, session *Client, ref ProductRef, variantID int64) (int, error) {
	id := strconv.FormatInt(variantID, 10)
	ceiling := strconv.Itoa(s.ceiling)

	res, err := session.PostForm(ctx, ref.CartURL("add.js"), ajaxHeaders, map[string]string{
		"id":       id,
		"quantity": ceiling,
	})
	if err != nil {
		return 0, fmt.Errorf("add to cart: %w", err)
	}

	if res.StatusCode == http.StatusUnprocessableEntity {
		// the storefront refused the whole amount; add one and raise it
		res, err = session.PostForm(ctx, ref.CartURL("add.js"), ajaxHeaders, map[string]string{
			"id":       id,
			"quantity": "1",
		})
		if err != nil {
			return 0, fmt.Errorf("add single unit: %w", err)
		}
		if !res.OK() {
			return 0, fmt.Errorf("add single unit: status %d: %w", res.StatusCode, ErrNoSignal)
		}

		c, err := s.readCart(ctx, session, ref)
		if err != nil {
			return 0, err
		}
		line, ok := c.line(variantID)
		if !ok {
			return 0, fmt.Errorf("variant %d missing from cart: %w", variantID, ErrNoSignal)
		}
		if _, err := session.PostForm(ctx, ref.CartURL("change.js"), ajaxHeaders, map[string]string{
			"id":       line.Key,
			"quantity": ceiling,
		}); err != nil {
			return 0, fmt.Errorf("change cart line: %w", err)
		}
	} else if !res.OK() {
		return 0, fmt.Errorf("add to cart: status %d: %w", res.StatusCode, ErrNoSignal)
	}

	c, err := s.readCart(ctx, session, ref)
	if err != nil {
		return 0, err
	}
	line, ok := c.line(variantID)
	if !ok {
		return 0, fmt.Errorf("variant %d missing from cart: %w", variantID, ErrNoSignal)
	}
	return line.Quantity, nil
}

func (s *CartProbe) readCart(ctx context.Context, session *Client, ref ProductRef) (cart, error) {
	var c cart
	res, err := session.Get(ctx, ref.CartURL(""), ajaxHeaders)
	if err != nil {
		return c, fmt.Errorf("read cart: %w", err)
	}
	if !res.OK() {
		return c, fmt.Errorf("read cart: unexpected status code: %d", res.StatusCode)
	}
	if err := json.Unmarshal(res.Body, &c); err != nil {
		return c, fmt.Errorf("failed to unmarshal cart: %w", err)
	}
	return c, nil
}

func (s *CartProbe) clear(ctx context.Context, session *Client, ref ProductRef) error {
	res, err := session.PostForm(ctx, ref.CartURL("clear.js"), ajaxHeaders, nil)
	if err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}
	return nil
}
