package scraper

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"stock-watch/internal/model"
)

// Chain runs strategies in order and merges their observations.
// Later strategies only fill fields still unknown; the chain stops as
// soon as a quantity is known.
type Chain struct {
	strategies []Strategy
	logger     *slog.Logger
}

// NewChain creates a chain of strategies, tried in the given order
func NewChain(logger *slog.Logger, strategies ...Strategy) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	return &Chain{strategies: strategies, logger: logger}
}

// NewDefaultChain wires the standard storefront strategies
func NewDefaultChain(client *Client, logger *slog.Logger, cartProbe bool, ceiling int) *Chain {
	strategies := []Strategy{NewVariantJSON(client)}
	if cartProbe {
		strategies = append(strategies, NewCartProbe(client, ceiling))
	}
	strategies = append(strategies, NewPageText(client))
	return NewChain(logger, strategies...)
}

// Observe never fails: a strategy error is logged and treated as no signal
func (c *Chain) Observe(ctx context.Context, productURL string) model.Observation {
	t := &Target{URL: productURL}
	t.Ref, t.RefErr = ParseProductURL(productURL)

	var acc model.Observation
	var sources []string

	for _, s := range c.strategies {
		if ctx.Err() != nil {
			break
		}
		if g, ok := s.(Gated); ok && !g.Wants(t, acc) {
			continue
		}

		obs, err := c.attempt(ctx, s, t, acc)
		if err != nil {
			if errors.Is(err, ErrNoSignal) {
				c.logger.DebugContext(ctx, "strategy found no signal", "strategy", s.Name(), "url", productURL)
			} else {
				c.logger.WarnContext(ctx, "strategy failed", "strategy", s.Name(), "url", productURL, "err", err)
			}
		}

		merged := merge(acc, obs)
		if merged != acc {
			sources = append(sources, s.Name())
		}
		acc = merged

		if acc.Quantity != nil {
			break
		}
	}

	acc.Source = strings.Join(sources, "+")
	return acc.Normalize()
}

// attempt isolates a strategy so that a panic is reported as a failure
func (c *Chain) attempt(ctx context.Context, s Strategy, t *Target, acc model.Observation) (obs model.Observation, err error) {
	defer func() {
		if r := recover(); r != nil {
			obs = model.Observation{}
			err = errors.New("strategy panicked")
			c.logger.ErrorContext(ctx, "strategy panicked", "strategy", s.Name(), "panic", r)
		}
	}()
	return s.Attempt(ctx, t, acc)
}

// merge fills unknown fields of acc from next
func merge(acc, next model.Observation) model.Observation {
	out := acc
	if out.Quantity == nil && next.Quantity != nil {
		out.Quantity = model.IntPtr(*next.Quantity)
	}
	if out.InStock == nil && next.InStock != nil {
		out.InStock = model.BoolPtr(*next.InStock)
	}
	return out
}
