package scraper

import (
	"context"
	"errors"

	"stock-watch/internal/model"
)

// ErrNoSignal is returned by a strategy that ran but found nothing usable
var ErrNoSignal = errors.New("no stock signal")

// Observer produces the best available observation for a product page
type Observer interface {
	Observe(ctx context.Context, productURL string) model.Observation
}

// Strategy is one source of stock information in the extraction chain
type Strategy interface {
	Name() string
	// Attempt returns whatever fields the source could determine. acc holds
	// what earlier strategies already found.
	Attempt(ctx context.Context, t *Target, acc model.Observation) (model.Observation, error)
}

// Gated strategies run only when Wants returns true
type Gated interface {
	Wants(t *Target, acc model.Observation) bool
}

// Target is the per-extraction context shared by the strategies of one chain run
type Target struct {
	URL    string
	Ref    ProductRef
	RefErr error // set when URL is not a storefront product URL

	// filled in by the variant strategy for later strategies
	VariantID int64
}

// Ensure Chain implements the interface
var _ Observer = (*Chain)(nil)
