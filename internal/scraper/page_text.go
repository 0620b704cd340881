package scraper

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"stock-watch/internal/model"
)

var scarcityPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bhurry\b[^0-9]{0,20}(\d+)\s*(?:left|remain)`),
	regexp.MustCompile(`(?i)\bonly\s*(\d+)\s*(?:items?\s*|units?\s*|pieces?\s*)?(?:left|remaining)\b`),
}

var unavailablePhrases = []string{
	"sold out",
	"out of stock",
	"currently unavailable",
}

// PageText scans the rendered product page for scarcity or sold out wording.
// It is the least reliable source and runs only when nothing else answered.
type PageText struct {
	client *Client
}

// NewPageText creates the page text strategy
func NewPageText(client *Client) *PageText {
	return &PageText{client: client}
}

func (s *PageText) Name() string { return "page-text" }

// Wants runs only when earlier strategies produced no signal at all
func (s *PageText) Wants(_ *Target, acc model.Observation) bool {
	return !acc.Known()
}

func (s *PageText) Attempt(ctx context.Context, t *Target, _ model.Observation) (model.Observation, error) {
	pageURL := t.URL
	if t.RefErr == nil {
		pageURL = t.Ref.PageURL()
	}

	res, err := s.client.Get(ctx, pageURL, map[string]string{
		"accept": "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8",
	})
	if err != nil {
		return model.Observation{}, err
	}
	if !res.OK() {
		return model.Observation{}, fmt.Errorf("unexpected status code: %d", res.StatusCode)
	}

	return ParsePageText(ExtractText(string(res.Body)))
}

// ParsePageText reads a stock signal from visible page text
func ParsePageText(text string) (model.Observation, error) {
	for _, re := range scarcityPatterns {
		m := re.FindStringSubmatch(text)
		if len(m) < 2 {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		return model.Observation{Quantity: model.IntPtr(n), InStock: model.BoolPtr(n > 0)}, nil
	}

	lower := strings.ToLower(text)
	for _, phrase := range unavailablePhrases {
		if strings.Contains(lower, phrase) {
			return model.Observation{InStock: model.BoolPtr(false)}, nil
		}
	}
	return model.Observation{}, ErrNoSignal
}
