package scraper

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"stock-watch/internal/model"

	"github.com/stretchr/testify/require"
)

func testClient() *Client {
	return NewClient(ClientOptions{Timeout: 5 * time.Second, RetryCount: 0})
}

func observe(t *testing.T, shop *fakeShop, path string) model.Observation {
	t.Helper()
	srv := shop.start()
	chain := NewDefaultChain(testClient(), nil, true, 999)
	obs := chain.Observe(context.Background(), srv.URL+path)
	require.True(t, shop.cartsEmpty(), "probe left items in a cart")
	return obs
}

func TestChainVariantInventory(t *testing.T) {
	shop := newFakeShop(t)
	shop.inventory[22] = model.IntPtr(7)

	obs := observe(t, shop, "/products/bar")
	require.Equal(t, 7, *obs.Quantity)
	require.True(t, *obs.InStock)
	require.Equal(t, "variant-json", obs.Source)
	require.Zero(t, shop.hit("/cart/add.js"))
	require.Zero(t, shop.hit("/products/bar"))
}

func TestChainNegativeInventoryClampsToZero(t *testing.T) {
	shop := newFakeShop(t)
	shop.inventory[22] = model.IntPtr(-4)

	obs := observe(t, shop, "/products/bar")
	require.Equal(t, 0, *obs.Quantity)
}

func TestChainLocalePrefix(t *testing.T) {
	shop := newFakeShop(t)
	shop.inventory[22] = model.IntPtr(2)

	obs := observe(t, shop, "/en-us/products/bar")
	require.Equal(t, 2, *obs.Quantity)
	require.Equal(t, 1, shop.hit("/en-us/products/bar.js"))
}

func TestChainCartProbeClamped(t *testing.T) {
	shop := newFakeShop(t)
	shop.hideInventory = true
	shop.stock[22] = 4

	obs := observe(t, shop, "/products/bar")
	require.Equal(t, 4, *obs.Quantity)
	require.True(t, *obs.InStock)
	require.Equal(t, "variant-json+cart-probe", obs.Source)
}

func TestChainCartProbeStrictAdd(t *testing.T) {
	shop := newFakeShop(t)
	shop.hideInventory = true
	shop.strictAdd = true
	shop.stock[22] = 6

	obs := observe(t, shop, "/products/bar")
	require.Equal(t, 6, *obs.Quantity)
	require.Equal(t, 1, shop.hit("/cart/change.js"))
}

func TestChainCartProbeCeilingMeansUnknownQuantity(t *testing.T) {
	shop := newFakeShop(t)
	shop.hideInventory = true

	obs := observe(t, shop, "/products/bar")
	require.Nil(t, obs.Quantity)
	require.True(t, *obs.InStock)
	// availability is known, so the page is not consulted
	require.Zero(t, shop.hit("/products/bar"))
}

func TestChainCartProbeMalformedCart(t *testing.T) {
	shop := newFakeShop(t)
	shop.hideInventory = true
	shop.stock[22] = 3
	shop.cartBody = "<html>not json</html>"

	obs := observe(t, shop, "/products/bar")
	require.Nil(t, obs.Quantity)
	require.True(t, *obs.InStock)
	require.Equal(t, "variant-json", obs.Source)
	require.Equal(t, 1, shop.hit("/cart/add.js"))
}

func TestChainCartProbeAddRejected(t *testing.T) {
	shop := newFakeShop(t)
	shop.hideInventory = true
	shop.fail["/cart/add.js"] = http.StatusBadRequest

	obs := observe(t, shop, "/products/bar")
	require.Nil(t, obs.Quantity)
	require.True(t, *obs.InStock)
	// cleared before and after the attempt
	require.Equal(t, 2, shop.hit("/cart/clear.js"))
}

func TestChainCartProbeCancelledMidProbeStillClears(t *testing.T) {
	shop := newFakeShop(t)
	shop.hideInventory = true
	shop.stock[22] = 4

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	shop.afterAdd = cancel

	srv := shop.start()
	chain := NewDefaultChain(testClient(), nil, true, 999)
	obs := chain.Observe(ctx, srv.URL+"/products/bar")

	require.Nil(t, obs.Quantity)
	require.Equal(t, 1, shop.hit("/cart/add.js"))
	require.Equal(t, 2, shop.hit("/cart/clear.js"))
	require.True(t, shop.cartsEmpty(), "cancelled probe left items in a cart")
}

func TestChainSkipsCartProbeWhenSoldOut(t *testing.T) {
	shop := newFakeShop(t)
	shop.hideInventory = true
	shop.variants = []variantJS{{ID: 11}, {ID: 22}}

	obs := observe(t, shop, "/products/bar")
	require.Nil(t, obs.Quantity)
	require.False(t, *obs.InStock)
	require.Zero(t, shop.hit("/cart/clear.js"))
}

func TestChainPageTextFallback(t *testing.T) {
	shop := newFakeShop(t)
	shop.fail["/products/bar.js"] = http.StatusInternalServerError
	shop.page = `<html><body><p>Hurry! Only <span>2</span> left</p></body></html>`

	obs := observe(t, shop, "/products/bar")
	require.Equal(t, 2, *obs.Quantity)
	require.True(t, *obs.InStock)
	require.Equal(t, "page-text", obs.Source)
}

func TestChainAllStrategiesFail(t *testing.T) {
	shop := newFakeShop(t)
	shop.fail["/products/bar.js"] = http.StatusInternalServerError
	shop.fail["/products/bar"] = http.StatusServiceUnavailable

	obs := observe(t, shop, "/products/bar")
	require.False(t, obs.Known())
	require.Empty(t, obs.Source)
}

type panicStrategy struct{}

func (panicStrategy) Name() string { return "panics" }
func (panicStrategy) Attempt(context.Context, *Target, model.Observation) (model.Observation, error) {
	panic("boom")
}

type stubStrategy struct {
	name string
	obs  model.Observation
	err  error
	runs int
}

func (s *stubStrategy) Name() string { return s.name }
func (s *stubStrategy) Attempt(context.Context, *Target, model.Observation) (model.Observation, error) {
	s.runs++
	return s.obs, s.err
}

func TestChainMergesPartialResults(t *testing.T) {
	first := &stubStrategy{name: "a", obs: model.Observation{InStock: model.BoolPtr(true)}, err: errors.New("partial")}
	second := &stubStrategy{name: "b", obs: model.Observation{Quantity: model.IntPtr(5), InStock: model.BoolPtr(false)}}
	third := &stubStrategy{name: "c", obs: model.Observation{Quantity: model.IntPtr(9)}}

	chain := NewChain(nil, panicStrategy{}, first, second, third)
	obs := chain.Observe(context.Background(), "https://shop.test/products/bar")

	require.Equal(t, 5, *obs.Quantity)
	// earlier availability is kept, quantity normalisation then forces in stock
	require.True(t, *obs.InStock)
	require.Equal(t, "a+b", obs.Source)
	require.Zero(t, third.runs)
}
