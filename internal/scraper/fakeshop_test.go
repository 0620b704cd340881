package scraper

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// fakeShop is an in-memory storefront with per-cookie carts
type fakeShop struct {
	t *testing.T

	mu       sync.Mutex
	variants []variantJS
	// inventory per variant; nil means not tracked
	inventory map[int64]*int
	// stock limit enforced by the cart; 0 means unlimited
	stock map[int64]int
	// reject over-stock adds with 422 instead of clamping
	strictAdd bool
	// omit inventory_quantity from variant documents
	hideInventory bool
	// status codes forced per path
	fail map[string]int
	// serve this body for cart.js
	cartBody string
	page     string
	// called after add.js updated the cart
	afterAdd func()

	carts  map[string]map[int64]int
	nextID int
	hits   map[string]int
}

func newFakeShop(t *testing.T) *fakeShop {
	return &fakeShop{
		t:         t,
		variants:  []variantJS{{ID: 11, Available: false}, {ID: 22, Available: true}},
		inventory: map[int64]*int{},
		stock:     map[int64]int{},
		fail:      map[string]int{},
		carts:     map[string]map[int64]int{},
		hits:      map[string]int{},
	}
}

func (s *fakeShop) start() *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(s.serve))
	s.t.Cleanup(srv.Close)
	return srv
}

func (s *fakeShop) session(w http.ResponseWriter, r *http.Request) map[int64]int {
	if c, err := r.Cookie("cart"); err == nil {
		if lines, ok := s.carts[c.Value]; ok {
			return lines
		}
	}
	s.nextID++
	id := fmt.Sprintf("c%d", s.nextID)
	s.carts[id] = map[int64]int{}
	http.SetCookie(w, &http.Cookie{Name: "cart", Value: id, Path: "/"})
	return s.carts[id]
}

func (s *fakeShop) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	path := r.URL.Path
	s.hits[path]++
	if code, ok := s.fail[path]; ok {
		w.WriteHeader(code)
		io.WriteString(w, `{"status":"error"}`)
		return
	}
	r.ParseForm()

	switch {
	case strings.HasSuffix(path, "/products/bar.js"):
		writeJSON(w, productJS{ID: 1, Handle: "bar", Variants: s.variants})

	case strings.Contains(path, "/variants/"):
		idStr := strings.TrimSuffix(path[strings.LastIndex(path, "/")+1:], ".json")
		id, _ := strconv.ParseInt(idStr, 10, 64)
		v := map[string]any{"id": id, "available": s.available(id)}
		if q := s.inventory[id]; q != nil && !s.hideInventory {
			v["inventory_quantity"] = *q
		}
		writeJSON(w, map[string]any{"variant": v})

	case strings.HasSuffix(path, "/cart/clear.js"):
		lines := s.session(w, r)
		for k := range lines {
			delete(lines, k)
		}
		writeJSON(w, map[string]any{"items": []any{}})

	case strings.HasSuffix(path, "/cart/add.js"):
		lines := s.session(w, r)
		id, _ := strconv.ParseInt(r.PostForm.Get("id"), 10, 64)
		q, _ := strconv.Atoi(r.PostForm.Get("quantity"))
		want := lines[id] + q
		if limit := s.stock[id]; limit > 0 && want > limit {
			if s.strictAdd {
				w.WriteHeader(http.StatusUnprocessableEntity)
				io.WriteString(w, `{"status":422,"description":"not enough stock"}`)
				return
			}
			want = limit
		}
		lines[id] = want
		if s.afterAdd != nil {
			s.afterAdd()
		}
		writeJSON(w, map[string]any{"id": id, "quantity": want})

	case strings.HasSuffix(path, "/cart/change.js"):
		lines := s.session(w, r)
		key := r.PostForm.Get("id")
		id, _ := strconv.ParseInt(strings.TrimPrefix(key, "line-"), 10, 64)
		q, _ := strconv.Atoi(r.PostForm.Get("quantity"))
		if limit := s.stock[id]; limit > 0 && q > limit {
			q = limit
		}
		if _, ok := lines[id]; ok {
			lines[id] = q
		}
		writeJSON(w, map[string]any{"ok": true})

	case strings.HasSuffix(path, "/cart.js"):
		lines := s.session(w, r)
		if s.cartBody != "" {
			io.WriteString(w, s.cartBody)
			return
		}
		items := []cartItem{}
		for id, q := range lines {
			if q > 0 {
				items = append(items, cartItem{ID: id, VariantID: id, Key: fmt.Sprintf("line-%d", id), Quantity: q})
			}
		}
		writeJSON(w, cart{Items: items})

	case strings.HasSuffix(path, "/products/bar"):
		w.Header().Set("content-type", "text/html")
		io.WriteString(w, s.page)

	default:
		http.NotFound(w, r)
	}
}

func (s *fakeShop) available(id int64) bool {
	for _, v := range s.variants {
		if v.ID == id {
			return v.Available
		}
	}
	return false
}

// cartsEmpty reports whether every session cart is empty
func (s *fakeShop) cartsEmpty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, lines := range s.carts {
		for _, q := range lines {
			if q > 0 {
				return false
			}
		}
	}
	return true
}

func (s *fakeShop) hit(suffix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for p, c := range s.hits {
		if strings.HasSuffix(p, suffix) {
			n += c
		}
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("content-type", "application/json")
	json.NewEncoder(w).Encode(v)
}
