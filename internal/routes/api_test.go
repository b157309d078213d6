package routes

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dukerupert/shoppy/internal/cart"
	"github.com/dukerupert/shoppy/internal/catalog"
	"github.com/dukerupert/shoppy/internal/domain"
	"github.com/dukerupert/shoppy/internal/handler/api"
	"github.com/dukerupert/shoppy/internal/ordercount"
	"github.com/dukerupert/shoppy/internal/router"
	"github.com/dukerupert/shoppy/internal/storage"
	"github.com/dukerupert/shoppy/internal/telemetry"
	"github.com/dukerupert/shoppy/internal/worker"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubFetcher struct {
	products []domain.Product
	err      error
}

func (s *stubFetcher) FetchProducts(ctx context.Context) ([]domain.Product, error) {
	return s.products, s.err
}

type testServer struct {
	router  *router.Router
	fetcher *stubFetcher
	store   *ordercount.MemoryStore
	counts  *ordercount.Client
	slot    *storage.MemoryStorage
}

func newTestServer(t *testing.T, opts ...func(*APIDeps)) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := telemetry.NewBusinessMetrics("test", nil)

	ts := &testServer{
		fetcher: &stubFetcher{products: []domain.Product{
			{ID: 1, Title: "Backpack", Price: decimal.RequireFromString("10.00")},
			{ID: 2, Title: "T-Shirt", Price: decimal.RequireFromString("22.30")},
		}},
		store: ordercount.NewMemoryStore(),
		slot:  storage.NewMemoryStorage(),
	}
	ts.counts = ordercount.NewClient(ts.store, worker.Config{}, logger, metrics)
	t.Cleanup(func() { _ = ts.counts.Close(context.Background()) })

	cache := catalog.NewCache(ts.fetcher)
	engine := cart.New(context.Background(), ts.slot, ts.counts, logger, cart.WithMetrics(metrics))

	ts.router = router.New()
	deps := APIDeps{
		ProductHandler:    api.NewProductHandler(cache, logger),
		CartHandler:       api.NewCartHandler(engine, cache, logger),
		OrderCountHandler: api.NewOrderCountHandler(ts.counts, 10*time.Millisecond, logger),
		HealthHandler:     api.NewHealthHandler(),
	}
	for _, opt := range opts {
		opt(&deps)
	}
	RegisterAPIRoutes(ts.router, deps)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, httptest.NewRequest(method, path, reader))

	var decoded map[string]interface{}
	if strings.HasPrefix(strings.TrimSpace(rec.Body.String()), "{") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

func TestAPI_Health(t *testing.T) {
	ts := newTestServer(t)
	rec, body := ts.do(t, http.MethodGet, "/health", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", body["status"])
}

func TestAPI_Products(t *testing.T) {
	ts := newTestServer(t)

	rec, _ := ts.do(t, http.MethodGet, "/products", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[
		{"id":1,"title":"Backpack","price":10,"description":"","category":"","image":""},
		{"id":2,"title":"T-Shirt","price":22.3,"description":"","category":"","image":""}
	]`, rec.Body.String())

	rec, body := ts.do(t, http.MethodGet, "/products/2", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "T-Shirt", body["title"])

	rec, body = ts.do(t, http.MethodGet, "/products/99", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.ENOTFOUND, body["error"])

	rec, body = ts.do(t, http.MethodGet, "/products/abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.EINVALID, body["error"])
}

func TestAPI_ProductsCatalogFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.fetcher.err = &domain.Error{Code: domain.EUNAVAILABLE, Kind: catalog.KindNetwork, Message: "Could not reach the product catalog."}

	rec, body := ts.do(t, http.MethodGet, "/products", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, domain.EUNAVAILABLE, body["error"])
	assert.Equal(t, "Could not reach the product catalog.", body["message"])
}

func TestAPI_CartFlow(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodPost, "/cart/items/1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["item_count"])

	_, body = ts.do(t, http.MethodPost, "/cart/items/1", "")
	assert.Equal(t, float64(20), body["subtotal"])

	rec, body = ts.do(t, http.MethodPost, "/cart/items/404", "")
	assert.Equal(t, http.StatusNotFound, rec.Code, "unknown products cannot be added")

	_, body = ts.do(t, http.MethodPost, "/cart/coupon", `{"code":"summer2024"}`)
	assert.Equal(t, "20% discount applied!", body["coupon_message"])
	assert.Equal(t, float64(16), body["total"])
	assert.Equal(t, float64(4), body["discount"])

	rec, body = ts.do(t, http.MethodPost, "/cart/checkout", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(16), body["total"])
	assert.NotEmpty(t, body["checkout_id"])

	_, body = ts.do(t, http.MethodGet, "/cart", "")
	assert.Equal(t, float64(0), body["item_count"])
	assert.Equal(t, "", body["coupon_code"])

	require.NoError(t, ts.counts.Close(context.Background()))
	assert.Equal(t, map[int]int64{1: 2}, ts.store.Snapshot())

	saved, ok := ts.slot.Bytes(domain.SavedCartKey)
	require.True(t, ok)
	assert.JSONEq(t, `[]`, string(saved))
}

func TestAPI_RemoveItem(t *testing.T) {
	ts := newTestServer(t)

	ts.do(t, http.MethodPost, "/cart/items/2", "")
	rec, body := ts.do(t, http.MethodDelete, "/cart/items/2", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(0), body["item_count"])

	rec, body = ts.do(t, http.MethodDelete, "/cart/items/2", "")
	assert.Equal(t, http.StatusOK, rec.Code, "removing an absent product is a no-op")
	assert.Equal(t, float64(0), body["item_count"])
}

func TestAPI_CouponRejections(t *testing.T) {
	ts := newTestServer(t)

	rec, body := ts.do(t, http.MethodPost, "/cart/coupon", `{"code":"WINTER"}`)
	assert.Equal(t, http.StatusOK, rec.Code, "a wrong code is not an error")
	assert.Equal(t, "Invalid coupon code.", body["coupon_message"])

	rec, body = ts.do(t, http.MethodPost, "/cart/coupon", `not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.EINVALID, body["error"])

	rec, _ = ts.do(t, http.MethodPost, "/cart/coupon", `{"code":"`+strings.Repeat("x", 2048)+`"}`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestAPI_OrderCount(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.store.Increment(context.Background(), 1, 3)
	require.NoError(t, err)

	rec, body := ts.do(t, http.MethodGet, "/products/1/order-count", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(3), body["order_count"])

	_, body = ts.do(t, http.MethodGet, "/products/2/order-count", "")
	assert.Equal(t, float64(0), body["order_count"])
}

func TestAPI_OrderCountStream(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/products/1/order-count/stream", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	lines := bufio.NewScanner(resp.Body)
	nextData := func() string {
		for lines.Scan() {
			if data, ok := strings.CutPrefix(lines.Text(), "data: "); ok {
				return data
			}
		}
		t.Fatalf("stream ended: %v", lines.Err())
		return ""
	}

	assert.JSONEq(t, `{"product_id":1,"order_count":0}`, nextData())

	_, err = ts.store.Increment(context.Background(), 1, 2)
	require.NoError(t, err)
	assert.JSONEq(t, `{"product_id":1,"order_count":2}`, nextData())
}

func TestAPI_CartLimiterGuardsMutationsOnly(t *testing.T) {
	var guarded []string
	ts := newTestServer(t, func(d *APIDeps) {
		d.CartLimiter = func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				guarded = append(guarded, r.Pattern)
				w.WriteHeader(http.StatusTooManyRequests)
			})
		}
	})

	rec, _ := ts.do(t, http.MethodGet, "/cart", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	rec, _ = ts.do(t, http.MethodGet, "/products", "")
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, req := range []struct{ method, path string }{
		{http.MethodPost, "/cart/items/1"},
		{http.MethodDelete, "/cart/items/1"},
		{http.MethodPost, "/cart/coupon"},
		{http.MethodPost, "/cart/checkout"},
	} {
		rec, _ := ts.do(t, req.method, req.path, "")
		assert.Equal(t, http.StatusTooManyRequests, rec.Code, req.path)
	}

	assert.Equal(t, []string{
		"POST /cart/items/{id}",
		"DELETE /cart/items/{id}",
		"POST /cart/coupon",
		"POST /cart/checkout",
	}, guarded)
}
