package catalog

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dukerupert/shoppy/internal/domain"
	"github.com/dukerupert/shoppy/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCatalog = `[
	{"id":1,"title":"Backpack","price":109.95,"description":"Fits 15in laptops","category":"men's clothing","image":"https://example.com/1.jpg","rating":{"rate":3.9,"count":120}},
	{"id":2,"title":"T-Shirt","price":22.3,"description":"Slim fit","category":"men's clothing","image":"https://example.com/2.jpg"}
]`

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *telemetry.BusinessMetrics) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	metrics := telemetry.NewBusinessMetrics("test", nil)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewClient(srv.URL, time.Second, logger, metrics), metrics
}

func respond(status int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

func TestFetchProducts(t *testing.T) {
	client, metrics := newTestClient(t, respond(http.StatusOK, sampleCatalog))

	products, err := client.FetchProducts(context.Background())
	require.NoError(t, err)
	require.Len(t, products, 2)

	assert.Equal(t, 1, products[0].ID)
	assert.Equal(t, "Backpack", products[0].Title)
	assert.True(t, decimal.RequireFromString("109.95").Equal(products[0].Price))
	assert.Equal(t, "https://example.com/2.jpg", products[1].Image)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CatalogFetches.WithLabelValues("ok")))
}

func TestFetchProducts_SendsAcceptHeader(t *testing.T) {
	var accept string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		accept = r.Header.Get("Accept")
		_, _ = io.WriteString(w, "[]")
	})

	products, err := client.FetchProducts(context.Background())
	require.NoError(t, err)
	assert.Empty(t, products)
	assert.Equal(t, "application/json", accept)
}

func TestFetchProducts_StatusError(t *testing.T) {
	client, metrics := newTestClient(t, respond(http.StatusServiceUnavailable, `{"error":"down"}`))

	_, err := client.FetchProducts(context.Background())
	require.Error(t, err)

	assert.True(t, IsStatusError(err))
	assert.False(t, IsNetworkError(err))
	assert.False(t, IsDecodeError(err))
	assert.Equal(t, domain.EBADGATEWAY, domain.ErrorCode(err))

	code, ok := StatusCode(err)
	assert.True(t, ok)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, float64(1), testutil.ToFloat64(metrics.CatalogFetches.WithLabelValues(KindStatus)))
}

func TestFetchProducts_DecodeErrors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `<html>oops</html>`},
		{"object instead of list", `{"id":1}`},
		{"null", `null`},
		{"price is not a number", `[{"id":1,"title":"x","price":"cheap"}]`},
		{"missing title", `[{"id":1,"price":1}]`},
		{"zero id", `[{"id":0,"title":"x","price":1}]`},
		{"negative price", `[{"id":1,"title":"x","price":-0.01}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := newTestClient(t, respond(http.StatusOK, tt.body))

			_, err := client.FetchProducts(context.Background())
			require.Error(t, err)
			assert.True(t, IsDecodeError(err), "got %v", err)
			assert.Equal(t, domain.EBADGATEWAY, domain.ErrorCode(err))
		})
	}
}

func TestFetchProducts_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	client := NewClient(url, time.Second, slog.New(slog.NewTextHandler(io.Discard, nil)), nil)

	_, err := client.FetchProducts(context.Background())
	require.Error(t, err)
	assert.True(t, IsNetworkError(err))
	assert.Equal(t, domain.EUNAVAILABLE, domain.ErrorCode(err))
	_, ok := StatusCode(err)
	assert.False(t, ok)
}

func TestFetchProducts_ContextCanceled(t *testing.T) {
	client, _ := newTestClient(t, respond(http.StatusOK, sampleCatalog))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.FetchProducts(ctx)
	assert.True(t, IsNetworkError(err))
}

func TestValidatorAcceptsFreeProducts(t *testing.T) {
	v := newValidator()
	p := domain.Product{ID: 1, Title: "Sticker", Price: decimal.Zero}
	assert.NoError(t, v.Struct(p))
}
