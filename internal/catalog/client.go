// Package catalog fetches the product list from the storefront's REST catalog.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"time"

	"github.com/dukerupert/shoppy/internal/domain"
	"github.com/dukerupert/shoppy/internal/telemetry"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

// DefaultURL is the public Fake Store API product listing.
const DefaultURL = "https://fakestoreapi.com/products"

// Client reads products from a REST endpoint that returns a JSON array.
type Client struct {
	url        string
	httpClient *http.Client
	validate   *validator.Validate
	logger     *slog.Logger
	metrics    *telemetry.BusinessMetrics
}

// NewClient builds a catalog client. A zero timeout means 15 seconds.
// Outbound requests go through the Sentry transport so they show up as spans.
func NewClient(url string, timeout time.Duration, logger *slog.Logger, metrics *telemetry.BusinessMetrics) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if metrics == nil {
		metrics = telemetry.NewBusinessMetrics("", nil)
	}

	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: &telemetry.HTTPTransport{},
		},
		validate: newValidator(),
		logger:   logger.With("component", "catalog"),
		metrics:  metrics,
	}
}

// FetchProducts downloads and validates the full product list. Errors are
// *domain.Error values; use IsNetworkError, IsStatusError and IsDecodeError
// to tell them apart. All of them are safe to retry.
func (c *Client) FetchProducts(ctx context.Context) ([]domain.Product, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, domain.Internal(err, opFetch, "failed to create request")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.CatalogFetches.WithLabelValues(KindNetwork).Inc()
		c.logger.Warn("catalog unreachable", "url", c.url, "error", err)
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.metrics.CatalogFetches.WithLabelValues(KindStatus).Inc()
		c.logger.Warn("catalog returned error status", "url", c.url, "status", resp.StatusCode)
		return nil, statusError(resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		c.metrics.CatalogFetches.WithLabelValues(KindNetwork).Inc()
		return nil, networkError(fmt.Errorf("failed to read response: %w", err))
	}

	products, err := c.decode(body)
	if err != nil {
		c.metrics.CatalogFetches.WithLabelValues(KindDecode).Inc()
		c.logger.Warn("catalog response rejected", "url", c.url, "error", err)
		return nil, decodeError(err)
	}

	c.metrics.CatalogFetches.WithLabelValues("ok").Inc()
	c.logger.Debug("catalog fetched", "products", len(products), "duration", time.Since(start))
	return products, nil
}

func (c *Client) decode(body []byte) ([]domain.Product, error) {
	var products []domain.Product
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, fmt.Errorf("failed to parse products: %w", err)
	}
	if products == nil {
		return nil, fmt.Errorf("expected a product list")
	}

	for i := range products {
		if err := c.validate.Struct(products[i]); err != nil {
			return nil, fmt.Errorf("product at index %d: %w", i, err)
		}
	}
	return products, nil
}

// newValidator teaches the validator to compare decimal prices as numbers.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterCustomTypeFunc(func(field reflect.Value) interface{} {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			return d.InexactFloat64()
		}
		return nil
	}, decimal.Decimal{})
	return v
}
