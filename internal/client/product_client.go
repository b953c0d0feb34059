package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"product-service/internal/apperr"
	"product-service/internal/model"
	"product-service/internal/version"
)

// ProductClient talks to a running product service.
type ProductClient struct {
	http *HTTPClient
}

func NewProductClient(baseURL string, timeout time.Duration) *ProductClient {
	c := NewHTTPClient(baseURL, timeout)
	c.SetDefaultHeader("User-Agent", "product-client/"+version.Version)
	return &ProductClient{http: c}
}

func (c *ProductClient) List(ctx context.Context) ([]model.Product, error) {
	var products []model.Product
	if err := c.http.Get(ctx, "/products", &products); err != nil {
		return nil, mapStatus(err)
	}
	return products, nil
}

func (c *ProductClient) Get(ctx context.Context, id int64) (model.Product, error) {
	var product model.Product
	if err := c.http.Get(ctx, fmt.Sprintf("/products/%d", id), &product); err != nil {
		return model.Product{}, mapStatus(err)
	}
	return product, nil
}

func (c *ProductClient) Create(ctx context.Context, p model.NewProduct) (model.Product, error) {
	var product model.Product
	if err := c.http.Post(ctx, "/products", p, &product); err != nil {
		return model.Product{}, mapStatus(err)
	}
	return product, nil
}

// Health reports whether the service answers its liveness probe.
func (c *ProductClient) Health(ctx context.Context) error {
	return mapStatus(c.http.Get(ctx, "/health", nil))
}

// mapStatus turns the service's error statuses back into the sentinels the service used,
// so callers can branch with errors.Is on either side of the wire.
func mapStatus(err error) error {
	var statusErr *StatusError
	if !errors.As(err, &statusErr) {
		return err
	}
	var sentinel error
	switch statusErr.StatusCode {
	case http.StatusNotFound:
		sentinel = apperr.ErrNotFound
	case http.StatusUnprocessableEntity:
		sentinel = apperr.ErrValidation
		if statusErr.Code == "constraint_violation" {
			sentinel = apperr.ErrConstraint
		}
	case http.StatusServiceUnavailable:
		switch statusErr.Code {
		case "pool_closed":
			sentinel = apperr.ErrPoolClosed
		case "pool_exhausted":
			sentinel = apperr.ErrPoolExhausted
		default:
			sentinel = apperr.ErrBackendUnavailable
		}
	default:
		if statusErr.StatusCode >= 500 {
			sentinel = apperr.ErrBackend
		}
	}
	if sentinel == nil {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}
