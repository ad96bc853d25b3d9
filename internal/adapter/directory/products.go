package directory

import (
	"context"
	"net/http"

	"github.com/dvidales/appliq/internal/domain"
)

// Compile-time check: ProductClient implements domain.ProductCatalog.
var _ domain.ProductCatalog = (*ProductClient)(nil)

// ProductClient asks the product service whether a product exists.
type ProductClient struct {
	client
}

// NewProductClient creates a client for the product service at baseURL.
func NewProductClient(baseURL string, httpClient *http.Client) *ProductClient {
	return &ProductClient{client: newClient(baseURL, httpClient)}
}

// Exists reports whether the product is known, with the same tri-state
// contract as UserClient.Exists.
func (c *ProductClient) Exists(ctx context.Context, productID string) (bool, error) {
	return c.exists(ctx, "/api/v1/products/"+productID)
}
