package directory

import (
	"context"
	"net/http"

	"github.com/dvidales/appliq/internal/domain"
)

// Compile-time check: UserClient implements domain.UserDirectory.
var _ domain.UserDirectory = (*UserClient)(nil)

// UserClient asks the user service whether an applicant exists.
type UserClient struct {
	client
}

// NewUserClient creates a client for the user service at baseURL. Pass a nil
// httpClient to use a default with a 5s timeout.
func NewUserClient(baseURL string, httpClient *http.Client) *UserClient {
	return &UserClient{client: newClient(baseURL, httpClient)}
}

// Exists reports whether the user is known. A non-nil error means the
// directory could not answer, not that the user is absent.
func (c *UserClient) Exists(ctx context.Context, userID string) (bool, error) {
	return c.exists(ctx, "/api/v1/users/"+userID)
}
