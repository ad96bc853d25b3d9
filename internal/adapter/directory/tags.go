package directory

import (
	"context"
	"net/http"
)

// TagClient talks to the tag service. Tag names attached locally are
// authoritative here; these calls mirror them downstream.
type TagClient struct {
	client
}

// NewTagClient creates a client for the tag service at baseURL.
func NewTagClient(baseURL string, httpClient *http.Client) *TagClient {
	return &TagClient{client: newClient(baseURL, httpClient)}
}

// CreateTags registers tag names with the tag service. Creating an existing
// tag is a no-op downstream, so retries are safe.
func (c *TagClient) CreateTags(ctx context.Context, tags []string) error {
	payload := struct {
		Names []string `json:"names"`
	}{Names: tags}

	return c.postJSON(ctx, "/api/v1/tags", payload, nil)
}

// AttachTags tells the tag service to link the tags to the application.
func (c *TagClient) AttachTags(ctx context.Context, applicationID string, tags []string) error {
	payload := struct {
		ApplicationID string   `json:"application_id"`
		Tags          []string `json:"tags"`
	}{ApplicationID: applicationID, Tags: tags}

	return c.postJSON(ctx, "/api/v1/tags/attach", payload, nil)
}
