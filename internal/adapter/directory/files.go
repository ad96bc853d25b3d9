package directory

import (
	"context"
	"net/http"

	"github.com/dvidales/appliq/internal/domain"
)

// Compile-time check: FileClient implements domain.FileStore.
var _ domain.FileStore = (*FileClient)(nil)

// FileClient talks to the file service, which owns the authoritative file
// records that this service only references by id.
type FileClient struct {
	client
}

// NewFileClient creates a client for the file service at baseURL.
func NewFileClient(baseURL string, httpClient *http.Client) *FileClient {
	return &FileClient{client: newClient(baseURL, httpClient)}
}

// ExistsBatch answers which of the given file ids the file service knows.
// Ids absent from the result do not exist downstream.
func (c *FileClient) ExistsBatch(ctx context.Context, fileIDs []string) (map[string]bool, error) {
	if len(fileIDs) == 0 {
		return map[string]bool{}, nil
	}

	var out struct {
		Existing []string `json:"existing"`
	}
	payload := struct {
		FileIDs []string `json:"file_ids"`
	}{FileIDs: fileIDs}

	if err := c.postJSON(ctx, "/api/v1/files/exists", payload, &out); err != nil {
		return nil, err
	}

	confirmed := make(map[string]bool, len(out.Existing))
	for _, id := range out.Existing {
		confirmed[id] = true
	}
	return confirmed, nil
}

// AttachFiles tells the file service to link the files to the application.
// Called from the propagation worker, never from the request path.
func (c *FileClient) AttachFiles(ctx context.Context, applicationID string, fileIDs []string) error {
	payload := struct {
		ApplicationID string   `json:"application_id"`
		FileIDs       []string `json:"file_ids"`
	}{ApplicationID: applicationID, FileIDs: fileIDs}

	return c.postJSON(ctx, "/api/v1/files/attach", payload, nil)
}
