package directory

import "context"

// Dispatcher fans propagation requests out to the owning services. It is the
// downstream half of the river worker.
type Dispatcher struct {
	files *FileClient
	tags  *TagClient
}

// NewDispatcher creates a dispatcher over the file and tag clients.
func NewDispatcher(files *FileClient, tags *TagClient) *Dispatcher {
	return &Dispatcher{files: files, tags: tags}
}

func (d *Dispatcher) AttachFiles(ctx context.Context, applicationID string, fileIDs []string) error {
	return d.files.AttachFiles(ctx, applicationID, fileIDs)
}

func (d *Dispatcher) CreateTags(ctx context.Context, tags []string) error {
	return d.tags.CreateTags(ctx, tags)
}

func (d *Dispatcher) AttachTags(ctx context.Context, applicationID string, tags []string) error {
	return d.tags.AttachTags(ctx, applicationID, tags)
}
