package river

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/riverqueue/river"

	"github.com/dvidales/appliq/internal/domain"
)

// Dispatcher forwards a propagation request to the downstream service that
// owns the data. Implementations live in the directory adapter.
type Dispatcher interface {
	AttachFiles(ctx context.Context, applicationID string, fileIDs []string) error
	CreateTags(ctx context.Context, tags []string) error
	AttachTags(ctx context.Context, applicationID string, tags []string) error
}

// PropagationWorker processes propagation jobs from the River queue, routing
// each to the downstream call it stands for. Returning an error lets River
// retry with backoff, which is how at-least-once delivery happens.
type PropagationWorker struct {
	river.WorkerDefaults[PropagationJobArgs]

	dispatcher Dispatcher
}

// NewPropagationWorker creates a worker dispatching to the given downstream
// clients.
func NewPropagationWorker(dispatcher Dispatcher) *PropagationWorker {
	return &PropagationWorker{dispatcher: dispatcher}
}

// Work processes a single propagation job.
func (w *PropagationWorker) Work(ctx context.Context, job *river.Job[PropagationJobArgs]) error {
	slog.InfoContext(ctx, "processing propagation",
		"event", job.Args.Event,
		"application_id", job.Args.ApplicationID,
		"items", len(job.Args.Items),
		"job_id", job.ID,
		"attempt", job.Attempt,
	)

	switch domain.Event(job.Args.Event) {
	case domain.EventFileAttachRequested:
		return w.dispatcher.AttachFiles(ctx, job.Args.ApplicationID, job.Args.Items)
	case domain.EventTagCreateRequested:
		// Tag creation implies attachment to the requesting application.
		if err := w.dispatcher.CreateTags(ctx, job.Args.Items); err != nil {
			return err
		}
		return w.dispatcher.AttachTags(ctx, job.Args.ApplicationID, job.Args.Items)
	case domain.EventTagAttachRequested:
		return w.dispatcher.AttachTags(ctx, job.Args.ApplicationID, job.Args.Items)
	default:
		return fmt.Errorf("unknown propagation event %q", job.Args.Event)
	}
}
