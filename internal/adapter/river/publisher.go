package river

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/riverqueue/river"

	"github.com/dvidales/appliq/internal/domain"
)

// Compile-time check: Publisher implements domain.EventPublisher.
var _ domain.EventPublisher = (*Publisher)(nil)

// PropagationJobArgs carries a propagation request to a downstream service.
// River serializes this as JSON into its job queue table. The job snapshots
// the affected item ids at publish time, so the worker never re-reads the
// aggregate.
type PropagationJobArgs struct {
	Event         string   `json:"event"`
	ApplicationID string   `json:"application_id"`
	ActorID       string   `json:"actor_id"`
	Items         []string `json:"items"`
}

// Kind returns the unique job type identifier used by River's job routing.
func (PropagationJobArgs) Kind() string { return "propagation.requested" }

// Client is the River client type parameterized for SQLite (*sql.Tx).
type Client = river.Client[*sql.Tx]

// Publisher implements domain.EventPublisher by enqueuing River jobs. The
// queue is durable, so a propagation request survives a process restart;
// delivery remains best-effort from the caller's point of view.
type Publisher struct {
	client *Client
}

// NewPublisher creates a publisher backed by the given River client.
func NewPublisher(client *Client) *Publisher {
	return &Publisher{client: client}
}

// Publish enqueues a propagation request as an async job in River.
func (p *Publisher) Publish(ctx context.Context, event domain.Event, applicationID, actorID string, items []string) error {
	_, err := p.client.Insert(ctx, PropagationJobArgs{
		Event:         string(event),
		ApplicationID: applicationID,
		ActorID:       actorID,
		Items:         items,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueuing propagation job: %w", err)
	}
	return nil
}
