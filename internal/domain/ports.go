package domain

import (
	"context"
	"time"
)

// ApplicationRepository defines the persistence contract for the application
// aggregate. Create and UpdateStatus take the matching history record so the
// row write and its audit entry land in one transaction. Mutating writes are
// compare-and-swap on the aggregate's version counter and return
// VersionConflictError when the row has moved on.
type ApplicationRepository interface {
	Create(ctx context.Context, app Application, seed HistoryRecord) error
	GetByID(ctx context.Context, id string) (Application, error)
	UpdateStatus(ctx context.Context, app Application, record HistoryRecord) error
	ReplaceTags(ctx context.Context, app Application) error
	ReplaceFiles(ctx context.Context, app Application) error

	// Keyset pagination primitives, ordered by (created_at DESC, id DESC).
	// Returned aggregates carry no tag/file references; use LoadRefs.
	FirstPage(ctx context.Context, limit int) ([]Application, error)
	PageAfter(ctx context.Context, createdAt time.Time, id string, limit int) ([]Application, error)
	LoadRefs(ctx context.Context, ids []string) (map[string]Refs, error)

	// Cascade deletion. DeleteCascade removes, per application and in this
	// order: file refs, history, tag refs, the row itself. The whole batch
	// is one atomic unit.
	FindIDsByApplicant(ctx context.Context, applicantID string) ([]string, error)
	FindIDsByProduct(ctx context.Context, productID string) ([]string, error)
	DeleteCascade(ctx context.Context, ids []string) error
}

// Refs is the batch projection of an application's reference sets.
type Refs struct {
	Tags  []string
	Files []string
}

// HistoryStore reads the append-only audit log. Appending happens inside
// ApplicationRepository.Create/UpdateStatus so a status write and its record
// cannot diverge.
type HistoryStore interface {
	ListByApplication(ctx context.Context, applicationID string) ([]HistoryRecord, error)
}

// Event identifies a fire-and-forget propagation request to a downstream
// service.
type Event string

const (
	EventFileAttachRequested Event = "file.attach_requested"
	EventTagAttachRequested  Event = "tag.attach_requested"
	EventTagCreateRequested  Event = "tag.create_requested"
)

// EventPublisher defines the contract for emitting propagation events.
// Publication is best-effort: callers log failures and never let them fail
// the surrounding operation.
type EventPublisher interface {
	Publish(ctx context.Context, event Event, applicationID, actorID string, items []string) error
}

// UserDirectory answers applicant existence. A non-nil error means the
// directory was unavailable, which is distinct from "does not exist".
type UserDirectory interface {
	Exists(ctx context.Context, userID string) (bool, error)
}

// ProductCatalog answers product existence with the same tri-state contract
// as UserDirectory.
type ProductCatalog interface {
	Exists(ctx context.Context, productID string) (bool, error)
}

// FileStore answers batched file existence. The result maps each confirmed
// id to true; ids absent from the map do not exist downstream.
type FileStore interface {
	ExistsBatch(ctx context.Context, fileIDs []string) (map[string]bool, error)
}

// StatusMachine resolves a raw status-change request against the lifecycle.
// It returns the destination status and whether the change is a real
// transition (false means same-status no-op). An unrecognized value yields a
// ConflictError listing the valid statuses.
type StatusMachine interface {
	Apply(ctx context.Context, current Status, raw string) (Status, bool, error)
}
