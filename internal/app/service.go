package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dvidales/appliq/internal/domain"
)

// maxPageSize caps the page size for stream reads.
const maxPageSize = 50

// Oracle bundles the downstream existence checkers the engine consults.
type Oracle struct {
	Users    domain.UserDirectory
	Products domain.ProductCatalog
	Files    domain.FileStore
}

// Page is one keyset page of applications. An empty NextCursor marks the
// terminal page.
type Page struct {
	Items      []domain.Application
	NextCursor string
}

// ApplicationService orchestrates the application lifecycle: creation,
// reads, tag/file attachment, status changes, and cascading deletion.
type ApplicationService struct {
	repo      domain.ApplicationRepository
	history   domain.HistoryStore
	machine   domain.StatusMachine
	publisher domain.EventPublisher
	oracle    Oracle
	log       *slog.Logger
}

// NewApplicationService creates a service with the given adapters.
func NewApplicationService(
	repo domain.ApplicationRepository,
	history domain.HistoryStore,
	machine domain.StatusMachine,
	publisher domain.EventPublisher,
	oracle Oracle,
	log *slog.Logger,
) *ApplicationService {
	if log == nil {
		log = slog.Default()
	}
	return &ApplicationService{
		repo:      repo,
		history:   history,
		machine:   machine,
		publisher: publisher,
		oracle:    oracle,
		log:       log,
	}
}

// Create validates the applicant and product against the downstream
// services, persists a new SUBMITTED application with its seed history
// record, and emits best-effort propagation events.
func (s *ApplicationService) Create(ctx context.Context, actor domain.Actor, applicantID, productID string, files, tags []string) (domain.Application, error) {
	if applicantID == "" {
		return domain.Application{}, &domain.BadRequestError{Reason: "applicantId is required"}
	}
	if productID == "" {
		return domain.Application{}, &domain.BadRequestError{Reason: "productId is required"}
	}
	if err := canCreate(actor, applicantID); err != nil {
		return domain.Application{}, err
	}

	// Existence checks run sequentially so failures name the exact upstream.
	ok, err := s.oracle.Users.Exists(ctx, applicantID)
	if err != nil {
		return domain.Application{}, &domain.UnavailableError{Service: "users", Cause: err}
	}
	if !ok {
		return domain.Application{}, &domain.NotFoundError{Kind: "applicant", ID: applicantID}
	}

	ok, err = s.oracle.Products.Exists(ctx, productID)
	if err != nil {
		return domain.Application{}, &domain.UnavailableError{Service: "products", Cause: err}
	}
	if !ok {
		return domain.Application{}, &domain.NotFoundError{Kind: "product", ID: productID}
	}

	app := domain.NewApplication(newID(), applicantID, productID, files, tags)
	seed := domain.HistoryRecord{
		ID:            newID(),
		ApplicationID: app.ID,
		NewStatus:     app.Status,
		ChangedByRole: actor.Role,
		ChangedAt:     app.CreatedAt,
	}

	if err := s.repo.Create(ctx, app, seed); err != nil {
		return domain.Application{}, fmt.Errorf("creating application: %w", err)
	}

	s.publish(ctx, domain.EventFileAttachRequested, app.ID, actor.ID, app.Files)
	if len(app.Tags) > 0 {
		s.publish(ctx, domain.EventTagCreateRequested, app.ID, actor.ID, app.Tags)
	}

	return app, nil
}

// Get returns a single application with its reference sets materialized.
func (s *ApplicationService) Get(ctx context.Context, actor domain.Actor, id string) (domain.Application, error) {
	app, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Application{}, err
	}
	if err := canAccess(actor, app.ApplicantID); err != nil {
		return domain.Application{}, err
	}
	return app, nil
}

// ListPage returns one keyset page ordered by (createdAt DESC, id DESC).
// File references are reconciled against the file service, failing open.
func (s *ApplicationService) ListPage(ctx context.Context, actor domain.Actor, limit int, cursor string) (Page, error) {
	if err := requireActor(actor); err != nil {
		return Page{}, err
	}
	if limit <= 0 {
		return Page{}, &domain.BadRequestError{Reason: "limit must be positive"}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	var (
		apps []domain.Application
		err  error
	)
	if cursor == "" {
		apps, err = s.repo.FirstPage(ctx, limit)
	} else {
		var createdAt time.Time
		var id string
		createdAt, id, err = decodeCursor(cursor)
		if err != nil {
			return Page{}, err
		}
		apps, err = s.repo.PageAfter(ctx, createdAt, id, limit)
	}
	if err != nil {
		return Page{}, fmt.Errorf("fetching page: %w", err)
	}

	if len(apps) == 0 {
		return Page{Items: []domain.Application{}}, nil
	}

	ids := make([]string, len(apps))
	for i, app := range apps {
		ids[i] = app.ID
	}
	refs, err := s.repo.LoadRefs(ctx, ids)
	if err != nil {
		return Page{}, fmt.Errorf("loading references: %w", err)
	}
	for i := range apps {
		r := refs[apps[i].ID]
		apps[i].Tags = r.Tags
		apps[i].Files = r.Files
	}

	s.reconcileFiles(ctx, apps)

	last := apps[len(apps)-1]
	return Page{
		Items:      apps,
		NextCursor: encodeCursor(last.CreatedAt, last.ID),
	}, nil
}

// reconcileFiles filters each application's file view down to ids the file
// service confirms. One batched query covers the whole page. On failure it
// fails open: every referenced id is shown as present, and the stored
// references are never mutated either way.
func (s *ApplicationService) reconcileFiles(ctx context.Context, apps []domain.Application) {
	seen := make(map[string]struct{})
	var all []string
	for _, app := range apps {
		for _, id := range app.Files {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				all = append(all, id)
			}
		}
	}
	if len(all) == 0 {
		return
	}

	confirmed, err := s.oracle.Files.ExistsBatch(ctx, all)
	if err != nil {
		s.log.WarnContext(ctx, "file existence check failed, failing open",
			"files", len(all), "error", err)
		return
	}

	for i := range apps {
		kept := apps[i].Files[:0]
		for _, id := range apps[i].Files {
			if confirmed[id] {
				kept = append(kept, id)
			}
		}
		apps[i].Files = kept
	}
}

// AttachTags unions tags into the application's tag set and emits a
// best-effort attach request downstream.
func (s *ApplicationService) AttachTags(ctx context.Context, actor domain.Actor, id string, tags []string) (domain.Application, error) {
	app, err := s.mutateRefs(ctx, actor, id, func(app *domain.Application) {
		app.Tags = domain.Union(app.Tags, tags)
	}, s.repo.ReplaceTags)
	if err != nil {
		return domain.Application{}, err
	}
	s.publish(ctx, domain.EventTagAttachRequested, app.ID, actor.ID, domain.Union(nil, tags))
	return app, nil
}

// RemoveTags subtracts tags from the set. Removal is locally final and emits
// no event.
func (s *ApplicationService) RemoveTags(ctx context.Context, actor domain.Actor, id string, tags []string) (domain.Application, error) {
	return s.mutateRefs(ctx, actor, id, func(app *domain.Application) {
		app.Tags = domain.Subtract(app.Tags, tags)
	}, s.repo.ReplaceTags)
}

// AttachFiles unions file references into the application's file set and
// emits a best-effort attach request downstream.
func (s *ApplicationService) AttachFiles(ctx context.Context, actor domain.Actor, id string, fileIDs []string) (domain.Application, error) {
	app, err := s.mutateRefs(ctx, actor, id, func(app *domain.Application) {
		app.Files = domain.Union(app.Files, fileIDs)
	}, s.repo.ReplaceFiles)
	if err != nil {
		return domain.Application{}, err
	}
	s.publish(ctx, domain.EventFileAttachRequested, app.ID, actor.ID, domain.Union(nil, fileIDs))
	return app, nil
}

// RemoveFiles subtracts file references from the set without emitting an
// event.
func (s *ApplicationService) RemoveFiles(ctx context.Context, actor domain.Actor, id string, fileIDs []string) (domain.Application, error) {
	return s.mutateRefs(ctx, actor, id, func(app *domain.Application) {
		app.Files = domain.Subtract(app.Files, fileIDs)
	}, s.repo.ReplaceFiles)
}

// mutateRefs is the shared load-authorize-mutate-persist path for the four
// set operations. Set semantics make every mutation idempotent.
func (s *ApplicationService) mutateRefs(
	ctx context.Context,
	actor domain.Actor,
	id string,
	mutate func(*domain.Application),
	persist func(context.Context, domain.Application) error,
) (domain.Application, error) {
	app, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Application{}, err
	}
	if err := canAccess(actor, app.ApplicantID); err != nil {
		return domain.Application{}, err
	}

	mutate(&app)
	app.UpdatedAt = time.Now().UTC()

	if err := persist(ctx, app); err != nil {
		return domain.Application{}, fmt.Errorf("persisting references: %w", err)
	}
	app.Version++

	return app, nil
}

// ChangeStatus moves an application to a new lifecycle status. Same-status
// requests are no-ops: nothing is persisted and no history is written.
func (s *ApplicationService) ChangeStatus(ctx context.Context, actor domain.Actor, id, rawStatus string) (domain.Application, error) {
	if err := canChangeStatus(actor); err != nil {
		return domain.Application{}, err
	}

	app, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return domain.Application{}, err
	}
	if err := checkSelfReview(actor, app.ApplicantID); err != nil {
		return domain.Application{}, err
	}

	next, changed, err := s.machine.Apply(ctx, app.Status, rawStatus)
	if err != nil {
		return domain.Application{}, err
	}
	if !changed {
		return app, nil
	}

	record := domain.HistoryRecord{
		ID:            newID(),
		ApplicationID: app.ID,
		OldStatus:     app.Status,
		NewStatus:     next,
		ChangedByRole: actor.Role,
		ChangedAt:     time.Now().UTC(),
	}
	app.Status = next
	app.UpdatedAt = record.ChangedAt

	if err := s.repo.UpdateStatus(ctx, app, record); err != nil {
		return domain.Application{}, err
	}
	app.Version++

	return app, nil
}

// ListHistory returns the application's audit log, newest first.
func (s *ApplicationService) ListHistory(ctx context.Context, actor domain.Actor, id string) ([]domain.HistoryRecord, error) {
	app, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := canAccess(actor, app.ApplicantID); err != nil {
		return nil, err
	}
	records, err := s.history.ListByApplication(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing history: %w", err)
	}
	return records, nil
}

// Delete removes a single application and everything it owns.
func (s *ApplicationService) Delete(ctx context.Context, actor domain.Actor, id string) error {
	if err := canDelete(actor); err != nil {
		return err
	}
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		return err
	}
	if err := s.repo.DeleteCascade(ctx, []string{id}); err != nil {
		return fmt.Errorf("deleting application: %w", err)
	}
	return nil
}

// DeleteByApplicant removes every application filed by the given applicant.
// Internal operation: invoked by the user service's own deletion workflow,
// so it carries no actor authorization.
func (s *ApplicationService) DeleteByApplicant(ctx context.Context, applicantID string) (int, error) {
	if applicantID == "" {
		return 0, &domain.BadRequestError{Reason: "applicantId is required"}
	}
	return s.deleteMatched(ctx, func(ctx context.Context) ([]string, error) {
		return s.repo.FindIDsByApplicant(ctx, applicantID)
	})
}

// DeleteByProduct removes every application for the given product. Internal
// operation with the same trust boundary as DeleteByApplicant.
func (s *ApplicationService) DeleteByProduct(ctx context.Context, productID string) (int, error) {
	if productID == "" {
		return 0, &domain.BadRequestError{Reason: "productId is required"}
	}
	return s.deleteMatched(ctx, func(ctx context.Context) ([]string, error) {
		return s.repo.FindIDsByProduct(ctx, productID)
	})
}

func (s *ApplicationService) deleteMatched(ctx context.Context, find func(context.Context) ([]string, error)) (int, error) {
	ids, err := find(ctx)
	if err != nil {
		return 0, fmt.Errorf("matching applications: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if err := s.repo.DeleteCascade(ctx, ids); err != nil {
		return 0, fmt.Errorf("deleting applications: %w", err)
	}
	return len(ids), nil
}

// publish emits a propagation event best-effort. A failure is logged and
// swallowed: the local tag/file sets are the system of record regardless of
// downstream acknowledgment.
func (s *ApplicationService) publish(ctx context.Context, event domain.Event, applicationID, actorID string, items []string) {
	if err := s.publisher.Publish(ctx, event, applicationID, actorID, items); err != nil {
		s.log.ErrorContext(ctx, "event publish failed",
			"event", string(event),
			"application_id", applicationID,
			"error", err,
		)
	}
}
