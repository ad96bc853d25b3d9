package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/dvidales/appliq/internal/app"
	"github.com/dvidales/appliq/internal/domain"
)

// ActorParams carries the caller identity headers. The gateway in front of
// this service authenticates the caller and forwards identity here; an empty
// id means the request is anonymous.
type ActorParams struct {
	ActorID   string `header:"X-Actor-Id" required:"false" doc:"Authenticated caller id"`
	ActorRole string `header:"X-Actor-Role" required:"false" doc:"Caller role claim"`
}

func (p ActorParams) actor() domain.Actor {
	return domain.Actor{ID: p.ActorID, Role: domain.ParseRole(p.ActorRole)}
}

// ApplicationResponse is the API representation of an application.
type ApplicationResponse struct {
	ID          string   `json:"id" doc:"Unique identifier"`
	ApplicantID string   `json:"applicant_id" doc:"Owning applicant"`
	ProductID   string   `json:"product_id" doc:"Applied-for product"`
	Status      string   `json:"status" doc:"Lifecycle state"`
	Tags        []string `json:"tags" doc:"Attached tag names"`
	Files       []string `json:"files" doc:"Attached file references"`
	Version     int64    `json:"version" doc:"Optimistic concurrency counter"`
	CreatedAt   string   `json:"created_at" doc:"Creation timestamp (ISO 8601)"`
	UpdatedAt   string   `json:"updated_at" doc:"Last update timestamp (ISO 8601)"`
}

func toApplicationResponse(a domain.Application) ApplicationResponse {
	resp := ApplicationResponse{
		ID:          a.ID,
		ApplicantID: a.ApplicantID,
		ProductID:   a.ProductID,
		Status:      string(a.Status),
		Tags:        a.Tags,
		Files:       a.Files,
		Version:     a.Version,
		CreatedAt:   a.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt:   a.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
	// Sets serialize as [] rather than null.
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if resp.Files == nil {
		resp.Files = []string{}
	}
	return resp
}

// HistoryResponse is one audit log entry.
type HistoryResponse struct {
	ID            string `json:"id" doc:"Record id"`
	OldStatus     string `json:"old_status,omitempty" doc:"Status before the change; empty for creation"`
	NewStatus     string `json:"new_status" doc:"Status after the change"`
	ChangedByRole string `json:"changed_by_role" doc:"Role of the actor who made the change"`
	ChangedAt     string `json:"changed_at" doc:"Change timestamp (ISO 8601)"`
}

func toHistoryResponse(r domain.HistoryRecord) HistoryResponse {
	return HistoryResponse{
		ID:            r.ID,
		OldStatus:     string(r.OldStatus),
		NewStatus:     string(r.NewStatus),
		ChangedByRole: string(r.ChangedByRole),
		ChangedAt:     r.ChangedAt.UTC().Format(time.RFC3339Nano),
	}
}

// --- Create Application ---

type CreateApplicationInput struct {
	ActorParams
	Body struct {
		ApplicantID string   `json:"applicant_id" minLength:"1" doc:"Applicant filing the application"`
		ProductID   string   `json:"product_id" minLength:"1" doc:"Product applied for"`
		Files       []string `json:"files,omitempty" doc:"Initial file references"`
		Tags        []string `json:"tags,omitempty" doc:"Initial tag names"`
	}
}

type CreateApplicationOutput struct {
	Body ApplicationResponse
}

// --- Get Application ---

type GetApplicationInput struct {
	ActorParams
	ID string `path:"id" doc:"Application ID"`
}

type GetApplicationOutput struct {
	Body ApplicationResponse
}

// --- List Applications ---

type ListApplicationsInput struct {
	ActorParams
	Limit  int    `query:"limit" required:"false" default:"20" doc:"Max results per page (capped at 50)"`
	Cursor string `query:"cursor" required:"false" doc:"Opaque cursor from a previous page"`
}

type ListApplicationsOutput struct {
	Body struct {
		Items      []ApplicationResponse `json:"items" doc:"Page of applications, newest first"`
		NextCursor string                `json:"next_cursor,omitempty" doc:"Cursor for the next page; absent on the last page"`
	}
}

// --- Tag / file set mutations ---

type MutateTagsInput struct {
	ActorParams
	ID   string `path:"id" doc:"Application ID"`
	Body struct {
		Tags []string `json:"tags" minItems:"1" doc:"Tag names"`
	}
}

type MutateFilesInput struct {
	ActorParams
	ID   string `path:"id" doc:"Application ID"`
	Body struct {
		Files []string `json:"files" minItems:"1" doc:"File references"`
	}
}

type MutateOutput struct {
	Body ApplicationResponse
}

// --- Change Status ---

type ChangeStatusInput struct {
	ActorParams
	ID   string `path:"id" doc:"Application ID"`
	Body struct {
		Status string `json:"status" minLength:"1" doc:"Target lifecycle status"`
	}
}

type ChangeStatusOutput struct {
	Body ApplicationResponse
}

// --- History ---

type ListHistoryInput struct {
	ActorParams
	ID string `path:"id" doc:"Application ID"`
}

type ListHistoryOutput struct {
	Body []HistoryResponse
}

// --- Delete ---

type DeleteApplicationInput struct {
	ActorParams
	ID string `path:"id" doc:"Application ID"`
}

type DeleteApplicationOutput struct{}

// --- Internal bulk deletes ---

type DeleteByApplicantInput struct {
	ID string `path:"id" doc:"Applicant ID"`
}

type DeleteByProductInput struct {
	ID string `path:"id" doc:"Product ID"`
}

type BulkDeleteOutput struct {
	Body struct {
		Deleted int `json:"deleted" doc:"Number of applications removed"`
	}
}

// Register adds all application API routes to the Huma API.
func Register(api huma.API, svc *app.ApplicationService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-application",
		Method:      http.MethodPost,
		Path:        "/api/v1/applications",
		Summary:     "File a new application",
		Tags:        []string{"Applications"},
	}, func(ctx context.Context, input *CreateApplicationInput) (*CreateApplicationOutput, error) {
		application, err := svc.Create(ctx, input.actor(),
			input.Body.ApplicantID, input.Body.ProductID, input.Body.Files, input.Body.Tags)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &CreateApplicationOutput{Body: toApplicationResponse(application)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-application",
		Method:      http.MethodGet,
		Path:        "/api/v1/applications/{id}",
		Summary:     "Get an application by ID",
		Tags:        []string{"Applications"},
	}, func(ctx context.Context, input *GetApplicationInput) (*GetApplicationOutput, error) {
		application, err := svc.Get(ctx, input.actor(), input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &GetApplicationOutput{Body: toApplicationResponse(application)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-applications",
		Method:      http.MethodGet,
		Path:        "/api/v1/applications",
		Summary:     "List applications, newest first",
		Tags:        []string{"Applications"},
	}, func(ctx context.Context, input *ListApplicationsInput) (*ListApplicationsOutput, error) {
		page, err := svc.ListPage(ctx, input.actor(), input.Limit, input.Cursor)
		if err != nil {
			return nil, toHumaError(err)
		}

		out := &ListApplicationsOutput{}
		out.Body.Items = make([]ApplicationResponse, len(page.Items))
		for i, a := range page.Items {
			out.Body.Items[i] = toApplicationResponse(a)
		}
		out.Body.NextCursor = page.NextCursor
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "attach-tags",
		Method:      http.MethodPost,
		Path:        "/api/v1/applications/{id}/tags",
		Summary:     "Attach tags to an application",
		Tags:        []string{"Applications"},
	}, func(ctx context.Context, input *MutateTagsInput) (*MutateOutput, error) {
		application, err := svc.AttachTags(ctx, input.actor(), input.ID, input.Body.Tags)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &MutateOutput{Body: toApplicationResponse(application)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-tags",
		Method:      http.MethodPost,
		Path:        "/api/v1/applications/{id}/tags/remove",
		Summary:     "Remove tags from an application",
		Tags:        []string{"Applications"},
	}, func(ctx context.Context, input *MutateTagsInput) (*MutateOutput, error) {
		application, err := svc.RemoveTags(ctx, input.actor(), input.ID, input.Body.Tags)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &MutateOutput{Body: toApplicationResponse(application)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "attach-files",
		Method:      http.MethodPost,
		Path:        "/api/v1/applications/{id}/files",
		Summary:     "Attach file references to an application",
		Tags:        []string{"Applications"},
	}, func(ctx context.Context, input *MutateFilesInput) (*MutateOutput, error) {
		application, err := svc.AttachFiles(ctx, input.actor(), input.ID, input.Body.Files)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &MutateOutput{Body: toApplicationResponse(application)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "remove-files",
		Method:      http.MethodPost,
		Path:        "/api/v1/applications/{id}/files/remove",
		Summary:     "Remove file references from an application",
		Tags:        []string{"Applications"},
	}, func(ctx context.Context, input *MutateFilesInput) (*MutateOutput, error) {
		application, err := svc.RemoveFiles(ctx, input.actor(), input.ID, input.Body.Files)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &MutateOutput{Body: toApplicationResponse(application)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "change-status",
		Method:      http.MethodPost,
		Path:        "/api/v1/applications/{id}/status",
		Summary:     "Change an application's lifecycle status",
		Tags:        []string{"Applications"},
	}, func(ctx context.Context, input *ChangeStatusInput) (*ChangeStatusOutput, error) {
		application, err := svc.ChangeStatus(ctx, input.actor(), input.ID, input.Body.Status)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ChangeStatusOutput{Body: toApplicationResponse(application)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-history",
		Method:      http.MethodGet,
		Path:        "/api/v1/applications/{id}/history",
		Summary:     "List an application's status history, newest first",
		Tags:        []string{"Applications"},
	}, func(ctx context.Context, input *ListHistoryInput) (*ListHistoryOutput, error) {
		records, err := svc.ListHistory(ctx, input.actor(), input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := make([]HistoryResponse, len(records))
		for i, r := range records {
			out[i] = toHistoryResponse(r)
		}
		return &ListHistoryOutput{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "delete-application",
		Method:        http.MethodDelete,
		Path:          "/api/v1/applications/{id}",
		Summary:       "Delete an application and everything it owns",
		Tags:          []string{"Applications"},
		DefaultStatus: http.StatusNoContent,
	}, func(ctx context.Context, input *DeleteApplicationInput) (*DeleteApplicationOutput, error) {
		if err := svc.Delete(ctx, input.actor(), input.ID); err != nil {
			return nil, toHumaError(err)
		}
		return &DeleteApplicationOutput{}, nil
	})

	// Internal endpoints below sit behind the service mesh; peer services
	// invoke them from their own deletion workflows.
	huma.Register(api, huma.Operation{
		OperationID: "delete-by-applicant",
		Method:      http.MethodDelete,
		Path:        "/internal/v1/applicants/{id}/applications",
		Summary:     "Delete every application filed by an applicant",
		Tags:        []string{"Internal"},
	}, func(ctx context.Context, input *DeleteByApplicantInput) (*BulkDeleteOutput, error) {
		deleted, err := svc.DeleteByApplicant(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &BulkDeleteOutput{}
		out.Body.Deleted = deleted
		return out, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "delete-by-product",
		Method:      http.MethodDelete,
		Path:        "/internal/v1/products/{id}/applications",
		Summary:     "Delete every application for a product",
		Tags:        []string{"Internal"},
	}, func(ctx context.Context, input *DeleteByProductInput) (*BulkDeleteOutput, error) {
		deleted, err := svc.DeleteByProduct(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		out := &BulkDeleteOutput{}
		out.Body.Deleted = deleted
		return out, nil
	})
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	if errors.Is(err, domain.ErrUnauthorized) {
		return huma.Error401Unauthorized("authentication required")
	}

	var badRequest *domain.BadRequestError
	if errors.As(err, &badRequest) {
		return huma.Error400BadRequest(badRequest.Error())
	}

	var forbidden *domain.ForbiddenError
	if errors.As(err, &forbidden) {
		return huma.Error403Forbidden(forbidden.Error())
	}

	var notFound *domain.NotFoundError
	if errors.As(err, &notFound) {
		return huma.Error404NotFound(notFound.Error())
	}

	var conflict *domain.ConflictError
	if errors.As(err, &conflict) {
		return huma.Error409Conflict(conflict.Error())
	}

	var versionConflict *domain.VersionConflictError
	if errors.As(err, &versionConflict) {
		return huma.Error409Conflict(versionConflict.Error())
	}

	var unavailable *domain.UnavailableError
	if errors.As(err, &unavailable) {
		return huma.Error503ServiceUnavailable(unavailable.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
