package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Status represents the lifecycle state of an application.
type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusSubmitted Status = "SUBMITTED"
	StatusInReview  Status = "IN_REVIEW"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
)

// Statuses lists every recognized status, in display order. This is domain
// knowledge consumed by the FSM adapter and by error messages.
var Statuses = []Status{
	StatusDraft,
	StatusSubmitted,
	StatusInReview,
	StatusApproved,
	StatusRejected,
}

// ParseStatus resolves raw input (trimmed, case-insensitive) to a Status.
// An unrecognized value returns a ConflictError listing the valid values:
// the operation target is well-formed, the requested state just is not
// reachable.
func ParseStatus(raw string) (Status, error) {
	candidate := Status(strings.ToUpper(strings.TrimSpace(raw)))
	for _, s := range Statuses {
		if s == candidate {
			return s, nil
		}
	}
	return "", &ConflictError{Reason: fmt.Sprintf("unknown status %q, valid values: %s", raw, statusList())}
}

func statusList() string {
	names := make([]string, len(Statuses))
	for i, s := range Statuses {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}

// Role is the closed set of actor roles. Unrecognized role claims map to
// RoleUnknown, which holds no privileges anywhere.
type Role string

const (
	RoleAdmin     Role = "ADMIN"
	RoleManager   Role = "MANAGER"
	RoleApplicant Role = "APPLICANT"
	RoleUnknown   Role = "UNKNOWN"
)

// ParseRole resolves a raw role claim. It tolerates the "ROLE_" prefix used
// by some identity providers and is case-insensitive. Anything unrecognized
// becomes RoleUnknown rather than a privileged default.
func ParseRole(raw string) Role {
	claim := strings.ToUpper(strings.TrimSpace(raw))
	claim = strings.TrimPrefix(claim, "ROLE_")
	switch claim {
	case string(RoleAdmin):
		return RoleAdmin
	case string(RoleManager):
		return RoleManager
	case string(RoleApplicant), "USER":
		return RoleApplicant
	default:
		return RoleUnknown
	}
}

// Actor identifies who is performing an operation. A zero ID means the
// request carried no authenticated identity.
type Actor struct {
	ID   string
	Role Role
}

// Application is the core aggregate: a case record linking an applicant to a
// product, carrying a status, tag set, file-reference set, and audit history.
type Application struct {
	ID          string
	ApplicantID string
	ProductID   string
	Status      Status
	Tags        []string
	Files       []string
	Version     int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewApplication creates an application in the SUBMITTED state with
// deduplicated tag and file sets.
func NewApplication(id, applicantID, productID string, files, tags []string) Application {
	now := time.Now().UTC()
	return Application{
		ID:          id,
		ApplicantID: applicantID,
		ProductID:   productID,
		Status:      StatusSubmitted,
		Tags:        dedupe(tags),
		Files:       dedupe(files),
		Version:     1,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// HistoryRecord is one append-only audit entry for a status change.
// OldStatus is empty only for the creation record. The record carries the
// actor's role, never the actor identity.
type HistoryRecord struct {
	ID            string
	ApplicationID string
	OldStatus     Status
	NewStatus     Status
	ChangedByRole Role
	ChangedAt     time.Time
}

// dedupe returns a sorted copy of items with duplicates and blanks removed.
// Sets are represented as sorted slices so equality is structural.
func dedupe(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if item == "" {
			continue
		}
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	sort.Strings(out)
	return out
}

// Union returns the set union of base and items, sorted.
func Union(base, items []string) []string {
	return dedupe(append(append([]string{}, base...), items...))
}

// Subtract returns base without any member of items, sorted.
func Subtract(base, items []string) []string {
	drop := make(map[string]struct{}, len(items))
	for _, item := range items {
		drop[item] = struct{}{}
	}
	out := make([]string, 0, len(base))
	for _, member := range dedupe(base) {
		if _, ok := drop[member]; !ok {
			out = append(out, member)
		}
	}
	return out
}
