package app

import (
	"github.com/dvidales/appliq/internal/domain"
)

// Authorization policy: stateless predicates evaluated before any mutation.
// Every rule starts from the same ground truth — no operation is permitted
// for an unauthenticated actor.

func requireActor(actor domain.Actor) error {
	if actor.ID == "" {
		return domain.ErrUnauthorized
	}
	return nil
}

// canCreate allows admins and the applicant themselves.
func canCreate(actor domain.Actor, applicantID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if actor.Role == domain.RoleAdmin || actor.ID == applicantID {
		return nil
	}
	return &domain.ForbiddenError{Reason: "only the applicant or an admin may create this application"}
}

// canAccess covers tag/file attachment, removal, and history listing:
// the owning applicant, admins, and managers.
func canAccess(actor domain.Actor, ownerID string) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if actor.ID == ownerID || actor.Role == domain.RoleAdmin || actor.Role == domain.RoleManager {
		return nil
	}
	return &domain.ForbiddenError{Reason: "actor is neither the applicant nor a reviewer"}
}

// canChangeStatus is the role gate for status changes. The self-review rule
// needs the loaded record and is checked separately.
func canChangeStatus(actor domain.Actor) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if actor.Role == domain.RoleAdmin || actor.Role == domain.RoleManager {
		return nil
	}
	return &domain.ForbiddenError{Reason: "only admins and managers may change application status"}
}

// checkSelfReview rejects a manager acting on their own application. Admins
// are exempt.
func checkSelfReview(actor domain.Actor, ownerID string) error {
	if actor.Role == domain.RoleManager && actor.ID == ownerID {
		return &domain.ConflictError{Reason: "managers may not review their own application"}
	}
	return nil
}

// canDelete restricts single deletes to admins. The bulk variants are
// internal operations and bypass this policy; their trust boundary is the
// calling service.
func canDelete(actor domain.Actor) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	if actor.Role == domain.RoleAdmin {
		return nil
	}
	return &domain.ForbiddenError{Reason: "only admins may delete applications"}
}
