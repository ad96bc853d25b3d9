package fsm

import (
	"context"
	"errors"
	"strings"

	loopfsm "github.com/looplab/fsm"

	"github.com/dvidales/appliq/internal/domain"
)

// Compile-time check: Machine implements domain.StatusMachine.
var _ domain.StatusMachine = (*Machine)(nil)

// events is the permissive transition table: one "to_<status>" event per
// recognized status, reachable from every status. The lifecycle deliberately
// enforces no stricter graph; a workflow restriction would only change this
// table.
var events = buildEvents()

func buildEvents() []loopfsm.EventDesc {
	sources := make([]string, len(domain.Statuses))
	for i, s := range domain.Statuses {
		sources[i] = string(s)
	}

	out := make([]loopfsm.EventDesc, 0, len(domain.Statuses))
	for _, s := range domain.Statuses {
		out = append(out, loopfsm.EventDesc{
			Name: eventName(s),
			Src:  sources,
			Dst:  string(s),
		})
	}
	return out
}

func eventName(s domain.Status) string {
	return "to_" + strings.ToLower(string(s))
}

// Machine implements domain.StatusMachine using looplab/fsm. It creates a
// short-lived FSM instance per Apply call, initialized with the current
// status; looplab/fsm is stateful, so instances cannot be shared.
type Machine struct{}

// New creates the status machine.
func New() *Machine {
	return &Machine{}
}

// Apply parses the raw status request and resolves it against the lifecycle.
// A same-status request reports changed=false (the fsm signals this as
// NoTransitionError). An unrecognized value is a conflict, not a bad
// request: the target is well-formed, the state just is not reachable.
func (m *Machine) Apply(ctx context.Context, current domain.Status, raw string) (domain.Status, bool, error) {
	next, err := domain.ParseStatus(raw)
	if err != nil {
		return "", false, err
	}

	machine := loopfsm.NewFSM(string(current), events, nil)

	if err := machine.Event(ctx, eventName(next)); err != nil {
		var noTransition loopfsm.NoTransitionError
		if errors.As(err, &noTransition) {
			return next, false, nil
		}
		var invalidEvent loopfsm.InvalidEventError
		if errors.As(err, &invalidEvent) {
			// Only reachable when the stored status itself is corrupt.
			return "", false, &domain.ConflictError{Reason: "application is in an unrecognized status " + string(current)}
		}
		return "", false, err
	}

	return domain.Status(machine.Current()), true, nil
}
