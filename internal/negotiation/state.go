package negotiation

import (
	"github.com/rotisserie/eris"

	"github.com/sells-group/dealdesk/internal/model"
)

var (
	// ErrInvalidTransition is returned when an event is not allowed from the
	// negotiation's current state.
	ErrInvalidTransition = eris.New("negotiation: invalid state transition")
	// ErrStaleRevision is returned when a request targets a revision other
	// than the current one.
	ErrStaleRevision = eris.New("negotiation: revision is not current")
)

// Event drives the negotiation state machine.
type Event string

const (
	EventUpdate   Event = "update"
	EventGenerate Event = "generate"
	EventApprove  Event = "approve"
	EventReject   Event = "reject"
	EventArchive  Event = "archive"
)

// Transition returns the state reached by applying ev to from. highRisk only
// matters for EventGenerate.
func Transition(from model.NegotiationState, ev Event, highRisk bool) (model.NegotiationState, error) {
	if from == model.NegotiationArchived {
		return from, invalid(from, ev)
	}

	switch ev {
	case EventUpdate:
		return model.NegotiationDraft, nil
	case EventGenerate:
		if highRisk {
			return model.NegotiationPendingApproval, nil
		}
		return model.NegotiationDraft, nil
	case EventApprove:
		if from == model.NegotiationPendingApproval {
			return model.NegotiationApproved, nil
		}
	case EventReject:
		if from == model.NegotiationPendingApproval || from == model.NegotiationDraft {
			return model.NegotiationDraft, nil
		}
	case EventArchive:
		return model.NegotiationArchived, nil
	}
	return from, invalid(from, ev)
}

// CheckRevision rejects requests aimed at anything but the current revision.
func CheckRevision(current, requested int) error {
	if current != requested {
		return eris.Wrapf(ErrStaleRevision, "negotiation: requested revision %d, current %d", requested, current)
	}
	return nil
}

func invalid(from model.NegotiationState, ev Event) error {
	return eris.Wrapf(ErrInvalidTransition, "negotiation: cannot %s from %s", ev, from)
}
