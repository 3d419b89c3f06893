package workflow

import "github.com/garyjia/payment-requests/internal/domain/entity"

// State represents a workflow state in the payment request lifecycle
type State string

const (
	StateDraft    State = State(entity.StatusDraft)
	StatePending  State = State(entity.StatusPending)
	StateApproved State = State(entity.StatusApproved)
	StateRejected State = State(entity.StatusRejected)
	StatePaid     State = State(entity.StatusPaid)
)

var validStates = map[State]bool{
	StateDraft:    true,
	StatePending:  true,
	StateApproved: true,
	StateRejected: true,
	StatePaid:     true,
}

var terminalStates = map[State]bool{
	StateRejected: true,
	StatePaid:     true,
}

// IsTerminal returns true if the state is a terminal state (no further transitions allowed)
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}

// Status converts the state to the persisted request status
func (s State) Status() entity.RequestStatus {
	return entity.RequestStatus(s)
}

// FromStatus converts a persisted request status to a state
func FromStatus(status entity.RequestStatus) State {
	return State(status)
}
