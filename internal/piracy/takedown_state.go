package piracy

import "fmt"

// TakedownStatus is the delivery state of a TakedownRequest.
type TakedownStatus string

// Takedown states.
const (
	TakedownPending      TakedownStatus = "PENDING"
	TakedownSent         TakedownStatus = "SENT"
	TakedownAcknowledged TakedownStatus = "ACKNOWLEDGED"
	TakedownRemoved      TakedownStatus = "REMOVED"
	TakedownRejected     TakedownStatus = "REJECTED"
	TakedownFailed       TakedownStatus = "FAILED"
)

// FAILED may move back to SENT only through queue redelivery of an
// automatic retry; manual retries go through PENDING.
var takedownTransitions = map[TakedownStatus][]TakedownStatus{
	TakedownPending:      {TakedownPending, TakedownSent, TakedownFailed},
	TakedownSent:         {TakedownAcknowledged, TakedownRemoved, TakedownRejected, TakedownFailed},
	TakedownAcknowledged: {TakedownRemoved, TakedownRejected, TakedownFailed},
	TakedownFailed:       {TakedownPending, TakedownSent, TakedownFailed},
	TakedownRejected:     {TakedownPending},
	TakedownRemoved:      nil,
}

// Valid reports whether s is a known takedown state.
func (s TakedownStatus) Valid() bool {
	_, ok := takedownTransitions[s]
	return ok
}

// Terminal reports whether no new automatic delivery may start from s.
// A FAILED request is still redelivered by the queue retry that raised it.
func (s TakedownStatus) Terminal() bool {
	return s == TakedownRemoved || s == TakedownRejected || s == TakedownFailed
}

// Retriable reports whether an operator may re-queue a request in state s.
func (s TakedownStatus) Retriable() bool {
	return s == TakedownRejected || s == TakedownFailed
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to TakedownStatus) bool {
	for _, next := range takedownTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition validates and returns the next state.
func Transition(from, to TakedownStatus) (TakedownStatus, error) {
	if !to.Valid() {
		return from, fmt.Errorf("%w: unknown status %q", ErrValidation, to)
	}
	if !CanTransition(from, to) {
		return from, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return to, nil
}
