// ABOUTME: Sentinel errors for conversation routing preconditions

package routing

import "errors"

var (
	// ErrInvalidRole is returned when a principal does not hold the role the
	// operation requires (client for GetOrCreate, advisor for assignment).
	ErrInvalidRole = errors.New("invalid role for operation")

	// ErrNotAssigned is returned when a transfer names an advisor who does
	// not currently own the conversation.
	ErrNotAssigned = errors.New("conversation not assigned to advisor")

	// ErrSameAdvisor is returned when a transfer names the same advisor on
	// both sides.
	ErrSameAdvisor = errors.New("cannot transfer conversation to the same advisor")
)
