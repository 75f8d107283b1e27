// ABOUTME: Sentinel errors for messaging rule and validation failures

package messaging

import "errors"

var (
	// ErrForbiddenPair is returned when neither participant of a private
	// message is an advisor.
	ErrForbiddenPair = errors.New("private messages require an advisor participant")

	// ErrClientToClient is returned when both participants are clients.
	ErrClientToClient = errors.New("clients cannot message each other")

	// ErrSelfMessage is returned when sender and receiver are the same principal.
	ErrSelfMessage = errors.New("cannot send a message to yourself")

	// ErrEmptyContent is returned when content is empty after trimming.
	ErrEmptyContent = errors.New("message content is empty")

	// ErrContentTooLong is returned when content exceeds the length limit.
	ErrContentTooLong = errors.New("message content exceeds maximum length")

	// ErrNotStaff is returned when a group message sender is neither an
	// advisor nor a director.
	ErrNotStaff = errors.New("group chat is restricted to advisors and directors")
)
