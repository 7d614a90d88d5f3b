package core

import "errors"

// Runtime and actor lifecycle errors
var (
	// ErrRuntimeClosed is returned for operations after shutdown began
	ErrRuntimeClosed = errors.New("runtime is shutting down")

	// ErrNameTaken is returned when a scoped actor name already exists
	ErrNameTaken = errors.New("actor name already taken")

	// ErrTooManyActors is returned when the actor limit is reached
	ErrTooManyActors = errors.New("actor limit reached")

	// ErrActorStopped is returned for sends to a stopped actor
	ErrActorStopped = errors.New("actor is stopped")

	// ErrMailboxFull is returned when a mailbox cannot accept a message
	ErrMailboxFull = errors.New("mailbox is full")
)
