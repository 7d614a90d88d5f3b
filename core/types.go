package core

import (
	"time"
)

// ActorID represents a unique identifier for an actor within a runtime.
type ActorID uint32

// MessageType defines the type of message being sent.
type MessageType uint8

const (
	// MessageTypeUser for ordinary application messages
	MessageTypeUser MessageType = iota

	// MessageTypeRequest for ask-pattern requests
	MessageTypeRequest

	// MessageTypeResponse for ask-pattern responses
	MessageTypeResponse

	// MessageTypeError for error responses
	MessageTypeError

	// MessageTypeSystem for runtime control notifications
	MessageTypeSystem
)

// String returns the string representation of MessageType.
func (t MessageType) String() string {
	switch t {
	case MessageTypeUser:
		return "user"
	case MessageTypeRequest:
		return "request"
	case MessageTypeResponse:
		return "response"
	case MessageTypeError:
		return "error"
	case MessageTypeSystem:
		return "system"
	default:
		return "unknown"
	}
}

// Message represents communication data between actors.
type Message struct {
	// Type indicates the message category
	Type MessageType

	// Source is the ID of the sending actor (zero for external senders)
	Source ActorID

	// Target is the ID of the receiving actor
	Target ActorID

	// Session is used for request-response correlation
	Session uint32

	// Payload carries the message content
	Payload interface{}

	// Timestamp when the message was created
	Timestamp time.Time
}

// ActorState represents the current state of an actor.
type ActorState uint8

const (
	// ActorStateIdle means the actor is waiting for messages
	ActorStateIdle ActorState = iota

	// ActorStateRunning means the actor is processing a message
	ActorStateRunning

	// ActorStateStopping means the actor is shutting down
	ActorStateStopping

	// ActorStateStopped means the actor has been stopped
	ActorStateStopped
)

// String returns the string representation of ActorState.
func (s ActorState) String() string {
	switch s {
	case ActorStateIdle:
		return "idle"
	case ActorStateRunning:
		return "running"
	case ActorStateStopping:
		return "stopping"
	case ActorStateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Options contains configuration options for creating an actor.
type Options struct {
	// MailboxSize sets the size of the actor's message queue
	MailboxSize int

	// ProcessTimeout bounds processing of a single message
	ProcessTimeout time.Duration

	// StopTimeout bounds the resource-release hook during teardown
	StopTimeout time.Duration
}

// DefaultOptions returns sensible default options.
func DefaultOptions() Options {
	return Options{
		MailboxSize:    1000,
		ProcessTimeout: 30 * time.Second,
		StopTimeout:    5 * time.Second,
	}
}

// Spec describes an actor sufficiently for the runtime to instantiate
// it: a handler constructor plus options. Specs are reusable, so a
// supervisor can respawn a failed child from the same description.
type Spec struct {
	// Factory constructs the actor's message handler
	Factory func() (Handler, error)

	// Options for the actor instance
	Options Options
}

// Stats contains runtime statistics for an actor.
type Stats struct {
	// ID of the actor
	ID ActorID

	// Name of the actor (full scoped name)
	Name string

	// Current state
	State ActorState

	// Total messages processed
	MessagesProcessed uint64

	// Messages currently in mailbox
	MailboxDepth int

	// Time when the actor was created
	CreatedAt time.Time

	// Last message processing time
	LastMessageAt time.Time
}

// ChildFailed is the system notification an actor sends to its parent
// when its handler panics. The parent decides whether to restart, stop,
// or ignore; the runtime itself takes no action.
type ChildFailed struct {
	// ID of the failed actor
	ID ActorID

	// Name of the failed actor (full scoped name)
	Name string

	// Err describes the failure
	Err error
}
