package core

import (
	"context"
)

// Handler processes incoming messages for an actor. Receive is invoked
// for one message at a time; the returned value becomes the reply
// payload when the message is an ask, and is discarded otherwise.
type Handler interface {
	// Receive processes a single message.
	Receive(ctx context.Context, msg *Message) (interface{}, error)
}

// HandlerFunc adapts a plain function to the Handler interface.
type HandlerFunc func(ctx context.Context, msg *Message) (interface{}, error)

// Receive implements Handler.
func (f HandlerFunc) Receive(ctx context.Context, msg *Message) (interface{}, error) {
	return f(ctx, msg)
}

// Stopper is an optional interface a Handler may implement to release
// resources when its actor is torn down. OnStop runs after the message
// loop has drained, under a bounded context; it must not block past the
// context deadline.
type Stopper interface {
	OnStop(ctx context.Context) error
}
