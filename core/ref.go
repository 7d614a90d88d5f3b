package core

import (
	"context"
	"fmt"
	"time"
)

// Ref is an opaque, shareable reference to an actor instance. Sending
// through a Ref is fire-and-forget; Ask layers a bounded synchronous
// wait over the same mailbox. Refs remain valid for the life of the
// actor; operations on a stopped actor's Ref fail with ErrActorStopped.
type Ref struct {
	id   ActorID
	name string
	a    *actor
}

// ID returns the actor's runtime-unique identifier.
func (r *Ref) ID() ActorID {
	return r.id
}

// Name returns the actor's full scoped name.
func (r *Ref) Name() string {
	return r.name
}

// String returns a printable representation of the reference.
func (r *Ref) String() string {
	return fmt.Sprintf(":%08x(%s)", uint32(r.id), r.name)
}

// Send delivers a fire-and-forget message carrying payload. It returns
// immediately; delivery during shutdown is best effort.
func (r *Ref) Send(payload interface{}) error {
	return r.deliver(&Message{
		Type:      MessageTypeUser,
		Target:    r.id,
		Payload:   payload,
		Timestamp: time.Now(),
	})
}

// Ask sends payload as a request and blocks until the actor replies,
// the context expires, or the actor stops. The reply is the handler's
// return value for that message.
func (r *Ref) Ask(ctx context.Context, payload interface{}) (interface{}, error) {
	resp, err := r.a.ask(ctx, &Message{
		Target:    r.id,
		Payload:   payload,
		Timestamp: time.Now(),
	})
	if err != nil {
		return nil, err
	}
	return resp.Payload, nil
}

// Stats returns current runtime statistics for the referenced actor.
func (r *Ref) Stats() Stats {
	return r.a.stats()
}

// deliver places a fully formed message in the actor's mailbox.
func (r *Ref) deliver(msg *Message) error {
	msg.Target = r.id
	return r.a.send(msg)
}
