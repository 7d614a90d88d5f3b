// Package supervisor implements the top-level supervising actor: it
// owns the lifecycle of the children it creates and answers the
// CreateChild ask with the new child's reference.
package supervisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/kestrelsys/kestrel/core"
)

// Supervision errors
var (
	// ErrNameConflict is returned when a child with the requested name
	// already exists under this supervisor
	ErrNameConflict = errors.New("child name conflict")

	// ErrUnexpectedReply is returned when an ask resolves to a payload
	// of the wrong type
	ErrUnexpectedReply = errors.New("unexpected reply payload")
)

// CreateChild asks the supervisor to create a child actor from spec
// under the given name. The reply payload is the child's *core.Ref.
type CreateChild struct {
	// Spec describes the child to instantiate
	Spec core.Spec

	// Name identifies the child, unique within this supervisor
	Name string
}

// Config configures a supervisor actor.
type Config struct {
	// Name of the supervisor actor
	Name string

	// MaxRestarts bounds restarts per child; past it the child stays stopped
	MaxRestarts int

	// Logger receives supervision events
	Logger zerolog.Logger
}

// childRecord tracks one supervised child.
type childRecord struct {
	spec     core.Spec
	ref      *core.Ref
	restarts int
}

// Supervisor is the message handler of the supervising actor. All state
// is touched only from the actor's own message loop.
type Supervisor struct {
	rt       *core.Runtime
	self     *core.Ref
	children map[string]*childRecord

	maxRestarts int
	log         zerolog.Logger
}

// Spawn creates the supervisor actor in the runtime and returns its
// reference. The reference is ready for CreateChild asks on return.
func Spawn(rt *core.Runtime, cfg Config) (*core.Ref, error) {
	if cfg.Name == "" {
		cfg.Name = "supervisor"
	}

	s := &Supervisor{
		rt:          rt,
		children:    make(map[string]*childRecord),
		maxRestarts: cfg.MaxRestarts,
		log:         cfg.Logger.With().Str("supervisor", cfg.Name).Logger(),
	}

	ref, err := rt.Spawn(nil, core.Spec{
		Factory: func() (core.Handler, error) { return s, nil },
	}, cfg.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to spawn supervisor: %w", err)
	}

	// The self reference is only read from the message loop, which
	// cannot run a CreateChild before Spawn has returned it.
	s.self = ref

	return ref, nil
}

// Receive dispatches the supervisor protocol.
func (s *Supervisor) Receive(ctx context.Context, msg *core.Message) (interface{}, error) {
	switch payload := msg.Payload.(type) {
	case CreateChild:
		return s.createChild(payload)
	case core.ChildFailed:
		s.handleChildFailure(payload)
		return nil, nil
	default:
		s.log.Warn().Str("type", fmt.Sprintf("%T", payload)).Msg("unhandled message")
		return nil, nil
	}
}

// createChild instantiates a child under the supervisor's scope and
// replies with its reference. A name collision is an explicit error,
// never a silent reference to an unrelated actor.
func (s *Supervisor) createChild(req CreateChild) (interface{}, error) {
	if _, exists := s.children[req.Name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrNameConflict, req.Name)
	}

	ref, err := s.rt.Spawn(s.self, req.Spec, req.Name)
	if err != nil {
		return nil, fmt.Errorf("failed to create child %s: %w", req.Name, err)
	}

	s.children[req.Name] = &childRecord{spec: req.Spec, ref: ref}
	s.log.Info().Str("child", ref.Name()).Msg("child created")

	return ref, nil
}

// handleChildFailure applies the restart policy. Failures never
// propagate out of the supervisor; a child past its restart budget is
// stopped and left stopped.
func (s *Supervisor) handleChildFailure(failed core.ChildFailed) {
	name, rec := s.findByFullName(failed.Name)
	if rec == nil {
		s.log.Warn().Str("child", failed.Name).Msg("failure from unknown child")
		return
	}

	rec.restarts++
	s.log.Error().
		Err(failed.Err).
		Str("child", failed.Name).
		Int("restarts", rec.restarts).
		Msg("child failed")

	if err := s.rt.Stop(rec.ref); err != nil {
		s.log.Debug().Err(err).Str("child", failed.Name).Msg("child already stopped")
	}

	if rec.restarts > s.maxRestarts {
		delete(s.children, name)
		s.log.Error().Str("child", failed.Name).Msg("restart budget exhausted, child stopped")
		return
	}

	ref, err := s.rt.Spawn(s.self, rec.spec, name)
	if err != nil {
		delete(s.children, name)
		s.log.Error().Err(err).Str("child", failed.Name).Msg("failed to restart child")
		return
	}

	rec.ref = ref
	core.RecordChildRestart(name)
	s.log.Info().Str("child", ref.Name()).Int("restarts", rec.restarts).Msg("child restarted")
}

// findByFullName resolves a failure notification's full scoped name to
// the local child record.
func (s *Supervisor) findByFullName(fullName string) (string, *childRecord) {
	for name, rec := range s.children {
		if rec.ref.Name() == fullName {
			return name, rec
		}
	}
	return "", nil
}

// AskCreateChild performs the bounded synchronous handoff: it sends
// CreateChild to the supervisor and blocks until the child's reference
// arrives or ctx expires.
func AskCreateChild(ctx context.Context, sup *core.Ref, spec core.Spec, name string) (*core.Ref, error) {
	reply, err := sup.Ask(ctx, CreateChild{Spec: spec, Name: name})
	if err != nil {
		return nil, err
	}

	ref, ok := reply.(*core.Ref)
	if !ok {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedReply, reply)
	}

	return ref, nil
}
