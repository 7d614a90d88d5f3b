package core

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
)

// RuntimeOptions configures a runtime instance.
type RuntimeOptions struct {
	// MailboxSize is the default mailbox size for spawned actors
	MailboxSize int

	// MaxActors caps the number of live actors
	MaxActors int

	// ProcessTimeout is the default per-message processing bound
	ProcessTimeout time.Duration

	// ShutdownTimeout bounds the whole teardown
	ShutdownTimeout time.Duration

	// Logger receives runtime lifecycle events
	Logger zerolog.Logger
}

// DefaultRuntimeOptions returns sensible runtime defaults.
func DefaultRuntimeOptions() RuntimeOptions {
	return RuntimeOptions{
		MailboxSize:     1000,
		MaxActors:       10000,
		ProcessTimeout:  30 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		Logger:          zerolog.Nop(),
	}
}

// Runtime is the process-wide concurrent execution environment. It owns
// every actor it spawns: actors are created through Spawn, addressed
// through Refs, and destroyed exactly once during the runtime's single
// asynchronous shutdown.
type Runtime struct {
	name string
	id   string

	opts RuntimeOptions
	log  zerolog.Logger

	mu     sync.RWMutex
	actors map[ActorID]*actor
	names  map[string]ActorID
	closed bool

	nextID uint32

	// Context cancelled when shutdown begins
	ctx    context.Context
	cancel context.CancelFunc

	// Wait group covering all actor loops
	wg sync.WaitGroup

	shutdownOnce sync.Once
	shutdownFut  *ShutdownFuture
}

// New allocates the execution environment identified by name.
func New(name string, opts RuntimeOptions) (*Runtime, error) {
	if name == "" {
		return nil, fmt.Errorf("runtime name cannot be empty")
	}
	if opts.MailboxSize <= 0 || opts.MaxActors <= 0 {
		return nil, fmt.Errorf("invalid runtime options: mailbox_size=%d max_actors=%d",
			opts.MailboxSize, opts.MaxActors)
	}
	if opts.ProcessTimeout <= 0 {
		opts.ProcessTimeout = DefaultRuntimeOptions().ProcessTimeout
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultRuntimeOptions().ShutdownTimeout
	}

	instanceID, err := gonanoid.New()
	if err != nil {
		return nil, fmt.Errorf("failed to generate runtime instance id: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	r := &Runtime{
		name:   name,
		id:     instanceID,
		opts:   opts,
		log:    opts.Logger.With().Str("runtime", name).Str("instance", instanceID).Logger(),
		actors: make(map[ActorID]*actor),
		names:  make(map[string]ActorID),
		ctx:    ctx,
		cancel: cancel,
	}

	r.log.Debug().Msg("runtime created")

	return r, nil
}

// Name returns the runtime name.
func (r *Runtime) Name() string {
	return r.name
}

// InstanceID returns the unique identifier of this runtime instance.
func (r *Runtime) InstanceID() string {
	return r.id
}

// Context is cancelled once shutdown has been initiated.
func (r *Runtime) Context() context.Context {
	return r.ctx
}

// Spawn creates a new actor under the given parent scope. The returned
// reference is usable immediately: the mailbox exists and the message
// loop is running before Spawn returns, so a send racing the actor's own
// setup is safe. A nil parent spawns at the root scope.
func (r *Runtime) Spawn(parent *Ref, spec Spec, name string) (*Ref, error) {
	if spec.Factory == nil {
		return nil, fmt.Errorf("spec for %q has no factory", name)
	}
	if name == "" {
		return nil, fmt.Errorf("actor name cannot be empty")
	}

	fullName := name
	if parent != nil {
		fullName = parent.Name() + "/" + name
	}

	opts := spec.Options
	if opts.MailboxSize == 0 {
		opts.MailboxSize = r.opts.MailboxSize
	}
	if opts.ProcessTimeout == 0 {
		opts.ProcessTimeout = r.opts.ProcessTimeout
	}
	if opts.StopTimeout == 0 {
		opts.StopTimeout = DefaultOptions().StopTimeout
	}

	handler, err := spec.Factory()
	if err != nil {
		return nil, fmt.Errorf("failed to construct handler for %s: %w", fullName, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, fmt.Errorf("%w: cannot spawn %s", ErrRuntimeClosed, fullName)
	}
	if len(r.actors) >= r.opts.MaxActors {
		return nil, fmt.Errorf("%w: %d actors", ErrTooManyActors, len(r.actors))
	}
	if _, exists := r.names[fullName]; exists {
		return nil, fmt.Errorf("%w: %s", ErrNameTaken, fullName)
	}

	id := ActorID(atomic.AddUint32(&r.nextID, 1))
	a := newActor(r.ctx, id, fullName, handler, parent, opts)

	r.actors[id] = a
	r.names[fullName] = id

	r.wg.Add(1)
	a.start(func() {
		r.removeActor(id, fullName)
		recordActorExit()
		r.wg.Done()
	})

	recordSpawn()
	r.log.Debug().Str("actor", fullName).Uint32("id", uint32(id)).Msg("actor spawned")

	return &Ref{id: id, name: fullName, a: a}, nil
}

// Lookup finds a live actor by its full scoped name.
func (r *Runtime) Lookup(fullName string) (*Ref, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.names[fullName]
	if !ok {
		return nil, false
	}
	a := r.actors[id]
	return &Ref{id: id, name: fullName, a: a}, true
}

// Stats returns statistics for all live actors.
func (r *Runtime) Stats() []Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stats := make([]Stats, 0, len(r.actors))
	for _, a := range r.actors {
		stats = append(stats, a.stats())
	}
	return stats
}

// Stop terminates a single actor. Only the owning parent (or the
// runtime during shutdown) should call this; the actor's name is free
// for reuse once Stop returns.
func (r *Runtime) Stop(ref *Ref) error {
	return ref.a.stop()
}

// ShutdownAsync initiates termination of every actor and of the runtime
// itself. It returns immediately with a future that resolves exactly
// once when teardown completes or exceeds its budget. Repeated calls,
// concurrent or not, return the same future.
func (r *Runtime) ShutdownAsync() *ShutdownFuture {
	r.shutdownOnce.Do(func() {
		r.shutdownFut = &ShutdownFuture{done: make(chan struct{})}
		go r.teardown(r.shutdownFut)
	})
	return r.shutdownFut
}

// teardown stops every actor, waits for their loops to exit within the
// shutdown budget, and resolves the future.
func (r *Runtime) teardown(fut *ShutdownFuture) {
	started := time.Now()
	r.log.Info().Msg("runtime shutdown started")

	r.mu.Lock()
	r.closed = true
	live := make([]*actor, 0, len(r.actors))
	for _, a := range r.actors {
		live = append(live, a)
	}
	r.mu.Unlock()

	r.cancel()

	// Stops run off the timeout path so one misbehaving actor cannot
	// stall outcome resolution past the shutdown budget.
	done := make(chan struct{})
	go func() {
		for _, a := range live {
			// Already-exited actors report an invalid state transition;
			// that is fine during teardown.
			_ = a.stop()
		}
		r.wg.Wait()
		close(done)
	}()

	var outcome Outcome
	select {
	case <-done:
	case <-time.After(r.opts.ShutdownTimeout):
		outcome.Err = fmt.Errorf("runtime %s teardown exceeded %s", r.name, r.opts.ShutdownTimeout)
	}

	recordShutdown(outcome.OK())
	r.log.Info().
		Err(outcome.Err).
		Dur("elapsed", time.Since(started)).
		Msg("runtime shutdown finished")

	fut.resolve(outcome)
}

// removeActor clears the bookkeeping for an exited actor.
func (r *Runtime) removeActor(id ActorID, fullName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.actors, id)
	if current, ok := r.names[fullName]; ok && current == id {
		delete(r.names, fullName)
	}
}

// Outcome is the terminal result of a runtime shutdown.
type Outcome struct {
	// Err is nil on success
	Err error
}

// OK reports whether the shutdown completed cleanly.
func (o Outcome) OK() bool {
	return o.Err == nil
}

// ShutdownFuture resolves exactly once when runtime teardown completes.
type ShutdownFuture struct {
	done    chan struct{}
	outcome Outcome
}

// Done is closed when the shutdown outcome is available.
func (f *ShutdownFuture) Done() <-chan struct{} {
	return f.done
}

// Outcome blocks until teardown completes and returns its result.
func (f *ShutdownFuture) Outcome() Outcome {
	<-f.done
	return f.outcome
}

// Wait blocks until teardown completes or ctx expires.
func (f *ShutdownFuture) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-f.done:
		return f.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (f *ShutdownFuture) resolve(outcome Outcome) {
	f.outcome = outcome
	close(f.done)
}
