package discovery

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/kestrelsys/kestrel/core"
)

// WorkerState is the discovery worker's lifecycle state.
type WorkerState int32

const (
	// StateCreated means the worker exists but its loop is not running
	StateCreated WorkerState = iota

	// StateRunning means the worker's refresh loop is active
	StateRunning

	// StateTerminated means the worker has been torn down
	StateTerminated
)

// String returns the string representation of WorkerState.
func (s WorkerState) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateRunning:
		return "running"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Start begins the worker's main processing loop. It is fire-and-forget
// and idempotent: the loop starts at most once.
type Start struct{}

// Announce registers or refreshes a peer in the worker's registry.
type Announce struct {
	Name    string
	Address string
	Tags    []string
}

// PeersQuery asks the worker for its current peer table. The reply
// payload is []Peer.
type PeersQuery struct{}

// Config configures a discovery worker.
type Config struct {
	// RefreshInterval is how often the registry is reclassified
	RefreshInterval time.Duration

	// StaleAfter is the window after which unseen peers go stale
	StaleAfter time.Duration

	// Logger receives worker events
	Logger zerolog.Logger
}

// Worker is the discovery actor's handler. It stays idle until it
// receives Start, then runs a registry refresh loop until the runtime
// tears it down.
type Worker struct {
	registry *Registry
	interval time.Duration
	log      zerolog.Logger

	state int32 // WorkerState

	startOnce sync.Once
	loopStop  context.CancelFunc
	loopDone  chan struct{}
}

// NewWorker creates a discovery worker in the Created state.
func NewWorker(cfg Config) *Worker {
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = 10 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 60 * time.Second
	}

	return &Worker{
		registry: NewRegistry(cfg.StaleAfter),
		interval: cfg.RefreshInterval,
		log:      cfg.Logger.With().Str("worker", "discovery").Logger(),
		loopDone: make(chan struct{}),
	}
}

// Spec returns the actor specification for spawning this worker.
func (w *Worker) Spec() core.Spec {
	return core.Spec{
		Factory: func() (core.Handler, error) { return w, nil },
	}
}

// State returns the worker's current lifecycle state.
func (w *Worker) State() WorkerState {
	return WorkerState(atomic.LoadInt32(&w.state))
}

// Registry exposes the worker's peer table for read-only inspection.
func (w *Worker) Registry() *Registry {
	return w.registry
}

// Receive dispatches the worker protocol. The worker is ready to accept
// Start from the moment its reference exists; no handshake is needed.
func (w *Worker) Receive(ctx context.Context, msg *core.Message) (interface{}, error) {
	switch payload := msg.Payload.(type) {
	case Start:
		w.start()
		return nil, nil
	case Announce:
		return nil, w.registry.Announce(payload.Name, payload.Address, payload.Tags...)
	case PeersQuery:
		return w.registry.Snapshot(), nil
	default:
		w.log.Debug().Msgf("ignoring message payload %T", payload)
		return nil, nil
	}
}

// start transitions Created -> Running and launches the refresh loop.
// Duplicate Start messages are ignored.
func (w *Worker) start() {
	w.startOnce.Do(func() {
		if !atomic.CompareAndSwapInt32(&w.state, int32(StateCreated), int32(StateRunning)) {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		w.loopStop = cancel

		go w.refreshLoop(ctx)

		w.log.Info().Dur("interval", w.interval).Msg("discovery worker started")
	})
}

// refreshLoop reclassifies the peer table on a fixed interval until the
// worker is stopped.
func (w *Worker) refreshLoop(ctx context.Context) {
	defer close(w.loopDone)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			if stale := w.registry.Refresh(now); stale > 0 {
				w.log.Debug().Int("stale", stale).Msg("peers went stale")
			}
		case <-ctx.Done():
			return
		}
	}
}

// OnStop releases the refresh loop during runtime teardown. It waits
// for the loop to exit but never past the context deadline, so the
// worker cannot block shutdown indefinitely.
func (w *Worker) OnStop(ctx context.Context) error {
	prev := WorkerState(atomic.SwapInt32(&w.state, int32(StateTerminated)))

	if prev != StateRunning {
		return nil
	}

	w.loopStop()

	select {
	case <-w.loopDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
