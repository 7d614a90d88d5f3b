package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/kestrelsys/kestrel/config"
	"github.com/kestrelsys/kestrel/core"
	"github.com/kestrelsys/kestrel/discovery"
	"github.com/kestrelsys/kestrel/logging"
	"github.com/kestrelsys/kestrel/monitor"
	"github.com/kestrelsys/kestrel/supervisor"
)

// Options configures an App before Start.
type Options struct {
	// BasePath is the base configuration file. Empty means bundled
	// defaults only.
	BasePath string

	// OverridePath is the deployment override file. Empty keeps the
	// loader's well-known default location.
	OverridePath string

	// Version is the build version stamped into logs, normally set
	// via ldflags.
	Version string

	// Logger, when non-nil, replaces the logger built from the
	// configuration. Used by embedders and tests.
	Logger *zerolog.Logger

	// DiscoverySpec, when non-nil, replaces the discovery worker
	// actor. Used by tests.
	DiscoverySpec func(cfg config.DiscoveryConfig, logger zerolog.Logger) core.Spec
}

// App owns the startup sequence and the shutdown path of a kestrel
// process: configuration, logging, the actor runtime, the supervisor
// with its discovery worker, and the auxiliary services.
type App struct {
	opts Options

	snapshot *config.Snapshot
	cfg      *config.Config
	log      zerolog.Logger

	rt            *core.Runtime
	supervisorRef *core.Ref
	discoveryRef  *core.Ref
	worker        *discovery.Worker

	services *LifecycleManager

	shutdownOnce sync.Once
	outcomeOnce  sync.Once
	fut          *core.ShutdownFuture
	done         chan struct{}
}

// New creates an unstarted App.
func New(opts Options) *App {
	return &App{
		opts: opts,
		done: make(chan struct{}),
	}
}

// Start performs the startup sequence in strict order: configuration,
// logging, runtime, supervisor, discovery worker creation, discovery
// worker start, then the auxiliary services. Any failure aborts the
// remaining steps, tears down whatever already started and is returned
// to the caller as a fatal startup error.
func (a *App) Start(ctx context.Context) error {
	loader := config.NewLoader().SetBasePath(a.opts.BasePath)
	if a.opts.OverridePath != "" {
		loader.SetOverridePath(a.opts.OverridePath)
	}

	snapshot, err := loader.Load()
	if err != nil {
		return fmt.Errorf("configuration load failed: %w", err)
	}
	a.snapshot = snapshot
	a.cfg = snapshot.Config
	if a.opts.Version != "" {
		a.cfg.App.Version = a.opts.Version
	}

	if a.opts.Logger != nil {
		a.log = *a.opts.Logger
	} else {
		logger, err := logging.New(a.cfg.Log, a.cfg.App.Name)
		if err != nil {
			return fmt.Errorf("logging setup failed: %w", err)
		}
		a.log = logger
	}

	core.RegisterMetrics()

	rt, err := core.New(a.cfg.Runtime.Name, core.RuntimeOptions{
		MailboxSize:     a.cfg.Runtime.MailboxSize,
		MaxActors:       a.cfg.Runtime.MaxActors,
		ProcessTimeout:  a.cfg.Runtime.ProcessTimeout(),
		ShutdownTimeout: a.cfg.Runtime.ShutdownTimeout(),
		Logger:          a.log,
	})
	if err != nil {
		return fmt.Errorf("runtime creation failed: %w", err)
	}
	a.rt = rt

	supRef, err := supervisor.Spawn(rt, supervisor.Config{
		Name:        a.cfg.Supervisor.Name,
		MaxRestarts: a.cfg.Supervisor.MaxRestarts,
		Logger:      a.log,
	})
	if err != nil {
		return a.failStartup(fmt.Errorf("supervisor spawn failed: %w", err))
	}
	a.supervisorRef = supRef

	// The handoff is synchronous but bounded: the ask blocks until the
	// supervisor replies with the worker's reference, the configured
	// timeout elapses, or ctx is cancelled by a termination signal.
	spec := a.discoverySpec()
	askCtx, cancel := context.WithTimeout(ctx, a.cfg.Supervisor.Timeout())
	discRef, err := supervisor.AskCreateChild(askCtx, supRef, spec, a.cfg.Discovery.WorkerName)
	cancel()
	if err != nil {
		return a.failStartup(fmt.Errorf("discovery worker creation failed: %w", err))
	}
	a.discoveryRef = discRef

	// Start is sent only once the worker's reference is in hand.
	if err := discRef.Send(discovery.Start{}); err != nil {
		return a.failStartup(fmt.Errorf("discovery worker start failed: %w", err))
	}

	if err := a.startServices(loader); err != nil {
		return a.failStartup(err)
	}

	a.log.Info().
		Str("version", a.cfg.App.Version).
		Str("environment", a.cfg.App.Environment.String()).
		Str("runtime", rt.Name()).
		Str("instance", rt.InstanceID()).
		Msg("kestrel started")

	return nil
}

// Run starts the application and blocks until a termination signal or
// context cancellation, then drives the asynchronous shutdown to
// completion. The returned error is nil only for a clean shutdown.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	stop()

	outcome := a.Shutdown().Outcome()
	<-a.done

	if !outcome.OK() {
		return fmt.Errorf("shutdown incomplete: %w", outcome.Err)
	}
	return nil
}

// Shutdown initiates the asynchronous teardown and returns the shutdown
// future. It is idempotent: every call returns the same future, the
// outcome is logged exactly once, and the auxiliary services are
// stopped once the runtime has drained.
func (a *App) Shutdown() *core.ShutdownFuture {
	a.shutdownOnce.Do(func() {
		a.log.Info().Msg("shutdown requested")
		a.fut = a.rt.ShutdownAsync()

		go func() {
			defer close(a.done)

			outcome := a.fut.Outcome()
			a.logOutcome(outcome)

			if a.services != nil {
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := a.services.Stop(stopCtx); err != nil {
					a.log.Error().Err(err).Msg("auxiliary services stopped with errors")
				}
			}
		}()
	})
	return a.fut
}

// Done is closed once the shutdown outcome has been logged and the
// auxiliary services are stopped.
func (a *App) Done() <-chan struct{} {
	return a.done
}

// Runtime returns the actor runtime, valid after a successful Start.
func (a *App) Runtime() *core.Runtime {
	return a.rt
}

// Config returns the configuration snapshot the process started with.
func (a *App) Config() *config.Config {
	return a.cfg
}

// SupervisorRef returns the supervisor actor's reference.
func (a *App) SupervisorRef() *core.Ref {
	return a.supervisorRef
}

// DiscoveryRef returns the discovery worker's reference.
func (a *App) DiscoveryRef() *core.Ref {
	return a.discoveryRef
}

// discoverySpec resolves the discovery worker actor specification.
func (a *App) discoverySpec() core.Spec {
	if a.opts.DiscoverySpec != nil {
		return a.opts.DiscoverySpec(a.cfg.Discovery, a.log)
	}

	a.worker = discovery.NewWorker(discovery.Config{
		RefreshInterval: a.cfg.Discovery.RefreshInterval(),
		StaleAfter:      a.cfg.Discovery.StaleAfter(),
		Logger:          a.log,
	})
	return a.worker.Spec()
}

// startServices registers and starts the auxiliary services: the
// monitoring HTTP server when enabled, and the override-file watcher.
func (a *App) startServices(loader *config.Loader) error {
	a.services = NewLifecycleManager(a.log)

	if a.cfg.Monitor.Enabled {
		srv := monitor.NewServer(a.cfg.Monitor, a.health, a.log)
		if err := a.services.Register("monitor", srv); err != nil {
			return err
		}
	}

	watcher, err := config.NewWatcher(loader, a.snapshot)
	if err != nil {
		return fmt.Errorf("config watcher creation failed: %w", err)
	}
	watcher.OnDrift(func(current, next *config.Snapshot) {
		a.log.Warn().Msg("configuration drift detected, restart to apply")
	})
	err = a.services.Register("config-watcher", &funcService{
		name:  "config-watcher",
		start: func(context.Context) error { return watcher.Start() },
		stop:  func(context.Context) error { return watcher.Stop() },
	})
	if err != nil {
		return err
	}

	if err := a.services.Start(context.Background()); err != nil {
		return fmt.Errorf("auxiliary services failed to start: %w", err)
	}
	return nil
}

// health builds the payload served on the monitoring health endpoint.
func (a *App) health() monitor.Health {
	return monitor.Health{
		Status:  "ok",
		Runtime: a.rt.Name(),
		Actors:  a.rt.Stats(),
	}
}

// failStartup tears down whatever already started and passes the fatal
// error through.
func (a *App) failStartup(err error) error {
	a.log.Error().Err(err).Msg("startup failed")

	if a.services != nil {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		a.services.Stop(stopCtx)
		cancel()
	}
	if a.rt != nil {
		a.rt.ShutdownAsync().Outcome()
	}
	return err
}

// logOutcome writes the shutdown outcome log line exactly once.
func (a *App) logOutcome(outcome core.Outcome) {
	a.outcomeOnce.Do(func() {
		if outcome.OK() {
			a.log.Info().Msg("shutdown complete")
		} else {
			a.log.Error().Err(outcome.Err).Msg("shutdown finished with errors")
		}
	})
}
