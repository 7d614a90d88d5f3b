package bootstrap

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kestrelsys/kestrel/config"
	"github.com/kestrelsys/kestrel/core"
	"github.com/kestrelsys/kestrel/discovery"
)

// newTestApp builds an App with a quiet logger and a temp override path
// so tests never touch the working directory.
func newTestApp(t *testing.T, opts Options) *App {
	t.Helper()

	if opts.Logger == nil {
		nop := zerolog.Nop()
		opts.Logger = &nop
	}
	if opts.OverridePath == "" {
		opts.OverridePath = filepath.Join(t.TempDir(), "override.yaml")
	}
	return New(opts)
}

func startApp(t *testing.T, app *App) {
	t.Helper()

	if err := app.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start app: %v", err)
	}
	t.Cleanup(func() {
		app.Shutdown().Outcome()
		<-app.Done()
	})
}

func TestStartSequence(t *testing.T) {
	app := newTestApp(t, Options{})
	startApp(t, app)

	if app.SupervisorRef() == nil {
		t.Fatal("Supervisor reference should be set after Start")
	}
	if app.DiscoveryRef() == nil {
		t.Fatal("Discovery reference should be set after Start")
	}

	want := "supervisor/discovery"
	if got := app.DiscoveryRef().Name(); got != want {
		t.Errorf("Expected discovery name %q, got %q", want, got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for app.worker.State() != discovery.StateRunning {
		if time.Now().After(deadline) {
			t.Fatalf("Discovery worker never reached running, state %s", app.worker.State())
		}
		time.Sleep(5 * time.Millisecond)
	}

	outcome := app.Shutdown().Outcome()
	if !outcome.OK() {
		t.Fatalf("Shutdown failed: %v", outcome.Err)
	}
	<-app.Done()

	if app.worker.State() != discovery.StateTerminated {
		t.Errorf("Expected worker terminated after shutdown, got %s", app.worker.State())
	}
}

// recordingWorker captures when its factory finished constructing it and
// when the first Start message arrived.
type recordingWorker struct {
	factoryDone time.Time
	startAt     time.Time
	starts      int32
	started     chan struct{}
}

func (h *recordingWorker) Receive(ctx context.Context, msg *core.Message) (interface{}, error) {
	if _, ok := msg.Payload.(discovery.Start); ok {
		if atomic.AddInt32(&h.starts, 1) == 1 {
			h.startAt = time.Now()
			close(h.started)
		}
	}
	return nil, nil
}

func TestStartSentOnlyAfterWorkerCreated(t *testing.T) {
	h := &recordingWorker{started: make(chan struct{})}

	app := newTestApp(t, Options{
		DiscoverySpec: func(cfg config.DiscoveryConfig, logger zerolog.Logger) core.Spec {
			return core.Spec{
				Factory: func() (core.Handler, error) {
					// Slow construction must delay the Start message,
					// not race with it.
					time.Sleep(100 * time.Millisecond)
					h.factoryDone = time.Now()
					return h, nil
				},
			}
		},
	})
	startApp(t, app)

	select {
	case <-h.started:
	case <-time.After(2 * time.Second):
		t.Fatal("Worker never received Start")
	}

	if h.startAt.Before(h.factoryDone) {
		t.Errorf("Start arrived at %v, before construction finished at %v", h.startAt, h.factoryDone)
	}

	time.Sleep(50 * time.Millisecond)
	if n := atomic.LoadInt32(&h.starts); n != 1 {
		t.Errorf("Expected exactly one Start message, got %d", n)
	}
}

// lineWriter collects whole log lines for inspection.
type lineWriter struct {
	mu    sync.Mutex
	lines []string
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lines = append(w.lines, string(p))
	return len(p), nil
}

func (w *lineWriter) count(substr string) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	var n int
	for _, line := range w.lines {
		if strings.Contains(line, substr) {
			n++
		}
	}
	return n
}

func TestShutdownIdempotentLogsOutcomeOnce(t *testing.T) {
	out := &lineWriter{}
	logger := zerolog.New(out)

	app := newTestApp(t, Options{Logger: &logger})
	startApp(t, app)

	var wg sync.WaitGroup
	futures := make([]*core.ShutdownFuture, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			futures[i] = app.Shutdown()
		}(i)
	}
	wg.Wait()

	for i := 1; i < 4; i++ {
		if futures[i] != futures[0] {
			t.Fatal("Concurrent Shutdown calls must return the same future")
		}
	}

	outcome := futures[0].Outcome()
	if !outcome.OK() {
		t.Fatalf("Shutdown failed: %v", outcome.Err)
	}
	<-app.Done()

	// Calling again after completion changes nothing.
	app.Shutdown().Outcome()

	if n := out.count("shutdown complete"); n != 1 {
		t.Errorf("Expected exactly one outcome log line, got %d", n)
	}
}

func TestStartFailsOnMalformedBaseConfig(t *testing.T) {
	basePath := filepath.Join(t.TempDir(), "base.yaml")
	if err := os.WriteFile(basePath, []byte("app: [unclosed"), 0o644); err != nil {
		t.Fatalf("Failed to write base config: %v", err)
	}

	app := newTestApp(t, Options{BasePath: basePath})
	if err := app.Start(context.Background()); err == nil {
		t.Fatal("Expected Start to fail on malformed base config")
	}
}

func TestStartFailsOnMissingBaseConfig(t *testing.T) {
	app := newTestApp(t, Options{
		BasePath: filepath.Join(t.TempDir(), "nope.yaml"),
	})
	if err := app.Start(context.Background()); err == nil {
		t.Fatal("Expected Start to fail on missing base config")
	}
}

func TestRunStopsOnContextCancel(t *testing.T) {
	app := newTestApp(t, Options{})

	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- app.Run(ctx) }()

	// Give startup time to complete, then request termination.
	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancellation")
	}
}

func TestStartAbortedBySignalContext(t *testing.T) {
	// A cancelled context must abort the bounded worker-creation wait
	// instead of hanging for the full supervisor timeout.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	app := newTestApp(t, Options{
		DiscoverySpec: func(cfg config.DiscoveryConfig, logger zerolog.Logger) core.Spec {
			return core.Spec{
				Factory: func() (core.Handler, error) {
					return &recordingWorker{started: make(chan struct{})}, nil
				},
			}
		},
	})

	started := time.Now()
	err := app.Start(ctx)
	if err == nil {
		t.Fatal("Expected Start to fail under a cancelled context")
	}
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		t.Errorf("Aborted startup took too long: %s", elapsed)
	}
}
