package discovery

import (
	"context"
	"testing"
	"time"

	"github.com/kestrelsys/kestrel/core"
)

func newTestRuntime(t *testing.T) *core.Runtime {
	t.Helper()
	rt, err := core.New("test", core.DefaultRuntimeOptions())
	if err != nil {
		t.Fatalf("Failed to create runtime: %v", err)
	}
	t.Cleanup(func() { rt.ShutdownAsync().Outcome() })
	return rt
}

func TestWorkerStateMachine(t *testing.T) {
	rt := newTestRuntime(t)

	worker := NewWorker(Config{RefreshInterval: 10 * time.Millisecond})
	if worker.State() != StateCreated {
		t.Fatalf("Expected initial state created, got %s", worker.State())
	}

	ref, err := rt.Spawn(nil, worker.Spec(), "discovery")
	if err != nil {
		t.Fatalf("Failed to spawn worker: %v", err)
	}

	// The worker must be ready for Start the moment its reference exists.
	if err := ref.Send(Start{}); err != nil {
		t.Fatalf("Failed to send Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for worker.State() != StateRunning {
		if time.Now().After(deadline) {
			t.Fatalf("Worker never reached running, state %s", worker.State())
		}
		time.Sleep(5 * time.Millisecond)
	}

	rt.ShutdownAsync().Outcome()

	if worker.State() != StateTerminated {
		t.Errorf("Expected terminated after shutdown, got %s", worker.State())
	}
}

func TestDuplicateStartIgnored(t *testing.T) {
	rt := newTestRuntime(t)

	worker := NewWorker(Config{RefreshInterval: 10 * time.Millisecond})
	ref, err := rt.Spawn(nil, worker.Spec(), "discovery")
	if err != nil {
		t.Fatalf("Failed to spawn worker: %v", err)
	}

	for i := 0; i < 3; i++ {
		if err := ref.Send(Start{}); err != nil {
			t.Fatalf("Failed to send Start: %v", err)
		}
	}

	deadline := time.Now().Add(2 * time.Second)
	for worker.State() != StateRunning {
		if time.Now().After(deadline) {
			t.Fatal("Worker never reached running")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAnnounceAndQuery(t *testing.T) {
	rt := newTestRuntime(t)

	worker := NewWorker(Config{RefreshInterval: time.Hour})
	ref, err := rt.Spawn(nil, worker.Spec(), "discovery")
	if err != nil {
		t.Fatalf("Failed to spawn worker: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if _, err := ref.Ask(ctx, Announce{Name: "peer-1", Address: "10.0.0.1:7000"}); err != nil {
		t.Fatalf("Announce failed: %v", err)
	}
	if _, err := ref.Ask(ctx, Announce{Name: "peer-2", Address: "10.0.0.2:7000", Tags: []string{"edge"}}); err != nil {
		t.Fatalf("Announce failed: %v", err)
	}

	reply, err := ref.Ask(ctx, PeersQuery{})
	if err != nil {
		t.Fatalf("PeersQuery failed: %v", err)
	}

	peers, ok := reply.([]Peer)
	if !ok {
		t.Fatalf("Expected []Peer reply, got %T", reply)
	}
	if len(peers) != 2 {
		t.Fatalf("Expected 2 peers, got %d", len(peers))
	}
	if peers[0].Name != "peer-1" || peers[1].Name != "peer-2" {
		t.Errorf("Unexpected peer ordering: %v, %v", peers[0].Name, peers[1].Name)
	}
	if peers[0].Status != PeerStatusAlive {
		t.Errorf("Expected peer-1 alive, got %s", peers[0].Status)
	}
}

func TestRegistryStaleness(t *testing.T) {
	registry := NewRegistry(50 * time.Millisecond)

	if err := registry.Announce("peer-1", "10.0.0.1:7000"); err != nil {
		t.Fatalf("Announce failed: %v", err)
	}

	if stale := registry.Refresh(time.Now()); stale != 0 {
		t.Errorf("Fresh peer should not go stale, got %d", stale)
	}

	if stale := registry.Refresh(time.Now().Add(time.Second)); stale != 1 {
		t.Errorf("Expected 1 peer to go stale, got %d", stale)
	}

	peers := registry.Snapshot()
	if len(peers) != 1 || peers[0].Status != PeerStatusStale {
		t.Errorf("Expected a single stale peer, got %+v", peers)
	}

	// A fresh announcement revives the entry.
	if err := registry.Announce("peer-1", "10.0.0.1:7000"); err != nil {
		t.Fatalf("Announce failed: %v", err)
	}
	if registry.Snapshot()[0].Status != PeerStatusAlive {
		t.Error("Announced peer should be alive again")
	}
}

func TestRegistryRejectsEmptyName(t *testing.T) {
	registry := NewRegistry(time.Minute)
	if err := registry.Announce("", "10.0.0.1:7000"); err == nil {
		t.Error("Expected error for empty peer name")
	}
}

func TestWorkerStopsPromptly(t *testing.T) {
	rt := newTestRuntime(t)

	worker := NewWorker(Config{RefreshInterval: time.Hour})
	ref, err := rt.Spawn(nil, worker.Spec(), "discovery")
	if err != nil {
		t.Fatalf("Failed to spawn worker: %v", err)
	}

	if err := ref.Send(Start{}); err != nil {
		t.Fatalf("Failed to send Start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for worker.State() != StateRunning {
		if time.Now().After(deadline) {
			t.Fatal("Worker never reached running")
		}
		time.Sleep(5 * time.Millisecond)
	}

	started := time.Now()
	outcome := rt.ShutdownAsync().Outcome()
	if !outcome.OK() {
		t.Fatalf("Shutdown failed: %v", outcome.Err)
	}
	if elapsed := time.Since(started); elapsed > 5*time.Second {
		t.Errorf("Worker held up shutdown for %s", elapsed)
	}
}
