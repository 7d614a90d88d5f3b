package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/kestrelsys/kestrel/config"
	"github.com/kestrelsys/kestrel/core"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()

	core.RegisterMetrics()

	cfg := config.MonitorConfig{
		Enabled: true,
		Address: "127.0.0.1:0",
	}
	health := func() Health {
		return Health{
			Status:  "ok",
			Runtime: "test",
			Actors:  []core.Stats{},
		}
	}

	srv := NewServer(cfg, health, zerolog.Nop())
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Failed to start monitor server: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Stop(ctx)
	})
	return srv
}

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(fmt.Sprintf("http://%s/healthz", srv.Addr()))
	if err != nil {
		t.Fatalf("Health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Expected JSON content type, got %q", ct)
	}

	var payload Health
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("Failed to decode health payload: %v", err)
	}
	if payload.Status != "ok" {
		t.Errorf("Expected status ok, got %q", payload.Status)
	}
	if payload.Runtime != "test" {
		t.Errorf("Expected runtime test, got %q", payload.Runtime)
	}
	if payload.CheckedAt.IsZero() {
		t.Error("CheckedAt should be populated by the server")
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(fmt.Sprintf("http://%s/metrics", srv.Addr()))
	if err != nil {
		t.Fatalf("Metrics request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", resp.StatusCode)
	}
}

func TestStopUnblocksPromptly(t *testing.T) {
	srv := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	started := time.Now()
	if err := srv.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if elapsed := time.Since(started); elapsed > time.Second {
		t.Errorf("Stop took too long: %s", elapsed)
	}

	// Stopping twice is harmless.
	if err := srv.Stop(ctx); err != nil {
		t.Errorf("Second Stop failed: %v", err)
	}
}
