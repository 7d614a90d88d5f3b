package bootstrap

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
)

// orderedService records its start and stop into shared journals.
type orderedService struct {
	name     string
	journal  *[]string
	startErr error
}

func (s *orderedService) Name() string { return s.name }

func (s *orderedService) Start(ctx context.Context) error {
	if s.startErr != nil {
		return s.startErr
	}
	*s.journal = append(*s.journal, "start:"+s.name)
	return nil
}

func (s *orderedService) Stop(ctx context.Context) error {
	*s.journal = append(*s.journal, "stop:"+s.name)
	return nil
}

func TestLifecycleStartOrder(t *testing.T) {
	lm := NewLifecycleManager(zerolog.Nop())

	var journal []string
	if err := lm.Register("web", &orderedService{name: "web", journal: &journal}, "db"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := lm.Register("db", &orderedService{name: "db", journal: &journal}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := lm.Register("cache", &orderedService{name: "cache", journal: &journal}, "db"); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if err := lm.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	want := []string{"start:db", "start:cache", "start:web"}
	if len(journal) != len(want) {
		t.Fatalf("Expected %d start events, got %v", len(want), journal)
	}
	for i, event := range want {
		if journal[i] != event {
			t.Errorf("Expected event %d to be %s, got %s", i, event, journal[i])
		}
	}

	journal = journal[:0]
	if err := lm.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	// Reverse of the start order.
	want = []string{"stop:web", "stop:cache", "stop:db"}
	for i, event := range want {
		if journal[i] != event {
			t.Errorf("Expected event %d to be %s, got %s", i, event, journal[i])
		}
	}
}

func TestLifecycleStartFailureAborts(t *testing.T) {
	lm := NewLifecycleManager(zerolog.Nop())

	var journal []string
	boom := errors.New("boom")
	lm.Register("a", &orderedService{name: "a", journal: &journal})
	lm.Register("b", &orderedService{name: "b", journal: &journal, startErr: boom}, "a")
	lm.Register("c", &orderedService{name: "c", journal: &journal}, "b")

	err := lm.Start(context.Background())
	if !errors.Is(err, boom) {
		t.Fatalf("Expected start failure, got %v", err)
	}

	for _, event := range journal {
		if event == "start:c" {
			t.Error("Service c should not start after b failed")
		}
	}
}

func TestLifecycleCircularDependency(t *testing.T) {
	lm := NewLifecycleManager(zerolog.Nop())

	var journal []string
	lm.Register("a", &orderedService{name: "a", journal: &journal}, "b")
	lm.Register("b", &orderedService{name: "b", journal: &journal}, "a")

	if err := lm.Start(context.Background()); err == nil {
		t.Fatal("Expected circular dependency error")
	}
}

func TestLifecycleUnknownDependency(t *testing.T) {
	lm := NewLifecycleManager(zerolog.Nop())

	var journal []string
	lm.Register("a", &orderedService{name: "a", journal: &journal}, "missing")

	if err := lm.Start(context.Background()); err == nil {
		t.Fatal("Expected unknown dependency error")
	}
}

func TestLifecycleRegisterValidation(t *testing.T) {
	lm := NewLifecycleManager(zerolog.Nop())

	var journal []string
	if err := lm.Register("", &orderedService{name: "x", journal: &journal}); err == nil {
		t.Error("Expected error for empty name")
	}
	if err := lm.Register("x", nil); err == nil {
		t.Error("Expected error for nil service")
	}

	if err := lm.Register("x", &orderedService{name: "x", journal: &journal}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := lm.Register("x", &orderedService{name: "x", journal: &journal}); err == nil {
		t.Error("Expected error for duplicate registration")
	}
}
