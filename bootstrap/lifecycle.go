// Package bootstrap wires configuration, logging, the actor runtime and
// the auxiliary services into a running kestrel process.
package bootstrap

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Service is an auxiliary component managed by the lifecycle manager,
// started after the actor runtime is up and stopped during teardown.
type Service interface {
	// Name identifies the service
	Name() string

	// Start brings the service up; it must return once the service runs
	Start(ctx context.Context) error

	// Stop tears the service down within the context deadline
	Stop(ctx context.Context) error
}

// LifecycleManager starts registered services in dependency order and
// stops them in reverse start order.
type LifecycleManager struct {
	// services holds all registered services
	services map[string]Service

	// dependencies tracks service dependencies
	dependencies map[string][]string

	// startOrder tracks the order services were started
	startOrder []string

	// mutex protects concurrent access
	mutex sync.Mutex

	// started indicates if the lifecycle manager has been started
	started bool

	// timeout bounds each individual Start and Stop call
	timeout time.Duration

	// log receives lifecycle events
	log zerolog.Logger
}

// NewLifecycleManager creates a new lifecycle manager
func NewLifecycleManager(logger zerolog.Logger) *LifecycleManager {
	return &LifecycleManager{
		services:     make(map[string]Service),
		dependencies: make(map[string][]string),
		timeout:      30 * time.Second,
		log:          logger.With().Str("component", "lifecycle").Logger(),
	}
}

// SetTimeout sets the per-service Start and Stop budget.
func (lm *LifecycleManager) SetTimeout(timeout time.Duration) {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()
	lm.timeout = timeout
}

// Register registers a service with the lifecycle manager
func (lm *LifecycleManager) Register(name string, service Service, deps ...string) error {
	if name == "" {
		return fmt.Errorf("service name cannot be empty")
	}
	if service == nil {
		return fmt.Errorf("service cannot be nil")
	}

	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	if lm.started {
		return fmt.Errorf("cannot register service %s: lifecycle manager already started", name)
	}
	if _, exists := lm.services[name]; exists {
		return fmt.Errorf("service %s is already registered", name)
	}

	lm.services[name] = service
	lm.dependencies[name] = deps
	return nil
}

// Start starts all services in dependency order
func (lm *LifecycleManager) Start(ctx context.Context) error {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	if lm.started {
		return fmt.Errorf("lifecycle manager already started")
	}

	startOrder, err := lm.calculateStartOrder()
	if err != nil {
		return fmt.Errorf("failed to calculate start order: %w", err)
	}

	for _, serviceName := range startOrder {
		service := lm.services[serviceName]

		startCtx, cancel := context.WithTimeout(ctx, lm.timeout)
		err := service.Start(startCtx)
		cancel()

		if err != nil {
			return fmt.Errorf("failed to start service %s: %w", serviceName, err)
		}

		lm.startOrder = append(lm.startOrder, serviceName)
		lm.log.Debug().Str("service", serviceName).Msg("service started")
	}

	lm.started = true
	return nil
}

// Stop stops all services in reverse start order. Every service is
// stopped even if an earlier one fails; the last error is returned.
func (lm *LifecycleManager) Stop(ctx context.Context) error {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	if !lm.started {
		return nil
	}

	var lastError error

	for i := len(lm.startOrder) - 1; i >= 0; i-- {
		serviceName := lm.startOrder[i]
		service := lm.services[serviceName]

		stopCtx, cancel := context.WithTimeout(ctx, lm.timeout)
		err := service.Stop(stopCtx)
		cancel()

		if err != nil {
			lastError = err
			lm.log.Error().Err(err).Str("service", serviceName).Msg("service stop failed")
		} else {
			lm.log.Debug().Str("service", serviceName).Msg("service stopped")
		}
	}

	lm.started = false
	lm.startOrder = nil
	return lastError
}

// Services returns all registered service names, sorted.
func (lm *LifecycleManager) Services() []string {
	lm.mutex.Lock()
	defer lm.mutex.Unlock()

	names := make([]string, 0, len(lm.services))
	for name := range lm.services {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// calculateStartOrder orders services so every dependency starts before
// its dependents, using Kahn's algorithm.
func (lm *LifecycleManager) calculateStartOrder() ([]string, error) {
	inDegree := make(map[string]int)
	graph := make(map[string][]string)

	for service := range lm.services {
		inDegree[service] = 0
		graph[service] = []string{}
	}

	for service, deps := range lm.dependencies {
		for _, dep := range deps {
			if _, exists := lm.services[dep]; !exists {
				return nil, fmt.Errorf("dependency %s of service %s is not registered", dep, service)
			}
			graph[dep] = append(graph[dep], service)
			inDegree[service]++
		}
	}

	queue := []string{}
	for service, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, service)
		}
	}
	// Deterministic order among independent services.
	sort.Strings(queue)

	result := []string{}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		result = append(result, current)

		sort.Strings(graph[current])
		for _, dependent := range graph[current] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	if len(result) != len(lm.services) {
		return nil, fmt.Errorf("circular dependency detected")
	}

	return result, nil
}

// funcService adapts a pair of functions into a Service.
type funcService struct {
	name  string
	start func(context.Context) error
	stop  func(context.Context) error
}

func (s *funcService) Name() string { return s.name }

func (s *funcService) Start(ctx context.Context) error {
	if s.start == nil {
		return nil
	}
	return s.start(ctx)
}

func (s *funcService) Stop(ctx context.Context) error {
	if s.stop == nil {
		return nil
	}
	return s.stop(ctx)
}
