// Package manager owns every environment by label and is the only place
// that starts, pauses, resumes or stops an environment's worker.
//
// Legal transitions:
//
//	Initialization --start--> Running
//	Running        --pause--> Paused
//	Paused         --start--> Running
//	Running        --stop---> Stopped
//	Paused         --stop---> Stopped
//
// Stopped is terminal. Any other request fails with a named error.
package manager

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/boristopalov/arbiter/pkg/agent"
	"github.com/boristopalov/arbiter/pkg/environment"
)

// worker is what the manager keeps for a started environment.
type worker struct {
	handle *environment.Handle
	state  *environment.AtomicState
}

// Manager is the registry of environments. Registry changes are serialized
// by a mutex; StopEnvironment releases it before joining the worker.
type Manager struct {
	mu           sync.Mutex
	environments map[string]*environment.Environment
	workers      map[string]worker
	logger       zerolog.Logger
}

type Option func(*Manager)

func WithLogger(logger zerolog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger
	}
}

func New(opts ...Option) *Manager {
	m := &Manager{
		environments: make(map[string]*environment.Environment),
		workers:      make(map[string]worker),
		logger:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// AddEnvironment registers a new environment in Initialization.
func (m *Manager) AddEnvironment(label string, blockRate float64, seed uint64) error {
	if strings.TrimSpace(label) == "" {
		return ErrInvalidLabel
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.environments[label]; ok {
		return fmt.Errorf("%w: %s", ErrAlreadyExists, label)
	}
	env, err := environment.New(label, environment.Config{BlockRate: blockRate, Seed: seed}, m.logger)
	if err != nil {
		return fmt.Errorf("environment %s: %w", label, err)
	}
	m.environments[label] = env
	m.logger.Debug().Str("environment", label).Float64("block_rate", blockRate).Uint64("seed", seed).Msg("environment added")
	return nil
}

// AddAgent attaches an unattached agent to the environment. Attachment is
// only accepted while the environment is still in Initialization.
func (m *Manager) AddAgent(a *agent.Agent, label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	env, ok := m.environments[label]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, label)
	}
	if s := env.State(); s != environment.Initialization {
		return fmt.Errorf("%w: %s is %s", ErrEnvironmentStarted, label, s)
	}
	if err := env.AddAgent(a); err != nil {
		return fmt.Errorf("environment %s: %w", label, err)
	}
	m.logger.Debug().Str("environment", label).Str("agent", a.ID()).Msg("agent attached")
	return nil
}

// StartEnvironment spawns the worker of an environment in Initialization or
// resumes a paused one.
func (m *Manager) StartEnvironment(label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	env, ok := m.environments[label]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, label)
	}

	switch env.State() {
	case environment.Initialization:
		h, err := env.Start()
		if err != nil {
			return fmt.Errorf("environment %s: %w", label, err)
		}
		m.workers[label] = worker{handle: h, state: env.StateCell()}
		m.logger.Info().Str("environment", label).Msg("environment started")
		return nil
	case environment.Paused:
		m.mustWorker(label)
		env.StateCell().Store(environment.Running)
		env.Signal().Notify()
		m.logger.Info().Str("environment", label).Msg("environment resumed")
		return nil
	case environment.Running:
		return fmt.Errorf("%w: %s", ErrAlreadyRunning, label)
	default:
		return fmt.Errorf("%w: %s", ErrCannotRestartStopped, label)
	}
}

// PauseEnvironment flips a running environment to Paused. The worker blocks
// itself once it observes the new state.
func (m *Manager) PauseEnvironment(label string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	env, ok := m.environments[label]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, label)
	}

	switch env.State() {
	case environment.Running:
		m.mustWorker(label)
		env.StateCell().Store(environment.Paused)
		m.logger.Info().Str("environment", label).Msg("environment paused")
		return nil
	case environment.Initialization:
		return fmt.Errorf("%w: %s", ErrNotRunning, label)
	case environment.Paused:
		return fmt.Errorf("%w: %s", ErrAlreadyPaused, label)
	default:
		return fmt.Errorf("%w: %s", ErrCannotPauseStopped, label)
	}
}

// StopEnvironment stops a running or paused environment and returns only
// after its worker has exited. The join has no timeout.
func (m *Manager) StopEnvironment(label string) error {
	m.mu.Lock()
	env, ok := m.environments[label]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotFound, label)
	}

	switch env.State() {
	case environment.Running, environment.Paused:
	case environment.Initialization:
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrNotRunning, label)
	default:
		m.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyStopped, label)
	}

	w := m.mustWorker(label)
	delete(m.workers, label)
	w.state.Store(environment.Stopped)
	// A paused worker is parked in Wait and needs the wake to see Stopped.
	env.Signal().Notify()
	w.handle.Cancel()
	m.mu.Unlock()

	w.handle.Join()
	m.logger.Info().Str("environment", label).Uint64("blocks", env.Blocks()).Msg("environment stopped")
	return nil
}

// StopAll stops every running or paused environment concurrently and waits
// for all of their workers. Environments in other states are left alone.
func (m *Manager) StopAll() error {
	m.mu.Lock()
	labels := make([]string, 0, len(m.workers))
	for label := range m.workers {
		labels = append(labels, label)
	}
	m.mu.Unlock()

	var g errgroup.Group
	for _, label := range labels {
		g.Go(func() error {
			err := m.StopEnvironment(label)
			// Someone else may have stopped it since we listed it.
			if errors.Is(err, ErrAlreadyStopped) {
				return nil
			}
			return err
		})
	}
	return g.Wait()
}

// State returns the lifecycle phase of an environment.
func (m *Manager) State(label string) (environment.State, error) {
	env, err := m.Environment(label)
	if err != nil {
		return 0, err
	}
	return env.State(), nil
}

// Environment returns the registered environment for label.
func (m *Manager) Environment(label string) (*environment.Environment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	env, ok := m.environments[label]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, label)
	}
	return env, nil
}

// Labels returns every registered label in sorted order.
func (m *Manager) Labels() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	labels := make([]string, 0, len(m.environments))
	for label := range m.environments {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

// mustWorker returns the worker entry of a running or paused environment.
// A missing entry means the two registries disagree, which is a bug here
// rather than a caller error.
func (m *Manager) mustWorker(label string) worker {
	w, ok := m.workers[label]
	if !ok {
		panic(fmt.Sprintf("manager: environment %q is started but has no worker entry", label))
	}
	return w
}
