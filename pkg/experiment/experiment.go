// Package experiment drives a Manager from an experiment config: it
// registers environments and agents, starts them, replays the schedule of
// pause/resume/stop requests and stops everything when the run ends.
package experiment

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/boristopalov/arbiter/pkg/agent"
	"github.com/boristopalov/arbiter/pkg/config"
	"github.com/boristopalov/arbiter/pkg/environment"
	"github.com/boristopalov/arbiter/pkg/manager"
	"github.com/boristopalov/arbiter/pkg/providers"
)

// BehaviorFactory builds the behavior of one configured agent.
type BehaviorFactory func(ctx context.Context, cfg config.AgentConfig) (agent.Behavior, error)

type Status struct {
	Running   bool
	StartTime time.Time
	EndTime   time.Time
	Errors    []error
}

// Report is the final picture of one environment.
type Report struct {
	Label  string
	State  environment.State
	Blocks uint64
	Agents int
}

type Experiment struct {
	config      *config.ExperimentConfig
	manager     *manager.Manager
	logger      zerolog.Logger
	newBehavior BehaviorFactory

	mu     sync.RWMutex
	status Status
}

type Option func(*Experiment)

func WithLogger(logger zerolog.Logger) Option {
	return func(e *Experiment) {
		e.logger = logger
	}
}

func WithBehaviorFactory(f BehaviorFactory) Option {
	return func(e *Experiment) {
		e.newBehavior = f
	}
}

func New(cfg *config.ExperimentConfig, opts ...Option) *Experiment {
	e := &Experiment{
		config:      cfg,
		logger:      zerolog.Nop(),
		newBehavior: DefaultBehavior,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With().Str("experiment", cfg.Name).Logger()
	e.manager = manager.New(manager.WithLogger(e.logger))
	return e
}

// DefaultBehavior maps configured behaviors onto the built-in ones.
func DefaultBehavior(ctx context.Context, cfg config.AgentConfig) (agent.Behavior, error) {
	switch cfg.Behavior {
	case config.BehaviorHeartbeat:
		return agent.Heartbeat{Every: cfg.BroadcastEvery}, nil
	case config.BehaviorLLM:
		client, err := providers.New(ctx, cfg.Provider)
		if err != nil {
			return nil, err
		}
		return &agent.LLM{
			Client:  client,
			Model:   cfg.Model,
			Task:    cfg.Task,
			History: cfg.History,
		}, nil
	default:
		return nil, fmt.Errorf("unknown behavior %q", cfg.Behavior)
	}
}

func (e *Experiment) Status() Status {
	e.mu.RLock()
	defer e.mu.RUnlock()
	status := e.status
	status.Errors = append([]error(nil), e.status.Errors...)
	return status
}

// Run executes the experiment until its duration elapses or ctx is done.
// Failed schedule steps are recorded in Status and do not end the run.
// Every started environment is stopped before Run returns.
func (e *Experiment) Run(ctx context.Context) ([]Report, error) {
	e.mu.Lock()
	if e.status.Running || !e.status.StartTime.IsZero() {
		e.mu.Unlock()
		return nil, fmt.Errorf("experiment %s has already run", e.config.Name)
	}
	e.status.Running = true
	e.status.StartTime = time.Now()
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.status.Running = false
		e.status.EndTime = time.Now()
		e.mu.Unlock()
	}()

	if err := e.setup(ctx); err != nil {
		return nil, err
	}

	runErr := e.runLoop(ctx)
	if err := e.manager.StopAll(); err != nil {
		return e.reports(), fmt.Errorf("failed to stop environments: %w", err)
	}
	return e.reports(), runErr
}

func (e *Experiment) setup(ctx context.Context) error {
	for _, envCfg := range e.config.Environments {
		if err := e.manager.AddEnvironment(envCfg.Label, envCfg.Rate(), envCfg.Seed); err != nil {
			return err
		}
		for _, agentCfg := range envCfg.Agents {
			behavior, err := e.newBehavior(ctx, agentCfg)
			if err != nil {
				return fmt.Errorf("failed to create agent behavior in %s: %w", envCfg.Label, err)
			}
			opts := []agent.AgentOption{}
			if agentCfg.ID != "" {
				opts = append(opts, agent.WithID(agentCfg.ID))
			}
			if agentCfg.MemoryCapacity > 0 {
				opts = append(opts, agent.WithMemoryCapacity(agentCfg.MemoryCapacity))
			}
			a, err := agent.New(behavior, opts...)
			if err != nil {
				return fmt.Errorf("failed to create agent: %w", err)
			}
			if err := e.manager.AddAgent(a, envCfg.Label); err != nil {
				return fmt.Errorf("failed to add agent to environment: %w", err)
			}
		}
	}
	return nil
}

func (e *Experiment) runLoop(ctx context.Context) error {
	start := time.Now()
	for _, envCfg := range e.config.Environments {
		if !envCfg.Starts() {
			continue
		}
		if err := e.manager.StartEnvironment(envCfg.Label); err != nil {
			return err
		}
	}

	deadline := time.NewTimer(e.config.Duration)
	defer deadline.Stop()

	for _, step := range e.schedule() {
		wait := time.NewTimer(time.Until(start.Add(step.After)))
		select {
		case <-ctx.Done():
			wait.Stop()
			e.logger.Info().Msg("experiment interrupted")
			return nil
		case <-deadline.C:
			wait.Stop()
			e.logger.Info().Dur("duration", e.config.Duration).Msg("experiment finished before its schedule")
			return nil
		case <-wait.C:
		}
		if err := e.apply(step); err != nil {
			e.logger.Warn().Err(err).Str("action", step.Action).Str("environment", step.Environment).Msg("schedule step failed")
			e.mu.Lock()
			e.status.Errors = append(e.status.Errors, err)
			e.mu.Unlock()
		}
	}

	select {
	case <-ctx.Done():
		e.logger.Info().Msg("experiment interrupted")
	case <-deadline.C:
		e.logger.Info().Dur("duration", e.config.Duration).Msg("experiment finished")
	}
	return nil
}

// schedule returns the steps ordered by offset, keeping file order for ties.
func (e *Experiment) schedule() []config.StepConfig {
	steps := append([]config.StepConfig(nil), e.config.Schedule...)
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].After < steps[j].After
	})
	return steps
}

func (e *Experiment) apply(step config.StepConfig) error {
	switch step.Action {
	case config.ActionStart, config.ActionResume:
		return e.manager.StartEnvironment(step.Environment)
	case config.ActionPause:
		return e.manager.PauseEnvironment(step.Environment)
	case config.ActionStop:
		return e.manager.StopEnvironment(step.Environment)
	default:
		return fmt.Errorf("unknown action %q", step.Action)
	}
}

func (e *Experiment) reports() []Report {
	labels := e.manager.Labels()
	reports := make([]Report, 0, len(labels))
	for _, label := range labels {
		env, err := e.manager.Environment(label)
		if err != nil {
			continue
		}
		reports = append(reports, Report{
			Label:  label,
			State:  env.State(),
			Blocks: env.Blocks(),
			Agents: len(env.Agents()),
		})
	}
	return reports
}
