package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/boristopalov/arbiter/pkg/environment"
)

const (
	DefaultDuration  = 10 * time.Second
	DefaultLogLevel  = "info"
	DefaultBlockRate = 1.0
	DefaultBehavior  = BehaviorHeartbeat
)

// Agent behaviors understood by the experiment runner.
const (
	BehaviorHeartbeat = "heartbeat"
	BehaviorLLM       = "llm"
)

// Schedule actions.
const (
	ActionStart  = "start"
	ActionResume = "resume"
	ActionPause  = "pause"
	ActionStop   = "stop"
)

var ErrInvalidConfig = errors.New("invalid experiment config")

type ExperimentConfig struct {
	Name         string        `yaml:"name"`
	Duration     time.Duration `yaml:"duration"`
	Environments []EnvConfig   `yaml:"environments"`
	Schedule     []StepConfig  `yaml:"schedule"`
	Logging      LogConfig     `yaml:"logging"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

type EnvConfig struct {
	Label     string        `yaml:"label"`
	BlockRate *float64      `yaml:"block_rate"`
	Seed      uint64        `yaml:"seed"`
	Autostart *bool         `yaml:"autostart"`
	Agents    []AgentConfig `yaml:"agents"`
}

// Rate returns the configured block rate, or DefaultBlockRate when unset.
func (e EnvConfig) Rate() float64 {
	if e.BlockRate == nil {
		return DefaultBlockRate
	}
	return *e.BlockRate
}

// Starts reports whether the environment is started when the run begins.
func (e EnvConfig) Starts() bool {
	return e.Autostart == nil || *e.Autostart
}

type AgentConfig struct {
	ID             string `yaml:"id"`
	Behavior       string `yaml:"behavior"`
	Provider       string `yaml:"provider"`
	Model          string `yaml:"model"`
	Task           string `yaml:"task"`
	History        int    `yaml:"history"`
	BroadcastEvery int    `yaml:"broadcast_every"`
	MemoryCapacity int    `yaml:"memory_capacity"`
}

// StepConfig applies Action to Environment once After has elapsed since the
// run began.
type StepConfig struct {
	After       time.Duration `yaml:"after"`
	Action      string        `yaml:"action"`
	Environment string        `yaml:"environment"`
}

// LoadConfig reads a YAML experiment file, fills defaults and validates it.
func LoadConfig(path string) (*ExperimentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config load failed (%s): %w", path, err)
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes, defaults and validates a YAML document.
func Parse(data []byte) (*ExperimentConfig, error) {
	var cfg ExperimentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config parse failed: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *ExperimentConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "experiment"
	}
	if c.Duration <= 0 {
		c.Duration = DefaultDuration
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
	for i := range c.Environments {
		env := &c.Environments[i]
		if env.BlockRate == nil {
			rate := DefaultBlockRate
			env.BlockRate = &rate
		}
		for j := range env.Agents {
			if env.Agents[j].Behavior == "" {
				env.Agents[j].Behavior = DefaultBehavior
			}
		}
	}
	for i := range c.Schedule {
		c.Schedule[i].Action = strings.ToLower(strings.TrimSpace(c.Schedule[i].Action))
	}
}

// Validate reports every problem found, joined into one error.
func (c *ExperimentConfig) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
		fail("unknown log level %q", c.Logging.Level)
	}
	if len(c.Environments) == 0 {
		fail("at least one environment is required")
	}

	labels := make(map[string]bool, len(c.Environments))
	agentIDs := make(map[string]bool)
	for i, env := range c.Environments {
		if strings.TrimSpace(env.Label) == "" {
			fail("environments[%d]: label is required", i)
		} else if labels[env.Label] {
			fail("environments[%d]: duplicate label %q", i, env.Label)
		}
		labels[env.Label] = true
		if err := (environment.Config{BlockRate: env.Rate(), Seed: env.Seed}).Validate(); err != nil {
			fail("environment %q: %w", env.Label, err)
		}

		for j, a := range env.Agents {
			if a.ID != "" {
				if agentIDs[a.ID] {
					fail("environment %q: agents[%d]: duplicate agent id %q", env.Label, j, a.ID)
				}
				agentIDs[a.ID] = true
			}
			switch a.Behavior {
			case BehaviorHeartbeat:
			case BehaviorLLM:
				if a.Provider == "" {
					fail("environment %q: agents[%d]: llm behavior needs a provider", env.Label, j)
				}
			default:
				fail("environment %q: agents[%d]: unknown behavior %q", env.Label, j, a.Behavior)
			}
		}
	}

	for i, step := range c.Schedule {
		switch step.Action {
		case ActionStart, ActionResume, ActionPause, ActionStop:
		default:
			fail("schedule[%d]: unknown action %q", i, step.Action)
		}
		if !labels[step.Environment] {
			fail("schedule[%d]: unknown environment %q", i, step.Environment)
		}
		if step.After < 0 {
			fail("schedule[%d]: after must not be negative", i)
		}
	}

	return errors.Join(errs...)
}
