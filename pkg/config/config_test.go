package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boristopalov/arbiter/pkg/environment"
)

const sampleConfig = `
name: demo
duration: 3s
logging:
  level: debug
environments:
  - label: alpha
    block_rate: 4
    seed: 42
    agents:
      - id: a1
        broadcast_every: 2
      - id: a2
        behavior: llm
        provider: openai
        model: gpt-4o-mini
        task: say hello
  - label: beta
    seed: 7
    autostart: false
schedule:
  - after: 500ms
    action: Pause
    environment: alpha
  - after: 1s
    action: start
    environment: beta
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "demo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "demo", cfg.Name)
	assert.Equal(t, 3*time.Second, cfg.Duration)
	assert.Equal(t, "debug", cfg.Logging.Level)
	require.Len(t, cfg.Environments, 2)

	alpha := cfg.Environments[0]
	assert.Equal(t, 4.0, alpha.Rate())
	assert.Equal(t, uint64(42), alpha.Seed)
	assert.True(t, alpha.Starts())
	require.Len(t, alpha.Agents, 2)
	assert.Equal(t, BehaviorHeartbeat, alpha.Agents[0].Behavior)
	assert.Equal(t, 2, alpha.Agents[0].BroadcastEvery)
	assert.Equal(t, "openai", alpha.Agents[1].Provider)

	beta := cfg.Environments[1]
	assert.Equal(t, DefaultBlockRate, beta.Rate())
	assert.False(t, beta.Starts())

	require.Len(t, cfg.Schedule, 2)
	assert.Equal(t, StepConfig{After: 500 * time.Millisecond, Action: ActionPause, Environment: "alpha"}, cfg.Schedule[0])
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDefaults(t *testing.T) {
	cfg, err := Parse([]byte("environments: [{label: solo}]"))
	require.NoError(t, err)
	assert.Equal(t, "experiment", cfg.Name)
	assert.Equal(t, DefaultDuration, cfg.Duration)
	assert.Equal(t, DefaultLogLevel, cfg.Logging.Level)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"no environments":  `name: empty`,
		"duplicate label":  `environments: [{label: a}, {label: a}]`,
		"missing label":    `environments: [{seed: 1}]`,
		"negative rate":    `environments: [{label: a, block_rate: -2}]`,
		"zero rate":        `environments: [{label: a, block_rate: 0}]`,
		"nan rate":         `environments: [{label: a, block_rate: .nan}]`,
		"inf rate":         `environments: [{label: a, block_rate: .inf}]`,
		"negative inf":     `environments: [{label: a, block_rate: -.inf}]`,
		"unknown behavior": `environments: [{label: a, agents: [{behavior: dance}]}]`,
		"llm no provider":  `environments: [{label: a, agents: [{behavior: llm}]}]`,
		"duplicate agent":  `environments: [{label: a, agents: [{id: x}]}, {label: b, agents: [{id: x}]}]`,
		"bad action":       "environments: [{label: a}]\nschedule: [{action: explode, environment: a}]",
		"bad target":       "environments: [{label: a}]\nschedule: [{action: stop, environment: zz}]",
		"bad log level":    "environments: [{label: a}]\nlogging: {level: loud}",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	t.Run("invalid rates match what the manager rejects", func(t *testing.T) {
		for _, doc := range []string{
			`environments: [{label: a, block_rate: .nan}]`,
			`environments: [{label: a, block_rate: .inf}]`,
			`environments: [{label: a, block_rate: 0}]`,
		} {
			_, err := Parse([]byte(doc))
			assert.ErrorIs(t, err, environment.ErrInvalidBlockRate, doc)
		}
	})

	t.Run("malformed yaml", func(t *testing.T) {
		_, err := Parse([]byte("environments: ["))
		assert.Error(t, err)
	})
}
