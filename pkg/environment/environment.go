// Package environment holds the per-environment lifecycle primitives and
// the worker loop that drives an environment's agents block by block.
//
// The worker loop obeys a small contract: it starts in Running, checks the
// shared state before every block, blocks on the PauseSignal while Paused and
// returns as soon as it sees Stopped. It never writes the state itself.
package environment

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/boristopalov/arbiter/pkg/agent"
	"github.com/boristopalov/arbiter/pkg/messaging"
)

// maxBlockDelay bounds a single sampled inter-block delay.
const maxBlockDelay = time.Hour

var (
	ErrInvalidBlockRate = errors.New("block rate must be a positive finite number")
	ErrAlreadyStarted   = errors.New("environment has already been started")
)

// Config is fixed at creation.
type Config struct {
	// BlockRate is the mean number of blocks produced per second.
	BlockRate float64
	// Seed seeds the inter-block delay sampler.
	Seed uint64
}

func (c Config) Validate() error {
	if math.IsNaN(c.BlockRate) || math.IsInf(c.BlockRate, 0) || c.BlockRate <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidBlockRate, c.BlockRate)
	}
	return nil
}

// Environment is a named unit of work with its own worker goroutine. The
// state cell and pause signal are shared with the worker once started.
type Environment struct {
	label  string
	config Config
	state  *AtomicState
	signal *PauseSignal
	broker *messaging.SimpleBroker
	logger zerolog.Logger
	blocks atomic.Uint64

	mu     sync.RWMutex
	agents []*agent.Agent
}

// New creates an environment in Initialization.
func New(label string, cfg Config, logger zerolog.Logger) (*Environment, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Environment{
		label:  label,
		config: cfg,
		state:  NewAtomicState(Initialization),
		signal: NewPauseSignal(),
		broker: messaging.NewBroker(),
		logger: logger.With().Str("environment", label).Logger(),
		agents: make([]*agent.Agent, 0),
	}, nil
}

func (e *Environment) Label() string {
	return e.label
}

func (e *Environment) Config() Config {
	return e.config
}

// State returns the current lifecycle phase.
func (e *Environment) State() State {
	return e.state.Load()
}

// StateCell returns the state cell shared with the worker.
func (e *Environment) StateCell() *AtomicState {
	return e.state
}

// Signal returns the pause signal shared with the worker.
func (e *Environment) Signal() *PauseSignal {
	return e.signal
}

// Blocks returns how many blocks the worker has produced so far.
func (e *Environment) Blocks() uint64 {
	return e.blocks.Load()
}

// Agents returns a copy of the attached agents.
func (e *Environment) Agents() []*agent.Agent {
	e.mu.RLock()
	defer e.mu.RUnlock()
	agents := make([]*agent.Agent, len(e.agents))
	copy(agents, e.agents)
	return agents
}

// AddAgent attaches a to this environment. Only allowed before Start.
func (e *Environment) AddAgent(a *agent.Agent) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if s := e.state.Load(); s != Initialization {
		return fmt.Errorf("%w: %s is %s", ErrAlreadyStarted, e.label, s)
	}
	if err := a.Attach(e.label, e.broker); err != nil {
		return err
	}
	e.agents = append(e.agents, a)
	return nil
}

// Start moves the environment to Running and spawns its worker. The state
// is Running before the worker goroutine exists, so a pause issued right
// after Start is never overwritten.
func (e *Environment) Start() (*Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.state.CompareAndSwap(Initialization, Running) {
		return nil, fmt.Errorf("%w: %s is %s", ErrAlreadyStarted, e.label, e.state.Load())
	}

	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{done: make(chan struct{}), cancel: cancel}
	go e.run(ctx, h.done)
	return h, nil
}

func (e *Environment) run(ctx context.Context, done chan<- struct{}) {
	defer close(done)
	defer e.broker.Reset()

	rng := rand.New(rand.NewSource(int64(e.config.Seed)))
	e.logger.Info().
		Float64("block_rate", e.config.BlockRate).
		Uint64("seed", e.config.Seed).
		Int("agents", len(e.Agents())).
		Strs("subscribers", e.broker.Subscribers()).
		Msg("worker started")

	for {
		if e.state.Load() == Paused {
			e.logger.Debug().Uint64("block", e.blocks.Load()).Msg("worker paused")
		}
		if e.signal.Wait(e.state) == Stopped {
			e.logger.Info().Uint64("blocks", e.blocks.Load()).Msg("worker stopped")
			return
		}
		e.step(ctx)
		e.signal.Sleep(e.nextDelay(rng), e.state)
	}
}

// step produces one block: every agent acts concurrently and the block ends
// once all of them have returned.
func (e *Environment) step(ctx context.Context) {
	b := agent.Block{
		Environment: e.label,
		Number:      e.blocks.Add(1),
		Timestamp:   time.Now(),
	}

	var wg sync.WaitGroup
	for _, a := range e.Agents() {
		wg.Add(1)
		go func(a *agent.Agent) {
			defer wg.Done()
			if err := a.Act(ctx, b); err != nil && ctx.Err() == nil {
				e.logger.Warn().Err(err).Str("agent", a.ID()).Uint64("block", b.Number).Msg("agent action failed")
			}
		}(a)
	}
	wg.Wait()
}

// nextDelay samples an exponentially distributed gap with mean 1/BlockRate
// seconds.
func (e *Environment) nextDelay(rng *rand.Rand) time.Duration {
	seconds := rng.ExpFloat64() / e.config.BlockRate
	d := time.Duration(seconds * float64(time.Second))
	if d > maxBlockDelay || d < 0 {
		return maxBlockDelay
	}
	return d
}
