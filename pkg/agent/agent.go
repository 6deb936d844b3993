// Package agent defines the units of work attached to an environment before
// it starts. An agent begins NotAttached and becomes Attached to exactly one
// environment; after that it can no longer be moved.
package agent

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boristopalov/arbiter/pkg/memory"
	"github.com/boristopalov/arbiter/pkg/messaging"
)

// MailboxSize is the number of undelivered messages an agent buffers.
const MailboxSize = 100

var (
	ErrAlreadyAttached = errors.New("agent is already attached to an environment")
	ErrNotAttached     = errors.New("agent is not attached to an environment")
	ErrNilBehavior     = errors.New("agent behavior is nil")
)

// Phase tells whether an agent is still movable.
type Phase int

const (
	NotAttached Phase = iota
	Attached
)

func (p Phase) String() string {
	if p == Attached {
		return "attached"
	}
	return "not_attached"
}

// Block describes the block an agent is acting in.
type Block struct {
	Environment string
	Number      uint64
	Timestamp   time.Time
}

// Behavior is what an agent does once per block.
type Behavior interface {
	Act(ctx context.Context, a *Agent, b Block) error
}

// BehaviorFunc adapts a function to Behavior.
type BehaviorFunc func(ctx context.Context, a *Agent, b Block) error

func (f BehaviorFunc) Act(ctx context.Context, a *Agent, b Block) error {
	return f(ctx, a, b)
}

type Agent struct {
	id       string
	behavior Behavior
	memory   *memory.Memory
	mailbox  chan messaging.Message

	mu          sync.RWMutex
	phase       Phase
	environment string
	broker      messaging.Broker
}

type AgentParams struct {
	AgentID        string
	MemoryCapacity int
}

type AgentOption func(*AgentParams)

func WithID(id string) AgentOption {
	return func(p *AgentParams) {
		p.AgentID = id
	}
}

func WithMemoryCapacity(capacity int) AgentOption {
	return func(p *AgentParams) {
		p.MemoryCapacity = capacity
	}
}

func defaultAgentParams() *AgentParams {
	return &AgentParams{
		AgentID:        "agent-" + uuid.New().String(),
		MemoryCapacity: memory.DefaultCapacity,
	}
}

// New creates an unattached agent.
func New(behavior Behavior, opts ...AgentOption) (*Agent, error) {
	if behavior == nil {
		return nil, ErrNilBehavior
	}
	params := defaultAgentParams()
	for _, opt := range opts {
		opt(params)
	}

	return &Agent{
		id:       params.AgentID,
		behavior: behavior,
		memory:   memory.NewMemory(params.MemoryCapacity),
		mailbox:  make(chan messaging.Message, MailboxSize),
		phase:    NotAttached,
	}, nil
}

func (a *Agent) ID() string {
	return a.id
}

func (a *Agent) Memory() *memory.Memory {
	return a.memory
}

func (a *Agent) Phase() Phase {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.phase
}

// Environment returns the label of the environment the agent is attached
// to, or "" while unattached.
func (a *Agent) Environment() string {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.environment
}

// Attach binds the agent to an environment and subscribes its mailbox to
// the environment's broker. It succeeds at most once.
func (a *Agent) Attach(environment string, broker messaging.Broker) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.phase == Attached {
		return fmt.Errorf("%w: %s is bound to %q", ErrAlreadyAttached, a.id, a.environment)
	}
	if err := broker.Subscribe(a.id, a.mailbox); err != nil {
		return fmt.Errorf("agent %s: %w", a.id, err)
	}
	a.phase = Attached
	a.environment = environment
	a.broker = broker
	return nil
}

// Send publishes msg on the environment broker with the agent as sender.
func (a *Agent) Send(msg messaging.Message) error {
	a.mu.RLock()
	broker := a.broker
	a.mu.RUnlock()
	if broker == nil {
		return fmt.Errorf("%w: %s", ErrNotAttached, a.id)
	}

	msg.From = a.id
	msg.Timestamp = time.Now()
	return broker.Publish(msg)
}

// Act stores every pending message in memory and then runs the behavior
// for block b.
func (a *Agent) Act(ctx context.Context, b Block) error {
	if a.Phase() != Attached {
		return fmt.Errorf("%w: %s", ErrNotAttached, a.id)
	}
	a.drainMailbox()
	return a.behavior.Act(ctx, a, b)
}

func (a *Agent) drainMailbox() {
	for {
		select {
		case msg := <-a.mailbox:
			a.memory.Store(fmt.Sprintf("Message from %s: %v", msg.From, msg.Content))
		default:
			return
		}
	}
}
