package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/boristopalov/arbiter/pkg/messaging"
)

const (
	DefaultHistory = 10

	PROMPT_TEMPLATE = `Your name is %s. You are one of several agents sharing the environment %q.
Your task: %s

It is now block %d. Here is what you remember, oldest first:
%s

Reply with a short message for the other agents.`
)

// LLMClient completes a prompt with the given model.
type LLMClient interface {
	Complete(ctx context.Context, model string, prompt string) (string, error)
}

// LLM asks a language model what to say each block and broadcasts the reply.
type LLM struct {
	Client  LLMClient
	Model   string
	Task    string
	History int
}

func (l *LLM) Act(ctx context.Context, a *Agent, b Block) error {
	if l.Client == nil {
		return errors.New("llm behavior has no client")
	}
	history := l.History
	if history <= 0 {
		history = DefaultHistory
	}

	prompt := fmt.Sprintf(PROMPT_TEMPLATE,
		a.ID(),
		b.Environment,
		l.Task,
		b.Number,
		formatMemories(a.Memory().Recent(history)),
	)

	response, err := l.Client.Complete(ctx, l.Model, prompt)
	if err != nil {
		return fmt.Errorf("agent %s: failed to generate response: %w", a.ID(), err)
	}
	response = strings.TrimSpace(response)
	if response == "" {
		return nil
	}

	a.Memory().Store("I said: " + response)
	return a.Send(messaging.Message{Content: response, Block: b.Number})
}

func formatMemories(memories []string) string {
	if len(memories) == 0 {
		return "Nothing yet, this is the first block."
	}
	return strings.Join(memories, "\n")
}
