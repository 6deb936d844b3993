package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/boristopalov/arbiter/pkg/messaging"
)

// MockLLMClient implements LLMClient for testing
type MockLLMClient struct {
	response string
	err      error
	prompts  []string
}

func (m *MockLLMClient) Complete(ctx context.Context, model string, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	return m.response, m.err
}

func noop() Behavior {
	return BehaviorFunc(func(context.Context, *Agent, Block) error { return nil })
}

func TestAgentAttachment(t *testing.T) {
	t.Run("new agents are not attached", func(t *testing.T) {
		a, err := New(noop())
		require.NoError(t, err)
		assert.Equal(t, NotAttached, a.Phase())
		assert.True(t, strings.HasPrefix(a.ID(), "agent-"))
		assert.Empty(t, a.Environment())
	})

	t.Run("attach succeeds once", func(t *testing.T) {
		a, err := New(noop(), WithID("a1"))
		require.NoError(t, err)

		require.NoError(t, a.Attach("alpha", messaging.NewBroker()))
		assert.Equal(t, Attached, a.Phase())
		assert.Equal(t, "alpha", a.Environment())

		err = a.Attach("beta", messaging.NewBroker())
		require.ErrorIs(t, err, ErrAlreadyAttached)
		assert.Equal(t, "alpha", a.Environment())
	})

	t.Run("duplicate id on one broker leaves agent unattached", func(t *testing.T) {
		broker := messaging.NewBroker()
		first, _ := New(noop(), WithID("dup"))
		second, _ := New(noop(), WithID("dup"))
		require.NoError(t, first.Attach("alpha", broker))

		err := second.Attach("alpha", broker)
		require.ErrorIs(t, err, messaging.ErrAlreadySubscribed)
		assert.Equal(t, NotAttached, second.Phase())
	})

	t.Run("nil behavior is rejected", func(t *testing.T) {
		_, err := New(nil)
		assert.ErrorIs(t, err, ErrNilBehavior)
	})

	t.Run("unattached agents cannot act or send", func(t *testing.T) {
		a, _ := New(noop())
		assert.ErrorIs(t, a.Act(context.Background(), Block{}), ErrNotAttached)
		assert.ErrorIs(t, a.Send(messaging.Message{}), ErrNotAttached)
	})
}

func TestAgentMessaging(t *testing.T) {
	broker := messaging.NewBroker()
	agent1, _ := New(noop(), WithID("agent1"))
	agent2, _ := New(noop(), WithID("agent2"))
	require.NoError(t, agent1.Attach("alpha", broker))
	require.NoError(t, agent2.Attach("alpha", broker))

	require.NoError(t, agent1.Send(messaging.Message{Content: "Hello agent2!", To: []string{"agent2"}}))

	require.NoError(t, agent2.Act(context.Background(), Block{Environment: "alpha", Number: 1}))
	assert.Contains(t, agent2.Memory().All(), "Message from agent1: Hello agent2!")
	assert.Zero(t, agent1.Memory().Len())
}

func TestHeartbeat(t *testing.T) {
	broker := messaging.NewBroker()
	beater, _ := New(Heartbeat{Every: 2}, WithID("beater"))
	listener, _ := New(noop(), WithID("listener"))
	require.NoError(t, beater.Attach("alpha", broker))
	require.NoError(t, listener.Attach("alpha", broker))

	ctx := context.Background()
	for n := uint64(1); n <= 4; n++ {
		require.NoError(t, beater.Act(ctx, Block{Environment: "alpha", Number: n, Timestamp: time.Now()}))
	}
	assert.Equal(t, 4, beater.Memory().Len())

	require.NoError(t, listener.Act(ctx, Block{Environment: "alpha", Number: 5}))
	assert.Equal(t, []string{"Message from beater: beat 2", "Message from beater: beat 4"}, listener.Memory().All())
}

func TestLLMBehavior(t *testing.T) {
	t.Run("stores and broadcasts the reply", func(t *testing.T) {
		client := &MockLLMClient{response: " mock response \n"}
		broker := messaging.NewBroker()
		talker, _ := New(&LLM{Client: client, Model: "mock-model", Task: "chat"}, WithID("talker"))
		peer, _ := New(noop(), WithID("peer"))
		require.NoError(t, talker.Attach("alpha", broker))
		require.NoError(t, peer.Attach("alpha", broker))

		require.NoError(t, talker.Act(context.Background(), Block{Environment: "alpha", Number: 7}))

		require.Len(t, client.prompts, 1)
		assert.Contains(t, client.prompts[0], "Your name is talker")
		assert.Contains(t, client.prompts[0], "block 7")
		assert.Contains(t, client.prompts[0], "first block")
		assert.Equal(t, []string{"I said: mock response"}, talker.Memory().All())

		require.NoError(t, peer.Act(context.Background(), Block{Number: 8}))
		assert.Equal(t, []string{"Message from talker: mock response"}, peer.Memory().All())
	})

	t.Run("completion errors are wrapped", func(t *testing.T) {
		boom := errors.New("boom")
		talker, _ := New(&LLM{Client: &MockLLMClient{err: boom}}, WithID("talker"))
		require.NoError(t, talker.Attach("alpha", messaging.NewBroker()))

		err := talker.Act(context.Background(), Block{Number: 1})
		assert.ErrorIs(t, err, boom)
		assert.Zero(t, talker.Memory().Len())
	})
}
