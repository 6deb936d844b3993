package agent

import (
	"context"
	"fmt"

	"github.com/boristopalov/arbiter/pkg/messaging"
)

// Heartbeat records every block it sees and broadcasts a beat to its peers
// every Every blocks. Every <= 0 disables broadcasting.
type Heartbeat struct {
	Every int
}

func (h Heartbeat) Act(ctx context.Context, a *Agent, b Block) error {
	a.Memory().Store(fmt.Sprintf("Block %d in %s", b.Number, b.Environment))
	if h.Every <= 0 || b.Number%uint64(h.Every) != 0 {
		return nil
	}
	return a.Send(messaging.Message{
		Content: fmt.Sprintf("beat %d", b.Number),
		Block:   b.Number,
	})
}
