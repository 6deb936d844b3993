package messaging

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrAlreadySubscribed = errors.New("agent is already subscribed")
	ErrNotSubscribed     = errors.New("agent is not subscribed")
	ErrMailboxFull       = errors.New("recipient mailbox is full")
)

// SimpleBroker implements Broker with one buffered channel per agent.
type SimpleBroker struct {
	subscribers map[string]chan<- Message
	mu          sync.RWMutex
}

// NewBroker creates a new message broker
func NewBroker() *SimpleBroker {
	return &SimpleBroker{
		subscribers: make(map[string]chan<- Message),
	}
}

// Publish delivers msg to its recipients without blocking. An empty To
// broadcasts to every subscriber except the sender. Unknown recipients are
// skipped; full mailboxes are reported after every other recipient has been
// served.
func (b *SimpleBroker) Publish(msg Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	recipients := msg.To
	if len(recipients) == 0 {
		for id := range b.subscribers {
			if id != msg.From {
				recipients = append(recipients, id)
			}
		}
	}

	var errs []error
	for _, recipientID := range recipients {
		ch, ok := b.subscribers[recipientID]
		if !ok {
			continue
		}
		select {
		case ch <- msg:
		default:
			errs = append(errs, fmt.Errorf("%w: %s", ErrMailboxFull, recipientID))
		}
	}
	return errors.Join(errs...)
}

// Subscribe registers an agent to receive messages
func (b *SimpleBroker) Subscribe(agentID string, ch chan<- Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[agentID]; exists {
		return fmt.Errorf("%w: %s", ErrAlreadySubscribed, agentID)
	}
	b.subscribers[agentID] = ch
	return nil
}

// Unsubscribe removes an agent's subscription
func (b *SimpleBroker) Unsubscribe(agentID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[agentID]; !exists {
		return fmt.Errorf("%w: %s", ErrNotSubscribed, agentID)
	}
	delete(b.subscribers, agentID)
	return nil
}

// Subscribers returns the subscribed agent IDs in sorted order.
func (b *SimpleBroker) Subscribers() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]string, 0, len(b.subscribers))
	for id := range b.subscribers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

func (b *SimpleBroker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = make(map[string]chan<- Message)
}
