// Package messaging routes messages between the agents attached to one
// environment.
package messaging

import (
	"time"
)

// Message is a communication between agents of the same environment.
type Message struct {
	From      string    // Agent ID of sender
	To        []string  // Agent IDs of recipients (empty means broadcast)
	Content   any       // The actual message content
	Block     uint64    // Block during which the message was sent
	Timestamp time.Time // When the message was sent
}

// Broker handles message routing between agents
type Broker interface {
	// Publish sends a message to specified recipients
	Publish(msg Message) error
	// Subscribe registers an agent to receive messages
	Subscribe(agentID string, ch chan<- Message) error
	// Unsubscribe removes an agent's subscription
	Unsubscribe(agentID string) error
}
