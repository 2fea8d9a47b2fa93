// Package bus decouples the decision pipeline from delivery channels.
package bus

import "time"

// Delivery is an outbound proactive message headed for a channel.
type Delivery struct {
	Channel     string
	UserID      string
	ChatID      string
	Title       string
	Summary     string
	Source      string
	CandidateID string
	Score       float64
	Reason      string
	Timestamp   time.Time
	Metadata    map[string]any
}

// Bus carries deliveries from the gateway to channel workers.
type Bus struct {
	Outbound chan Delivery
}

func New(buffer int) *Bus {
	if buffer <= 0 {
		buffer = 64
	}
	return &Bus{Outbound: make(chan Delivery, buffer)}
}

// Close shuts the outbound stream; channel workers drain and exit.
func (b *Bus) Close() {
	close(b.Outbound)
}
