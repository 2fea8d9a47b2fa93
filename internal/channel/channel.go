// Package channel delivers proactive messages to external messengers.
package channel

import (
	"context"

	"github.com/stellarlinkco/nudge/internal/bus"
)

// Notifier is an outbound delivery channel.
type Notifier interface {
	Name() string
	Start(ctx context.Context) error
	Stop() error
	Send(d bus.Delivery) error
}
