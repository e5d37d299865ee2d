package relay

import "context"

// Handler consumes an inbound cross-domain message. Handlers must tolerate
// duplicates and arbitrary delivery order.
type Handler func(Message)

// Channel is the one-way message path from the trigger authority's domain to
// the venue's domain. Delivery retries and receipts belong to the relay
// infrastructure behind the implementation, not to this interface.
type Channel interface {
	Publish(ctx context.Context, m Message) error
	SetHandler(h Handler)
	Close() error
}

// Loopback carries messages in-process for single-node deployments and tests.
// Dispatch is inline on Publish; Redeliveries > 0 delivers each message that
// many extra times, exercising the at-least-once behavior of a real channel.
type Loopback struct {
	handler      Handler
	Redeliveries int
}

// NewLoopback creates an in-process channel.
func NewLoopback() *Loopback { return &Loopback{} }

func (l *Loopback) SetHandler(h Handler) { l.handler = h }

func (l *Loopback) Publish(_ context.Context, m Message) error {
	if l.handler == nil {
		return nil
	}
	for i := 0; i <= l.Redeliveries; i++ {
		l.handler(m)
	}
	return nil
}

func (l *Loopback) Close() error { return nil }

var _ Channel = (*Loopback)(nil)
