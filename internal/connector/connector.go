// Package connector defines the contract between the warble core and chat
// services, plus the outbound dispatch table connectors build at
// construction time.
package connector

import (
	"context"

	"github.com/warblebot/warble/internal/event"
)

// Connector is an adapter to a chat or messaging service.
//
// Connect establishes credentials and sessions and must be idempotent under
// retry. Listen either blocks in a consume loop or returns after spawning
// one; either way it must stop promptly on cancellation and deliver events
// to out in production order. Send dispatches on the event's kind.
// Disconnect releases sessions and is safe to call even if Connect failed.
type Connector interface {
	Name() string
	Connect(ctx context.Context) error
	Listen(ctx context.Context, out chan<- event.Event) error
	Send(ctx context.Context, ev event.Event) error
	Disconnect(ctx context.Context) error
}

// Base carries the identity and delay configuration every connector shares.
// Embed it and set the fields at construction.
type Base struct {
	ConnectorName string
	BotName       string       // the bot's own user id on this service
	DelayConfig   event.Delays // thinking/typing delays, zero = none
}

// Name implements Connector.
func (b *Base) Name() string { return b.ConnectorName }

// Identity implements event.Identified for echo suppression.
func (b *Base) Identity() string { return b.BotName }

// Delays implements event.Delayer.
func (b *Base) Delays() event.Delays { return b.DelayConfig }
