// Package notify delivers alert messages to an external channel. Delivery is
// best-effort: the pipeline records alerts durably before notifying, and a
// failed send never fails the crawl.
package notify

import "context"

// Notifier sends one human-readable alert message.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}

// Nop discards messages. Used when no transport is configured.
type Nop struct{}

// Notify implements Notifier.
func (Nop) Notify(context.Context, string) error { return nil }
