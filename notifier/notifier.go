// Package notifier defines the outbound notification port the processor
// depends on: one rendered HTML document delivered to a device's configured
// recipients.
package notifier

import "context"

// Notifier delivers one HTML-rendered notification document to a device's
// recipients. Implementations must not retry internally — the processor
// treats a failed Notify as logged-and-dropped, per the specification (the
// data backing the notification is already durable in the store).
type Notifier interface {
	Notify(ctx context.Context, to []string, recipient, htmlBody string) error
}
