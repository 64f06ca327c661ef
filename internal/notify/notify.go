package notify

import (
	"context"
	"errors"

	"github.com/shelfwatch/catalog-crawler/internal/catalog"
)

// Noop discards every message. Used when no notification channel is
// configured.
type Noop struct{}

// Send does nothing.
func (Noop) Send(context.Context, string) error { return nil }

// Multi fans one message out to several channels. Every channel is
// attempted; the errors are joined.
type Multi []catalog.Notifier

// Send delivers the message to all channels.
func (m Multi) Send(ctx context.Context, msg string) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
