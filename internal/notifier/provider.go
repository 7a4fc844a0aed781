package notifier

import "context"

// Provider delivers a single message. Delivery is best-effort everywhere in
// this service: callers log failures and move on, they never fail a request
// over one.
type Provider interface {
	Send(ctx context.Context, to string, subject string, htmlBody string) error
}

type NoOpProvider struct{}

func (NoOpProvider) Send(ctx context.Context, to string, subject string, htmlBody string) error {
	return nil
}
