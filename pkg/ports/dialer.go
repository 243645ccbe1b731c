package ports

import "context"

// Dialer is the host's dialer-invocation action.
type Dialer interface {
	// Dial initiates a USSD session for code. It returns once the host accepted
	// (or refused) the request; the session itself progresses through the feed.
	Dial(ctx context.Context, code string) error
}

// DialerFunc adapts a plain function to the Dialer interface.
type DialerFunc func(ctx context.Context, code string) error

// Dial calls f(ctx, code).
func (f DialerFunc) Dial(ctx context.Context, code string) error {
	return f(ctx, code)
}
