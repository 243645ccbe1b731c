package ports

import (
	"context"

	"github.com/ngabopay/ussdpilot/pkg/domain"
)

// ResultStore persists resolved session results so operators can inspect them
// after the caller has consumed the result.
type ResultStore interface {
	// Save persists the result under its SessionID.
	Save(ctx context.Context, result domain.Result) error

	// Load retrieves a result.
	// Returns domain.ErrResultNotFound if the session does not exist.
	Load(ctx context.Context, sessionID string) (domain.Result, error)

	// List returns the stored session IDs, most recent first.
	List(ctx context.Context) ([]string, error)
}
