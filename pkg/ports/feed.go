package ports

import (
	"context"

	"github.com/ngabopay/ussdpilot/pkg/domain"
)

// SnapshotFeed is the host's UI-introspection subscription.
type SnapshotFeed interface {
	// Snapshots returns a channel delivering a snapshot each time the dialer's
	// visible content changes, in delivery order. The channel is closed when ctx
	// is done or the feed ends. The receiver owns (and must release) every
	// snapshot it reads.
	Snapshots(ctx context.Context) (<-chan domain.Snapshot, error)
}
