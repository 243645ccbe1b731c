package ussdpilot

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/ngabopay/ussdpilot/internal/logging"
	"github.com/ngabopay/ussdpilot/pkg/ports"
)

// DialerPackage is the Android package hosting USSD dialogs on most devices.
const DialerPackage = "com.android.phone"

// DialerPackageFilter accepts the stock phone package and any package whose
// name mentions "phone" or "dialer" (vendor dialers).
func DialerPackageFilter(pkg string) bool {
	if pkg == DialerPackage {
		return true
	}
	pkg = strings.ToLower(pkg)
	return strings.Contains(pkg, "phone") || strings.Contains(pkg, "dialer")
}

// Runner pumps a host's snapshot feed into an engine, one snapshot at a time,
// in delivery order.
type Runner struct {
	Engine *Engine
	Filter func(pkg string) bool
	Logger *slog.Logger
}

// NewRunner creates a Runner with the default dialer package filter.
func NewRunner(engine *Engine) *Runner {
	return &Runner{
		Engine: engine,
		Filter: DialerPackageFilter,
		Logger: logging.NewNop(),
	}
}

// Run consumes feed until ctx is done or the feed closes. Snapshots from other
// packages are released unprocessed. Snapshots still buffered when ctx ends
// are released too.
func (r *Runner) Run(ctx context.Context, feed ports.SnapshotFeed) error {
	if r.Engine == nil {
		return errors.New("runner has no engine")
	}
	filter := r.Filter
	if filter == nil {
		filter = DialerPackageFilter
	}
	logger := r.Logger
	if logger == nil {
		logger = logging.NewNop()
	}

	ch, err := feed.Snapshots(ctx)
	if err != nil {
		return err
	}
	for snap := range ch {
		if ctx.Err() != nil || !filter(snap.Package()) {
			logger.Debug("snapshot skipped", "package", snap.Package())
			snap.Release()
			continue
		}
		r.Engine.HandleSnapshot(ctx, snap)
	}
	return ctx.Err()
}
