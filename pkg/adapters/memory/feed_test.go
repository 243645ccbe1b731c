package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/ngabopay/ussdpilot/pkg/adapters/memory"
	"github.com/ngabopay/ussdpilot/pkg/adapters/replay"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeed_PublishAndClose(t *testing.T) {
	feed := memory.NewFeed(1)
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := feed.Snapshots(ctx)
	require.NoError(t, err)

	snap := replay.NewSnapshot("", replay.Dialog("Enter PIN", true, "Send"), nil)
	require.NoError(t, feed.Publish(context.Background(), snap))
	assert.Same(t, snap, <-ch)

	cancel()
	assert.Eventually(t, func() bool {
		late := replay.NewSnapshot("", replay.Dialog("late", false), nil)
		err := feed.Publish(context.Background(), late)
		return err == memory.ErrFeedClosed && late.Released()
	}, time.Second, 10*time.Millisecond)
}

func TestFeed_PublishHonoursContext(t *testing.T) {
	feed := memory.NewFeed(1)
	require.NoError(t, feed.Publish(context.Background(), replay.NewSnapshot("", replay.Dialog("a", false), nil)))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	blocked := replay.NewSnapshot("", replay.Dialog("b", false), nil)
	err := feed.Publish(ctx, blocked)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, blocked.Released())
}
