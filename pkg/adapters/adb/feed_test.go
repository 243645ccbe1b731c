package adb

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/ngabopay/ussdpilot/internal/clock"
	"github.com/ngabopay/ussdpilot/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialogDump(message string) string {
	return `<hierarchy rotation="0"><node class="android.widget.FrameLayout" package="com.android.phone" bounds="[0,0][100,100]">` +
		`<node class="android.widget.TextView" text="` + message + `" package="com.android.phone" bounds="[0,0][100,50]"/>` +
		`</node></hierarchy>`
}

// scriptedDumps answers dump commands with the given documents, repeating the last one.
func scriptedDumps(dumps ...string) *fakeShell {
	var mu sync.Mutex
	i := 0
	return &fakeShell{respond: func(cmd string) (string, error) {
		if !strings.HasPrefix(cmd, "uiautomator dump") {
			return "", nil
		}
		mu.Lock()
		defer mu.Unlock()
		out := dumps[i]
		if i < len(dumps)-1 {
			i++
		}
		return out, nil
	}}
}

func receive(t *testing.T, ch <-chan domain.Snapshot) domain.Snapshot {
	t.Helper()
	select {
	case snap, ok := <-ch:
		require.True(t, ok, "feed closed")
		return snap
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
		return nil
	}
}

func message(snap domain.Snapshot) string {
	child := snap.Root().Child(0)
	defer child.Release()
	return child.Text()
}

func TestFeed_EmitsOnChange(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	sh := scriptedDumps(dialogDump("Welcome"), dialogDump("Welcome"), dialogDump("Enter PIN"))
	feed := NewDevice(sh).Feed(WithFeedClock(fake), WithPollInterval(time.Second))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ch, err := feed.Snapshots(ctx)
	require.NoError(t, err)

	first := receive(t, ch)
	assert.Equal(t, "Welcome", message(first))
	first.Release()

	// Unchanged dump: nothing delivered.
	fake.WaitForTimers(1)
	fake.Advance(time.Second)
	fake.WaitForTimers(1)
	select {
	case <-ch:
		t.Fatal("identical dump delivered twice")
	default:
	}

	fake.Advance(time.Second)
	second := receive(t, ch)
	assert.Equal(t, "Enter PIN", message(second))
	second.Release()

	assert.Equal(t, "uiautomator dump /sdcard/ussdpilot_dump.xml >/dev/null && cat /sdcard/ussdpilot_dump.xml", sh.Commands()[0])
}

func TestFeed_ClosesOnCancel(t *testing.T) {
	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	sh := scriptedDumps("ERROR: could not get idle state.")
	feed := NewDevice(sh).Feed(WithFeedClock(fake))

	ctx, cancel := context.WithCancel(context.Background())
	ch, err := feed.Snapshots(ctx)
	require.NoError(t, err)

	fake.WaitForTimers(1)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not close")
	}
}
