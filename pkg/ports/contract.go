package ports

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/ngabopay/ussdpilot/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunResultStoreContract runs a suite of tests to verify that a ResultStore implementation
// adheres to the defined interface contract.
func RunResultStoreContract(t *testing.T, store ResultStore) {
	ctx := context.Background()
	prefix := "contract-" + time.Now().Format("20060102150405")
	started := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	t.Run("Save and Load", func(t *testing.T) {
		want := domain.Result{
			SessionID:     prefix + "-ok",
			Code:          "*185#",
			Success:       true,
			Message:       "Payment of 50000 UGX sent to 0772123456. Transaction ID: ABC123",
			TransactionID: "ABC123",
			ScreenLog:     domain.ScreenLog{"Enter PIN", "Payment of 50000 UGX sent"},
			Outcome:       domain.OutcomeSuccess,
			StartedAt:     started,
			FinishedAt:    started.Add(12 * time.Second),
		}
		require.NoError(t, store.Save(ctx, want), "Save should not return error")

		got, err := store.Load(ctx, want.SessionID)
		require.NoError(t, err, "Load should not return error")
		assert.Equal(t, want.SessionID, got.SessionID)
		assert.Equal(t, want.TransactionID, got.TransactionID)
		assert.Equal(t, want.ScreenLog, got.ScreenLog)
		assert.Equal(t, want.Outcome, got.Outcome)
		assert.True(t, want.StartedAt.Equal(got.StartedAt))
	})

	t.Run("Load Non-Existent", func(t *testing.T) {
		_, err := store.Load(ctx, "non-existent-"+prefix)
		assert.ErrorIs(t, err, domain.ErrResultNotFound)
	})

	t.Run("Overwrite", func(t *testing.T) {
		id := prefix + "-overwrite"
		require.NoError(t, store.Save(ctx, domain.Result{SessionID: id, Outcome: domain.OutcomeTimeout}))
		require.NoError(t, store.Save(ctx, domain.Result{SessionID: id, Outcome: domain.OutcomeStopped}))

		got, err := store.Load(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, domain.OutcomeStopped, got.Outcome)
	})

	t.Run("List", func(t *testing.T) {
		ids := make([]string, 3)
		for i := range ids {
			ids[i] = fmt.Sprintf("%s-list-%d", prefix, i)
			require.NoError(t, store.Save(ctx, domain.Result{
				SessionID:  ids[i],
				Outcome:    domain.OutcomeClassifiedFailure,
				FinishedAt: started.Add(time.Duration(i) * time.Minute),
			}))
		}

		sessions, err := store.List(ctx)
		require.NoError(t, err)
		for _, id := range ids {
			assert.Contains(t, sessions, id)
		}
	})
}
