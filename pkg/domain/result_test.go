package domain_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/ngabopay/ussdpilot/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestResult_Err(t *testing.T) {
	cases := []struct {
		outcome domain.Outcome
		want    error
	}{
		{domain.OutcomeSuccess, nil},
		{domain.OutcomeBusy, domain.ErrBusy},
		{domain.OutcomeDialFailure, domain.ErrDialFailure},
		{domain.OutcomeTimeout, domain.ErrTimeout},
		{domain.OutcomeClassifiedFailure, domain.ErrClassifiedFailure},
		{domain.OutcomeProcessingError, domain.ErrProcessing},
		{domain.OutcomeStopped, domain.ErrStopped},
	}
	for _, tc := range cases {
		err := domain.Result{Outcome: tc.outcome}.Err()
		if tc.want == nil {
			assert.NoError(t, err, tc.outcome)
			continue
		}
		assert.True(t, errors.Is(err, tc.want), tc.outcome)
	}

	assert.ErrorIs(t, domain.ErrProcessing, domain.ErrClassifiedFailure)
}

func TestStep_Display(t *testing.T) {
	assert.Equal(t, "50000", domain.Step{Value: "50000"}.Display())
	assert.Equal(t, domain.Mask, domain.Step{Value: "1234", Secret: true}.Display())
	assert.Equal(t, []domain.Step{{Value: "9"}, {Value: "1"}}, domain.Steps("9", "1"))
}

func TestScreenLog_CloneIsIndependent(t *testing.T) {
	log := domain.ScreenLog{"Enter PIN"}
	frozen := log.Clone()
	log[0] = "changed"

	assert.Equal(t, domain.ScreenLog{"Enter PIN"}, frozen)
	assert.Equal(t, domain.ScreenLog{}, domain.ScreenLog(nil).Clone())
}

func TestResult_Duration(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	r := domain.Result{StartedAt: start, FinishedAt: start.Add(60 * time.Second)}
	assert.Equal(t, 60*time.Second, r.Duration())
	assert.Zero(t, domain.Result{}.Duration())
}

func TestLifecycleHooks_Merge(t *testing.T) {
	var order []string
	a := domain.LifecycleHooks{
		OnResolve: func(context.Context, *domain.ResolveEvent) { order = append(order, "a") },
	}
	b := domain.LifecycleHooks{
		OnResolve: func(context.Context, *domain.ResolveEvent) { order = append(order, "b") },
		OnScreen:  func(context.Context, *domain.ScreenEvent) { order = append(order, "screen") },
	}

	merged := a.Merge(b)
	merged.OnResolve(context.Background(), &domain.ResolveEvent{})
	merged.OnScreen(context.Background(), &domain.ScreenEvent{})

	assert.Equal(t, []string{"a", "b", "screen"}, order)
	assert.Nil(t, merged.OnAction)
}
