package cli

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/ngabopay/ussdpilot/pkg/adapters/replay"
	"github.com/ngabopay/ussdpilot/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadScenario(t *testing.T, name string) *replay.Scenario {
	t.Helper()
	sc, err := replay.Load(filepath.Join("..", "..", "scenarios", name))
	require.NoError(t, err)
	return sc
}

func TestRunScenario_Samples(t *testing.T) {
	for _, name := range []string{"send_money.yaml", "insufficient_funds.yaml", "dial_rejected.yaml"} {
		t.Run(name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			report, err := RunScenario(ctx, loadScenario(t, name), testConfig(), nil)
			require.NoError(t, err)
			assert.True(t, report.Passed(), "failures: %v", report.Failures)
			assert.Zero(t, report.Leaks)
		})
	}
}

func TestRunScenario_SendMoneyMasksPIN(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	report, err := RunScenario(ctx, loadScenario(t, "send_money.yaml"), testConfig(), nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "0772123456", "50000", domain.Mask}, report.Inputs)
	assert.Equal(t, []string{"Send", "Send", "Send", "Send", "OK"}, report.Clicks)
	assert.Equal(t, "ABC123", report.Result.TransactionID)
}

func TestRunScenario_ReportsFailedExpectations(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	success := true
	sc := &replay.Scenario{
		Name: "wrong-expectations",
		Code: "*185#",
		Screens: []replay.Screen{
			{Dialog: &replay.DialogSpec{Message: "Transaction failed. Wrong PIN.", Buttons: []string{"OK"}}},
		},
		Expect: &replay.Expect{Success: &success, TransactionID: "ZZZ", Screens: 3},
	}
	report, err := RunScenario(ctx, sc, testConfig(), nil)
	require.NoError(t, err)

	assert.False(t, report.Passed())
	assert.Len(t, report.Failures, 3)
	assert.Equal(t, domain.OutcomeClassifiedFailure, report.Result.Outcome)
}
