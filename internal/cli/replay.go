package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ngabopay/ussdpilot/internal/config"
	"github.com/ngabopay/ussdpilot/internal/logging"
	"github.com/ngabopay/ussdpilot/pkg/adapters/replay"
	"github.com/ngabopay/ussdpilot/pkg/domain"
)

// Report is the outcome of one scenario run.
type Report struct {
	Scenario string        `json:"scenario"`
	Result   domain.Result `json:"result"`

	// Clicks and Inputs are the actions the engine performed. Secret steps
	// are masked.
	Clicks []string `json:"clicks"`
	Inputs []string `json:"inputs"`

	// Leaks counts node references and snapshots left unreleased, plus
	// double releases.
	Leaks int `json:"leaks"`

	Failures []string `json:"failures,omitempty"`
}

// Passed reports whether every expectation held and nothing leaked.
func (r Report) Passed() bool { return len(r.Failures) == 0 }

// RunScenario plays sc against a fresh engine configured by cfg and checks
// the scenario's expectations. Results are kept in memory.
func RunScenario(ctx context.Context, sc *replay.Scenario, cfg config.Config, logger *slog.Logger) (Report, error) {
	if logger == nil {
		logger = logging.NewNop()
	}
	cfg.Store.Backend = config.StoreMemory
	host := replay.NewHost(sc)

	app, err := Build(ctx, cfg, Host{Device: "replay:" + sc.Name, Dialer: host, Feed: host}, logger, BuildOptions{})
	if err != nil {
		return Report{}, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- app.Run(runCtx) }()

	steps := sc.DialSteps()
	res, err := app.Engine.Run(ctx, sc.Code, steps...)

	closeErr := app.Close(context.WithoutCancel(ctx))
	cancel()
	<-done
	if err != nil {
		return Report{}, err
	}
	if closeErr != nil {
		logger.Warn("engine close failed", "err", closeErr)
	}

	ledger := host.Ledger()
	report := Report{
		Scenario: sc.Name,
		Result:   res,
		Clicks:   ledger.Clicks(),
		Inputs:   maskInputs(ledger.Inputs(), steps),
		Leaks:    ledger.Outstanding() + ledger.OpenSnapshots() + ledger.DoubleReleases(),
	}
	report.check(sc.Expect)
	return report, nil
}

func maskInputs(inputs []string, steps []domain.Step) []string {
	out := make([]string, len(inputs))
	for i, v := range inputs {
		if i < len(steps) {
			v = steps[i].Display()
		}
		out[i] = v
	}
	return out
}

func (r *Report) check(exp *replay.Expect) {
	if r.Leaks > 0 {
		r.fail("%d unreleased or double-released references", r.Leaks)
	}
	if exp == nil {
		return
	}
	if exp.Success != nil && *exp.Success != r.Result.Success {
		r.fail("success: want %t, got %t (%s)", *exp.Success, r.Result.Success, r.Result.Message)
	}
	if exp.Outcome != "" && domain.Outcome(exp.Outcome) != r.Result.Outcome {
		r.fail("outcome: want %s, got %s", exp.Outcome, r.Result.Outcome)
	}
	if exp.TransactionID != "" && exp.TransactionID != r.Result.TransactionID {
		r.fail("transaction_id: want %q, got %q", exp.TransactionID, r.Result.TransactionID)
	}
	if exp.Screens > 0 && exp.Screens != len(r.Result.ScreenLog) {
		r.fail("screens: want %d, got %d", exp.Screens, len(r.Result.ScreenLog))
	}
}

func (r *Report) fail(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}
