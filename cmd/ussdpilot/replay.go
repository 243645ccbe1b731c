package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ngabopay/ussdpilot/internal/cli"
	"github.com/ngabopay/ussdpilot/internal/presentation/tui"
	"github.com/ngabopay/ussdpilot/pkg/adapters/replay"
	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay <scenario.yaml|dir>...",
	Short: "Play recorded USSD dialogs against the engine",
	Long: `Runs scenario files through a fresh engine without a device. Each scenario
lists the screens a carrier showed; the engine reacts to them exactly as it
would on a phone, and the scenario's expectations are checked.

Use it to tune a keyword profile (--config) against captured dialogs.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		files, err := scenarioFiles(args)
		if err != nil {
			return err
		}
		run := cfg
		if fast, _ := cmd.Flags().GetBool("fast"); fast {
			run.Engine.SettleDelay = 0
		}
		asJSON, _ := cmd.Flags().GetBool("json")
		verbose, _ := cmd.Flags().GetBool("transcript")
		out := cmd.OutOrStdout()

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()

		failed := 0
		var reports []cli.Report
		for _, path := range files {
			scenario, err := replay.Load(path)
			if err != nil {
				return err
			}
			report, err := cli.RunScenario(sc, scenario, run, logger)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if !report.Passed() {
				failed++
			}
			if asJSON {
				reports = append(reports, report)
				continue
			}

			status := "PASS"
			if !report.Passed() {
				status = "FAIL"
			}
			fmt.Fprintf(out, "%s  %s  %s\n", status, report.Scenario, tui.OutcomeLabel(out, report.Result.Outcome))
			for _, f := range report.Failures {
				fmt.Fprintf(out, "      %s\n", f)
			}
			if verbose {
				if err := tui.PrintResult(out, report.Result); err != nil {
					return err
				}
			}
		}

		if asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			if err := enc.Encode(reports); err != nil {
				return err
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d scenarios failed", failed, len(files))
		}
		return nil
	},
}

// scenarioFiles expands directories into their YAML files.
func scenarioFiles(args []string) ([]string, error) {
	var files []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, arg)
			continue
		}
		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, err
		}
		for _, e := range entries {
			ext := strings.ToLower(filepath.Ext(e.Name()))
			if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
				files = append(files, filepath.Join(arg, e.Name()))
			}
		}
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no scenario files in %s", strings.Join(args, ", "))
	}
	return files, nil
}

func init() {
	rootCmd.AddCommand(replayCmd)
	replayCmd.Flags().Bool("fast", false, "Skip the settle delay between typing and submitting")
	replayCmd.Flags().Bool("json", false, "Print the reports as JSON")
	replayCmd.Flags().Bool("transcript", false, "Print the screen transcript of every scenario")
}
