package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ngabopay/ussdpilot/internal/cli"
	"github.com/ngabopay/ussdpilot/internal/presentation/tui"
	"github.com/ngabopay/ussdpilot/pkg/domain"
	"github.com/ngabopay/ussdpilot/pkg/ussdcode"
	"github.com/spf13/cobra"
)

var dialCmd = &cobra.Command{
	Use:   "dial [code]",
	Short: "Dial a USSD code on the device and wait for the result",
	Long: `Dials a USSD code and walks the carrier dialogs, typing each --step into
the next screen that shows an input field.

The code is either given directly ("*185#") or rendered from --template with
--var values. Secret values (PINs) never reach the logs: mark steps with
--secret-step or read the PIN interactively with --pin-prompt.

Examples:
  ussdpilot dial '*185#' --step 1 --step 0772123456 --step 50000 --pin-prompt
  ussdpilot dial --template '*185*9*{phone}*{amount}*{pin}#' --var phone=0772123456 --var amount=50000 --var pin=1234`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		code, logged, err := dialCode(cmd, args)
		if err != nil {
			return err
		}
		steps, err := dialSteps(cmd)
		if err != nil {
			return err
		}

		sc := cli.NewSignalContext(cmd.Context())
		defer sc.Cancel()

		host := cli.ADBHost(cfg.Device, logger)
		app, err := cli.Build(sc, cfg, host, logger, cli.BuildOptions{
			Hooks: []domain.LifecycleHooks{cli.DebugHooks(logger)},
		})
		if err != nil {
			return err
		}
		runDone := make(chan error, 1)
		go func() { runDone <- app.Run(sc) }()

		logger.Info("dialing", "code", logged, "steps", len(steps))
		pending := app.Engine.Dial(context.WithoutCancel(sc), code, steps...)
		select {
		case <-pending.Done():
		case <-sc.Done():
			logger.Warn("interrupted, stopping session", "signal", sc.Signal())
		}

		// Close resolves an unfinished session as stopped.
		if err := app.Close(context.WithoutCancel(sc)); err != nil {
			logger.Warn("engine close failed", "err", err)
		}
		sc.Cancel()
		if err := <-runDone; err != nil {
			logger.Warn("snapshot feed stopped", "err", err)
		}
		res, _ := pending.Wait(context.Background())

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(res); err != nil {
				return err
			}
		} else if err := tui.PrintResult(cmd.OutOrStdout(), res); err != nil {
			return err
		}
		if !res.Success {
			return fmt.Errorf("%w: %s", res.Err(), res.Message)
		}
		return nil
	},
}

// dialCode returns the code to dial and its redacted form.
func dialCode(cmd *cobra.Command, args []string) (string, string, error) {
	template, _ := cmd.Flags().GetString("template")
	vars, _ := cmd.Flags().GetStringToString("var")
	if len(args) == 1 {
		if cmd.Flags().Changed("template") || len(vars) > 0 {
			return "", "", errors.New("a code argument and --template/--var are mutually exclusive")
		}
		if err := ussdcode.Validate(args[0]); err != nil {
			return "", "", err
		}
		return args[0], args[0], nil
	}
	if template == "" {
		template = cfg.Template
	}
	if template == "" {
		return "", "", errors.New("no code given: pass a code, --template, or set ussd_template in the config")
	}
	tpl, err := ussdcode.Parse(template)
	if err != nil {
		return "", "", err
	}
	code, err := tpl.Render(vars)
	if err != nil {
		return "", "", err
	}
	return code, tpl.Redact(vars), nil
}

func dialSteps(cmd *cobra.Command) ([]domain.Step, error) {
	values, _ := cmd.Flags().GetStringArray("step")
	secret, _ := cmd.Flags().GetIntSlice("secret-step")
	steps, err := cli.ParseSteps(values, secret)
	if err != nil {
		return nil, err
	}
	if prompt, _ := cmd.Flags().GetBool("pin-prompt"); prompt {
		pin, err := cli.PromptSecret(os.Stdin, cmd.ErrOrStderr(), "PIN")
		if err != nil {
			return nil, err
		}
		steps = append(steps, domain.Step{Value: pin, Secret: true})
	}
	return steps, nil
}

func init() {
	rootCmd.AddCommand(dialCmd)
	dialCmd.Flags().StringArray("step", nil, "Value to type into the next input screen (repeatable, in order)")
	dialCmd.Flags().IntSlice("secret-step", nil, "Zero-based index of a --step to mask in logs")
	dialCmd.Flags().Bool("pin-prompt", false, "Read a final secret step from the terminal")
	dialCmd.Flags().String("template", "", "Code template with {placeholders} (default: ussd_template from config)")
	dialCmd.Flags().StringToString("var", nil, "Template value as key=value (repeatable)")
	dialCmd.Flags().Bool("json", false, "Print the result as JSON")
}
