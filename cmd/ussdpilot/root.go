package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/ngabopay/ussdpilot/internal/cli"
	"github.com/ngabopay/ussdpilot/internal/config"
	"github.com/spf13/cobra"
)

// Loaded by the root PersistentPreRunE before any subcommand runs.
var (
	cfg    config.Config
	logger *slog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "ussdpilot",
	Short: "ussdpilot drives USSD menus on an Android phone",
	Long: `ussdpilot dials USSD codes on a connected Android device, walks the carrier
dialogs with the steps you supply and reports a single classified result:
success with a transaction reference, or the reason it failed.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		loaded, err := config.Load(path)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("log-level") {
			loaded.Log.Level, _ = cmd.Flags().GetString("log-level")
		}
		if cmd.Flags().Changed("log-format") {
			loaded.Log.Format, _ = cmd.Flags().GetString("log-format")
		}
		if cmd.Flags().Changed("serial") {
			loaded.Device.Serial, _ = cmd.Flags().GetString("serial")
		}
		cfg = loaded
		logger = cli.NewLogger(os.Stderr, cfg.Log)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", os.Getenv("USSDPILOT_CONFIG"), "Path to the YAML config file")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format (text, json)")
	rootCmd.PersistentFlags().StringP("serial", "s", "", "adb serial of the target device")
}
