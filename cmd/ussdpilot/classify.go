package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ngabopay/ussdpilot/pkg/classify"
	"github.com/spf13/cobra"
)

var classifyCmd = &cobra.Command{
	Use:   "classify [text...]",
	Short: "Classify a screen text with the configured keyword profile",
	Long: `Runs the keyword classifier on the given text and prints the verdict: the
classification, the keyword that matched and any transaction reference.
Useful when tuning a carrier profile against real screen captures.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		c, err := classify.New(cfg.Profile.WithDefaults())
		if err != nil {
			return err
		}
		verdict := c.Explain(strings.Join(args, " "))

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(verdict)
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "profile:        %s\n", c.Profile().ID())
		fmt.Fprintf(out, "classification: %s\n", verdict.Classification)
		if verdict.Keyword != "" {
			fmt.Fprintf(out, "keyword:        %s\n", verdict.Keyword)
		}
		if verdict.TransactionID != "" {
			fmt.Fprintf(out, "transaction:    %s\n", verdict.TransactionID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(classifyCmd)
	classifyCmd.Flags().Bool("json", false, "Print the verdict as JSON")
}
