package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var (
	askTimeout time.Duration
	askJSON    bool
)

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Validate a requirement question against the ingested corpus",
	Long: `Ask runs a question through requirement parsing, hybrid retrieval,
and the decision engine, and prints the verdict with quoted evidence.

Example:
  provado ask "Is the RTO guaranteed at 1 hour or less?"
  provado ask --json "Does the platform support SAML SSO?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().DurationVar(&askTimeout, "timeout", 2*time.Minute, "overall validation timeout")
	askCmd.Flags().BoolVar(&askJSON, "json", false, "print the full result as JSON")
}

func runAsk(cmd *cobra.Command, args []string) error {
	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	question := strings.Join(args, " ")

	ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
	defer cancel()

	result, err := engine.Validate(ctx, question)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	if askJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	fmt.Printf("%s\n\n%s\n", result.Answer, result.Justification)
	if len(result.Evidence) > 0 {
		fmt.Println("\nEvidence:")
		for i, ev := range result.Evidence {
			fmt.Printf("  [%d] %q (%s)\n", i+1, ev.Quote, ev.Source)
		}
	}
	return nil
}
