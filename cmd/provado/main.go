package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/provado/provado"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "provado",
	Short: "Provado - evidence-grounded RFP requirement validation",
	Long: `Provado validates RFP requirements against a corpus of technical
documents, producing YES/NO/PARTIAL verdicts backed by exact quoted
evidence. If a fact is not explicitly stated in the source material,
the verdict is NO.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("provado v0.1.0")
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults + PROVADO_* env)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(versionCmd)
}

// newEngine loads configuration and constructs the engine shared by all
// subcommands.
func newEngine() (provado.Engine, error) {
	// Optional .env for local development; ignore if absent.
	_ = godotenv.Load()

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	})))

	cfg, err := provado.LoadConfig(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return provado.New(cfg)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
