package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/provado/provado"
)

var (
	forceReparse bool
	skipFacts    bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <path>...",
	Short: "Ingest documents or directories into the corpus",
	Long: `Ingest parses, chunks, embeds, and extracts facts from documents.
Supported formats: pdf, txt, md, xlsx. Directories are walked recursively.

Unchanged documents (same content hash) are skipped unless --force is set.

Example:
  provado ingest ./proposals/vendor-a.pdf
  provado ingest ./proposals --force`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func init() {
	rootCmd.AddCommand(ingestCmd)

	ingestCmd.Flags().BoolVar(&forceReparse, "force", false, "re-parse even if the document is unchanged")
	ingestCmd.Flags().BoolVar(&skipFacts, "skip-facts", false, "skip fact extraction (vector-only ingest)")
}

func runIngest(cmd *cobra.Command, args []string) error {
	engine, err := newEngine()
	if err != nil {
		return err
	}
	defer engine.Close()

	var opts []provado.IngestOption
	if forceReparse {
		opts = append(opts, provado.WithForceReparse())
	}
	if skipFacts {
		opts = append(opts, provado.WithSkipFacts())
	}

	ctx := context.Background()
	var failures int

	for _, path := range args {
		info, err := os.Stat(path)
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", path, err)
			failures++
			continue
		}

		if info.IsDir() {
			results, err := engine.IngestDir(ctx, path, opts...)
			if err != nil {
				return err
			}
			for _, res := range results {
				if res.Error != nil {
					fmt.Fprintf(os.Stderr, "✗ %s: %v\n", res.Path, res.Error)
					failures++
					continue
				}
				fmt.Printf("✓ %s (document %d)\n", res.Path, res.DocumentID)
			}
			continue
		}

		docID, err := engine.Ingest(ctx, path, opts...)
		if err != nil {
			fmt.Fprintf(os.Stderr, "✗ %s: %v\n", path, err)
			failures++
			continue
		}
		fmt.Printf("✓ %s (document %d)\n", path, docID)
	}

	if failures > 0 {
		return fmt.Errorf("%d document(s) failed", failures)
	}
	return nil
}
