package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List ingested documents",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		docs, err := engine.ListDocuments(context.Background())
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			fmt.Println("No documents ingested.")
			return nil
		}
		for _, d := range docs {
			fmt.Printf("%4d  %-10s  %-6s  %s\n", d.ID, d.Status, d.Format, d.Filename)
		}
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <document-id>",
	Short: "Delete a document and all its data",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid document id %q", args[0])
		}

		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		if err := engine.Delete(context.Background(), id); err != nil {
			return err
		}
		fmt.Printf("Deleted document %d.\n", id)
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show corpus statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		stats, err := engine.Stats(context.Background())
		if err != nil {
			return err
		}
		fmt.Printf("Documents:  %d\n", stats.Documents)
		fmt.Printf("Chunks:     %d\n", stats.Chunks)
		fmt.Printf("Embeddings: %d\n", stats.Embeddings)
		fmt.Printf("Facts:      %d\n", stats.Facts)
		fmt.Printf("Sources:    %d\n", stats.Sources)
		return nil
	},
}

var resetYes bool

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Wipe all documents, chunks, embeddings, and facts",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !resetYes {
			fmt.Print("This removes all ingested data. Continue? [y/N] ")
			line, _ := bufio.NewReader(os.Stdin).ReadString('\n')
			if answer := strings.ToLower(strings.TrimSpace(line)); answer != "y" && answer != "yes" {
				fmt.Println("Aborted.")
				return nil
			}
		}

		engine, err := newEngine()
		if err != nil {
			return err
		}
		defer engine.Close()

		if err := engine.Reset(context.Background()); err != nil {
			return err
		}
		fmt.Println("Corpus reset.")
		return nil
	},
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "skip confirmation prompt")

	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(resetCmd)
}
