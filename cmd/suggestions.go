package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/cpl-matcher/internal/export"
	"github.com/spigell/cpl-matcher/internal/store"
)

var suggestionsCmd = &cobra.Command{
	Use:   "suggestions",
	Short: "List stored suggestions with their latest decisions",
	Run: func(cmd *cobra.Command, _ []string) {
		listSuggestions(cmd)
	},
}

func init() {
	rootCmd.AddCommand(suggestionsCmd)

	suggestionsCmd.Flags().String("csv", "", "write suggestions to this CSV file instead of printing a table")
	suggestionsCmd.Flags().Bool("pending", false, "only suggestions without a decision")
}

func listSuggestions(cmd *cobra.Command) {
	ctx := context.Background()
	logger, config := setup("suggestions")

	db := openStore(config, logger)
	defer db.Close()

	var (
		rows []store.SuggestionRow
		err  error
	)
	if pending, _ := cmd.Flags().GetBool("pending"); pending {
		rows, err = db.PendingSuggestions(ctx)
	} else {
		rows, err = db.ListSuggestions(ctx)
	}
	if err != nil {
		logger.Fatal("listing suggestions", zap.Error(err))
	}

	path, _ := cmd.Flags().GetString("csv")
	if path = strings.TrimSpace(path); path == "" {
		if len(rows) == 0 {
			logger.Info("no suggestions stored", zap.String("hint", "run the generate command first"))
			return
		}
		fmt.Println(export.RenderTable(rows))
		return
	}

	if err := writeCSVFile(path, rows); err != nil {
		logger.Fatal("exporting suggestions", zap.Error(err))
	}
	logger.Info("suggestions exported", zap.String("file", path), zap.Int("count", len(rows)))
}

func writeCSVFile(path string, rows []store.SuggestionRow) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := export.WriteCSV(f, rows); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
