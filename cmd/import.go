package cmd

import (
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/cpl-matcher/internal/catalog"
	"github.com/spigell/cpl-matcher/internal/transcript"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import catalog or transcript units into the database",
}

var importCatalogCmd = &cobra.Command{
	Use:   "catalog <file.csv>",
	Short: "Import catalog units from a CSV file with a header row",
	Args:  cobra.ExactArgs(1),
	Run: func(_ *cobra.Command, args []string) {
		importCatalog(args[0])
	},
}

var importTranscriptCmd = &cobra.Command{
	Use:   "transcript <file.txt>",
	Short: "Import external units from a plain text transcript",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		importTranscript(cmd, args[0])
	},
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.AddCommand(importCatalogCmd, importTranscriptCmd)

	importTranscriptCmd.Flags().String("source", "", "source label stored with the units (default is the file name)")
	importTranscriptCmd.Flags().String("institution", "", "issuing institution; detected from the transcript when empty")
	importTranscriptCmd.Flags().Bool("replace", false, "remove previously imported external units first")
}

func importCatalog(path string) {
	ctx := context.Background()
	logger, config := setup("import.catalog")

	f, err := os.Open(path)
	if err != nil {
		logger.Fatal("opening the catalog file", zap.Error(err))
	}
	defer f.Close()

	units, err := catalog.Load(f, config.Catalog)
	if err != nil {
		logger.Fatal("reading the catalog", zap.Error(err), zap.String("file", path))
	}

	db := openStore(config, logger)
	defer db.Close()

	written, err := db.UpsertCatalogUnits(ctx, units)
	if err != nil {
		logger.Fatal("storing catalog units", zap.Error(err))
	}

	logger.Info("catalog imported", zap.String("file", path), zap.Int("units", written))
}

func importTranscript(cmd *cobra.Command, path string) {
	ctx := context.Background()
	logger, config := setup("import.transcript")

	data, err := os.ReadFile(path)
	if err != nil {
		logger.Fatal("reading the transcript", zap.Error(err))
	}

	source, _ := cmd.Flags().GetString("source")
	if strings.TrimSpace(source) == "" {
		source = filepath.Base(path)
	}

	units := transcript.Parse(string(data), source)
	if len(units) == 0 {
		logger.Info("exiting", zap.String("reason", "no unit lines found in the transcript"))
		return
	}

	institution, _ := cmd.Flags().GetString("institution")
	if institution = strings.TrimSpace(institution); institution != "" {
		for i := range units {
			units[i].Institution = institution
		}
	} else if units[0].Institution == "" {
		logger.Warn("issuing institution not detected",
			zap.String("hint", "pass --institution so enrichment can find the institution website"),
		)
	}

	db := openStore(config, logger)
	defer db.Close()

	if replace, _ := cmd.Flags().GetBool("replace"); replace {
		removed, err := db.ClearExternalUnits(ctx)
		if err != nil {
			logger.Fatal("removing previous external units", zap.Error(err))
		}
		logger.Info("previous external units removed", zap.Int64("count", removed))
	}

	ids, err := db.InsertExternalUnits(ctx, units)
	if err != nil {
		logger.Fatal("storing external units", zap.Error(err))
	}

	logger.Info("transcript imported",
		zap.String("file", path),
		zap.String("institution", units[0].Institution),
		zap.Int("units", len(ids)),
	)
}
