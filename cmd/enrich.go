package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cpl-matcher/internal/ai/gemini"
	"github.com/spigell/cpl-matcher/internal/enrichment"
	"github.com/spigell/cpl-matcher/internal/enrichment/web"
)

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Fill missing descriptions and outcomes of external units from institution websites",
	Run: func(_ *cobra.Command, _ []string) {
		enrich()
	},
}

func init() {
	rootCmd.AddCommand(enrichCmd)

	enrichCmd.Flags().IntP("workers", "w", 0, "units enriched at once (default 4)")
	enrichCmd.Flags().BoolP("force", "f", false, "re-enrich units that already have a description")

	viper.BindPFlag("enrichment.workers", enrichCmd.Flags().Lookup("workers"))
	viper.BindPFlag("enrichment.force", enrichCmd.Flags().Lookup("force"))
}

func enrich() {
	ctx := context.Background()
	logger, config := setup("enrich")

	if len(config.Institutions) == 0 {
		logger.Warn("no institutions configured",
			zap.String("hint", "add base-url entries under 'institutions' so unit pages can be found"),
		)
	}

	db := openStore(config, logger)
	defer db.Close()

	opts := []web.Option{web.WithCache(db), web.WithLogger(logger.Named("web"))}

	generator, err := newGenerator(ctx, config.AI, logger)
	if err != nil {
		logger.Warn("skipping page structuring", zap.Error(err))
	}
	if generator != nil {
		maxLog := 0
		if config.AI.Gemini != nil {
			maxLog = config.AI.Gemini.MaxLogLength
		}
		opts = append(opts, web.WithStructurer(gemini.NewStructurer(generator, maxLog, logger)))
	}

	retriever := web.New(config.Enrichment.Web, config.Institutions, opts...)

	units, err := db.ListExternalUnits(ctx)
	if err != nil {
		logger.Fatal("listing external units", zap.Error(err))
	}
	if len(units) == 0 {
		logger.Info("exiting", zap.String("reason", "no external units imported"))
		return
	}

	batch := enrichment.NewBatch(retriever, db, config.Enrichment.Options, logger)
	if _, _, err := batch.Run(ctx, units); err != nil {
		logger.Fatal("enrichment failed", zap.Error(err))
	}
}
