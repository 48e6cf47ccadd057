package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/spigell/cpl-matcher/internal/ai/gemini"
	"github.com/spigell/cpl-matcher/internal/explain"
	"github.com/spigell/cpl-matcher/internal/gating"
	"github.com/spigell/cpl-matcher/internal/matching"
	"github.com/spigell/cpl-matcher/internal/store"
	"github.com/spigell/cpl-matcher/internal/suggest"
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Match every external unit against the catalog and replace the stored suggestions",
	Run: func(_ *cobra.Command, _ []string) {
		generate()
	},
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().IntP("top-k", "k", matching.DefaultTopK, "suggestions kept per external unit")
	generateCmd.Flags().IntP("workers", "w", 1, "gate groups matched at once")

	viper.BindPFlag("matching.top-k", generateCmd.Flags().Lookup("top-k"))
	viper.BindPFlag("matching.workers", generateCmd.Flags().Lookup("workers"))
}

func generate() {
	ctx := context.Background()
	logger, config := setup("generate")

	db := openStore(config, logger)
	defer db.Close()

	sim, closeSim := newSimilarity(config.Embeddings, logger.Named("similarity"))
	defer closeSim()

	var summarizer explain.Summarizer
	generator, err := newGenerator(ctx, config.AI, logger)
	if err != nil {
		logger.Warn("skipping ai summaries", zap.Error(err))
	}
	if generator != nil {
		maxLog := 0
		if config.AI.Gemini != nil {
			maxLog = config.AI.Gemini.MaxLogLength
		}
		summarizer = gemini.NewSummarizer(generator, maxLog, logger)
	}

	orchestrator := matching.New(sim, explain.New(summarizer, logger), matching.Options{TopK: config.Matching.TopK}, logger)
	service := suggest.New(db, gating.New(config.Gate), orchestrator, logger)

	run, err := service.Generate(ctx, suggest.Options{Workers: config.Matching.Workers})
	if err != nil {
		if errors.Is(err, store.ErrGenerationRunning) {
			logger.Fatal("exiting", zap.Error(err), zap.String("hint", "wait for the other run to finish"))
		}
		logger.Fatal("generating suggestions", zap.Error(err))
	}

	fmt.Println(renderRun(run, orchestrator.TopK()))
}

func renderRun(run *suggest.Run, topK int) string {
	groups := make([]string, 0, len(run.Steps))
	for g := range run.Steps {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		s := run.Steps[g]
		rows = append(rows, []string{g, strconv.Itoa(s.Initial), strconv.Itoa(s.Dropped), strconv.Itoa(s.Left)})
	}

	return fmt.Sprintf("run %s: %d suggestions for %d external units (top-k %d, method %s)\n%s",
		run.ID, run.Suggestions, run.Externals, topK, run.Method,
		renderTable([]string{"Gate group", "Catalog", "Dropped", "Pool"}, rows, 1, 2, 3),
	)
}
