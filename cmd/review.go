package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/cpl-matcher/internal/logger"
	"github.com/spigell/cpl-matcher/internal/store"
	"github.com/spigell/cpl-matcher/internal/unit"
)

const (
	PromptApprove     = "Approve"
	PromptReject      = "Reject"
	PromptNeedsReview = "Needs review"
	PromptOverride    = "Override with another catalog unit"
	PromptDetails     = "Show details"
	PromptBack        = "back"
	PromptQuit        = "quit"
)

var actionStatus = map[string]unit.DecisionStatus{
	PromptApprove:     unit.DecisionApproved,
	PromptReject:      unit.DecisionRejected,
	PromptNeedsReview: unit.DecisionNeedsReview,
	PromptOverride:    unit.DecisionOverride,
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review pending suggestions interactively",
	Run: func(cmd *cobra.Command, _ []string) {
		review(cmd)
	},
}

func init() {
	rootCmd.AddCommand(reviewCmd)

	reviewCmd.Flags().StringP("reviewer", "r", os.Getenv("USER"), "name stored with every decision")
	reviewCmd.Flags().Bool("all", false, "include suggestions that already have a decision")
}

func review(cmd *cobra.Command) {
	ctx := context.Background()
	log, config := setup("review")

	db := openStore(config, log)
	defer db.Close()

	reviewer, _ := cmd.Flags().GetString("reviewer")
	all, _ := cmd.Flags().GetBool("all")

	for {
		rows, err := reviewQueue(ctx, db, all)
		if err != nil {
			log.Fatal("listing suggestions", zap.Error(err))
		}
		if len(rows) == 0 {
			log.Info("exiting", zap.String("reason", "nothing left to review"))
			return
		}

		items := make([]string, 0, len(rows)+1)
		for _, r := range rows {
			items = append(items, fmt.Sprintf("%d %s -> %s (%.3f %s, %s)",
				r.ID, r.ExternalCode, r.CatalogCode, r.Score, r.Band, statusOf(r)))
		}

		selectPrompt := promptui.Select{
			Label: "Choose a suggestion and press ENTER",
			Items: append(items, PromptQuit),
			Size:  15,
		}
		idx, selected, err := selectPrompt.Run()
		if err != nil {
			log.Fatal("exiting", zap.Error(err))
		}
		if selected == PromptQuit {
			return
		}

		if err := reviewOne(ctx, db, log, rows[idx], reviewer); err != nil {
			log.Fatal("exiting", zap.Error(err))
		}
	}
}

func reviewQueue(ctx context.Context, db *store.Store, all bool) ([]store.SuggestionRow, error) {
	if all {
		return db.ListSuggestions(ctx)
	}
	return db.PendingSuggestions(ctx)
}

func reviewOne(ctx context.Context, db *store.Store, log *zap.Logger, row store.SuggestionRow, reviewer string) error {
	for {
		actionPrompt := promptui.Select{
			Label: fmt.Sprintf("%s %s -> %s %s", row.ExternalCode, row.ExternalTitle, row.CatalogCode, row.CatalogTitle),
			Items: []string{PromptApprove, PromptReject, PromptNeedsReview, PromptOverride, PromptDetails, PromptBack},
		}
		_, action, err := actionPrompt.Run()
		if err != nil {
			return err
		}

		switch action {
		case PromptBack:
			return nil
		case PromptDetails:
			fmt.Println(details(row))
			continue
		}

		decision := unit.Decision{
			SuggestionID: row.ID,
			Status:       actionStatus[action],
			Reviewer:     reviewer,
		}

		if decision.Status == unit.DecisionOverride {
			target, err := askOverride(ctx, db)
			if err != nil {
				return err
			}
			decision.OverrideCatalogID = target.ID
		}

		notesPrompt := promptui.Prompt{Label: "Notes (optional)"}
		notes, err := notesPrompt.Run()
		if err != nil {
			return err
		}
		decision.Notes = notes

		if err := db.SaveDecision(ctx, decision); err != nil {
			return err
		}

		log.Info("decision saved",
			zap.Int64("suggestion_id", row.ID),
			zap.String("status", string(decision.Status)),
			zap.String("reviewer", reviewer),
		)
		return nil
	}
}

func askOverride(ctx context.Context, db *store.Store) (unit.Unit, error) {
	for {
		codePrompt := promptui.Prompt{
			Label: "Catalog unit code",
			Validate: func(input string) error {
				if strings.TrimSpace(input) == "" {
					return errors.New("code is required")
				}
				return nil
			},
		}
		code, err := codePrompt.Run()
		if err != nil {
			return unit.Unit{}, err
		}

		target, err := db.CatalogUnitByCode(ctx, code)
		if errors.Is(err, store.ErrNotFound) {
			fmt.Printf("no catalog unit %s\n", unit.NormalizeCode(code))
			continue
		}
		return target, err
	}
}

func statusOf(r store.SuggestionRow) string {
	if r.Status == "" {
		return string(unit.DecisionPending)
	}
	return string(r.Status)
}

func details(r store.SuggestionRow) string {
	rows := [][]string{
		{"Score", strconv.FormatFloat(r.Score, 'f', 3, 64) + " (" + string(r.Band) + ")"},
		{"External", r.ExternalCode + " " + r.ExternalTitle},
		{"External description", logger.TruncateForLog(r.ExternalDescription, 300)},
		{"External outcomes", logger.TruncateForLog(r.ExternalOutcomes, 300)},
		{"Catalog", r.CatalogCode + " " + r.CatalogTitle},
		{"Catalog description", logger.TruncateForLog(r.CatalogDescription, 300)},
		{"Catalog outcomes", logger.TruncateForLog(r.CatalogOutcomes, 300)},
		{"Explanation", r.Explanation},
	}
	return renderTable([]string{"Field", "Value"}, rows)
}
