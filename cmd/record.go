// File: cmd/record.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/tastegraph/api/schemas"
	"github.com/xkilldash9x/tastegraph/internal/observability"
)

// newRecordCmd creates the `record` command, which writes one interaction
// into the graph: an ingredient or cuisine request, or a recipe selection
// optionally anchored to one of those.
func newRecordCmd() *cobra.Command {
	var (
		user        string
		ingredients string
		cuisine     string
		recipe      string
		title       string
		detail      string
	)

	recordCmd := &cobra.Command{
		Use:   "record",
		Short: "Record a user interaction in the graph",
		Example: `  tastegraph record --user alice --ingredients "onion, garlic"
  tastegraph record --user alice --cuisine thai
  tastegraph record --user alice --recipe r42 --title "Pesto" --ingredients basil`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if recipe == "" && ingredients == "" && cuisine == "" {
				return fmt.Errorf("nothing to record: pass --recipe, --ingredients or --cuisine")
			}
			if ingredients != "" && cuisine != "" {
				return fmt.Errorf("--ingredients and --cuisine are mutually exclusive")
			}

			ctx := cmd.Context()
			logger := observability.GetLogger()

			s, err := openStore(ctx)
			if err != nil {
				return err
			}
			person, err := s.AddUser(ctx, user)
			if err != nil {
				return fmt.Errorf("resolve user: %w", err)
			}

			// An ingredient or cuisine request is recorded on its own, and
			// doubles as the anchor when a recipe selection follows it.
			var anchor *schemas.Vertex
			switch {
			case ingredients != "":
				anchor, err = s.AddIngredient(ctx, ingredients, nil, person)
				if err != nil {
					return fmt.Errorf("record ingredient request: %w", err)
				}
			case cuisine != "":
				anchor, err = s.AddCuisine(ctx, cuisine, nil, person)
				if err != nil {
					return fmt.Errorf("record cuisine request: %w", err)
				}
			}

			if recipe != "" {
				if _, err := s.AddRecipe(ctx, recipe, title, detail, anchor, person); err != nil {
					return fmt.Errorf("record recipe selection: %w", err)
				}
			}

			logger.Info("Recorded interaction",
				zap.String("user", user),
				zap.String("recipe", recipe),
				zap.String("ingredients", ingredients),
				zap.String("cuisine", cuisine))
			fmt.Fprintln(cmd.OutOrStdout(), "Recorded.")
			return nil
		},
	}

	recordCmd.Flags().StringVarP(&user, "user", "u", "", "user the interaction belongs to (required)")
	recordCmd.Flags().StringVarP(&ingredients, "ingredients", "i", "", "comma-separated ingredient list that was requested")
	recordCmd.Flags().StringVarP(&cuisine, "cuisine", "k", "", "cuisine that was requested")
	recordCmd.Flags().StringVarP(&recipe, "recipe", "r", "", "identifier of the recipe that was selected")
	recordCmd.Flags().StringVarP(&title, "title", "t", "", "display title for a newly seen recipe")
	recordCmd.Flags().StringVarP(&detail, "detail", "d", "", "instruction payload for a newly seen recipe")
	_ = recordCmd.MarkFlagRequired("user")

	return recordCmd
}
