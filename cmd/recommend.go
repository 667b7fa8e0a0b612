// File: cmd/recommend.go
package cmd

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/tastegraph/api/schemas"
)

// newRecommendCmd creates the `recommend` command, which surfaces recipes
// other users repeatedly selected for an ingredient list or cuisine.
func newRecommendCmd() *cobra.Command {
	var (
		user        string
		ingredients string
		cuisine     string
		limit       int
	)

	recommendCmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend recipes other users selected for an ingredient list or cuisine",
		Example: `  tastegraph recommend --user alice --ingredients "onion, garlic"
  tastegraph recommend --user alice --cuisine thai --limit 3`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if (ingredients == "") == (cuisine == "") {
				return fmt.Errorf("pass exactly one of --ingredients or --cuisine")
			}

			ctx := cmd.Context()
			s, err := openStore(ctx)
			if err != nil {
				return err
			}

			var recommendations []schemas.RecipeRecommendation
			if ingredients != "" {
				recommendations, err = s.RecommendedRecipesForIngredient(ctx, ingredients, user, limit)
			} else {
				recommendations, err = s.RecommendedRecipesForCuisine(ctx, cuisine, user, limit)
			}
			if err != nil {
				return fmt.Errorf("fetch recommendations: %w", err)
			}

			out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(recommendations, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	recommendCmd.Flags().StringVarP(&user, "user", "u", "", "requesting user, excluded from the recommendation pool (required)")
	recommendCmd.Flags().StringVarP(&ingredients, "ingredients", "i", "", "comma-separated ingredient list")
	recommendCmd.Flags().StringVarP(&cuisine, "cuisine", "k", "", "cuisine name")
	recommendCmd.Flags().IntVarP(&limit, "limit", "n", 5, "maximum number of recipes")
	_ = recommendCmd.MarkFlagRequired("user")

	return recommendCmd
}
