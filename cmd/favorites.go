// File: cmd/favorites.go
package cmd

import (
	"fmt"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"
)

// newFavoritesCmd creates the `favorites` command, which lists the recipes a
// user has selected most often.
func newFavoritesCmd() *cobra.Command {
	var (
		user  string
		limit int
	)

	favoritesCmd := &cobra.Command{
		Use:   "favorites",
		Short: "List a user's most selected recipes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			s, err := openStore(ctx)
			if err != nil {
				return err
			}

			recipes, err := s.FavoriteRecipes(ctx, user, limit)
			if err != nil {
				return fmt.Errorf("fetch favorites: %w", err)
			}

			out, err := jsoniter.ConfigCompatibleWithStandardLibrary.MarshalIndent(recipes, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		},
	}

	favoritesCmd.Flags().StringVarP(&user, "user", "u", "", "user to list favorites for (required)")
	favoritesCmd.Flags().IntVarP(&limit, "limit", "n", 5, "maximum number of recipes")
	_ = favoritesCmd.MarkFlagRequired("user")

	return favoritesCmd
}
