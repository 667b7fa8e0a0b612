package store

import (
	"context"
	"strings"

	"github.com/xkilldash9x/tastegraph/api/schemas"
	"github.com/xkilldash9x/tastegraph/internal/gremlin"
)

// FavoriteRecipes returns up to limit recipes the user has selected, ordered
// by their interaction count descending. Relative order among equal counts is
// backend-dependent. An unknown user or limit <= 0 yields an empty slice.
// The user id is trimmed the same way AddUser trims it on the write path.
func (s *Store) FavoriteRecipes(ctx context.Context, userID string, limit int) ([]schemas.Recipe, error) {
	recipes := []schemas.Recipe{}
	if limit <= 0 {
		return recipes, nil
	}
	elements, err := s.graph.Run(ctx, gremlin.V().
		HasLabel(labelPerson).Has(propName, strings.TrimSpace(userID)).
		OutE().OrderByDesc(propCount).
		InV().HasLabel(labelRecipe).Limit(limit))
	if err != nil {
		return nil, err
	}
	for _, el := range elements {
		if el.Vertex == nil {
			continue
		}
		recipes = append(recipes, schemas.Recipe{
			ID:    el.Vertex.PropertyString(propName),
			Title: el.Vertex.PropertyString(propTitle),
		})
	}
	return recipes, nil
}

// RecommendedRecipesForIngredient returns recipes other users repeatedly
// selected for the given ingredient string, excluding excludeUserID's own
// selections. The ingredient key is normalized the same way writes normalize
// it.
func (s *Store) RecommendedRecipesForIngredient(ctx context.Context, ingredients, excludeUserID string, limit int) ([]schemas.RecipeRecommendation, error) {
	name := NormalizeIngredients(ingredients)
	if name == "" {
		return nil, ErrEmptyKey
	}
	return s.recommendedRecipes(ctx, labelIngredient, name, excludeUserID, limit)
}

// RecommendedRecipesForCuisine returns recipes other users repeatedly
// selected for the given cuisine, excluding excludeUserID's own selections.
func (s *Store) RecommendedRecipesForCuisine(ctx context.Context, cuisine, excludeUserID string, limit int) ([]schemas.RecipeRecommendation, error) {
	name := NormalizeCuisine(cuisine)
	if name == "" {
		return nil, ErrEmptyKey
	}
	return s.recommendedRecipes(ctx, labelCuisine, name, excludeUserID, limit)
}

// recommendedRecipes walks from the anchor vertex through its member recipes
// to the other people who selected them more than once, then folds the
// resulting paths into at most limit recipes.
//
// The fold admits recipes in path order: a recipe already admitted gets its
// recommender count incremented for every further path, a new recipe is
// admitted only while fewer than limit recipes are held, and once the cap is
// reached every unseen recipe is dropped for the rest of the stream even if
// its total would have outranked an admitted one. Counts for admitted recipes
// stay exact.
func (s *Store) recommendedRecipes(ctx context.Context, anchorLabel, anchorName, excludeUserID string, limit int) ([]schemas.RecipeRecommendation, error) {
	recommendations := []schemas.RecipeRecommendation{}
	if limit <= 0 {
		return recommendations, nil
	}
	// Person names were trimmed when written, so the exclusion has to match
	// the trimmed form.
	elements, err := s.graph.Run(ctx, gremlin.V().
		HasLabel(anchorLabel).Has(propName, anchorName).
		In(edgeHas).
		InE().Has(propCount, gremlin.Gt(1)).OrderByDesc(propCount).
		OutV().HasLabel(labelPerson).Has(propName, gremlin.Neq(strings.TrimSpace(excludeUserID))).
		Path())
	if err != nil {
		return nil, err
	}

	index := make(map[string]int)
	for _, el := range elements {
		if el.Path == nil || len(el.Path.Objects) < 2 {
			continue
		}
		// Path shape: anchor, recipe, selects edge, person.
		recipe := el.Path.Objects[1].Vertex
		if recipe == nil {
			continue
		}
		id := recipe.PropertyString(propName)
		if at, ok := index[id]; ok {
			recommendations[at].RecommendedUserCount++
			continue
		}
		if len(recommendations) >= limit {
			continue
		}
		index[id] = len(recommendations)
		recommendations = append(recommendations, schemas.RecipeRecommendation{
			ID:                   id,
			Title:                recipe.PropertyString(propTitle),
			RecommendedUserCount: 1,
		})
	}
	return recommendations, nil
}
