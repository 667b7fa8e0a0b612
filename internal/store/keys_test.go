package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeIngredients(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"already canonical", "garlic,onion", "garlic,onion"},
		{"sorts tokens", "onion,garlic", "garlic,onion"},
		{"case and padding", "  Onion , GARLIC ", "garlic,onion"},
		{"single token", "Basil", "basil"},
		{"drops empty tokens", "onion,,garlic,", "garlic,onion"},
		{"empty", "   ", ""},
		{"only separators", " , ,", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.want, NormalizeIngredients(tc.input))
		})
	}

	t.Run("order insensitive", func(t *testing.T) {
		t.Parallel()
		assert.Equal(t,
			NormalizeIngredients("tomato,basil,mozzarella"),
			NormalizeIngredients("Mozzarella, Tomato, Basil"))
	})
}

func TestNormalizeCuisine(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "thai", NormalizeCuisine("  Thai "))
	assert.Equal(t, "", NormalizeCuisine(" "))
}

func TestNormalizeRecipeID(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "r42", NormalizeRecipeID(" R42 "))
}
