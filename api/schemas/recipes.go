package schemas

// Recipe is a ranked entry in a user's favorite recipes. ID is the normalized
// recipe key (the vertex "name" property), Title its display title.
type Recipe struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// RecipeRecommendation is one cross-user recommendation. RecommendedUserCount
// is the number of reinforcing interactions observed for the recipe during the
// traversal, not a count of distinct users.
type RecipeRecommendation struct {
	ID                   string `json:"id"`
	Title                string `json:"title"`
	RecommendedUserCount int    `json:"recommendedUserCount"`
}
