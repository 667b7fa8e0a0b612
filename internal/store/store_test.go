package store

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/tastegraph/api/schemas"
	"github.com/xkilldash9x/tastegraph/internal/graphdb"
	"github.com/xkilldash9x/tastegraph/internal/gremlin"
)

// countingClient wraps a graphdb.Client and tallies mutating calls so tests
// can assert idempotence.
type countingClient struct {
	graphdb.Client

	mu          sync.Mutex
	createGraph int
	saveSchema  int
	addVertex   int
	addEdge     int
	updateEdge  int
}

func (c *countingClient) CreateGraph(ctx context.Context, graphID string) error {
	c.mu.Lock()
	c.createGraph++
	c.mu.Unlock()
	return c.Client.CreateGraph(ctx, graphID)
}

func (c *countingClient) SaveSchema(ctx context.Context, schema *schemas.Schema) error {
	c.mu.Lock()
	c.saveSchema++
	c.mu.Unlock()
	return c.Client.SaveSchema(ctx, schema)
}

func (c *countingClient) AddVertex(ctx context.Context, label string, properties map[string]any) (*schemas.Vertex, error) {
	c.mu.Lock()
	c.addVertex++
	c.mu.Unlock()
	return c.Client.AddVertex(ctx, label, properties)
}

func (c *countingClient) AddEdge(ctx context.Context, edge schemas.Edge) (*schemas.Edge, error) {
	c.mu.Lock()
	c.addEdge++
	c.mu.Unlock()
	return c.Client.AddEdge(ctx, edge)
}

func (c *countingClient) UpdateEdge(ctx context.Context, edge schemas.Edge) error {
	c.mu.Lock()
	c.updateEdge++
	c.mu.Unlock()
	return c.Client.UpdateEdge(ctx, edge)
}

func newTestStore(t *testing.T) (*Store, *countingClient) {
	t.Helper()
	backend := &countingClient{Client: graphdb.NewInMemory(zaptest.NewLogger(t))}
	s := New(backend, "tastegraph", zaptest.NewLogger(t))
	require.NoError(t, s.EnsureGraphAndSchema(context.Background()))
	return s, backend
}

func TestEnsureGraphAndSchema(t *testing.T) {
	t.Parallel()

	t.Run("bootstrap is idempotent", func(t *testing.T) {
		t.Parallel()
		s, backend := newTestStore(t)
		require.NoError(t, s.EnsureGraphAndSchema(context.Background()))
		require.NoError(t, s.EnsureGraphAndSchema(context.Background()))

		assert.Equal(t, 1, backend.createGraph)
		assert.Equal(t, 1, backend.saveSchema)
	})

	t.Run("schema declares the vocabulary", func(t *testing.T) {
		t.Parallel()
		s, _ := newTestStore(t)
		schema, err := s.graph.GetSchema(context.Background())
		require.NoError(t, err)

		var vertexLabels, edgeLabels []string
		for _, l := range schema.VertexLabels {
			vertexLabels = append(vertexLabels, l.Name)
		}
		for _, l := range schema.EdgeLabels {
			edgeLabels = append(edgeLabels, l.Name)
		}
		assert.ElementsMatch(t, []string{"person", "ingredient", "cuisine", "recipe"}, vertexLabels)
		assert.Equal(t, []string{"selects"}, edgeLabels)
		require.Len(t, schema.VertexIndexes, 1)
		assert.True(t, schema.VertexIndexes[0].Unique)
	})
}

func TestAddUser(t *testing.T) {
	t.Parallel()
	s, backend := newTestStore(t)
	ctx := context.Background()

	first, err := s.AddUser(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "alice", first.PropertyString("name"))

	again, err := s.AddUser(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)
	assert.Equal(t, 1, backend.addVertex)

	_, err = s.AddUser(ctx, "   ")
	assert.ErrorIs(t, err, ErrEmptyKey)
}

func TestAddIngredient(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	user, err := s.AddUser(ctx, "alice")
	require.NoError(t, err)

	t.Run("creates vertex and interaction edge", func(t *testing.T) {
		v, err := s.AddIngredient(ctx, "Onion, garlic", []string{"soup"}, user)
		require.NoError(t, err)
		assert.Equal(t, "garlic,onion", v.PropertyString("name"))
		assert.Equal(t, `["soup"]`, v.PropertyString("detail"))

		found, err := s.FindIngredient(ctx, " GARLIC ,onion")
		require.NoError(t, err)
		require.NotNil(t, found)
		assert.Equal(t, v.ID, found.ID)
	})

	t.Run("repeat request increments the count", func(t *testing.T) {
		v, err := s.AddIngredient(ctx, "onion,garlic", []string{"replaced"}, user)
		require.NoError(t, err)
		// Metadata is first-writer-wins.
		assert.Equal(t, `["soup"]`, v.PropertyString("detail"))

		edge := selectsEdge(t, s, user.ID, v.ID)
		assert.Equal(t, 2, edge.Count())
	})

	t.Run("nil payload leaves detail unset", func(t *testing.T) {
		v, err := s.AddIngredient(ctx, "basil", nil, user)
		require.NoError(t, err)
		assert.NotContains(t, v.Properties, "detail")
	})

	t.Run("absent lookup is nil without error", func(t *testing.T) {
		found, err := s.FindIngredient(ctx, "truffle")
		require.NoError(t, err)
		assert.Nil(t, found)
	})

	t.Run("empty key rejected", func(t *testing.T) {
		_, err := s.AddIngredient(ctx, " , ,", nil, user)
		assert.ErrorIs(t, err, ErrEmptyKey)
		_, err = s.FindIngredient(ctx, "")
		assert.ErrorIs(t, err, ErrEmptyKey)
	})
}

func TestAddCuisine(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	user, err := s.AddUser(ctx, "bob")
	require.NoError(t, err)

	v, err := s.AddCuisine(ctx, "  Thai ", map[string]any{"hits": 3}, user)
	require.NoError(t, err)
	assert.Equal(t, "thai", v.PropertyString("name"))

	found, err := s.FindCuisine(ctx, "THAI")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, v.ID, found.ID)

	edge := selectsEdge(t, s, user.ID, v.ID)
	assert.Equal(t, 1, edge.Count())

	bare, err := s.AddCuisine(ctx, "mexican", nil, user)
	require.NoError(t, err)
	assert.NotContains(t, bare.Properties, "detail")
}

func TestAddRecipe(t *testing.T) {
	t.Parallel()
	s, backend := newTestStore(t)
	ctx := context.Background()

	user, err := s.AddUser(ctx, "carol")
	require.NoError(t, err)
	anchor, err := s.AddIngredient(ctx, "basil", nil, user)
	require.NoError(t, err)

	t.Run("records selection and membership", func(t *testing.T) {
		v, err := s.AddRecipe(ctx, "R42", "Pesto", "instructions", anchor, user)
		require.NoError(t, err)
		assert.Equal(t, "r42", v.PropertyString("name"))
		assert.Equal(t, "Pesto", v.PropertyString("title"))

		assert.Equal(t, 1, selectsEdge(t, s, user.ID, v.ID).Count())
		assert.Equal(t, 1, selectsEdge(t, s, anchor.ID, v.ID).Count())

		has, err := s.findEdge(ctx, v.ID, anchor.ID)
		require.NoError(t, err)
		require.NotNil(t, has)
		assert.Equal(t, "has", has.Label)
	})

	t.Run("membership edge is created once", func(t *testing.T) {
		edgesBefore := backend.addEdge
		_, err := s.AddRecipe(ctx, "r42", "ignored", "ignored", anchor, user)
		require.NoError(t, err)
		// Only increments on existing selects edges, no new edges.
		assert.Equal(t, edgesBefore, backend.addEdge)
		assert.Equal(t, 2, selectsEdge(t, s, user.ID, recipeID(t, s, "r42")).Count())
	})

	t.Run("nil anchor skips linkage", func(t *testing.T) {
		v, err := s.AddRecipe(ctx, "r77", "Bare", "", nil, user)
		require.NoError(t, err)
		assert.Equal(t, 1, selectsEdge(t, s, user.ID, v.ID).Count())
		has, err := s.findEdge(ctx, v.ID, anchor.ID)
		require.NoError(t, err)
		assert.Nil(t, has)
	})
}

func TestRecordInteractionConcurrent(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	user, err := s.AddUser(ctx, "dave")
	require.NoError(t, err)
	recipe, err := s.AddRecipe(ctx, "r1", "Stew", "", nil, user)
	require.NoError(t, err)

	const writers = 16
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.RecordRecipeRequest(ctx, recipe, nil, user)
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		require.NoError(t, err)
	}

	// 1 from AddRecipe plus one per concurrent writer, none lost.
	assert.Equal(t, 1+writers, selectsEdge(t, s, user.ID, recipe.ID).Count())
}

// selectsEdge fetches the edge between two vertices, failing the test when it
// is absent.
func selectsEdge(t *testing.T, s *Store, fromID, toID string) *schemas.Edge {
	t.Helper()
	edge, err := s.findEdge(context.Background(), fromID, toID)
	require.NoError(t, err)
	require.NotNil(t, edge)
	return edge
}

func recipeID(t *testing.T, s *Store, name string) string {
	t.Helper()
	v, err := s.FindRecipe(context.Background(), name)
	require.NoError(t, err)
	require.NotNil(t, v)
	return v.ID
}

func TestFindVertexReturnsFirstMatch(t *testing.T) {
	t.Parallel()
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.graph.Run(ctx, gremlin.V().HasLabel("person").Has("name", "nobody"))
	require.NoError(t, err)

	v, err := s.findVertex(ctx, "person", "nobody")
	require.NoError(t, err)
	assert.Nil(t, v)
}
