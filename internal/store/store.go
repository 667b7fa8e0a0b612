// Package store persists entities discovered by the recipe assistant as a
// property graph and answers recommendation queries over it. Vertices
// (person, ingredient, cuisine, recipe) are unique per normalized name within
// their label; "selects" edges carry a monotonically growing interaction
// count and "has" edges mark recipe provenance.
//
// Every upsert here is a read-then-conditionally-write sequence against a
// remote backend with no atomicity guarantee. The store serializes these
// sequences per key (singleflight for vertex creation, a keyed mutex for edge
// writes), which closes the race between callers sharing this process.
// Writers in other processes still race; a backend with a conditional-put or
// atomic-increment primitive is the only complete fix.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/xkilldash9x/tastegraph/api/schemas"
	"github.com/xkilldash9x/tastegraph/internal/graphdb"
	"github.com/xkilldash9x/tastegraph/internal/gremlin"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Graph vocabulary. These literals are the compatibility contract with an
// existing populated graph; changing any of them orphans existing data.
const (
	labelPerson     = "person"
	labelIngredient = "ingredient"
	labelCuisine    = "cuisine"
	labelRecipe     = "recipe"

	edgeSelects = "selects"
	edgeHas     = "has"

	propName   = "name"
	propTitle  = "title"
	propDetail = "detail"
	propCount  = "count"
)

// ErrEmptyKey is returned when an input normalizes to the empty string. An
// empty key would collide every empty input onto one vertex, so the store
// refuses it instead.
var ErrEmptyKey = errors.New("input normalizes to an empty key")

// Store is the interaction graph recommendation store. It is safe for
// concurrent use by multiple callers.
type Store struct {
	graph   graphdb.Client
	graphID string
	log     *zap.Logger

	upserts singleflight.Group
	edgeMu  *keyedMutex
}

// New creates a Store addressing graphID on the given backend. Call
// EnsureGraphAndSchema once before any other operation.
func New(graph graphdb.Client, graphID string, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		graph:   graph,
		graphID: graphID,
		log:     logger.Named("store"),
		edgeMu:  newKeyedMutex(),
	}
}

// EnsureGraphAndSchema creates the graph if it does not exist, selects it,
// and defines the schema when none is present. Running it against an
// initialized graph performs only the two existence checks.
func (s *Store) EnsureGraphAndSchema(ctx context.Context) error {
	ids, err := s.graph.ListGraphs(ctx)
	if err != nil {
		return fmt.Errorf("ensure graph: %w", err)
	}
	exists := false
	for _, id := range ids {
		if id == s.graphID {
			exists = true
			break
		}
	}
	if !exists {
		s.log.Info("creating graph", zap.String("graph_id", s.graphID))
		if err := s.graph.CreateGraph(ctx, s.graphID); err != nil {
			return fmt.Errorf("ensure graph: %w", err)
		}
	}
	s.graph.SetGraph(s.graphID)

	schema, err := s.graph.GetSchema(ctx)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	if len(schema.PropertyKeys) > 0 {
		s.log.Debug("graph schema already defined", zap.String("graph_id", s.graphID))
		return nil
	}
	s.log.Info("creating graph schema", zap.String("graph_id", s.graphID))
	if err := s.graph.SaveSchema(ctx, canonicalSchema()); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// canonicalSchema is the schema every graph this store manages carries.
//
// The "has" edge label is written by recordMembership without being declared
// here; existing graphs were populated that way and the backend auto-creates
// the label on first use. TODO: declare "has" once deployed graphs have been
// checked for a conflicting auto-created definition.
func canonicalSchema() *schemas.Schema {
	return &schemas.Schema{
		PropertyKeys: []schemas.PropertyKey{
			{Name: propName, DataType: "String", Cardinality: "SINGLE"},
			{Name: propTitle, DataType: "String", Cardinality: "SINGLE"},
			{Name: propDetail, DataType: "String", Cardinality: "SINGLE"},
		},
		VertexLabels: []schemas.VertexLabel{
			{Name: labelPerson},
			{Name: labelIngredient},
			{Name: labelCuisine},
			{Name: labelRecipe},
		},
		EdgeLabels: []schemas.EdgeLabel{
			{Name: edgeSelects},
		},
		VertexIndexes: []schemas.VertexIndex{
			{Name: "vertexByName", PropertyKeys: []string{propName}, Composite: true, Unique: true},
		},
	}
}

// -- Users --

// AddUser returns the person vertex for userID, creating it on first
// interaction.
func (s *Store) AddUser(ctx context.Context, userID string) (*schemas.Vertex, error) {
	name := strings.TrimSpace(userID)
	if name == "" {
		return nil, ErrEmptyKey
	}
	return s.getOrCreateVertex(ctx, labelPerson, map[string]any{propName: name})
}

// -- Ingredients --

// FindIngredient looks up the ingredient vertex for the given ingredient
// string. Absent is (nil, nil).
func (s *Store) FindIngredient(ctx context.Context, ingredients string) (*schemas.Vertex, error) {
	name := NormalizeIngredients(ingredients)
	if name == "" {
		return nil, ErrEmptyKey
	}
	return s.findVertex(ctx, labelIngredient, name)
}

// AddIngredient returns the ingredient vertex for the given ingredient
// string, creating it with the matched-recipes payload as its detail when
// absent, and records the user's interaction with it. A nil payload leaves
// detail unset; an existing vertex keeps its original detail.
func (s *Store) AddIngredient(ctx context.Context, ingredients string, matching any, user *schemas.Vertex) (*schemas.Vertex, error) {
	name := NormalizeIngredients(ingredients)
	if name == "" {
		return nil, ErrEmptyKey
	}
	properties := map[string]any{propName: name}
	if matching != nil {
		detail, err := json.Marshal(matching)
		if err != nil {
			return nil, fmt.Errorf("encode ingredient payload: %w", err)
		}
		properties[propDetail] = string(detail)
	}
	vertex, err := s.getOrCreateVertex(ctx, labelIngredient, properties)
	if err != nil {
		return nil, err
	}
	if err := s.RecordIngredientRequest(ctx, vertex, user); err != nil {
		return nil, err
	}
	return vertex, nil
}

// RecordIngredientRequest bumps the user's interaction weight on the
// ingredient.
func (s *Store) RecordIngredientRequest(ctx context.Context, ingredient, user *schemas.Vertex) error {
	return s.recordInteraction(ctx, user.ID, ingredient.ID)
}

// -- Cuisines --

// FindCuisine looks up the cuisine vertex by name. Absent is (nil, nil).
func (s *Store) FindCuisine(ctx context.Context, cuisine string) (*schemas.Vertex, error) {
	name := NormalizeCuisine(cuisine)
	if name == "" {
		return nil, ErrEmptyKey
	}
	return s.findVertex(ctx, labelCuisine, name)
}

// AddCuisine returns the cuisine vertex, creating it with the
// matched-recipes payload when absent, and records the user's interaction.
func (s *Store) AddCuisine(ctx context.Context, cuisine string, matching any, user *schemas.Vertex) (*schemas.Vertex, error) {
	name := NormalizeCuisine(cuisine)
	if name == "" {
		return nil, ErrEmptyKey
	}
	properties := map[string]any{propName: name}
	if matching != nil {
		detail, err := json.Marshal(matching)
		if err != nil {
			return nil, fmt.Errorf("encode cuisine payload: %w", err)
		}
		properties[propDetail] = string(detail)
	}
	vertex, err := s.getOrCreateVertex(ctx, labelCuisine, properties)
	if err != nil {
		return nil, err
	}
	if err := s.RecordCuisineRequest(ctx, vertex, user); err != nil {
		return nil, err
	}
	return vertex, nil
}

// RecordCuisineRequest bumps the user's interaction weight on the cuisine.
func (s *Store) RecordCuisineRequest(ctx context.Context, cuisine, user *schemas.Vertex) error {
	return s.recordInteraction(ctx, user.ID, cuisine.ID)
}

// -- Recipes --

// FindRecipe looks up the recipe vertex by external id. Absent is (nil, nil).
func (s *Store) FindRecipe(ctx context.Context, recipeID string) (*schemas.Vertex, error) {
	name := NormalizeRecipeID(recipeID)
	if name == "" {
		return nil, ErrEmptyKey
	}
	return s.findVertex(ctx, labelRecipe, name)
}

// AddRecipe returns the recipe vertex, creating it with title and detail when
// absent (an existing vertex keeps its original metadata), and records the
// selection: user selects recipe, plus the anchor linkage when the recipe was
// reached through an ingredient or cuisine.
func (s *Store) AddRecipe(ctx context.Context, recipeID, title, detail string, anchor, user *schemas.Vertex) (*schemas.Vertex, error) {
	name := NormalizeRecipeID(recipeID)
	if name == "" {
		return nil, ErrEmptyKey
	}
	vertex, err := s.getOrCreateVertex(ctx, labelRecipe, map[string]any{
		propName:   name,
		propTitle:  strings.TrimSpace(title),
		propDetail: detail,
	})
	if err != nil {
		return nil, err
	}
	if err := s.RecordRecipeRequest(ctx, vertex, anchor, user); err != nil {
		return nil, err
	}
	return vertex, nil
}

// RecordRecipeRequest records one recipe selection. It bumps the user's
// weight on the recipe; when the recipe was reached through an ingredient or
// cuisine (anchor non-nil) it also bumps the anchor's weight on the recipe
// and writes the recipe's one-time "has" membership edge back to the anchor.
// This composite is what builds the structure the recommendation traversals
// walk.
func (s *Store) RecordRecipeRequest(ctx context.Context, recipe, anchor, user *schemas.Vertex) error {
	if err := s.recordInteraction(ctx, user.ID, recipe.ID); err != nil {
		return err
	}
	if anchor == nil {
		return nil
	}
	if err := s.recordInteraction(ctx, anchor.ID, recipe.ID); err != nil {
		return err
	}
	return s.recordMembership(ctx, recipe.ID, anchor.ID)
}

// -- Vertex plumbing --

// findVertex looks a vertex up by (label, name). Absent is (nil, nil);
// backend failures propagate unmodified.
func (s *Store) findVertex(ctx context.Context, label, name string) (*schemas.Vertex, error) {
	elements, err := s.graph.Run(ctx, gremlin.V().HasLabel(label).Has(propName, name))
	if err != nil {
		return nil, err
	}
	for _, el := range elements {
		if el.Vertex != nil {
			return el.Vertex, nil
		}
	}
	return nil, nil
}

// getOrCreateVertex returns the vertex for (label, name), creating it with
// the supplied properties when absent. Metadata is first-writer-wins: an
// existing vertex is returned untouched. Concurrent calls for the same key
// collapse onto one lookup/create through singleflight.
func (s *Store) getOrCreateVertex(ctx context.Context, label string, properties map[string]any) (*schemas.Vertex, error) {
	name, _ := properties[propName].(string)
	key := label + "/" + name
	result, err, _ := s.upserts.Do(key, func() (any, error) {
		existing, err := s.findVertex(ctx, label, name)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			s.log.Debug("vertex exists",
				zap.String("label", label), zap.String("name", name))
			return existing, nil
		}
		s.log.Debug("creating vertex",
			zap.String("label", label), zap.String("name", name))
		return s.graph.AddVertex(ctx, label, properties)
	})
	if err != nil {
		return nil, err
	}
	return result.(*schemas.Vertex), nil
}

// -- Edge plumbing --

// findEdge returns the first edge from fromID to toID, or nil. The lookup
// matches any edge label; the write paths never create edges of different
// labels in the same direction between one pair.
func (s *Store) findEdge(ctx context.Context, fromID, toID string) (*schemas.Edge, error) {
	elements, err := s.graph.Run(ctx, gremlin.V(fromID).OutE().InV().HasID(toID).Path())
	if err != nil {
		return nil, err
	}
	for _, el := range elements {
		if el.Path == nil {
			continue
		}
		for _, obj := range el.Path.Objects {
			if obj.Edge != nil {
				return obj.Edge, nil
			}
		}
	}
	return nil, nil
}

// recordInteraction creates the "selects" edge from fromID to toID with
// count 1, or increments the existing edge's count by exactly 1. A missing
// count on an existing edge is treated as 0. The read-then-write sequence is
// serialized per (from, to) pair.
func (s *Store) recordInteraction(ctx context.Context, fromID, toID string) error {
	unlock := s.edgeMu.Lock(fromID + "->" + toID)
	defer unlock()

	edge, err := s.findEdge(ctx, fromID, toID)
	if err != nil {
		return err
	}
	if edge == nil {
		_, err := s.graph.AddEdge(ctx, schemas.Edge{
			Label:      edgeSelects,
			OutV:       fromID,
			InV:        toID,
			Properties: map[string]any{propCount: 1},
		})
		return err
	}
	count := edge.Count()
	if edge.Properties == nil {
		edge.Properties = make(map[string]any, 1)
	}
	edge.Properties[propCount] = count + 1
	return s.graph.UpdateEdge(ctx, *edge)
}

// recordMembership writes the unweighted "has" edge from fromID to toID once;
// subsequent calls are no-ops. The edge is never mutated afterward.
func (s *Store) recordMembership(ctx context.Context, fromID, toID string) error {
	unlock := s.edgeMu.Lock(fromID + "->" + toID)
	defer unlock()

	edge, err := s.findEdge(ctx, fromID, toID)
	if err != nil {
		return err
	}
	if edge != nil {
		return nil
	}
	_, err = s.graph.AddEdge(ctx, schemas.Edge{
		Label: edgeHas,
		OutV:  fromID,
		InV:   toID,
	})
	return err
}
