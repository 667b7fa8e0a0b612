// Package graphdb provides access to the property graph backend. The Client
// interface covers graph lifecycle, schema management, element creation and
// traversal execution; Remote talks to the hosted graph service over HTTP and
// InMemory is an embedded implementation for tests and local runs.
package graphdb

import (
	"context"

	"github.com/xkilldash9x/tastegraph/api/schemas"
	"github.com/xkilldash9x/tastegraph/internal/gremlin"
)

// Client is the contract the recommendation store programs against.
//
// All operations are blocking request/response calls. Read-then-write
// sequences built on top of this interface (upserts, counter increments) have
// no atomicity guarantee at this level; callers own their own serialization.
type Client interface {
	// ListGraphs returns the identifiers of all graphs the backend holds.
	ListGraphs(ctx context.Context) ([]string, error)

	// CreateGraph creates a new, empty graph.
	CreateGraph(ctx context.Context, graphID string) error

	// SetGraph selects the graph all subsequent element and schema
	// operations address.
	SetGraph(graphID string)

	// GetSchema fetches the active graph's schema. A graph without a schema
	// yields an empty Schema, not an error.
	GetSchema(ctx context.Context) (*schemas.Schema, error)

	// SaveSchema defines the active graph's schema.
	SaveSchema(ctx context.Context, schema *schemas.Schema) error

	// Run executes a traversal and returns the matching elements in
	// backend order.
	Run(ctx context.Context, t *gremlin.Traversal) ([]schemas.Element, error)

	// AddVertex creates a vertex and returns it with its assigned id.
	AddVertex(ctx context.Context, label string, properties map[string]any) (*schemas.Vertex, error)

	// AddEdge creates an edge between two existing vertices and returns it
	// with its assigned id.
	AddEdge(ctx context.Context, edge schemas.Edge) (*schemas.Edge, error)

	// UpdateEdge overwrites the properties of an existing edge by id.
	UpdateEdge(ctx context.Context, edge schemas.Edge) error
}
