package graphdb

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/tastegraph/api/schemas"
	"github.com/xkilldash9x/tastegraph/internal/gremlin"
)

// InMemory is an embedded Client for tests, local experimentation and the
// "memory" CLI backend. It interprets traversals structurally over
// mutex-guarded maps, so the exact walks the Remote client ships as query
// text run here without a backend. Element order is deterministic: insertion
// order, which stands in for the backend-defined tie order.
type InMemory struct {
	mu      sync.RWMutex
	log     *zap.Logger
	graphs  map[string]*memGraph
	current string
}

type memGraph struct {
	schema      *schemas.Schema
	vertices    map[string]*schemas.Vertex
	vertexOrder []string
	edges       []*schemas.Edge
	edgesByID   map[string]*schemas.Edge
}

var _ Client = (*InMemory)(nil)

// NewInMemory creates an empty in-memory graph service.
func NewInMemory(logger *zap.Logger) *InMemory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemory{
		log:    logger.Named("memgraph"),
		graphs: make(map[string]*memGraph),
	}
}

// ListGraphs returns all graph ids in sorted order.
func (m *InMemory) ListGraphs(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.graphs))
	for id := range m.graphs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// CreateGraph creates a new, empty graph.
func (m *InMemory) CreateGraph(_ context.Context, graphID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.graphs[graphID]; exists {
		return &QueryError{Message: fmt.Sprintf("graph %q already exists", graphID)}
	}
	m.graphs[graphID] = &memGraph{
		vertices:  make(map[string]*schemas.Vertex),
		edgesByID: make(map[string]*schemas.Edge),
	}
	m.log.Debug("created graph", zap.String("graph_id", graphID))
	return nil
}

// SetGraph selects the graph addressed by subsequent operations.
func (m *InMemory) SetGraph(graphID string) {
	m.mu.Lock()
	m.current = graphID
	m.mu.Unlock()
}

func (m *InMemory) activeGraph() (*memGraph, error) {
	if m.current == "" {
		return nil, ErrNoGraphSelected
	}
	g, ok := m.graphs[m.current]
	if !ok {
		return nil, &QueryError{Message: fmt.Sprintf("graph %q does not exist", m.current)}
	}
	return g, nil
}

// GetSchema returns the stored schema, or an empty one when none was saved.
func (m *InMemory) GetSchema(_ context.Context) (*schemas.Schema, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, err := m.activeGraph()
	if err != nil {
		return nil, err
	}
	if g.schema == nil {
		return &schemas.Schema{}, nil
	}
	cp := *g.schema
	return &cp, nil
}

// SaveSchema stores the schema. Undeclared labels are tolerated on writes,
// matching hosted-backend behavior the rest of the system relies on.
func (m *InMemory) SaveSchema(_ context.Context, schema *schemas.Schema) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, err := m.activeGraph()
	if err != nil {
		return err
	}
	cp := *schema
	g.schema = &cp
	return nil
}

// AddVertex stores a vertex under a fresh id and returns a copy.
func (m *InMemory) AddVertex(_ context.Context, label string, properties map[string]any) (*schemas.Vertex, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, err := m.activeGraph()
	if err != nil {
		return nil, err
	}
	v := &schemas.Vertex{
		ID:         uuid.NewString(),
		Label:      label,
		Properties: cloneProps(properties),
	}
	g.vertices[v.ID] = v
	g.vertexOrder = append(g.vertexOrder, v.ID)
	return cloneVertex(v), nil
}

// AddEdge stores an edge under a fresh id and returns a copy. Both endpoints
// must exist.
func (m *InMemory) AddEdge(_ context.Context, edge schemas.Edge) (*schemas.Edge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, err := m.activeGraph()
	if err != nil {
		return nil, err
	}
	if _, ok := g.vertices[edge.OutV]; !ok {
		return nil, &QueryError{Message: fmt.Sprintf("edge tail vertex %q not found", edge.OutV)}
	}
	if _, ok := g.vertices[edge.InV]; !ok {
		return nil, &QueryError{Message: fmt.Sprintf("edge head vertex %q not found", edge.InV)}
	}
	e := &schemas.Edge{
		ID:         uuid.NewString(),
		Label:      edge.Label,
		OutV:       edge.OutV,
		InV:        edge.InV,
		Properties: cloneProps(edge.Properties),
	}
	g.edges = append(g.edges, e)
	g.edgesByID[e.ID] = e
	return cloneEdge(e), nil
}

// UpdateEdge overwrites the properties of an existing edge.
func (m *InMemory) UpdateEdge(_ context.Context, edge schemas.Edge) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	g, err := m.activeGraph()
	if err != nil {
		return err
	}
	stored, ok := g.edgesByID[edge.ID]
	if !ok {
		return &QueryError{Message: fmt.Sprintf("edge %q not found", edge.ID)}
	}
	stored.Properties = cloneProps(edge.Properties)
	return nil
}

// Run interprets a traversal over the stored graph.
func (m *InMemory) Run(_ context.Context, t *gremlin.Traversal) ([]schemas.Element, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, err := m.activeGraph()
	if err != nil {
		return nil, err
	}
	return g.run(t)
}

// walker is one traverser: its current element plus the history path() will
// materialize. History holds every visited vertex and explicitly walked edge.
type walker struct {
	vertex *schemas.Vertex
	edge   *schemas.Edge
	hist   []histEntry
}

type histEntry struct {
	vertex *schemas.Vertex
	edge   *schemas.Edge
}

func (g *memGraph) run(t *gremlin.Traversal) ([]schemas.Element, error) {
	walkers := g.seed(t.StartIDs)
	pathMode := false

	for _, step := range t.Steps {
		switch step.Op {
		case gremlin.OpHasLabel:
			walkers = filterWalkers(walkers, func(w *walker) bool {
				return containsString(step.Labels, w.label())
			})
		case gremlin.OpHas:
			walkers = filterWalkers(walkers, func(w *walker) bool {
				return matchHas(w.properties(), step.Key, step.Value)
			})
		case gremlin.OpHasID:
			walkers = filterWalkers(walkers, func(w *walker) bool {
				return containsString(step.IDs, w.id())
			})
		case gremlin.OpOutE:
			walkers = g.walkEdges(walkers, step.Labels, false)
		case gremlin.OpInE:
			walkers = g.walkEdges(walkers, step.Labels, true)
		case gremlin.OpIn:
			walkers = g.walkAdjacent(walkers, step.Labels)
		case gremlin.OpOutV:
			walkers = g.walkEndpoint(walkers, false)
		case gremlin.OpInV:
			walkers = g.walkEndpoint(walkers, true)
		case gremlin.OpOrderByDesc:
			sort.SliceStable(walkers, func(i, j int) bool {
				return propertyNumber(walkers[i].properties(), step.Key) >
					propertyNumber(walkers[j].properties(), step.Key)
			})
		case gremlin.OpLimit:
			if len(walkers) > step.N {
				walkers = walkers[:step.N]
			}
		case gremlin.OpPath:
			pathMode = true
		default:
			return nil, &QueryError{Message: fmt.Sprintf("unsupported traversal step %d", step.Op)}
		}
	}

	results := make([]schemas.Element, 0, len(walkers))
	for _, w := range walkers {
		if pathMode {
			results = append(results, schemas.Element{Path: w.path()})
			continue
		}
		results = append(results, w.element())
	}
	return results, nil
}

// seed creates one walker per starting vertex, in insertion order.
func (g *memGraph) seed(startIDs []string) []*walker {
	ids := startIDs
	if len(ids) == 0 {
		ids = g.vertexOrder
	}
	walkers := make([]*walker, 0, len(ids))
	for _, id := range ids {
		v, ok := g.vertices[id]
		if !ok {
			continue
		}
		walkers = append(walkers, &walker{vertex: v, hist: []histEntry{{vertex: v}}})
	}
	return walkers
}

// walkEdges moves vertex walkers onto their outgoing (incoming: true) edges.
func (g *memGraph) walkEdges(walkers []*walker, labels []string, incoming bool) []*walker {
	var next []*walker
	for _, w := range walkers {
		if w.vertex == nil {
			continue
		}
		for _, e := range g.edges {
			endpoint := e.OutV
			if incoming {
				endpoint = e.InV
			}
			if endpoint != w.vertex.ID {
				continue
			}
			if len(labels) > 0 && !containsString(labels, e.Label) {
				continue
			}
			next = append(next, w.extend(histEntry{edge: e}))
		}
	}
	return next
}

// walkAdjacent implements in(label): step across incoming edges with the
// given labels onto their tail vertices. Only the vertex enters the path,
// matching how the backend materializes in() steps.
func (g *memGraph) walkAdjacent(walkers []*walker, labels []string) []*walker {
	var next []*walker
	for _, w := range walkers {
		if w.vertex == nil {
			continue
		}
		for _, e := range g.edges {
			if e.InV != w.vertex.ID {
				continue
			}
			if len(labels) > 0 && !containsString(labels, e.Label) {
				continue
			}
			if tail, ok := g.vertices[e.OutV]; ok {
				next = append(next, w.extend(histEntry{vertex: tail}))
			}
		}
	}
	return next
}

// walkEndpoint moves edge walkers onto their tail (head: true) vertices.
func (g *memGraph) walkEndpoint(walkers []*walker, head bool) []*walker {
	var next []*walker
	for _, w := range walkers {
		if w.edge == nil {
			continue
		}
		id := w.edge.OutV
		if head {
			id = w.edge.InV
		}
		if v, ok := g.vertices[id]; ok {
			next = append(next, w.extend(histEntry{vertex: v}))
		}
	}
	return next
}

func (w *walker) extend(entry histEntry) *walker {
	hist := make([]histEntry, len(w.hist), len(w.hist)+1)
	copy(hist, w.hist)
	hist = append(hist, entry)
	return &walker{vertex: entry.vertex, edge: entry.edge, hist: hist}
}

func (w *walker) label() string {
	if w.vertex != nil {
		return w.vertex.Label
	}
	if w.edge != nil {
		return w.edge.Label
	}
	return ""
}

func (w *walker) id() string {
	if w.vertex != nil {
		return w.vertex.ID
	}
	if w.edge != nil {
		return w.edge.ID
	}
	return ""
}

func (w *walker) properties() map[string]any {
	if w.vertex != nil {
		return w.vertex.Properties
	}
	if w.edge != nil {
		return w.edge.Properties
	}
	return nil
}

func (w *walker) element() schemas.Element {
	if w.vertex != nil {
		return schemas.Element{Vertex: cloneVertex(w.vertex)}
	}
	return schemas.Element{Edge: cloneEdge(w.edge)}
}

func (w *walker) path() *schemas.Path {
	objects := make([]schemas.Element, 0, len(w.hist))
	for _, entry := range w.hist {
		if entry.vertex != nil {
			objects = append(objects, schemas.Element{Vertex: cloneVertex(entry.vertex)})
		} else {
			objects = append(objects, schemas.Element{Edge: cloneEdge(entry.edge)})
		}
	}
	return &schemas.Path{Objects: objects}
}

func filterWalkers(walkers []*walker, keep func(*walker) bool) []*walker {
	out := walkers[:0]
	for _, w := range walkers {
		if keep(w) {
			out = append(out, w)
		}
	}
	return out
}

// matchHas evaluates has(key, cond) against a property map. Equality compares
// string forms; predicates require the property to be present.
func matchHas(props map[string]any, key string, cond any) bool {
	val, ok := props[key]
	if !ok {
		return false
	}
	switch c := cond.(type) {
	case gremlin.Predicate:
		switch c.Op {
		case "gt":
			return toNumber(val) > toNumber(c.Value)
		case "neq":
			return fmt.Sprint(val) != fmt.Sprint(c.Value)
		default:
			return false
		}
	default:
		return fmt.Sprint(val) == fmt.Sprint(cond)
	}
}

func propertyNumber(props map[string]any, key string) float64 {
	if props == nil {
		return 0
	}
	return toNumber(props[key])
}

func toNumber(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case float64:
		return n
	case string:
		f, _ := strconv.ParseFloat(n, 64)
		return f
	default:
		return 0
	}
}

func containsString(ss []string, s string) bool {
	for _, candidate := range ss {
		if candidate == s {
			return true
		}
	}
	return false
}

func cloneProps(props map[string]any) map[string]any {
	if props == nil {
		return nil
	}
	cp := make(map[string]any, len(props))
	for k, v := range props {
		cp[k] = v
	}
	return cp
}

func cloneVertex(v *schemas.Vertex) *schemas.Vertex {
	return &schemas.Vertex{ID: v.ID, Label: v.Label, Properties: cloneProps(v.Properties)}
}

func cloneEdge(e *schemas.Edge) *schemas.Edge {
	return &schemas.Edge{ID: e.ID, Label: e.Label, OutV: e.OutV, InV: e.InV, Properties: cloneProps(e.Properties)}
}
