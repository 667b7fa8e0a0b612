package schemas

import (
	"encoding/json"
	"fmt"
)

// -- Core Property Graph Models --
// These types represent graph elements as the backend returns them. Identifiers
// are opaque strings assigned by the backend on creation; callers never invent
// them. Numeric identifiers on the wire are normalized to their decimal string
// form so the rest of the system can treat them uniformly.

// Vertex is a labeled node in the property graph.
type Vertex struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	Properties map[string]any `json:"properties"`
}

// PropertyString returns the named property as a string, or "" when the
// property is absent or not a string.
func (v *Vertex) PropertyString(key string) string {
	if v == nil || v.Properties == nil {
		return ""
	}
	s, _ := v.Properties[key].(string)
	return s
}

// UnmarshalJSON accepts both plain property maps and the GraphSON form the
// backend emits, where each property value is wrapped as
// [{"id": ..., "value": ...}].
func (v *Vertex) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         json.RawMessage            `json:"id"`
		Label      string                     `json:"label"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, err := decodeID(raw.ID)
	if err != nil {
		return fmt.Errorf("vertex id: %w", err)
	}
	v.ID = id
	v.Label = raw.Label
	v.Properties = decodeProperties(raw.Properties)
	return nil
}

// Edge is a directed, labeled relationship between two vertices. OutV is the
// tail (source) and InV the head (destination), matching the traversal
// direction of outE()/inV().
type Edge struct {
	ID         string         `json:"id"`
	Label      string         `json:"label"`
	OutV       string         `json:"outV"`
	InV        string         `json:"inV"`
	Properties map[string]any `json:"properties"`
}

// Count returns the integer "count" property, treating a missing or
// non-numeric value as 0.
func (e *Edge) Count() int {
	if e == nil || e.Properties == nil {
		return 0
	}
	switch n := e.Properties["count"].(type) {
	case float64:
		return int(n)
	case int:
		return n
	case json.Number:
		i, _ := n.Int64()
		return int(i)
	default:
		return 0
	}
}

// UnmarshalJSON mirrors Vertex.UnmarshalJSON for edges; edge properties are
// plain values on the wire but the wrapped form is tolerated as well.
func (e *Edge) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID         json.RawMessage            `json:"id"`
		Label      string                     `json:"label"`
		OutV       json.RawMessage            `json:"outV"`
		InV        json.RawMessage            `json:"inV"`
		Properties map[string]json.RawMessage `json:"properties"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	id, err := decodeID(raw.ID)
	if err != nil {
		return fmt.Errorf("edge id: %w", err)
	}
	outV, err := decodeID(raw.OutV)
	if err != nil {
		return fmt.Errorf("edge outV: %w", err)
	}
	inV, err := decodeID(raw.InV)
	if err != nil {
		return fmt.Errorf("edge inV: %w", err)
	}
	e.ID = id
	e.Label = raw.Label
	e.OutV = outV
	e.InV = inV
	e.Properties = decodeProperties(raw.Properties)
	return nil
}

// Path is one walk through the graph: an ordered sequence of alternating
// vertices and edges as returned by a path() traversal.
type Path struct {
	Objects []Element `json:"objects"`
}

// Element is the sum type a traversal yields: exactly one of Vertex, Edge or
// Path is non-nil.
type Element struct {
	Vertex *Vertex
	Edge   *Edge
	Path   *Path
}

// UnmarshalJSON dispatches on the wire discriminator: elements carrying a
// "type" of "vertex" or "edge" decode as such, and objects with an "objects"
// array decode as paths.
func (el *Element) UnmarshalJSON(data []byte) error {
	var probe struct {
		Type    string          `json:"type"`
		Objects json.RawMessage `json:"objects"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return err
	}
	switch {
	case probe.Type == "vertex":
		el.Vertex = &Vertex{}
		return json.Unmarshal(data, el.Vertex)
	case probe.Type == "edge":
		el.Edge = &Edge{}
		return json.Unmarshal(data, el.Edge)
	case len(probe.Objects) > 0:
		el.Path = &Path{}
		return json.Unmarshal(data, el.Path)
	default:
		return fmt.Errorf("unrecognized traversal element: %s", truncate(data, 80))
	}
}

// -- Graph Schema Models --
// Wire-compatible with the backend's schema endpoint.

// PropertyKey declares a named, typed property usable on vertices and edges.
type PropertyKey struct {
	Name        string `json:"name"`
	DataType    string `json:"dataType"`
	Cardinality string `json:"cardinality"`
}

// VertexLabel declares a vertex label.
type VertexLabel struct {
	Name string `json:"name"`
}

// EdgeLabel declares an edge label.
type EdgeLabel struct {
	Name         string `json:"name"`
	Multiplicity string `json:"multiplicity,omitempty"`
}

// VertexIndex declares an index over vertex property keys. Composite unique
// indexes back the by-name vertex lookups every upsert performs.
type VertexIndex struct {
	Name         string   `json:"name"`
	PropertyKeys []string `json:"propertyKeys"`
	Composite    bool     `json:"composite"`
	Unique       bool     `json:"unique"`
}

// EdgeIndex declares an index over edge property keys.
type EdgeIndex struct {
	Name         string   `json:"name"`
	PropertyKeys []string `json:"propertyKeys"`
	Composite    bool     `json:"composite"`
	Unique       bool     `json:"unique"`
}

// Schema is the full graph schema definition.
type Schema struct {
	PropertyKeys  []PropertyKey `json:"propertyKeys"`
	VertexLabels  []VertexLabel `json:"vertexLabels"`
	EdgeLabels    []EdgeLabel   `json:"edgeLabels"`
	VertexIndexes []VertexIndex `json:"vertexIndexes"`
	EdgeIndexes   []EdgeIndex   `json:"edgeIndexes"`
}

// -- decoding helpers --

func decodeID(raw json.RawMessage) (string, error) {
	if len(raw) == 0 {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String(), nil
	}
	return "", fmt.Errorf("identifier is neither string nor number: %s", truncate(raw, 40))
}

func decodeProperties(raw map[string]json.RawMessage) map[string]any {
	if raw == nil {
		return nil
	}
	props := make(map[string]any, len(raw))
	for k, pv := range raw {
		props[k] = decodePropertyValue(pv)
	}
	return props
}

// decodePropertyValue unwraps the GraphSON [{"id":...,"value":...}] property
// form, falling back to the plain value.
func decodePropertyValue(raw json.RawMessage) any {
	var wrapped []struct {
		Value any `json:"value"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped) > 0 {
		return wrapped[0].Value
	}
	var plain any
	if err := json.Unmarshal(raw, &plain); err == nil {
		return plain
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
