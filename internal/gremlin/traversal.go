// Package gremlin builds graph traversals as data. A Traversal records its
// steps structurally so a remote backend can render the canonical query text
// while an embedded backend walks the same steps directly, keeping the two
// executions equivalent by construction.
package gremlin

import (
	"strconv"
	"strings"
)

// Op identifies a traversal step.
type Op int

const (
	OpHasLabel Op = iota
	OpHas
	OpOutE
	OpInE
	OpIn
	OpOutV
	OpInV
	OpHasID
	OpOrderByDesc
	OpLimit
	OpPath
)

// Predicate is a non-equality property constraint, e.g. gt(1) or neq("u1").
type Predicate struct {
	Op    string // "gt" or "neq"
	Value any
}

// Gt matches numeric properties strictly greater than n.
func Gt(n int) Predicate { return Predicate{Op: "gt", Value: n} }

// Neq matches properties not equal to v.
func Neq(v string) Predicate { return Predicate{Op: "neq", Value: v} }

// Step is one recorded traversal step. Which fields are meaningful depends on
// Op: Labels for label filters and edge walks, Key/Value for property
// filters and ordering, N for limits, IDs for id filters.
type Step struct {
	Op     Op
	Labels []string
	Key    string
	Value  any // string, int, or Predicate
	N      int
	IDs    []string
}

// Traversal is an immutable-once-built sequence of steps rooted at g.V(...).
type Traversal struct {
	StartIDs []string
	Steps    []Step
}

// V starts a traversal at the given vertex ids, or at all vertices when none
// are given.
func V(ids ...string) *Traversal {
	return &Traversal{StartIDs: ids}
}

func (t *Traversal) append(s Step) *Traversal {
	t.Steps = append(t.Steps, s)
	return t
}

// HasLabel filters the current vertices by label.
func (t *Traversal) HasLabel(labels ...string) *Traversal {
	return t.append(Step{Op: OpHasLabel, Labels: labels})
}

// Has filters the current elements by a property equality or Predicate.
func (t *Traversal) Has(key string, value any) *Traversal {
	return t.append(Step{Op: OpHas, Key: key, Value: value})
}

// OutE walks to outgoing edges, optionally restricted by edge label.
func (t *Traversal) OutE(labels ...string) *Traversal {
	return t.append(Step{Op: OpOutE, Labels: labels})
}

// InE walks to incoming edges, optionally restricted by edge label.
func (t *Traversal) InE(labels ...string) *Traversal {
	return t.append(Step{Op: OpInE, Labels: labels})
}

// In walks across incoming edges with the given labels to their tail
// vertices.
func (t *Traversal) In(labels ...string) *Traversal {
	return t.append(Step{Op: OpIn, Labels: labels})
}

// OutV walks from the current edges to their tail (source) vertices.
func (t *Traversal) OutV() *Traversal { return t.append(Step{Op: OpOutV}) }

// InV walks from the current edges to their head (destination) vertices.
func (t *Traversal) InV() *Traversal { return t.append(Step{Op: OpInV}) }

// HasID filters the current elements by identifier.
func (t *Traversal) HasID(ids ...string) *Traversal {
	return t.append(Step{Op: OpHasID, IDs: ids})
}

// OrderByDesc orders the current elements by a property, descending. Ties
// keep backend-defined order and must be treated as non-deterministic.
func (t *Traversal) OrderByDesc(key string) *Traversal {
	return t.append(Step{Op: OpOrderByDesc, Key: key})
}

// Limit keeps only the first n elements.
func (t *Traversal) Limit(n int) *Traversal {
	return t.append(Step{Op: OpLimit, N: n})
}

// Path turns each surviving walk into its full vertex/edge history.
func (t *Traversal) Path() *Traversal { return t.append(Step{Op: OpPath}) }

// String renders the traversal as Gremlin query text. Labels and property
// names render exactly as given; they are the compatibility contract with an
// existing populated graph.
func (t *Traversal) String() string {
	var b strings.Builder
	b.WriteString("g.V(")
	for i, id := range t.StartIDs {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(renderID(id))
	}
	b.WriteByte(')')
	for _, s := range t.Steps {
		b.WriteByte('.')
		switch s.Op {
		case OpHasLabel:
			b.WriteString("hasLabel(")
			writeStrings(&b, s.Labels)
			b.WriteByte(')')
		case OpHas:
			b.WriteString("has(")
			b.WriteString(strconv.Quote(s.Key))
			b.WriteByte(',')
			b.WriteString(renderValue(s.Value))
			b.WriteByte(')')
		case OpOutE:
			b.WriteString("outE(")
			writeStrings(&b, s.Labels)
			b.WriteByte(')')
		case OpInE:
			b.WriteString("inE(")
			writeStrings(&b, s.Labels)
			b.WriteByte(')')
		case OpIn:
			b.WriteString("in(")
			writeStrings(&b, s.Labels)
			b.WriteByte(')')
		case OpOutV:
			b.WriteString("outV()")
		case OpInV:
			b.WriteString("inV()")
		case OpHasID:
			b.WriteString("hasId(")
			for i, id := range s.IDs {
				if i > 0 {
					b.WriteByte(',')
				}
				b.WriteString(renderID(id))
			}
			b.WriteByte(')')
		case OpOrderByDesc:
			b.WriteString("order().by(")
			b.WriteString(strconv.Quote(s.Key))
			b.WriteString(",decr)")
		case OpLimit:
			b.WriteString("limit(")
			b.WriteString(strconv.Itoa(s.N))
			b.WriteByte(')')
		case OpPath:
			b.WriteString("path()")
		}
	}
	return b.String()
}

func writeStrings(b *strings.Builder, ss []string) {
	for i, s := range ss {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.Quote(s))
	}
}

// renderID emits numeric identifiers unquoted so the backend matches them as
// native ids, and quotes everything else.
func renderID(id string) string {
	if isDigits(id) {
		return id
	}
	return strconv.Quote(id)
}

func renderValue(v any) string {
	switch val := v.(type) {
	case Predicate:
		return val.Op + "(" + renderValue(val.Value) + ")"
	case string:
		return strconv.Quote(val)
	case int:
		return strconv.Itoa(val)
	default:
		return strconv.Quote("")
	}
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
