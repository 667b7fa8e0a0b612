package graphdb

import (
	"errors"
	"fmt"
)

// ErrStoreUnavailable marks transport failures, timeouts and backend 5xx
// responses. Callers receive it wrapped with the failing operation's context;
// match with errors.Is.
var ErrStoreUnavailable = errors.New("graph backend unavailable")

// ErrNoGraphSelected is returned by element and schema operations invoked
// before SetGraph.
var ErrNoGraphSelected = errors.New("no graph selected")

// QueryError reports a request the backend understood and rejected: malformed
// traversals, schema violations, unknown graphs. These are caller bugs or
// contract mismatches, never retried.
type QueryError struct {
	Status  int    // HTTP status, 0 for embedded backends
	Query   string // rendered traversal, "" for non-traversal operations
	Message string
}

func (e *QueryError) Error() string {
	if e.Query != "" {
		return fmt.Sprintf("graph query rejected (status %d): %s: %s", e.Status, e.Message, e.Query)
	}
	return fmt.Sprintf("graph request rejected (status %d): %s", e.Status, e.Message)
}
