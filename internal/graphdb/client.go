package graphdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/xkilldash9x/tastegraph/api/schemas"
	"github.com/xkilldash9x/tastegraph/internal/gremlin"
)

// json is the package-wide codec. The wire payloads are decoded constantly on
// the query path, so the drop-in jsoniter config is used instead of
// encoding/json.
var json = jsoniter.ConfigCompatibleWithStandardLibrary

const (
	// DefaultRequestTimeout bounds every backend round trip. The backend has
	// no streaming operations; anything slower than this is treated as
	// unavailable.
	DefaultRequestTimeout = 30 * time.Second

	// DefaultRateLimit caps outbound requests per second against the hosted
	// service.
	DefaultRateLimit = 50.0
)

// RemoteConfig configures a Remote client.
type RemoteConfig struct {
	// APIURL is the service base URL, e.g. https://host/graphs.
	APIURL   string
	Username string
	Password string

	// RequestTimeout bounds each request including the body read. Zero means
	// DefaultRequestTimeout.
	RequestTimeout time.Duration

	// RateLimit is the request budget per second. Zero means
	// DefaultRateLimit.
	RateLimit float64

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// Remote is a Client backed by the hosted graph service's REST API. It
// exchanges basic credentials for a session token on demand and retries a
// request exactly once after re-authenticating on 401/403; it performs no
// other retries.
type Remote struct {
	base     *url.URL
	username string
	password string
	httpc    *http.Client
	limiter  *rate.Limiter
	timeout  time.Duration
	log      *zap.Logger

	mu      sync.Mutex
	graphID string
	token   string
}

var _ Client = (*Remote)(nil)

// NewRemote creates a Remote client. It does not contact the backend; the
// first request authenticates lazily.
func NewRemote(cfg RemoteConfig, logger *zap.Logger) (*Remote, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	base, err := url.Parse(strings.TrimRight(cfg.APIURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid graph API URL %q: %w", cfg.APIURL, err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("graph API URL %q must be absolute", cfg.APIURL)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	limit := cfg.RateLimit
	if limit <= 0 {
		limit = DefaultRateLimit
	}
	httpc := cfg.HTTPClient
	if httpc == nil {
		httpc = &http.Client{}
	}
	return &Remote{
		base:     base,
		username: cfg.Username,
		password: cfg.Password,
		httpc:    httpc,
		limiter:  rate.NewLimiter(rate.Limit(limit), 1),
		timeout:  timeout,
		log:      logger.Named("graphdb"),
	}, nil
}

// SetGraph selects the graph addressed by element and schema operations.
func (r *Remote) SetGraph(graphID string) {
	r.mu.Lock()
	r.graphID = graphID
	r.mu.Unlock()
}

func (r *Remote) currentGraph() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.graphID == "" {
		return "", ErrNoGraphSelected
	}
	return r.graphID, nil
}

// ListGraphs returns the identifiers of all graphs on the service.
func (r *Remote) ListGraphs(ctx context.Context) ([]string, error) {
	var out struct {
		Graphs []string `json:"graphs"`
	}
	if err := r.do(ctx, http.MethodGet, "/_graphs", nil, &out); err != nil {
		return nil, fmt.Errorf("list graphs: %w", err)
	}
	return out.Graphs, nil
}

// CreateGraph creates a new, empty graph.
func (r *Remote) CreateGraph(ctx context.Context, graphID string) error {
	if err := r.do(ctx, http.MethodPost, "/_graphs/"+url.PathEscape(graphID), nil, nil); err != nil {
		return fmt.Errorf("create graph %q: %w", graphID, err)
	}
	return nil
}

// GetSchema fetches the active graph's schema. A brand new graph yields an
// empty schema.
func (r *Remote) GetSchema(ctx context.Context) (*schemas.Schema, error) {
	gid, err := r.currentGraph()
	if err != nil {
		return nil, err
	}
	var env envelope
	if err := r.do(ctx, http.MethodGet, "/"+url.PathEscape(gid)+"/schema", nil, &env); err != nil {
		return nil, fmt.Errorf("get schema: %w", err)
	}
	if len(env.Result.Data) == 0 {
		return &schemas.Schema{}, nil
	}
	var schema schemas.Schema
	if err := json.Unmarshal(env.Result.Data[0], &schema); err != nil {
		return nil, fmt.Errorf("decode schema: %w", err)
	}
	return &schema, nil
}

// SaveSchema defines the active graph's schema.
func (r *Remote) SaveSchema(ctx context.Context, schema *schemas.Schema) error {
	gid, err := r.currentGraph()
	if err != nil {
		return err
	}
	if err := r.do(ctx, http.MethodPost, "/"+url.PathEscape(gid)+"/schema", schema, nil); err != nil {
		return fmt.Errorf("save schema: %w", err)
	}
	return nil
}

// Run executes a traversal and decodes the resulting elements.
func (r *Remote) Run(ctx context.Context, t *gremlin.Traversal) ([]schemas.Element, error) {
	gid, err := r.currentGraph()
	if err != nil {
		return nil, err
	}
	query := t.String()
	body := map[string]string{"gremlin": query}
	var env envelope
	if err := r.do(ctx, http.MethodPost, "/"+url.PathEscape(gid)+"/gremlin", body, &env); err != nil {
		var qerr *QueryError
		if errors.As(err, &qerr) && qerr.Query == "" {
			qerr.Query = query
		}
		return nil, fmt.Errorf("run traversal: %w", err)
	}
	elements := make([]schemas.Element, 0, len(env.Result.Data))
	for _, raw := range env.Result.Data {
		var el schemas.Element
		if err := json.Unmarshal(raw, &el); err != nil {
			return nil, fmt.Errorf("decode traversal result for %q: %w", query, err)
		}
		elements = append(elements, el)
	}
	return elements, nil
}

// AddVertex creates a vertex and returns it with its backend-assigned id.
func (r *Remote) AddVertex(ctx context.Context, label string, properties map[string]any) (*schemas.Vertex, error) {
	gid, err := r.currentGraph()
	if err != nil {
		return nil, err
	}
	body := map[string]any{"label": label, "properties": properties}
	var env envelope
	if err := r.do(ctx, http.MethodPost, "/"+url.PathEscape(gid)+"/vertices", body, &env); err != nil {
		return nil, fmt.Errorf("add vertex %q: %w", label, err)
	}
	if len(env.Result.Data) == 0 {
		return nil, &QueryError{Message: "backend returned no vertex"}
	}
	var vertex schemas.Vertex
	if err := json.Unmarshal(env.Result.Data[0], &vertex); err != nil {
		return nil, fmt.Errorf("decode created vertex: %w", err)
	}
	return &vertex, nil
}

// AddEdge creates an edge between two existing vertices.
func (r *Remote) AddEdge(ctx context.Context, edge schemas.Edge) (*schemas.Edge, error) {
	gid, err := r.currentGraph()
	if err != nil {
		return nil, err
	}
	body := map[string]any{
		"label":      edge.Label,
		"outV":       edge.OutV,
		"inV":        edge.InV,
		"properties": edge.Properties,
	}
	var env envelope
	if err := r.do(ctx, http.MethodPost, "/"+url.PathEscape(gid)+"/edges", body, &env); err != nil {
		return nil, fmt.Errorf("add edge %s->%s: %w", edge.OutV, edge.InV, err)
	}
	if len(env.Result.Data) == 0 {
		return nil, &QueryError{Message: "backend returned no edge"}
	}
	var created schemas.Edge
	if err := json.Unmarshal(env.Result.Data[0], &created); err != nil {
		return nil, fmt.Errorf("decode created edge: %w", err)
	}
	return &created, nil
}

// UpdateEdge overwrites an existing edge's properties.
func (r *Remote) UpdateEdge(ctx context.Context, edge schemas.Edge) error {
	gid, err := r.currentGraph()
	if err != nil {
		return err
	}
	if edge.ID == "" {
		return &QueryError{Message: "update edge requires an edge id"}
	}
	body := map[string]any{
		"label":      edge.Label,
		"outV":       edge.OutV,
		"inV":        edge.InV,
		"properties": edge.Properties,
	}
	path := "/" + url.PathEscape(gid) + "/edges/" + url.PathEscape(edge.ID)
	if err := r.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("update edge %s: %w", edge.ID, err)
	}
	return nil
}

// envelope is the response wrapper every data endpoint shares.
type envelope struct {
	Result struct {
		Data []jsoniter.RawMessage `json:"data"`
	} `json:"result"`
}

// do performs one request with rate limiting, the per-request timeout, and a
// single re-authentication retry on 401/403.
func (r *Remote) do(ctx context.Context, method, path string, body, out any) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
	}

	status, respBody, err := r.roundTrip(ctx, method, path, payload, false)
	if err != nil {
		return err
	}
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		r.invalidateToken()
		status, respBody, err = r.roundTrip(ctx, method, path, payload, true)
		if err != nil {
			return err
		}
	}

	switch {
	case status >= 200 && status < 300:
		// fallthrough to decode
	case status >= 500:
		return fmt.Errorf("%w: %s %s returned %d", ErrStoreUnavailable, method, path, status)
	default:
		return &QueryError{Status: status, Message: backendMessage(respBody)}
	}

	if out != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("decode response from %s %s: %w", method, path, err)
		}
	}
	return nil
}

// roundTrip sends one HTTP request. forceAuth makes it fetch a fresh session
// token first.
func (r *Remote) roundTrip(ctx context.Context, method, path string, payload []byte, forceAuth bool) (int, []byte, error) {
	token, err := r.sessionToken(ctx, forceAuth)
	if err != nil {
		return 0, nil, err
	}

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, r.base.String()+path, reader)
	if err != nil {
		return 0, nil, fmt.Errorf("build request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "gds-token "+token)
	} else {
		req.SetBasicAuth(r.username, r.password)
	}

	resp, err := r.httpc.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, nil, fmt.Errorf("%w: %s %s timed out", ErrStoreUnavailable, method, path)
		}
		return 0, nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: reading response: %v", ErrStoreUnavailable, err)
	}
	return resp.StatusCode, respBody, nil
}

// sessionToken returns the cached session token, fetching one from /_session
// with basic credentials when absent or when refresh is forced.
func (r *Remote) sessionToken(ctx context.Context, force bool) (string, error) {
	r.mu.Lock()
	token := r.token
	r.mu.Unlock()
	if token != "" && !force {
		return token, nil
	}
	if r.username == "" {
		// Anonymous backends (and the httptest servers in this repo's own
		// tests) take the request without a token.
		return "", nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.base.String()+"/_session", nil)
	if err != nil {
		return "", fmt.Errorf("build session request: %w", err)
	}
	req.SetBasicAuth(r.username, r.password)

	resp, err := r.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: session: %v", ErrStoreUnavailable, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: session: %v", ErrStoreUnavailable, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", &QueryError{Status: resp.StatusCode, Message: "session token exchange failed"}
	}
	var session struct {
		Token string `json:"gds-token"`
	}
	if err := json.Unmarshal(respBody, &session); err != nil {
		return "", fmt.Errorf("decode session token: %w", err)
	}

	r.mu.Lock()
	r.token = session.Token
	r.mu.Unlock()
	r.log.Debug("refreshed graph session token")
	return session.Token, nil
}

func (r *Remote) invalidateToken() {
	r.mu.Lock()
	r.token = ""
	r.mu.Unlock()
}

// backendMessage pulls a human-readable error out of a rejection body.
func backendMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Message != "" {
			return parsed.Message
		}
		if parsed.Error != "" {
			return parsed.Error
		}
	}
	if len(body) == 0 {
		return "no error detail"
	}
	const max = 200
	if len(body) > max {
		return string(body[:max])
	}
	return string(body)
}
