package graphdb

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap/zaptest"

	"github.com/xkilldash9x/tastegraph/internal/gremlin"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newRemote(t *testing.T, server *httptest.Server, username, password string) *Remote {
	t.Helper()
	client, err := NewRemote(RemoteConfig{
		APIURL:     server.URL,
		Username:   username,
		Password:   password,
		RateLimit:  10000,
		HTTPClient: server.Client(),
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	return client
}

func TestNewRemoteValidation(t *testing.T) {
	t.Parallel()

	_, err := NewRemote(RemoteConfig{APIURL: "not a url"}, nil)
	assert.Error(t, err)

	_, err = NewRemote(RemoteConfig{APIURL: "/relative/only"}, nil)
	assert.Error(t, err)
}

func TestSessionTokenHandshake(t *testing.T) {
	t.Parallel()

	var sessions atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/_session", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "svc" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		sessions.Add(1)
		w.Write([]byte(`{"gds-token":"tok-1"}`))
	})
	mux.HandleFunc("/_graphs", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "gds-token tok-1" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"graphs":["g","tastegraph"]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newRemote(t, server, "svc", "secret")

	graphs, err := client.ListGraphs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"g", "tastegraph"}, graphs)

	// Token is cached across calls.
	_, err = client.ListGraphs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), sessions.Load())
}

func TestReauthenticatesOnceOnRejection(t *testing.T) {
	t.Parallel()

	var sessions atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/_session", func(w http.ResponseWriter, r *http.Request) {
		n := sessions.Add(1)
		if n == 1 {
			w.Write([]byte(`{"gds-token":"stale"}`))
			return
		}
		w.Write([]byte(`{"gds-token":"fresh"}`))
	})
	mux.HandleFunc("/_graphs", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "gds-token fresh" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte(`{"graphs":[]}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newRemote(t, server, "svc", "secret")

	graphs, err := client.ListGraphs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, graphs)
	assert.Equal(t, int32(2), sessions.Load())
}

func TestRunDecodesElements(t *testing.T) {
	t.Parallel()

	var gotQuery string
	mux := http.NewServeMux()
	mux.HandleFunc("/g/gremlin", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Gremlin string `json:"gremlin"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotQuery = body.Gremlin
		w.Write([]byte(`{"result":{"data":[
			{"id":4128,"label":"recipe","type":"vertex","properties":{
				"name":[{"id":"p1","value":"r42"}],
				"title":[{"id":"p2","value":"Pesto"}]}}
		]}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newRemote(t, server, "", "")
	client.SetGraph("g")

	elements, err := client.Run(context.Background(),
		gremlin.V().HasLabel("recipe").Has("name", "r42"))
	require.NoError(t, err)
	assert.Equal(t, `g.V().hasLabel("recipe").has("name","r42")`, gotQuery)

	require.Len(t, elements, 1)
	v := elements[0].Vertex
	require.NotNil(t, v)
	assert.Equal(t, "4128", v.ID)
	assert.Equal(t, "recipe", v.Label)
	assert.Equal(t, "r42", v.PropertyString("name"))
	assert.Equal(t, "Pesto", v.PropertyString("title"))
}

func TestRunRequiresSelectedGraph(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	client := newRemote(t, server, "", "")
	_, err := client.Run(context.Background(), gremlin.V())
	assert.ErrorIs(t, err, ErrNoGraphSelected)
}

func TestErrorMapping(t *testing.T) {
	t.Parallel()

	t.Run("5xx is unavailable", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := newRemote(t, server, "", "")
		_, err := client.ListGraphs(context.Background())
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})

	t.Run("4xx is a query error with the backend message", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"message":"malformed traversal"}`))
		}))
		defer server.Close()

		client := newRemote(t, server, "", "")
		client.SetGraph("g")
		_, err := client.Run(context.Background(), gremlin.V())

		var qerr *QueryError
		require.ErrorAs(t, err, &qerr)
		assert.Equal(t, http.StatusBadRequest, qerr.Status)
		assert.Equal(t, "malformed traversal", qerr.Message)
		assert.Equal(t, "g.V()", qerr.Query)
	})

	t.Run("connection failure is unavailable", func(t *testing.T) {
		t.Parallel()
		server := httptest.NewServer(http.NotFoundHandler())
		server.Close()

		client := newRemote(t, server, "", "")
		_, err := client.ListGraphs(context.Background())
		assert.ErrorIs(t, err, ErrStoreUnavailable)
	})
}

func TestAddVertexRoundTrip(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/g/vertices", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body struct {
			Label      string         `json:"label"`
			Properties map[string]any `json:"properties"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "person", body.Label)
		require.Equal(t, "alice", body.Properties["name"])
		w.Write([]byte(`{"result":{"data":[
			{"id":99,"label":"person","type":"vertex","properties":{
				"name":[{"id":"p","value":"alice"}]}}
		]}}`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	client := newRemote(t, server, "", "")
	client.SetGraph("g")

	v, err := client.AddVertex(context.Background(), "person", map[string]any{"name": "alice"})
	require.NoError(t, err)
	assert.Equal(t, "99", v.ID)
	assert.Equal(t, "alice", v.PropertyString("name"))
}
