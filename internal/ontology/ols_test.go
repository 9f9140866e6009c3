package ontology

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func olsServer(t *testing.T, handler http.HandlerFunc) *OLSClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewOLSClient(server.URL, zap.NewNop())
}

func writeDocs(t *testing.T, w http.ResponseWriter, docs []Result) {
	t.Helper()
	var body olsResponse
	body.Response.Docs = docs
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(body))
}

func TestOLSSearch_QueryParams(t *testing.T) {
	client := olsServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		assert.Equal(t, "heart rate", r.URL.Query().Get("q"))
		assert.Equal(t, "label", r.URL.Query().Get("queryFields"))
		assert.Equal(t, "true", r.URL.Query().Get("exact"))

		writeDocs(t, w, []Result{
			{IRI: "http://purl.obolibrary.org/obo/CMO_0000002", Label: "heart rate", OntologyName: "cmo"},
		})
	})

	results, err := client.Search(context.Background(), "heart rate",
		SearchOptions{Exact: true, QueryFields: QueryLabel})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "heart rate", results[0].Label)
	assert.Equal(t, "cmo", results[0].OntologyName)
}

func TestOLSSearch_DefaultsToBothFields(t *testing.T) {
	client := olsServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "label,synonym", r.URL.Query().Get("queryFields"))
		assert.Empty(t, r.URL.Query().Get("exact"))
		writeDocs(t, w, nil)
	})

	results, err := client.Search(context.Background(), "pulse", SearchOptions{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestOLSSearch_CapsAtTenResults(t *testing.T) {
	client := olsServer(t, func(w http.ResponseWriter, r *http.Request) {
		docs := make([]Result, 15)
		for i := range docs {
			docs[i] = Result{IRI: fmt.Sprintf("http://example.org/T%d", i), Label: fmt.Sprintf("term %d", i)}
		}
		writeDocs(t, w, docs)
	})

	results, err := client.Search(context.Background(), "term", SearchOptions{})
	require.NoError(t, err)
	assert.Len(t, results, 10)
	assert.Equal(t, "term 0", results[0].Label)
}

func TestOLSSearch_ServerError(t *testing.T) {
	client := olsServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.Search(context.Background(), "heart rate", SearchOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 502")
}
