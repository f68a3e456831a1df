package resthybrid

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metahub/mex-core/internal/filter"
	"github.com/metahub/mex-core/internal/source"
)

func newTestHybrid(t *testing.T, handler http.Handler) *Hybrid {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	h, err := New(map[string]any{"base_url": srv.URL})
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func TestNewRequiresBaseURL(t *testing.T) {
	_, err := New(map[string]any{})
	require.Error(t, err)
}

func TestTestConnectionRESTOnly(t *testing.T) {
	h := newTestHybrid(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/apps", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		w.Write([]byte(`{"values": []}`))
	}))

	require.NoError(t, h.TestConnection(context.Background()))
}

func TestTestConnectionAuthFailureIsConnectivity(t *testing.T) {
	h := newTestHybrid(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))

	err := h.TestConnection(context.Background())
	require.Error(t, err)
	assert.True(t, source.IsConnectivity(err))
}

func TestListCatalogsParsesApps(t *testing.T) {
	h := newTestHybrid(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"values": [{"id": "a1", "name": "crm"}, {"id": "a2", "name": "billing"}]}`))
	}))

	catalogs, err := h.ListCatalogs(context.Background())
	require.NoError(t, err)
	require.Len(t, catalogs, 2)
	assert.Equal(t, "crm", catalogs[0].Name)
	assert.Equal(t, "app", catalogs[0].Kind)
	assert.Equal(t, "a1", catalogs[0].Extra["id"])
}

func TestListSchemasFiltersCollections(t *testing.T) {
	h := newTestHybrid(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/apps/crm/collections", r.URL.Path)
		w.Write([]byte(`{"values": [{"id": "c1", "name": "contacts"}, {"id": "c2", "name": "archive"}]}`))
	}))

	f := filter.Compile(filter.Spec{Include: map[string]string{"^contacts$": filter.Star}})
	schemas, err := h.ListSchemas(context.Background(), "crm", f)
	require.NoError(t, err)
	require.Len(t, schemas, 1)
	assert.Equal(t, "contacts", schemas[0].Name)
	assert.Equal(t, "collection", schemas[0].Kind)
}

func TestListSchemasForbiddenIsPermission(t *testing.T) {
	h := newTestHybrid(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))

	_, err := h.ListSchemas(context.Background(), "crm", nil)
	require.Error(t, err)
	assert.True(t, source.IsPermission(err))
}

func TestListTablesWithoutWarehouse(t *testing.T) {
	h := newTestHybrid(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"values": []}`))
	}))

	_, err := h.ListTables(context.Background(), "crm", "contacts", nil)
	require.Error(t, err)
	assert.True(t, source.IsConnectivity(err))
}
