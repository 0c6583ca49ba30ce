package supabase

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsert(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/rest/v1/hotel_quote_requests", r.URL.Path)
		assert.Equal(t, "anon-key", r.Header.Get("apikey"))
		assert.Equal(t, "Bearer anon-key", r.Header.Get("Authorization"))
		assert.Equal(t, "return=representation", r.Header.Get("Prefer"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var row map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&row))
		assert.Equal(t, "quote body", row["email_content"])

		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"id":"row-1","email_content":"quote body"}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "anon-key")

	var out []map[string]any
	err := client.Insert(context.Background(), "hotel_quote_requests", map[string]any{"email_content": "quote body"}, &out)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "row-1", out[0]["id"])
}

func TestInsert_DiscardRepresentation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`[{"id":"row-1"}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "anon-key")
	err := client.Insert(context.Background(), "hotel_concessions", []map[string]any{{"a": 1}}, nil)
	require.NoError(t, err)
}

func TestSelect(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/rest/v1/hotel_quote_requests", r.URL.Path)
		assert.Equal(t, "select=*&order=created_at.desc&limit=2", r.URL.RawQuery)

		w.Write([]byte(`[{"id":"b"},{"id":"a"}]`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "anon-key")

	var rows []map[string]any
	err := client.Select(context.Background(), "hotel_quote_requests", "select=*&order=created_at.desc&limit=2", &rows)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "b", rows[0]["id"])
}

func TestInsert_APIError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		w.Write([]byte(`{"message":"duplicate key"}`))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "anon-key")
	err := client.Insert(context.Background(), "hotel_quote_requests", map[string]any{}, nil)
	require.Error(t, err)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusConflict, apiErr.StatusCode)
	assert.Contains(t, apiErr.Body, "duplicate key")
}
