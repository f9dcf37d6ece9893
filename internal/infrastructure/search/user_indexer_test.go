package search

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oksasatya/go-lms-registration/internal/domain/entity"
)

type captured struct {
	method string
	path   string
	doc    map[string]any
}

func newTestIndexer(t *testing.T, status int, got *captured) *UserIndexer {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got.doc)
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(`{"result":"created"}`))
	}))
	t.Cleanup(srv.Close)

	es, err := elasticsearch.NewClient(elasticsearch.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return NewUserIndexer(es, "users")
}

func activatedUser() *entity.User {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	return &entity.User{
		ID:           "u1",
		Name:         "Ana",
		Email:        "ana@x.com",
		PasswordHash: "$2a$10$secret",
		Role:         entity.RoleUser,
		IsVerified:   true,
		CreatedAt:    at,
		UpdatedAt:    at,
	}
}

func TestIndexUser_WritesDocument(t *testing.T) {
	var got captured
	idx := newTestIndexer(t, http.StatusCreated, &got)

	require.NoError(t, idx.IndexUser(context.Background(), activatedUser()))

	assert.Equal(t, http.MethodPut, got.method)
	assert.Equal(t, "/users/_doc/u1", got.path)
	assert.Equal(t, "ana@x.com", got.doc["email"])
	assert.Equal(t, true, got.doc["is_verified"])
	assert.NotContains(t, got.doc, "password_hash")
	assert.Equal(t, []any{}, got.doc["course_ids"])
}

func TestIndexUser_ErrorStatus(t *testing.T) {
	var got captured
	idx := newTestIndexer(t, http.StatusBadRequest, &got)

	err := idx.IndexUser(context.Background(), activatedUser())
	assert.ErrorContains(t, err, "400")
}

func TestIndexUser_DisabledWithoutClient(t *testing.T) {
	var idx *UserIndexer
	assert.NoError(t, idx.IndexUser(context.Background(), activatedUser()))
	assert.NoError(t, NewUserIndexer(nil, "users").IndexUser(context.Background(), activatedUser()))
}

func TestEnsureIndex(t *testing.T) {
	var mapping map[string]any
	require.NoError(t, json.Unmarshal([]byte(usersMapping), &mapping))

	var got captured
	idx := newTestIndexer(t, http.StatusOK, &got)
	created, err := idx.EnsureIndex(context.Background())
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, http.MethodHead, got.method)
	assert.Equal(t, "/users", got.path)

	created, err = NewUserIndexer(nil, "users").EnsureIndex(context.Background())
	assert.NoError(t, err)
	assert.False(t, created)
}
