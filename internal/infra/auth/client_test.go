package auth

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin_JSONToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/login", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"token":"jwt-abc"}`)
	}))
	defer server.Close()

	store := NewStore()
	client, err := NewClient(Config{BaseURL: server.URL}, store)
	require.NoError(t, err)

	require.NoError(t, client.Login(context.Background(), "alice", "pw"))

	cred, ok := store.Credential()
	require.True(t, ok)
	assert.Equal(t, "jwt-abc", cred)
}

func TestLogin_RawTokenBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "raw-jwt\n")
	}))
	defer server.Close()

	store := NewStore()
	client, err := NewClient(Config{BaseURL: server.URL}, store)
	require.NoError(t, err)

	require.NoError(t, client.Login(context.Background(), "alice", "pw"))
	cred, _ := store.Credential()
	assert.Equal(t, "raw-jwt", cred)
}

func TestLogin_Rejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad credentials", http.StatusUnauthorized)
	}))
	defer server.Close()

	store := NewStore()
	client, err := NewClient(Config{BaseURL: server.URL}, store)
	require.NoError(t, err)

	err = client.Login(context.Background(), "alice", "wrong")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejected))

	_, ok := store.Credential()
	assert.False(t, ok, "no credential stored on rejection")
}

func TestStore_Volatile(t *testing.T) {
	store := NewStore()

	_, ok := store.Credential()
	assert.False(t, ok)

	store.Set("cred")
	cred, ok := store.Credential()
	assert.True(t, ok)
	assert.Equal(t, "cred", cred)

	store.Clear()
	_, ok = store.Credential()
	assert.False(t, ok)
}
