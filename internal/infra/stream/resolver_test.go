package stream

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCreds string

func (c staticCreds) Credential() (string, bool) { return string(c), c != "" }

func newTestResolver(t *testing.T, serverURL string, delivery Delivery) *Resolver {
	t.Helper()
	r, err := NewResolver(Config{BaseURL: serverURL}, staticCreds("session-jwt"), delivery)
	require.NoError(t, err)
	return r
}

func TestResolve_FlacDelivery(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/stream/token/track-9", r.URL.Path)
		assert.Equal(t, "Bearer session-jwt", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"token":"tok-%d"}`, n)
	}))
	defer server.Close()

	resolver := newTestResolver(t, server.URL, &FlacDelivery{})

	src, err := resolver.Resolve(context.Background(), "track-9")
	require.NoError(t, err)
	assert.Equal(t, "track-9", src.TrackID)
	assert.Equal(t, server.URL+"/stream/flac/track-9?token=tok-1", src.URL)

	// Tokens are single-use: a second resolve must fetch a fresh one.
	src2, err := resolver.Resolve(context.Background(), "track-9")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/stream/flac/track-9?token=tok-2", src2.URL)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestResolve_HLSDelivery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"token":"tok"}`)
	}))
	defer server.Close()

	delivery, err := NewHLSDelivery(map[string]any{"lossless": true, "segment_sec": 4})
	require.NoError(t, err)

	resolver := newTestResolver(t, server.URL, delivery)
	src, err := resolver.Resolve(context.Background(), "77")
	require.NoError(t, err)
	assert.Equal(t, server.URL+"/playlist/77?hlsTime=4&lossless=true&token=tok", src.URL)
}

func TestResolve_RejectionIsAuthorizationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "session expired", http.StatusUnauthorized)
	}))
	defer server.Close()

	resolver := newTestResolver(t, server.URL, &FlacDelivery{})
	_, err := resolver.Resolve(context.Background(), "1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthorization))
}

func TestResolve_NetworkFailureIsAuthorizationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // refuse connections

	resolver := newTestResolver(t, server.URL, &FlacDelivery{})
	_, err := resolver.Resolve(context.Background(), "1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrAuthorization))
}

func TestResolve_EmptyTokenRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{}`)
	}))
	defer server.Close()

	resolver := newTestResolver(t, server.URL, &FlacDelivery{})
	_, err := resolver.Resolve(context.Background(), "1")
	assert.True(t, errors.Is(err, ErrAuthorization))
}

func TestNewDeliveryFromConfig(t *testing.T) {
	tests := []struct {
		name    string
		variant string
		wantErr bool
	}{
		{name: "default is flac", variant: ""},
		{name: "flac", variant: "flac"},
		{name: "hls", variant: "hls"},
		{name: "unknown variant", variant: "dash", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewDeliveryFromConfig(tt.variant, nil)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, d)
		})
	}
}

func TestHLSDelivery_SettingsValidation(t *testing.T) {
	_, err := NewHLSDelivery(map[string]any{"segment_sec": 99})
	assert.Error(t, err)

	d, err := NewHLSDelivery(nil)
	require.NoError(t, err)
	assert.Equal(t, 1, d.config.SegmentSec, "segment length defaults to 1s")
	assert.False(t, d.config.Lossless)
}
