package upstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetJSONSendsBearerAndDecodes(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "peerlab-bird/dev", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, GetJSON(context.Background(), srv.Client(), "Test", srv.URL, "secret", &out))
	assert.True(t, out.OK)
	assert.Equal(t, "Bearer secret", gotAuth)
}

func TestGetJSONStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("bad key\n"))
	}))
	defer srv.Close()

	err := GetJSON(context.Background(), nil, "Headscale", srv.URL, "k", &struct{}{})
	var upErr *Error
	require.True(t, errors.As(err, &upErr))
	assert.Equal(t, http.StatusUnauthorized, upErr.Code)
	assert.Equal(t, "bad key", upErr.Body)
	assert.Contains(t, err.Error(), "Headscale API returned error status 401")
}

func TestGetJSONDecodeError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer srv.Close()

	err := GetJSON(context.Background(), nil, "peerlab-gateway", srv.URL, "", &struct{}{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse peerlab-gateway API response")
}
