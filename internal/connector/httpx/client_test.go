package httpx

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetUnmarshalsJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/apps", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"values": [{"id": "a1", "name": "crm"}]}`))
	}))
	defer srv.Close()

	cfg := DefaultClientConfig()
	cfg.BaseURL = srv.URL
	client := NewClient(cfg)

	resp, err := client.Get(context.Background(), "/api/v1/apps", nil)
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())

	var payload struct {
		Values []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		} `json:"values"`
	}
	require.NoError(t, resp.JSON(&payload))
	require.Len(t, payload.Values, 1)
	assert.Equal(t, "crm", payload.Values[0].Name)
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cfg := DefaultClientConfig()
	cfg.BaseURL = srv.URL
	client := NewClient(cfg)

	resp, err := client.Get(context.Background(), "/", nil)
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())
	assert.Equal(t, int32(3), calls.Load())
}

func TestRetriesResendFullBody(t *testing.T) {
	var calls atomic.Int32
	bodies := make(chan string, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		bodies <- string(got)
		if calls.Add(1) < 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cfg := DefaultClientConfig()
	cfg.BaseURL = srv.URL
	client := NewClient(cfg)

	resp, err := client.Do(context.Background(), &Request{
		Method: http.MethodPost,
		Path:   "/api/v1/checks",
		Body:   strings.NewReader(`{"scope": "db.prod"}`),
	})
	require.NoError(t, err)
	assert.True(t, resp.IsSuccess())

	require.Equal(t, int32(2), calls.Load())
	assert.Equal(t, `{"scope": "db.prod"}`, <-bodies)
	assert.Equal(t, `{"scope": "db.prod"}`, <-bodies)
}

func TestDoesNotRetryAuthFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	cfg := DefaultClientConfig()
	cfg.BaseURL = srv.URL
	client := NewClient(cfg)

	_, err := client.Get(context.Background(), "/", nil)
	require.Error(t, err)

	httpErr, ok := err.(*HTTPError)
	require.True(t, ok)
	assert.True(t, httpErr.IsAuthFailure())
	assert.Equal(t, int32(1), calls.Load())
}

func TestAuthHeadersApplied(t *testing.T) {
	var sawAuth, sawKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth = r.Header.Get("Authorization")
		sawKey = r.Header.Get("X-API-Key")
		w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	cfg := DefaultClientConfig()
	cfg.BaseURL = srv.URL
	cfg.Auth = BearerToken{Token: "tok-123"}
	_, err := NewClient(cfg).Get(context.Background(), "/", nil)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-123", sawAuth)

	cfg2 := DefaultClientConfig()
	cfg2.BaseURL = srv.URL
	cfg2.Auth = APIKey{Key: "k-9", Header: "X-API-Key"}
	_, err = NewClient(cfg2).Get(context.Background(), "/", nil)
	require.NoError(t, err)
	assert.Equal(t, "k-9", sawKey)
}

func TestFromConfigPrecedence(t *testing.T) {
	auth := FromConfig(map[string]any{
		"api_token": "t",
		"api_key":   "k",
		"user":      "u",
		"password":  "p",
	})
	_, isBearer := auth.(BearerToken)
	assert.True(t, isBearer, "api_token should win over api_key and basic auth")

	auth = FromConfig(map[string]any{"user": "u", "password": "p"})
	_, isBasic := auth.(BasicAuth)
	assert.True(t, isBasic)

	auth = FromConfig(map[string]any{})
	_, isNone := auth.(NoAuth)
	assert.True(t, isNone)
}
