package controllers

import (
	"context"
	"encoding/json"
	"freedomwall/internal/docstore"
	"freedomwall/internal/structures"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func healthConfig() *structures.Config {
	return &structures.Config{Store: structures.StoreConfig{Collection: "freedomWall"}}
}

func TestHealth_ReturnsOK(t *testing.T) {
	store := docstore.NewMemoryStore()
	defer store.Close()
	hc := NewHealthController(store, healthConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	hc.Health(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp["status"])
	assert.Contains(t, resp, "uptime")
	assert.Contains(t, resp, "uptime_seconds")
	assert.Equal(t, "memory", resp["backend"])
	assert.Equal(t, float64(0), resp["subscriptions"])
	assert.Equal(t, float64(0), resp["revision"])
}

func TestHealth_MethodNotAllowed(t *testing.T) {
	store := docstore.NewMemoryStore()
	defer store.Close()
	hc := NewHealthController(store, healthConfig())

	req := httptest.NewRequest(http.MethodPost, "/health", nil)
	rr := httptest.NewRecorder()
	hc.Health(rr, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestHealth_ReflectsStoreActivity(t *testing.T) {
	store := docstore.NewMemoryStore()
	defer store.Close()
	hc := NewHealthController(store, healthConfig())

	_, err := store.Append(context.Background(), "freedomWall", map[string]any{"name": "Ana"})
	require.NoError(t, err)
	_, err = store.Append(context.Background(), "other", map[string]any{"name": "Ben"})
	require.NoError(t, err)
	unsubscribe := store.SubscribeOrdered("freedomWall", docstore.FieldCreatedAt, docstore.Descending, func([]docstore.Record) {}, nil)
	defer unsubscribe()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	hc.Health(rr, req)

	var resp map[string]interface{}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, float64(1), resp["subscriptions"])
	assert.Equal(t, float64(1), resp["revision"])
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name     string
		duration time.Duration
		expected string
	}{
		{"zero", 0, "0h0m0s"},
		{"one minute", 60 * time.Second, "0h1m0s"},
		{"one hour", time.Hour, "1h0m0s"},
		{"mixed", time.Hour + time.Minute + time.Second, "1h1m1s"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, formatDuration(tt.duration))
		})
	}
}
