package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/choraleia/thinkbot/pkg/config"
	"github.com/choraleia/thinkbot/pkg/models"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	backend := "memory"
	app, err := NewApp(context.Background(), &config.AppConfig{Storage: config.StorageConfig{Backend: &backend}})
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.Close() })
	return NewServer(app)
}

func TestCORS(t *testing.T) {
	s := newTestServer(t)
	tests := []struct {
		origin string
		status int
	}{
		{"chrome-extension://abcdefghijklmnop", http.StatusNoContent},
		{"moz-extension://1234-5678", http.StatusNoContent},
		{"http://localhost:5173", http.StatusNoContent},
		{"https://evil.example.com", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodOptions, "/api/conversations", nil)
			req.Header.Set("Origin", tt.origin)
			w := httptest.NewRecorder()
			s.ginEngine.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
			if tt.status == http.StatusNoContent {
				assert.Equal(t, tt.origin, w.Header().Get("Access-Control-Allow-Origin"))
			}
		})
	}
}

func TestRuntimeInfo(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/runtime", nil)
	w := httptest.NewRecorder()
	s.ginEngine.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	var info models.RuntimeInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, config.DefaultPort, info.Port)
	assert.Equal(t, "http://127.0.0.1:8089", info.HTTPBaseURL)
	assert.Equal(t, "ws://127.0.0.1:8089", info.WSBaseURL)
}

func TestConversationsRouteWired(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api/conversations", nil)
	w := httptest.NewRecorder()
	s.ginEngine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}
