package main

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	analytics_api "ms-ticket-lifecycle/internal/analytics/api"
	"ms-ticket-lifecycle/internal/auth"
	"ms-ticket-lifecycle/internal/checkin"
	"ms-ticket-lifecycle/internal/checkin/checkin_api"
	"ms-ticket-lifecycle/internal/config"
	"ms-ticket-lifecycle/internal/logger"
	"ms-ticket-lifecycle/internal/scanner/scanner_api"
	"ms-ticket-lifecycle/internal/tickets/qr"
	"ms-ticket-lifecycle/internal/tickets/ticket_api"
)

func TestRouter_PublicAndProtectedRoutes(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{AllowedOrigins: []string{"https://door.test"}}}
	log := logger.Discard()

	r := newRouter(cfg, log, auth.NewHMACVerifier("secret"),
		ticket_api.NewHandler(nil, qr.RenderOptions{}, "", 1, log),
		checkin_api.NewHandler(checkin.NewValidator(nil, nil, nil, log), nil, log),
		scanner_api.NewHandler(nil, nil, nil, config.ScannerConfig{}, log),
		analytics_api.NewHandler(nil, log),
	)

	tests := []struct {
		method string
		path   string
		status int
	}{
		{http.MethodGet, "/health", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodGet, "/api/tickets/count", http.StatusUnauthorized},
		{http.MethodPost, "/api/checkin", http.StatusUnauthorized},
		{http.MethodPost, "/api/scan/sessions", http.StatusUnauthorized},
		{http.MethodGet, "/api/analytics/attendance/events/E1", http.StatusUnauthorized},
		{http.MethodGet, "/nope", http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			r.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestRouter_CORSPreflight(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{AllowedOrigins: []string{"https://door.test"}}}
	log := logger.Discard()
	r := newRouter(cfg, log, auth.NewHMACVerifier("secret"),
		ticket_api.NewHandler(nil, qr.RenderOptions{}, "", 1, log),
		checkin_api.NewHandler(checkin.NewValidator(nil, nil, nil, log), nil, log),
		scanner_api.NewHandler(nil, nil, nil, config.ScannerConfig{}, log),
		analytics_api.NewHandler(nil, log),
	)

	req := httptest.NewRequest(http.MethodOptions, "/api/scan/sessions", nil)
	req.Header.Set("Origin", "https://door.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	req.Header.Set("Access-Control-Request-Headers", scanner_api.ClientSessionHeader)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	assert.Equal(t, "https://door.test", rec.Header().Get("Access-Control-Allow-Origin"))
}
