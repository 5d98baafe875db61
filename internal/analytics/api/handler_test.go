package analytics_api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-ticket-lifecycle/internal/analytics"
	"ms-ticket-lifecycle/internal/auth"
	"ms-ticket-lifecycle/internal/database/dbtest"
	"ms-ticket-lifecycle/internal/models"
)

func setupRouter(t *testing.T) http.Handler {
	db := dbtest.New(t)
	start := time.Date(2025, 6, 1, 18, 0, 0, 0, time.UTC)
	for _, e := range []models.Event{
		{ID: "E1", OwnerUserID: "owner-1", Title: "Expo", StartDate: start, EndDate: start.Add(time.Hour)},
		{ID: "E2", OwnerUserID: "owner-2", Title: "Fair", StartDate: start, EndDate: start.Add(time.Hour)},
	} {
		_, err := db.NewInsert().Model(&e).Exec(context.Background())
		require.NoError(t, err)
	}

	h := NewHandler(analytics.NewService(analytics.NewDB(db)), nil)
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r.WithContext(auth.WithUserID(r.Context(), r.Header.Get("X-Test-User"))))
		})
	})
	h.Routes(r)
	return r
}

func TestAttendanceRoutes(t *testing.T) {
	router := setupRouter(t)

	tests := []struct {
		name   string
		method string
		path   string
		user   string
		body   string
		status int
	}{
		{"owner reads report", http.MethodGet, "/analytics/attendance/events/E1", "owner-1", "", http.StatusOK},
		{"other user forbidden", http.MethodGet, "/analytics/attendance/events/E1", "owner-2", "", http.StatusForbidden},
		{"unknown event", http.MethodGet, "/analytics/attendance/events/nope", "owner-1", "", http.StatusNotFound},
		{"anonymous", http.MethodGet, "/analytics/attendance/events/E1", "", "", http.StatusUnauthorized},
		{"batch of owned events", http.MethodPost, "/analytics/attendance/events/batch", "owner-1", `{"eventIds":["E1"]}`, http.StatusOK},
		{"batch with a foreign event", http.MethodPost, "/analytics/attendance/events/batch", "owner-1", `{"eventIds":["E1","E2"]}`, http.StatusForbidden},
		{"empty batch", http.MethodPost, "/analytics/attendance/events/batch", "owner-1", `{"eventIds":[]}`, http.StatusBadRequest},
		{"malformed batch", http.MethodPost, "/analytics/attendance/events/batch", "owner-1", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("X-Test-User", tt.user)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
		})
	}
}
