package checkin_api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-ticket-lifecycle/internal/auth"
	"ms-ticket-lifecycle/internal/checkin"
	"ms-ticket-lifecycle/internal/database/dbtest"
	"ms-ticket-lifecycle/internal/models"
)

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func setupRouter(t *testing.T) (http.Handler, *Handler) {
	v := checkin.NewValidator(checkin.NewLedger(dbtest.New(t)), checkin.NewMemoryCache(), nil, nil)
	h := NewHandler(v, nil, nil)

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithUserID(req.Context(), "door-1")))
		})
	})
	h.Routes(r)
	return r, h
}

func do(t *testing.T, router http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(method, path, &buf))

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestValidateThenCheckin(t *testing.T) {
	router, _ := setupRouter(t)
	qrData := `{"ticketId":"T1","eventId":"E1","eventName":"Expo"}`

	rec, env := do(t, router, http.MethodPost, "/checkin/validate", validateRequest{QRData: qrData})
	require.Equal(t, http.StatusOK, rec.Code)
	var vr validateResponse
	require.NoError(t, json.Unmarshal(env.Data, &vr))
	assert.True(t, vr.Result.OK)
	assert.Equal(t, "Expo", vr.Identity.EventName)

	rec, env = do(t, router, http.MethodPost, "/checkin", checkinRequest{TicketID: "T1", EventID: "E1", EventName: "Expo", Source: models.CheckInSourceCamera})
	require.Equal(t, http.StatusOK, rec.Code, env.Error)
	var entry models.CheckIn
	require.NoError(t, json.Unmarshal(env.Data, &entry))
	assert.Equal(t, "door-1", entry.ScannedBy)

	rec, env = do(t, router, http.MethodPost, "/checkin", checkinRequest{TicketID: "T1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, checkin.ErrAlreadyCheckedIn.Error(), env.Error)

	rec, env = do(t, router, http.MethodPost, "/checkin/validate", validateRequest{QRData: qrData})
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(env.Data, &vr))
	assert.False(t, vr.Result.OK)
	assert.Equal(t, checkin.ReasonAlreadyCheckedIn, vr.Result.Reason)
}

func TestValidate_BadInput(t *testing.T) {
	router, _ := setupRouter(t)

	for _, qrData := range []string{`{"ticketId":"T1"}`, `[1]`, "   "} {
		rec, env := do(t, router, http.MethodPost, "/checkin/validate", validateRequest{QRData: qrData})
		assert.Equal(t, http.StatusBadRequest, rec.Code, qrData)
		assert.False(t, env.Success)
	}

	rec, _ := do(t, router, http.MethodPost, "/checkin", checkinRequest{TicketID: ""})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListExportReset(t *testing.T) {
	router, _ := setupRouter(t)
	for _, id := range []string{"T1", "T2"} {
		rec, _ := do(t, router, http.MethodPost, "/checkin", checkinRequest{TicketID: id})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec, env := do(t, router, http.MethodGet, "/checkin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []models.CheckIn
	require.NoError(t, json.Unmarshal(env.Data, &entries))
	assert.Len(t, entries, 2)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/checkin/export", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "attachment; filename=\"checkins-")
	var report models.CheckInReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
	assert.Equal(t, 2, report.TotalCheckedIn)
	assert.ElementsMatch(t, []string{"T1", "T2"}, report.Tickets)

	rec, env = do(t, router, http.MethodDelete, "/checkin", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var removed map[string]int64
	require.NoError(t, json.Unmarshal(env.Data, &removed))
	assert.EqualValues(t, 2, removed["removed"])

	rec, _ = do(t, router, http.MethodPost, "/checkin", checkinRequest{TicketID: "T1"})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStreamCheckins(t *testing.T) {
	router, h := setupRouter(t)
	srv := httptest.NewServer(router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/checkin/stream?eventId=E1", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.True(t, strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream"))

	lines := bufio.NewScanner(resp.Body)
	next := func() string {
		require.True(t, lines.Scan())
		return lines.Text()
	}

	assert.Equal(t, "event: connected", next())
	assert.Contains(t, next(), `"eventId":"E1"`)
	next()
	assert.Equal(t, 1, h.Emitter.ClientCount("E1"))

	_, err = h.Validator.CheckIn(ctx, checkin.Request{TicketID: "T9", EventID: "other"})
	require.NoError(t, err)
	_, err = h.Validator.CheckIn(ctx, checkin.Request{TicketID: "T1", EventID: "E1", EventName: "Expo"})
	require.NoError(t, err)

	assert.Equal(t, "event: checkin", next())
	data := strings.TrimPrefix(next(), "data: ")
	var o checkin.Outcome
	require.NoError(t, json.Unmarshal([]byte(data), &o))
	assert.Equal(t, "T1", o.Identity.TicketID)
	assert.True(t, o.OK)

	cancel()
	assert.Eventually(t, func() bool { return h.Emitter.ClientCount("E1") == 0 }, 2*time.Second, 10*time.Millisecond)
}
