package scanner_api

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/color"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-ticket-lifecycle/internal/checkin"
	"ms-ticket-lifecycle/internal/config"
	"ms-ticket-lifecycle/internal/database/dbtest"
	"ms-ticket-lifecycle/internal/scanner"
	"ms-ticket-lifecycle/internal/tickets/qr"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

// fakeDecoder answers every request with text, or err when set.
type fakeDecoder struct {
	mu   sync.Mutex
	text string
	err  error
	seen []string
}

func (d *fakeDecoder) DecodeImage(ctx context.Context, img []byte, filename string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = append(d.seen, filename)
	return d.text, d.err
}

func (d *fakeDecoder) DecodeURL(ctx context.Context, imageURL string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.seen = append(d.seen, imageURL)
	return d.text, d.err
}

func cameraServer(t *testing.T) *httptest.Server {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(2, 2, color.Black)
	frame, err := scanner.EncodePNG(img)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(frame)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setup(t *testing.T, dec *fakeDecoder) (http.Handler, *scanner.Manager) {
	return setupWithInterval(t, dec, 10*time.Millisecond)
}

func setupWithInterval(t *testing.T, dec *fakeDecoder, interval time.Duration) (http.Handler, *scanner.Manager) {
	v := checkin.NewValidator(checkin.NewLedger(dbtest.New(t)), checkin.NewMemoryCache(), nil, nil)
	m := scanner.NewManager(context.Background(), nil)
	t.Cleanup(m.Shutdown)

	h := NewHandler(m, dec, v, config.ScannerConfig{
		Interval:              interval,
		CameraMaxFailures:     3,
		CameraSnapshotTimeout: time.Second,
	}, nil)

	r := chi.NewRouter()
	h.Routes(r)
	return r, m
}

func do(t *testing.T, router http.Handler, method, path, client string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if client != "" {
		req.Header.Set(ClientSessionHeader, client)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var env envelope
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	}
	return rec, env
}

func TestScanSession_DecodesAndValidates(t *testing.T) {
	router, _ := setup(t, &fakeDecoder{text: `{"ticketId":"T1","eventName":"Expo"}`})
	cam := cameraServer(t)

	rec, env := do(t, router, http.MethodPost, "/scan/sessions", "tab-1", startRequest{CameraURL: cam.URL})
	require.Equal(t, http.StatusAccepted, rec.Code, env.Error)
	var started sessionResponse
	require.NoError(t, json.Unmarshal(env.Data, &started))
	assert.NotEmpty(t, started.SessionID)

	var status sessionResponse
	require.Eventually(t, func() bool {
		rec, env := do(t, router, http.MethodGet, "/scan/sessions", "tab-1", nil)
		if rec.Code != http.StatusOK {
			return false
		}
		require.NoError(t, json.Unmarshal(env.Data, &status))
		return status.Result.Status != scanner.StatusRunning
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, started.SessionID, status.SessionID)
	assert.Equal(t, scanner.StatusDecoded, status.Result.Status)
	require.NotNil(t, status.Result.Validation)
	assert.True(t, status.Result.Validation.OK)
	assert.Equal(t, "T1", status.Result.Validation.TicketID)
}

func TestScanSession_ReplaceAndStop(t *testing.T) {
	router, m := setup(t, &fakeDecoder{err: qr.ErrNoSymbol})
	cam := cameraServer(t)

	rec, _ := do(t, router, http.MethodPost, "/scan/sessions", "", startRequest{CameraURL: cam.URL})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, router, http.MethodPost, "/scan/sessions", "tab-1", startRequest{CameraURL: "file:///dev/video0"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, _ = do(t, router, http.MethodPost, "/scan/sessions", "tab-1", startRequest{CameraURL: cam.URL})
	require.Equal(t, http.StatusAccepted, rec.Code)
	first, ok := m.Get("tab-1")
	require.True(t, ok)

	rec, _ = do(t, router, http.MethodPost, "/scan/sessions", "tab-1", startRequest{CameraURL: cam.URL, IntervalMS: 20})
	require.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, scanner.StatusCancelled, first.Result().Status)
	assert.Equal(t, 1, m.Active())

	rec, _ = do(t, router, http.MethodDelete, "/scan/sessions", "tab-1", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	rec, _ = do(t, router, http.MethodDelete, "/scan/sessions", "tab-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	rec, _ = do(t, router, http.MethodGet, "/scan/sessions", "tab-1", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestScanSession_IntervalFloor(t *testing.T) {
	router, m := setupWithInterval(t, &fakeDecoder{err: qr.ErrNoSymbol}, time.Hour)
	cam := cameraServer(t)

	rec, _ := do(t, router, http.MethodPost, "/scan/sessions", "tab-1", startRequest{CameraURL: cam.URL, IntervalMS: 1})
	require.Equal(t, http.StatusAccepted, rec.Code)
	s, ok := m.Get("tab-1")
	require.True(t, ok)

	time.Sleep(100 * time.Millisecond)
	s.Stop()

	// only the immediate first tick ran; a 1ms request did not override the hour
	assert.Equal(t, 1, s.Result().Ticks)
}

func TestScanOnce_URL(t *testing.T) {
	dec := &fakeDecoder{text: "TICKET-42"}
	router, _ := setup(t, dec)

	rec, env := do(t, router, http.MethodPost, "/scan/once", "", onceRequest{ImageURL: "https://cdn.test/t.png"})
	require.Equal(t, http.StatusOK, rec.Code, env.Error)
	var res scanner.OneShotResult
	require.NoError(t, json.Unmarshal(env.Data, &res))
	assert.Equal(t, "TICKET-42", res.Identity.TicketID)
	assert.Equal(t, checkin.UnknownEventName, res.Identity.EventName)
	assert.True(t, res.Validation.OK)
	assert.Equal(t, []string{"https://cdn.test/t.png"}, dec.seen)

	rec, _ = do(t, router, http.MethodPost, "/scan/once", "", onceRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScanOnce_Upload(t *testing.T) {
	dec := &fakeDecoder{text: `{"ticketId":"T5","eventName":"Expo"}`}
	router, _ := setup(t, dec)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "ticket.png")
	require.NoError(t, err)
	part.Write([]byte("\x89PNG fake"))
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/scan/once", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, []string{"ticket.png"}, dec.seen)
}

func TestScanOnce_Failures(t *testing.T) {
	tests := []struct {
		name   string
		dec    *fakeDecoder
		status int
	}{
		{"decode service down", &fakeDecoder{err: qr.ErrDecodeServiceUnavailable}, http.StatusBadGateway},
		{"no code in image", &fakeDecoder{err: qr.ErrNoSymbol}, http.StatusUnprocessableEntity},
		{"payload missing fields", &fakeDecoder{text: `{"ticketId":"T1"}`}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router, _ := setup(t, tt.dec)
			rec, env := do(t, router, http.MethodPost, "/scan/once", "", onceRequest{ImageURL: "https://cdn.test/t.png"})
			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, env.Success)
		})
	}
}
