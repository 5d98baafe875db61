package scanner_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-ticket-lifecycle/internal/config"
	"ms-ticket-lifecycle/internal/logger"
	"ms-ticket-lifecycle/internal/scanner"
	"ms-ticket-lifecycle/internal/tickets/qr"
	"ms-ticket-lifecycle/internal/utils"
)

// ClientSessionHeader identifies the browser tab or device driving a scan
// session. Each client owns at most one running session.
const ClientSessionHeader = "X-Client-Session"

const maxUploadBytes = 10 << 20

type Handler struct {
	Manager   *scanner.Manager
	Decoder   scanner.URLDecoder
	Validator scanner.Validator
	Config    config.ScannerConfig
	Logger    *logger.Logger
}

func NewHandler(m *scanner.Manager, decoder scanner.URLDecoder, validator scanner.Validator, cfg config.ScannerConfig, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{Manager: m, Decoder: decoder, Validator: validator, Config: cfg, Logger: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/scan", func(r chi.Router) {
		r.Post("/sessions", h.StartSession)
		r.Get("/sessions", h.SessionStatus)
		r.Delete("/sessions", h.StopSession)
		r.Post("/once", h.ScanOnce)
	})
}

type startRequest struct {
	CameraURL  string `json:"cameraUrl"`
	IntervalMS int    `json:"intervalMs,omitempty"`
}

type sessionResponse struct {
	SessionID string         `json:"sessionId"`
	Result    scanner.Result `json:"result"`
}

func (h *Handler) StartSession(w http.ResponseWriter, r *http.Request) {
	clientID := r.Header.Get(ClientSessionHeader)
	if clientID == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Missing client session", ClientSessionHeader+" header is required"))
		return
	}

	var req startRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if u, err := url.Parse(req.CameraURL); err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid camera URL", "cameraUrl must be an http(s) URL"))
		return
	}

	// a client may slow the loop down but never below the configured interval
	interval := h.Config.Interval
	if requested := time.Duration(req.IntervalMS) * time.Millisecond; requested > interval {
		interval = requested
	}

	s := h.Manager.Start(clientID, scanner.Config{
		Source:    scanner.NewSnapshotCamera(req.CameraURL, h.Config.CameraSnapshotTimeout, h.Config.CameraMaxFailures),
		Decoder:   h.Decoder,
		Validator: h.Validator,
		Interval:  interval,
	})
	h.Logger.LogScan(s.ID, fmt.Sprintf("started for client %s on %s", clientID, req.CameraURL))

	utils.WriteJSON(w, http.StatusAccepted, utils.SuccessResponse("Scan session started", sessionResponse{SessionID: s.ID, Result: s.Result()}))
}

// SessionStatus reports the client's latest session, running or finished.
func (h *Handler) SessionStatus(w http.ResponseWriter, r *http.Request) {
	s, ok := h.Manager.Get(r.Header.Get(ClientSessionHeader))
	if !ok {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("No scan session", "no session for this client"))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Scan session", sessionResponse{SessionID: s.ID, Result: s.Result()}))
}

func (h *Handler) StopSession(w http.ResponseWriter, r *http.Request) {
	if !h.Manager.Stop(r.Header.Get(ClientSessionHeader)) {
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("No scan session", "no session for this client"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type onceRequest struct {
	ImageURL string `json:"imageUrl"`
}

// ScanOnce decodes one image, given either as a JSON {"imageUrl"} body or as
// a multipart upload in the "file" field.
func (h *Handler) ScanOnce(w http.ResponseWriter, r *http.Request) {
	oneShot := &scanner.OneShot{Decoder: h.Decoder, Validator: h.Validator}

	var (
		res *scanner.OneShotResult
		err error
	)
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
		file, header, ferr := r.FormFile("file")
		if ferr != nil {
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid upload", ferr.Error()))
			return
		}
		defer file.Close()

		data, rerr := io.ReadAll(file)
		if rerr != nil || len(data) == 0 {
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid upload", "file is empty or unreadable"))
			return
		}
		res, err = oneShot.FromImage(r.Context(), data, header.Filename)
	} else {
		var req onceRequest
		if derr := json.NewDecoder(r.Body).Decode(&req); derr != nil || req.ImageURL == "" {
			utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", "imageUrl or a multipart file is required"))
			return
		}
		res, err = oneShot.FromURL(r.Context(), req.ImageURL)
	}

	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			h.Logger.Warn("SCAN", fmt.Sprintf("one-shot scan failed: %v", err))
		}
		utils.WriteJSON(w, status, utils.ErrorResponse("Scan failed", err.Error()))
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Scan decoded", res))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, qr.ErrDecodeServiceUnavailable):
		return http.StatusBadGateway
	case errors.Is(err, qr.ErrNoSymbol), errors.Is(err, qr.ErrEmptyDecode):
		return http.StatusUnprocessableEntity
	case errors.Is(err, qr.ErrMalformedPayload), errors.Is(err, qr.ErrMissingRequiredField):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}
