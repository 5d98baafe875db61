package checkin_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-ticket-lifecycle/internal/auth"
	"ms-ticket-lifecycle/internal/checkin"
	"ms-ticket-lifecycle/internal/logger"
	"ms-ticket-lifecycle/internal/models"
	"ms-ticket-lifecycle/internal/sse"
	"ms-ticket-lifecycle/internal/tickets/qr"
	"ms-ticket-lifecycle/internal/utils"
)

type Handler struct {
	Validator *checkin.Validator
	Emitter   *sse.CheckinEventEmitter
	Logger    *logger.Logger
}

// NewHandler registers the emitter as an observer of v so the live feed
// sees every outcome.
func NewHandler(v *checkin.Validator, emitter *sse.CheckinEventEmitter, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	if emitter == nil {
		emitter = sse.NewCheckinEventEmitter()
	}
	v.Observers = append(v.Observers, emitter)
	return &Handler{Validator: v, Emitter: emitter, Logger: log}
}

func (h *Handler) Routes(r chi.Router) {
	r.Route("/checkin", func(r chi.Router) {
		r.Post("/validate", h.ValidateTicket)
		r.Post("/", h.CheckinTicket)
		r.Get("/", h.ListCheckins)
		r.Get("/export", h.ExportCheckins)
		r.Delete("/", h.ResetCheckins)
		r.Get("/stream", h.StreamCheckins)
	})
}

type validateRequest struct {
	// QRData is the decoded text of the code, structured or bare id.
	QRData string `json:"qrData"`
}

type validateResponse struct {
	Identity *models.TicketIdentity `json:"identity"`
	Result   checkin.Result         `json:"result"`
}

func (h *Handler) ValidateTicket(w http.ResponseWriter, r *http.Request) {
	var req validateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	identity, res, err := h.Validator.ValidateText(r.Context(), req.QRData)
	if err != nil {
		h.writeError(w, "Invalid QR code", err)
		return
	}

	msg := "Ticket is valid"
	if !res.OK {
		msg = "Ticket already checked in"
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse(msg, validateResponse{Identity: identity, Result: res}))
}

type checkinRequest struct {
	TicketID  string               `json:"ticketId"`
	EventID   string               `json:"eventId"`
	EventName string               `json:"eventName"`
	Source    models.CheckInSource `json:"source"`
}

// CheckinTicket commits a check-in. A second check-in of the same ticket is
// answered with 409.
func (h *Handler) CheckinTicket(w http.ResponseWriter, r *http.Request) {
	var req checkinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	entry, err := h.Validator.CheckIn(r.Context(), checkin.Request{
		TicketID:  req.TicketID,
		EventID:   req.EventID,
		EventName: req.EventName,
		ScannedBy: auth.UserID(r.Context()),
		Source:    req.Source,
	})
	if err != nil {
		h.writeError(w, "Checkin failed", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Checkin successful", entry))
}

func (h *Handler) ListCheckins(w http.ResponseWriter, r *http.Request) {
	entries, err := h.Validator.List(r.Context())
	if err != nil {
		h.writeError(w, "Failed to list check-ins", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Check-ins", entries))
}

// ExportCheckins downloads the check-in report as a JSON file.
func (h *Handler) ExportCheckins(w http.ResponseWriter, r *http.Request) {
	report, err := h.Validator.Export(r.Context())
	if err != nil {
		h.writeError(w, "Failed to export check-ins", err)
		return
	}

	name := fmt.Sprintf("checkins-%s.json", report.ExportDate.Format("2006-01-02"))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(report)
}

func (h *Handler) ResetCheckins(w http.ResponseWriter, r *http.Request) {
	n, err := h.Validator.Reset(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, "Failed to reset check-ins", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Check-in ledger cleared", map[string]int64{"removed": n}))
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, checkin.ErrAlreadyCheckedIn):
		return http.StatusConflict
	case errors.Is(err, checkin.ErrEmptyTicketID),
		errors.Is(err, qr.ErrMalformedPayload),
		errors.Is(err, qr.ErrMissingRequiredField):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	detail := "internal error"
	switch status {
	case http.StatusInternalServerError:
		h.Logger.Error("HTTP", fmt.Sprintf("%s: %v", message, err))
	case http.StatusConflict:
		detail = checkin.ErrAlreadyCheckedIn.Error()
	default:
		detail = err.Error()
	}
	utils.WriteJSON(w, status, utils.ErrorResponse(message, detail))
}
