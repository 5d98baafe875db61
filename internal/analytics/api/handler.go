package analytics_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"ms-ticket-lifecycle/internal/analytics"
	"ms-ticket-lifecycle/internal/auth"
	"ms-ticket-lifecycle/internal/logger"
	"ms-ticket-lifecycle/internal/utils"
)

// Handler handles analytics HTTP endpoints
type Handler struct {
	Service *analytics.Service
	Logger  *logger.Logger
}

// NewHandler creates a new analytics handler
func NewHandler(service *analytics.Service, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	return &Handler{Service: service, Logger: log}
}

// Routes registers the attendance routes on a chi router
func (h *Handler) Routes(r chi.Router) {
	r.Route("/analytics/attendance", func(r chi.Router) {
		r.Get("/events/{eventID}", h.GetEventAttendance)
		r.Post("/events/batch", h.GetBatchAttendance)
	})
}

// GetEventAttendance handles the attendance report of one event
func (h *Handler) GetEventAttendance(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	userID := auth.UserID(r.Context())
	if userID == "" {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized access", "missing user"))
		return
	}

	if err := h.Service.VerifyOwnership(r.Context(), eventID, userID); err != nil {
		h.fail(w, err, fmt.Sprintf("ownership check for event %s by %s", eventID, userID))
		return
	}

	report, err := h.Service.GetEventAttendance(r.Context(), eventID)
	if err != nil {
		h.fail(w, err, "attendance for event "+eventID)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Attendance retrieved", report))
}

type batchRequest struct {
	EventIDs []string `json:"eventIds"`
}

// GetBatchAttendance handles attendance across several owned events
func (h *Handler) GetBatchAttendance(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	if userID == "" {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Unauthorized access", "missing user"))
		return
	}

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if len(req.EventIDs) == 0 {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", "eventIds is required"))
		return
	}

	batch, err := h.Service.GetBatchAttendance(r.Context(), req.EventIDs, userID)
	if err != nil {
		h.fail(w, err, "batch attendance")
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Attendance retrieved", batch))
}

func (h *Handler) fail(w http.ResponseWriter, err error, what string) {
	switch {
	case errors.Is(err, analytics.ErrBatchTooLarge):
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
	case errors.Is(err, analytics.ErrEventNotFound):
		utils.WriteJSON(w, http.StatusNotFound, utils.ErrorResponse("Event not found", err.Error()))
	case errors.Is(err, analytics.ErrNotEventOwner):
		h.Logger.Warn("ANALYTICS", what+": not the owner")
		utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse("You do not have permission to access these analytics", err.Error()))
	default:
		h.Logger.Error("ANALYTICS", fmt.Sprintf("%s: %v", what, err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Failed to get analytics", "internal error"))
	}
}
