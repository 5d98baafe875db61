package ticket_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"ms-ticket-lifecycle/internal/auth"
	"ms-ticket-lifecycle/internal/logger"
	"ms-ticket-lifecycle/internal/models"
	"ms-ticket-lifecycle/internal/tickets/qr"
	tickets "ms-ticket-lifecycle/internal/tickets/service"
	"ms-ticket-lifecycle/internal/utils"
)

type Handler struct {
	TicketService *tickets.TicketService
	Renderer      qr.Renderer
	RenderOptions qr.RenderOptions
	// EncodeURL is the external QR image service; empty hides image URLs.
	EncodeURL   string
	MaxAttempts int
	Logger      *logger.Logger
}

func NewHandler(svc *tickets.TicketService, opts qr.RenderOptions, encodeURL string, maxAttempts int, log *logger.Logger) *Handler {
	if log == nil {
		log = logger.Discard()
	}
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Handler{
		TicketService: svc,
		RenderOptions: opts,
		EncodeURL:     encodeURL,
		MaxAttempts:   maxAttempts,
		Logger:        log,
	}
}

// Routes registers the ticket endpoints. Callers mount it behind auth.Middleware.
func (h *Handler) Routes(r chi.Router) {
	r.Route("/events/{eventID}/tickets", func(r chi.Router) {
		r.Post("/", h.IssueTickets)
		r.Get("/", h.ListAvailable)
		r.Get("/summary", h.EventSummary)
	})

	r.Route("/tickets", func(r chi.Router) {
		r.Get("/count", h.GetTotalTicketsCount)
		r.Get("/search", h.SearchTickets)
		r.Get("/purchased", h.ListPurchased)
		r.Get("/{ticketID}", h.ViewTicket)
		r.Put("/{ticketID}", h.UpdateTicket)
		r.Delete("/{ticketID}", h.DeactivateTicket)
		r.Post("/{ticketID}/purchase", h.PurchaseTicket)
		r.Get("/{ticketID}/qr", h.TicketQR)
		r.Get("/{ticketID}/qr.png", h.TicketQRImage)
	})
}

type issueRequest struct {
	Tickets []models.IssueLine `json:"tickets"`
}

func (h *Handler) IssueTickets(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventID")
	userID := auth.UserID(r.Context())

	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	issued, err := h.TicketService.IssueWithRetry(r.Context(), eventID, userID, req.Tickets, h.MaxAttempts)
	if err != nil {
		h.writeError(w, "Failed to issue tickets", err)
		return
	}
	utils.WriteJSON(w, http.StatusCreated, utils.SuccessResponse(fmt.Sprintf("%d tickets issued", len(issued)), issued))
}

func (h *Handler) ListAvailable(w http.ResponseWriter, r *http.Request) {
	available, err := h.TicketService.AvailableForEvent(r.Context(), chi.URLParam(r, "eventID"))
	if err != nil {
		h.writeError(w, "Failed to fetch tickets", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Available tickets", available))
}

func (h *Handler) EventSummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.TicketService.EventSummary(r.Context(), chi.URLParam(r, "eventID"), auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, "Failed to summarize tickets", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket summary", summary))
}

func (h *Handler) SearchTickets(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := models.TicketFilter{
		NumberContains: q.Get("number"),
		TicketType:     models.TicketType(q.Get("type")),
		Query:          q.Get("q"),
	}

	found, err := h.TicketService.SearchTickets(r.Context(), auth.UserID(r.Context()), filter)
	if err != nil {
		h.writeError(w, "Failed to search tickets", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Tickets", found))
}

func (h *Handler) ListPurchased(w http.ResponseWriter, r *http.Request) {
	owned, err := h.TicketService.PurchasedBy(r.Context(), auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, "Failed to fetch tickets", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Purchased tickets", owned))
}

func (h *Handler) ViewTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.TicketService.GetTicket(r.Context(), chi.URLParam(r, "ticketID"), auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, "Ticket not found", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket", ticket))
}

type updateRequest struct {
	TicketType models.TicketType `json:"ticketType"`
	Price      decimal.Decimal   `json:"price"`
}

func (h *Handler) UpdateTicket(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	updated, err := h.TicketService.UpdateTicket(r.Context(), chi.URLParam(r, "ticketID"), auth.UserID(r.Context()), req.TicketType, req.Price)
	if err != nil {
		h.writeError(w, "Failed to update ticket", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket updated successfully", updated))
}

func (h *Handler) DeactivateTicket(w http.ResponseWriter, r *http.Request) {
	if err := h.TicketService.DeactivateTicket(r.Context(), chi.URLParam(r, "ticketID"), auth.UserID(r.Context())); err != nil {
		h.writeError(w, "Failed to deactivate ticket", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) PurchaseTicket(w http.ResponseWriter, r *http.Request) {
	ticket, err := h.TicketService.Purchase(r.Context(), chi.URLParam(r, "ticketID"), auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, "Purchase failed", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket purchased", ticket))
}

type qrResponse struct {
	TicketID string `json:"ticketId"`
	Payload  string `json:"payload"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// TicketQR returns the payload and the external image URL for it.
func (h *Handler) TicketQR(w http.ResponseWriter, r *http.Request) {
	ticket, ok := h.payloadTicket(w, r)
	if !ok {
		return
	}

	resp := qrResponse{TicketID: ticket.ID, Payload: ticket.QRPayload}
	if h.EncodeURL != "" {
		resp.ImageURL = qr.BuildEncodeURL(h.EncodeURL, ticket.QRPayload, h.RenderOptions)
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket QR", resp))
}

// TicketQRImage renders the code locally as PNG.
func (h *Handler) TicketQRImage(w http.ResponseWriter, r *http.Request) {
	ticket, ok := h.payloadTicket(w, r)
	if !ok {
		return
	}

	img, err := h.Renderer.PNG(ticket.QRPayload, h.RenderOptions)
	if err != nil {
		h.writeError(w, "Failed to render QR code", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	w.Write(img)
}

func (h *Handler) payloadTicket(w http.ResponseWriter, r *http.Request) (*models.Ticket, bool) {
	ticket, err := h.TicketService.GetTicket(r.Context(), chi.URLParam(r, "ticketID"), auth.UserID(r.Context()))
	if err != nil {
		h.writeError(w, "Ticket not found", err)
		return nil, false
	}
	if ticket.QRPayload == "" {
		h.writeError(w, "QR code unavailable", tickets.ErrNotTicketOwner)
		return nil, false
	}
	return ticket, true
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, tickets.ErrAlreadyPurchased),
		errors.Is(err, tickets.ErrStorageConflict),
		errors.Is(err, tickets.ErrTicketLocked):
		return http.StatusConflict
	case errors.Is(err, tickets.ErrNotFound),
		errors.Is(err, tickets.ErrEventNotFound):
		return http.StatusNotFound
	case errors.Is(err, tickets.ErrInvalidTicketType),
		errors.Is(err, tickets.ErrInvalidQuantity),
		errors.Is(err, tickets.ErrInvalidPrice):
		return http.StatusBadRequest
	case errors.Is(err, tickets.ErrNotTicketOwner):
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.Error("HTTP", fmt.Sprintf("%s: %v", message, err))
	}
	utils.WriteJSON(w, status, utils.ErrorResponse(message, publicError(err)))
}

var publicErrors = []error{
	tickets.ErrAlreadyPurchased,
	tickets.ErrStorageConflict,
	tickets.ErrTicketLocked,
	tickets.ErrNotFound,
	tickets.ErrEventNotFound,
	tickets.ErrInvalidTicketType,
	tickets.ErrInvalidQuantity,
	tickets.ErrInvalidPrice,
	tickets.ErrNotTicketOwner,
}

// publicError reports the domain error by name and hides everything else.
func publicError(err error) string {
	for _, known := range publicErrors {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return "internal error"
}
