package ticket_api

import (
	"net/http"

	"ms-ticket-lifecycle/internal/utils"
)

// TicketCountResponse is the response format for the GetTotalTicketsCount endpoint
type TicketCountResponse struct {
	TotalCount int `json:"total_count"`
}

// GetTotalTicketsCount returns the number of active tickets across all events.
func (h *Handler) GetTotalTicketsCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.TicketService.TotalTickets(r.Context())
	if err != nil {
		h.writeError(w, "Error retrieving ticket count", err)
		return
	}
	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Ticket count", TicketCountResponse{TotalCount: count}))
}
