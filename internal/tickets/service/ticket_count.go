package tickets

import (
	"context"
	"fmt"

	"ms-ticket-lifecycle/internal/models"
)

// EventSummary counts the event's active tickets by status and type. Only
// the event owner may read it.
func (s *TicketService) EventSummary(ctx context.Context, eventID, ownerUserID string) (*models.TicketSummary, error) {
	const op = "tickets.TicketService.EventSummary"

	if _, err := s.ownedEvent(ctx, eventID, ownerUserID); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	summary, err := s.DB.GetEventSummary(ctx, eventID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return summary, nil
}

// TotalTickets counts active tickets across all events.
func (s *TicketService) TotalTickets(ctx context.Context) (int, error) {
	count, err := s.DB.GetTotalTicketsCount(ctx)
	if err != nil {
		return 0, fmt.Errorf("tickets.TicketService.TotalTickets: %w", err)
	}
	return count, nil
}
