package tickets

import (
	"context"
	"errors"
	"fmt"

	"ms-ticket-lifecycle/internal/database"
	"ms-ticket-lifecycle/internal/models"
	"ms-ticket-lifecycle/internal/monitoring"
	ticketdb "ms-ticket-lifecycle/internal/tickets/db"
)

// Purchase claims an Available ticket for buyerUserID. The claim is a single
// conditional update on status, so of any number of concurrent calls for one
// ticket exactly one succeeds and the rest get ErrAlreadyPurchased.
func (s *TicketService) Purchase(ctx context.Context, ticketID, buyerUserID string) (*models.Ticket, error) {
	const op = "tickets.TicketService.Purchase"

	ticket, err := s.activeTicket(ctx, ticketID)
	if err != nil {
		s.trackPurchase(err)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if ticket.IsPurchased || ticket.Status != models.TicketStatusAvailable {
		monitoring.TrackPurchase("already_purchased")
		return nil, fmt.Errorf("%s: %w", op, ErrAlreadyPurchased)
	}

	now := s.now()
	if err := s.DB.Claim(ctx, ticketID, buyerUserID, now); err != nil {
		if !errors.Is(err, ticketdb.ErrClaimLost) {
			monitoring.TrackPurchase("error")
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		// Lost the row between the read and the write. A concurrent
		// deactivation reads as NotFound, anything else as a sale.
		_, err := s.activeTicket(ctx, ticketID)
		if !errors.Is(err, ErrNotFound) {
			err = ErrAlreadyPurchased
		}
		s.trackPurchase(err)
		s.Logger.Info("PURCHASE", fmt.Sprintf("Lost claim on ticket %s for %s", ticketID, buyerUserID))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ticket.Status = models.TicketStatusSold
	ticket.IsPurchased = true
	ticket.PurchasedByUserID = &buyerUserID
	ticket.PurchaseDate = &now

	monitoring.TrackPurchase("success")
	s.Logger.LogTicket("PURCHASE", ticketID, "sold to "+buyerUserID)
	s.publish(ctx, models.LifecycleEvent{
		Type:       models.LifecycleTicketPurchased,
		TicketID:   ticket.ID,
		EventID:    ticket.EventID,
		ActorID:    buyerUserID,
		TicketType: ticket.TicketType,
		OccurredAt: now,
	})

	return ticket, nil
}

func (s *TicketService) trackPurchase(err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		monitoring.TrackPurchase("not_found")
	case errors.Is(err, ErrAlreadyPurchased):
		monitoring.TrackPurchase("already_purchased")
	default:
		monitoring.TrackPurchase("error")
	}
}

// activeTicket loads a ticket, reporting missing and deactivated rows alike
// as ErrNotFound.
func (s *TicketService) activeTicket(ctx context.Context, ticketID string) (*models.Ticket, error) {
	ticket, err := s.DB.GetTicketByID(ctx, ticketID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !ticket.IsActive {
		return nil, ErrNotFound
	}
	return ticket, nil
}
