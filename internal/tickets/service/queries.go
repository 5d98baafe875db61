package tickets

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"ms-ticket-lifecycle/internal/database"
	"ms-ticket-lifecycle/internal/models"
	ticketdb "ms-ticket-lifecycle/internal/tickets/db"
)

// AvailableForEvent lists tickets still on sale for an event, cheapest first
// and then by type. Payloads are stripped: a code must not be usable before
// it is bought.
func (s *TicketService) AvailableForEvent(ctx context.Context, eventID string) ([]models.Ticket, error) {
	const op = "tickets.TicketService.AvailableForEvent"

	found, err := s.DB.GetTicketsByEvent(ctx, eventID, models.TicketFilter{
		OnlyActive:    true,
		OnlyAvailable: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	out := make([]models.Ticket, 0, len(found))
	for _, t := range found {
		if !t.IsActive || t.IsPurchased || t.Status != models.TicketStatusAvailable {
			continue
		}
		out = append(out, t.Redacted())
	}
	return out, nil
}

// GetTicket returns an active ticket. The QR payload is only included for the
// ticket's owner or its buyer.
func (s *TicketService) GetTicket(ctx context.Context, ticketID, requesterID string) (*models.Ticket, error) {
	const op = "tickets.TicketService.GetTicket"

	ticket, err := s.activeTicket(ctx, ticketID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !CanSeePayload(ticket, requesterID) {
		redacted := ticket.Redacted()
		ticket = &redacted
	}
	return ticket, nil
}

// CanSeePayload reports whether userID may see the ticket's QR payload.
func CanSeePayload(t *models.Ticket, userID string) bool {
	if userID == "" {
		return false
	}
	if t.OwnerUserID == userID {
		return true
	}
	return t.IsPurchased && t.PurchasedByUserID != nil && *t.PurchasedByUserID == userID
}

// PurchasedBy lists a buyer's tickets with their payloads.
func (s *TicketService) PurchasedBy(ctx context.Context, userID string) ([]models.Ticket, error) {
	const op = "tickets.TicketService.PurchasedBy"

	found, err := s.DB.GetTicketsPurchasedBy(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return found, nil
}

// SearchTickets lists the owner's active tickets narrowed by filter.
func (s *TicketService) SearchTickets(ctx context.Context, ownerUserID string, filter models.TicketFilter) ([]models.Ticket, error) {
	const op = "tickets.TicketService.SearchTickets"

	if filter.TicketType != "" && !filter.TicketType.Valid() {
		return nil, fmt.Errorf("%s: %w: %q", op, ErrInvalidTicketType, filter.TicketType)
	}
	filter.OwnerUserID = ownerUserID
	filter.OnlyActive = true

	found, err := s.DB.SearchTickets(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return found, nil
}

// UpdateTicket changes type and price of a ticket that has not been sold.
func (s *TicketService) UpdateTicket(ctx context.Context, ticketID, ownerUserID string, ticketType models.TicketType, price decimal.Decimal) (*models.Ticket, error) {
	const op = "tickets.TicketService.UpdateTicket"

	if !ticketType.Valid() {
		return nil, fmt.Errorf("%s: %w: %q", op, ErrInvalidTicketType, ticketType)
	}
	if price.IsNegative() {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidPrice)
	}

	ticket, err := s.ownedTicket(ctx, ticketID, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if ticket.Status != models.TicketStatusAvailable {
		return nil, fmt.Errorf("%s: %w", op, ErrTicketLocked)
	}

	price = price.Round(2)
	if err := s.DB.UpdateTicketDetails(ctx, ticketID, ticketType, price); err != nil {
		if errors.Is(err, database.ErrNotFound) || errors.Is(err, ticketdb.ErrClaimLost) {
			return nil, fmt.Errorf("%s: %w", op, ErrTicketLocked)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ticket.TicketType = ticketType
	ticket.Price = price
	s.Logger.LogTicket("UPDATE", ticketID, fmt.Sprintf("type=%s price=%s", ticketType, price.StringFixed(2)))
	return ticket, nil
}

// DeactivateTicket soft-deletes a ticket. Sold tickets may be deactivated
// too; the row is kept for audit.
func (s *TicketService) DeactivateTicket(ctx context.Context, ticketID, ownerUserID string) error {
	const op = "tickets.TicketService.DeactivateTicket"

	ticket, err := s.ownedTicket(ctx, ticketID, ownerUserID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := s.DB.DeactivateTicket(ctx, ticketID); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	s.Logger.LogTicket("DEACTIVATE", ticketID, "by "+ownerUserID)
	s.publish(ctx, models.LifecycleEvent{
		Type:       models.LifecycleTicketDeactivated,
		TicketID:   ticket.ID,
		EventID:    ticket.EventID,
		ActorID:    ownerUserID,
		TicketType: ticket.TicketType,
	})
	return nil
}

func (s *TicketService) ownedTicket(ctx context.Context, ticketID, ownerUserID string) (*models.Ticket, error) {
	ticket, err := s.activeTicket(ctx, ticketID)
	if err != nil {
		return nil, err
	}
	if ticket.OwnerUserID != ownerUserID {
		return nil, ErrNotTicketOwner
	}
	return ticket, nil
}
