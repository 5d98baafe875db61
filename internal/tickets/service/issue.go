package tickets

import (
	"context"
	"errors"
	"fmt"

	"ms-ticket-lifecycle/internal/database"
	"ms-ticket-lifecycle/internal/models"
	"ms-ticket-lifecycle/internal/monitoring"
	"ms-ticket-lifecycle/internal/tickets/qr"
	"ms-ticket-lifecycle/internal/utils"
)

// DefaultMaxIssueQuantity caps the tickets one issuance request may create.
// Numbers share a 9000-wide suffix space per second, so the cap stays well
// below it.
const DefaultMaxIssueQuantity = 1000

// ValidateIssueLines checks every request line before anything is generated.
// Each quantity must be at least 1 and their sum at most maxTotal.
func ValidateIssueLines(lines []models.IssueLine, maxTotal int) error {
	if len(lines) == 0 {
		return ErrInvalidQuantity
	}
	total := 0
	for i, line := range lines {
		if !line.TicketType.Valid() {
			return fmt.Errorf("line %d: %w: %q", i, ErrInvalidTicketType, line.TicketType)
		}
		if line.Quantity < 1 {
			return fmt.Errorf("line %d: %w", i, ErrInvalidQuantity)
		}
		if line.Price.IsNegative() {
			return fmt.Errorf("line %d: %w", i, ErrInvalidPrice)
		}
		total += line.Quantity
		if total > maxTotal {
			return fmt.Errorf("%w: more than %d tickets in one request", ErrInvalidQuantity, maxTotal)
		}
	}
	return nil
}

// Issue creates one ticket per unit requested, each with its own number and
// QR payload, and stores the whole batch atomically. Either every ticket is
// persisted or none is.
func (s *TicketService) Issue(ctx context.Context, eventID, ownerUserID string, lines []models.IssueLine) ([]models.Ticket, error) {
	const op = "tickets.TicketService.Issue"

	if err := ValidateIssueLines(lines, s.maxQuantity()); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	event, err := s.ownedEvent(ctx, eventID, ownerUserID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	now := s.now()
	numbers := utils.NewTicketNumberBatch(s.now)

	var batch []models.Ticket
	for _, line := range lines {
		for i := 0; i < line.Quantity; i++ {
			number, err := numbers.Next()
			if err != nil {
				if errors.Is(err, utils.ErrNumberSpaceExhausted) {
					s.Logger.Warn("ISSUE", fmt.Sprintf("Ticket numbers exhausted for event %s: %v", eventID, err))
					return nil, fmt.Errorf("%s: %w", op, ErrStorageConflict)
				}
				return nil, fmt.Errorf("%s: %w", op, err)
			}

			ticket := models.Ticket{
				ID:           utils.GenerateTicketID(),
				EventID:      event.ID,
				OwnerUserID:  ownerUserID,
				TicketNumber: number,
				TicketType:   line.TicketType,
				Price:        line.Price.Round(2),
				Status:       models.TicketStatusAvailable,
				IsPurchased:  false,
				IsActive:     true,
				CreatedAt:    now,
			}
			if ticket.QRPayload, err = qr.Encode(ticket, *event); err != nil {
				return nil, fmt.Errorf("%s: %w", op, err)
			}
			batch = append(batch, ticket)
		}
	}

	if err := s.DB.CreateTickets(ctx, batch); err != nil {
		if errors.Is(err, database.ErrConflict) {
			s.Logger.Warn("ISSUE", fmt.Sprintf("Ticket number collision for event %s, batch of %d rejected", eventID, len(batch)))
			return nil, fmt.Errorf("%s: %w", op, ErrStorageConflict)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	for _, line := range lines {
		monitoring.TrackIssued(string(line.TicketType), line.Quantity)
	}
	s.Logger.Info("ISSUE", fmt.Sprintf("Issued %d tickets for event %s", len(batch), eventID))
	for _, t := range batch {
		s.publish(ctx, models.LifecycleEvent{
			Type:       models.LifecycleTicketIssued,
			TicketID:   t.ID,
			EventID:    t.EventID,
			ActorID:    ownerUserID,
			TicketType: t.TicketType,
			OccurredAt: now,
		})
	}

	return batch, nil
}

// IssueWithRetry regenerates and resubmits the batch while the store keeps
// reporting ticket number collisions, up to attempts tries.
func (s *TicketService) IssueWithRetry(ctx context.Context, eventID, ownerUserID string, lines []models.IssueLine, attempts int) ([]models.Ticket, error) {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 0; i < attempts; i++ {
		var batch []models.Ticket
		batch, err = s.Issue(ctx, eventID, ownerUserID, lines)
		if !errors.Is(err, ErrStorageConflict) {
			return batch, err
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}
	return nil, err
}

// ownedEvent loads an event, reporting events of other owners as missing.
func (s *TicketService) ownedEvent(ctx context.Context, eventID, ownerUserID string) (*models.Event, error) {
	event, err := s.Events.GetEvent(ctx, eventID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}
	if event.OwnerUserID != ownerUserID {
		return nil, ErrEventNotFound
	}
	return event, nil
}
