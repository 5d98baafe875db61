package db

import (
	"context"
	"fmt"

	"ms-ticket-lifecycle/internal/database"
	"ms-ticket-lifecycle/internal/models"
)

type typeStatusCount struct {
	TicketType models.TicketType   `bun:"ticket_type"`
	Status     models.TicketStatus `bun:"status"`
	Count      int                 `bun:"count"`
}

// GetTotalTicketsCount returns the number of active tickets across all events.
func (d *DB) GetTotalTicketsCount(ctx context.Context) (int, error) {
	const op = "db.DB.GetTotalTicketsCount"

	count, err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("is_active = ?", true).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, database.Translate(err))
	}
	return count, nil
}

// GetEventSummary counts an event's active tickets by type and status.
func (d *DB) GetEventSummary(ctx context.Context, eventID string) (*models.TicketSummary, error) {
	const op = "db.DB.GetEventSummary"

	var rows []typeStatusCount
	err := d.Bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Column("ticket_type", "status").
		ColumnExpr("COUNT(*) AS count").
		Where("event_id = ?", eventID).
		Where("is_active = ?", true).
		Group("ticket_type", "status").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, database.Translate(err))
	}

	summary := &models.TicketSummary{
		EventID: eventID,
		ByType:  make(map[models.TicketType]int),
	}
	for _, r := range rows {
		summary.Total += r.Count
		summary.ByType[r.TicketType] += r.Count
		switch r.Status {
		case models.TicketStatusAvailable:
			summary.Available += r.Count
		case models.TicketStatusSold:
			summary.Sold += r.Count
		}
	}
	return summary, nil
}
