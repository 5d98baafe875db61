package analytics

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"ms-ticket-lifecycle/internal/database"
	"ms-ticket-lifecycle/internal/models"
)

// DB handles analytics database operations
type DB struct {
	bun *bun.DB
}

// NewDB creates a new analytics DB handler
func NewDB(db *bun.DB) *DB {
	return &DB{bun: db}
}

// GetEventOwner returns the owner of an event, or database.ErrNotFound.
func (db *DB) GetEventOwner(ctx context.Context, eventID string) (string, error) {
	const op = "analytics.DB.GetEventOwner"

	var owner string
	err := db.bun.NewSelect().
		Model((*models.Event)(nil)).
		Column("owner_user_id").
		Where("id = ?", eventID).
		Scan(ctx, &owner)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, database.Translate(err))
	}
	return owner, nil
}

// GetSoldCountByEventID counts active tickets sold for an event
func (db *DB) GetSoldCountByEventID(ctx context.Context, eventID string) (int, error) {
	const op = "analytics.DB.GetSoldCountByEventID"

	count, err := db.bun.NewSelect().
		Model((*models.Ticket)(nil)).
		Where("event_id = ?", eventID).
		Where("is_active = ?", true).
		Where("is_purchased = ?", true).
		Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, database.Translate(err))
	}
	return count, nil
}

// CheckInRow is one ledger entry joined with the ticket it admitted.
type CheckInRow struct {
	CheckedInAt time.Time            `bun:"checked_in_at"`
	Source      models.CheckInSource `bun:"source"`
	TicketType  models.TicketType    `bun:"ticket_type"`
}

// GetCheckInsByEventID returns the event's check-ins, oldest first. Entries
// whose ticket is not in the store (raw-text admissions) are not included.
func (db *DB) GetCheckInsByEventID(ctx context.Context, eventID string) ([]CheckInRow, error) {
	const op = "analytics.DB.GetCheckInsByEventID"

	var rows []CheckInRow
	err := db.bun.NewSelect().
		TableExpr("check_ins AS c").
		Join("JOIN tickets AS t ON t.id = c.ticket_id").
		ColumnExpr("c.checked_in_at, c.source, t.ticket_type").
		Where("t.event_id = ?", eventID).
		OrderExpr("c.checked_in_at ASC").
		Scan(ctx, &rows)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, database.Translate(err))
	}
	return rows, nil
}
