package checkin

import (
	"context"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	"ms-ticket-lifecycle/internal/database"
	"ms-ticket-lifecycle/internal/models"
)

// Ledger is the durable record of admitted tickets. Its primary key on
// ticket_id makes Insert the single atomic commit point for a check-in.
type Ledger struct {
	Bun *bun.DB
}

func NewLedger(db *bun.DB) *Ledger {
	return &Ledger{Bun: db}
}

// Insert records a check-in; a second insert for the same ticket fails with
// ErrAlreadyCheckedIn.
func (l *Ledger) Insert(ctx context.Context, entry models.CheckIn) error {
	const op = "checkin.Ledger.Insert"

	if _, err := l.Bun.NewInsert().Model(&entry).Exec(ctx); err != nil {
		err = database.Translate(err)
		if errors.Is(err, database.ErrConflict) {
			return fmt.Errorf("%s: %w", op, ErrAlreadyCheckedIn)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

func (l *Ledger) Contains(ctx context.Context, ticketID string) (bool, error) {
	const op = "checkin.Ledger.Contains"

	ok, err := l.Bun.NewSelect().
		Model((*models.CheckIn)(nil)).
		Where("ticket_id = ?", ticketID).
		Exists(ctx)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return ok, nil
}

// List returns every entry, oldest first.
func (l *Ledger) List(ctx context.Context) ([]models.CheckIn, error) {
	const op = "checkin.Ledger.List"

	entries := make([]models.CheckIn, 0)
	err := l.Bun.NewSelect().
		Model(&entries).
		Order("checked_in_at ASC", "ticket_id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return entries, nil
}

// Reset deletes every entry and reports how many were removed. It is the
// only way entries leave the ledger.
func (l *Ledger) Reset(ctx context.Context) (int64, error) {
	const op = "checkin.Ledger.Reset"

	res, err := l.Bun.NewDelete().
		Model((*models.CheckIn)(nil)).
		Where("1 = 1").
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
