package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"

	"ms-ticket-lifecycle/internal/database"
	"ms-ticket-lifecycle/internal/models"
)

var (
	ErrNotFound = database.ErrNotFound
	ErrConflict = database.ErrConflict
	// ErrClaimLost means the guarded update matched no row: another writer
	// moved the ticket out of the expected status first.
	ErrClaimLost = errors.New("claim lost")
)

type DB struct {
	Bun *bun.DB
}

// CreateTickets inserts a whole issuance batch in one transaction. A
// duplicate ticket number anywhere in the batch rolls back every row.
func (d *DB) CreateTickets(ctx context.Context, tickets []models.Ticket) error {
	const op = "db.DB.CreateTickets"

	if len(tickets) == 0 {
		return nil
	}

	err := d.Bun.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		_, err := tx.NewInsert().Model(&tickets).Exec(ctx)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, database.Translate(err))
	}
	return nil
}

func (d *DB) CreateTicket(ctx context.Context, ticket models.Ticket) error {
	const op = "db.DB.CreateTicket"

	if _, err := d.Bun.NewInsert().Model(&ticket).Exec(ctx); err != nil {
		return fmt.Errorf("%s: %w", op, database.Translate(err))
	}
	return nil
}

// GetTicketByID returns the ticket whatever its active flag; callers decide
// how inactive rows are reported.
func (d *DB) GetTicketByID(ctx context.Context, id string) (*models.Ticket, error) {
	const op = "db.DB.GetTicketByID"

	var ticket models.Ticket
	err := d.Bun.NewSelect().
		Model(&ticket).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, database.Translate(err))
	}
	return &ticket, nil
}

// GetTicketsByEvent lists an event's tickets ordered by price, then type,
// then ticket number so repeated reads page identically.
func (d *DB) GetTicketsByEvent(ctx context.Context, eventID string, filter models.TicketFilter) ([]models.Ticket, error) {
	const op = "db.DB.GetTicketsByEvent"

	tickets := make([]models.Ticket, 0)
	q := d.Bun.NewSelect().
		Model(&tickets).
		Where("event_id = ?", eventID)
	q = applyFilter(q, filter)

	err := q.Order("price ASC", "ticket_type ASC", "ticket_number ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, database.Translate(err))
	}
	return tickets, nil
}

// SearchTickets is the owner-scoped listing across events.
func (d *DB) SearchTickets(ctx context.Context, filter models.TicketFilter) ([]models.Ticket, error) {
	const op = "db.DB.SearchTickets"

	tickets := make([]models.Ticket, 0)
	q := applyFilter(d.Bun.NewSelect().Model(&tickets), filter)

	err := q.Order("created_at DESC", "ticket_number ASC").Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, database.Translate(err))
	}
	return tickets, nil
}

func applyFilter(q *bun.SelectQuery, filter models.TicketFilter) *bun.SelectQuery {
	if filter.OnlyActive {
		q = q.Where("is_active = ?", true)
	}
	if filter.OnlyAvailable {
		q = q.Where("is_purchased = ?", false).
			Where("status = ?", models.TicketStatusAvailable)
	}
	if filter.OwnerUserID != "" {
		q = q.Where("owner_user_id = ?", filter.OwnerUserID)
	}
	if filter.TicketType != "" {
		q = q.Where("ticket_type = ?", filter.TicketType)
	}
	if filter.NumberContains != "" {
		q = q.Where("ticket_number LIKE ?", "%"+strings.ToUpper(filter.NumberContains)+"%")
	}
	if filter.Query != "" {
		like := "%" + strings.ToLower(filter.Query) + "%"
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("LOWER(ticket_number) LIKE ?", like).
				WhereOr("LOWER(ticket_type) LIKE ?", like).
				WhereOr("LOWER(status) LIKE ?", like)
		})
	}
	return q
}

// GetTicketsPurchasedBy returns the active tickets a user has bought, newest first.
func (d *DB) GetTicketsPurchasedBy(ctx context.Context, userID string) ([]models.Ticket, error) {
	const op = "db.DB.GetTicketsPurchasedBy"

	tickets := make([]models.Ticket, 0)
	err := d.Bun.NewSelect().
		Model(&tickets).
		Where("purchased_by_user_id = ?", userID).
		Where("is_purchased = ?", true).
		Where("is_active = ?", true).
		Order("purchase_date DESC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, database.Translate(err))
	}
	return tickets, nil
}

// ConditionalUpdateStatus writes the purchase fields only if the row is still
// active, unpurchased and in the expected status. The bool reports whether
// this call won the row.
func (d *DB) ConditionalUpdateStatus(ctx context.Context, id string, expected models.TicketStatus, upd models.StatusUpdate) (bool, error) {
	const op = "db.DB.ConditionalUpdateStatus"

	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("status = ?", upd.Status).
		Set("is_purchased = ?", upd.IsPurchased).
		Set("purchased_by_user_id = ?", upd.PurchasedByUserID).
		Set("purchase_date = ?", upd.PurchaseDate).
		Where("id = ?", id).
		Where("status = ?", expected).
		Where("is_purchased = ?", false).
		Where("is_active = ?", true).
		Exec(ctx)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, database.Translate(err))
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n == 1, nil
}

// Claim moves an Available ticket to Sold for buyerID.
func (d *DB) Claim(ctx context.Context, id, buyerID string, at time.Time) error {
	const op = "db.DB.Claim"

	ok, err := d.ConditionalUpdateStatus(ctx, id, models.TicketStatusAvailable, models.StatusUpdate{
		Status:            models.TicketStatusSold,
		IsPurchased:       true,
		PurchasedByUserID: buyerID,
		PurchaseDate:      at,
	})
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s: %w", op, ErrClaimLost)
	}
	return nil
}

// UpdateTicketDetails rewrites type and price while the ticket is still
// Available. It races purchases through the same status guard, so a sale
// that lands first wins and the edit reports ErrClaimLost.
func (d *DB) UpdateTicketDetails(ctx context.Context, id string, ticketType models.TicketType, price decimal.Decimal) error {
	const op = "db.DB.UpdateTicketDetails"

	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("ticket_type = ?", ticketType).
		Set("price = ?", price).
		Where("id = ?", id).
		Where("status = ?", models.TicketStatusAvailable).
		Where("is_active = ?", true).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, database.Translate(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, ErrClaimLost)
	}
	return nil
}

// DeactivateTicket soft-deletes a ticket. The row stays for audit.
func (d *DB) DeactivateTicket(ctx context.Context, id string) error {
	const op = "db.DB.DeactivateTicket"

	res, err := d.Bun.NewUpdate().
		Model((*models.Ticket)(nil)).
		Set("is_active = ?", false).
		Where("id = ?", id).
		Where("is_active = ?", true).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, database.Translate(err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}
	return nil
}
