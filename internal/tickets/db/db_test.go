package db_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ms-ticket-lifecycle/internal/database/dbtest"
	"ms-ticket-lifecycle/internal/models"
	"ms-ticket-lifecycle/internal/tickets/db"
)

func setupTestDB(t *testing.T) *db.DB {
	return &db.DB{Bun: dbtest.New(t)}
}

func newTicket(eventID, number string, tt models.TicketType, price string) models.Ticket {
	return models.Ticket{
		ID:           uuid.New().String(),
		EventID:      eventID,
		OwnerUserID:  "owner-1",
		TicketNumber: number,
		TicketType:   tt,
		Price:        decimal.RequireFromString(price),
		Status:       models.TicketStatusAvailable,
		QRPayload:    `{"ticketId":"x","eventName":"Expo"}`,
		IsActive:     true,
		CreatedAt:    time.Now().UTC(),
	}
}

func TestCreateAndGetTicket(t *testing.T) {
	ticketDB := setupTestDB(t)
	ctx := context.Background()

	ticket := newTicket("E1", "TKT-20250101120000-1234", models.TicketTypeVIP, "50.00")
	require.NoError(t, ticketDB.CreateTicket(ctx, ticket))

	got, err := ticketDB.GetTicketByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, ticket.TicketNumber, got.TicketNumber)
	assert.Equal(t, models.TicketTypeVIP, got.TicketType)
	assert.True(t, got.Price.Equal(decimal.NewFromInt(50)))
	assert.True(t, got.Consistent())

	_, err = ticketDB.GetTicketByID(ctx, "non-existent")
	assert.ErrorIs(t, err, db.ErrNotFound)
}

func TestCreateTickets_DuplicateNumberRejectsWholeBatch(t *testing.T) {
	ticketDB := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, ticketDB.CreateTicket(ctx, newTicket("E1", "TKT-1", models.TicketTypeStandard, "20")))

	batch := []models.Ticket{
		newTicket("E1", "TKT-2", models.TicketTypeStandard, "20"),
		newTicket("E1", "TKT-1", models.TicketTypeStandard, "20"),
	}
	err := ticketDB.CreateTickets(ctx, batch)
	assert.ErrorIs(t, err, db.ErrConflict)

	_, err = ticketDB.GetTicketByID(ctx, batch[0].ID)
	assert.ErrorIs(t, err, db.ErrNotFound, "no ticket from a rejected batch may persist")
}

func TestGetTicketsByEvent_OrderAndFilter(t *testing.T) {
	ticketDB := setupTestDB(t)
	ctx := context.Background()

	sold := newTicket("E1", "TKT-5", models.TicketTypeStandard, "5")
	inactive := newTicket("E1", "TKT-6", models.TicketTypeStandard, "1")
	inactive.IsActive = false

	require.NoError(t, ticketDB.CreateTickets(ctx, []models.Ticket{
		newTicket("E1", "TKT-1", models.TicketTypeVIP, "100"),
		newTicket("E1", "TKT-2", models.TicketTypeStandard, "20"),
		newTicket("E1", "TKT-3", models.TicketTypeStudent, "10"),
		newTicket("E1", "TKT-4", models.TicketTypeVIP, "20"),
		newTicket("E2", "TKT-7", models.TicketTypeVIP, "1"),
		sold,
		inactive,
	}))
	require.NoError(t, ticketDB.Claim(ctx, sold.ID, "buyer", time.Now().UTC()))

	got, err := ticketDB.GetTicketsByEvent(ctx, "E1", models.TicketFilter{OnlyActive: true, OnlyAvailable: true})
	require.NoError(t, err)

	var numbers []string
	for _, tk := range got {
		numbers = append(numbers, tk.TicketNumber)
		assert.False(t, tk.IsPurchased)
		assert.True(t, tk.IsActive)
	}
	assert.Equal(t, []string{"TKT-3", "TKT-2", "TKT-4", "TKT-1"}, numbers)

	all, err := ticketDB.GetTicketsByEvent(ctx, "E1", models.TicketFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 6)
}

func TestConditionalUpdateStatus(t *testing.T) {
	ticketDB := setupTestDB(t)
	ctx := context.Background()

	ticket := newTicket("E1", "TKT-1", models.TicketTypeStandard, "20")
	require.NoError(t, ticketDB.CreateTicket(ctx, ticket))

	upd := models.StatusUpdate{
		Status:            models.TicketStatusSold,
		IsPurchased:       true,
		PurchasedByUserID: "buyer-1",
		PurchaseDate:      time.Now().UTC(),
	}

	ok, err := ticketDB.ConditionalUpdateStatus(ctx, ticket.ID, models.TicketStatusAvailable, upd)
	require.NoError(t, err)
	assert.True(t, ok)

	upd.PurchasedByUserID = "buyer-2"
	ok, err = ticketDB.ConditionalUpdateStatus(ctx, ticket.ID, models.TicketStatusAvailable, upd)
	require.NoError(t, err)
	assert.False(t, ok, "a sold ticket must not be claimed again")

	got, err := ticketDB.GetTicketByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketStatusSold, got.Status)
	require.NotNil(t, got.PurchasedByUserID)
	assert.Equal(t, "buyer-1", *got.PurchasedByUserID)
	assert.True(t, got.Consistent())
}

// One connection serialises the updates; the losers are refused by the
// status guard in the WHERE clause.
func TestClaim_ConcurrentExactlyOneWins(t *testing.T) {
	ticketDB := setupTestDB(t)
	ctx := context.Background()

	ticket := newTicket("E1", "TKT-1", models.TicketTypeStandard, "20")
	require.NoError(t, ticketDB.CreateTicket(ctx, ticket))

	const n = 16
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		lost int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := ticketDB.Claim(ctx, ticket.ID, fmt.Sprintf("buyer-%d", i), time.Now().UTC())
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
			} else if assert.ErrorIs(t, err, db.ErrClaimLost) {
				lost++
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, n-1, lost)
}

func TestClaim_InactiveTicket(t *testing.T) {
	ticketDB := setupTestDB(t)
	ctx := context.Background()

	ticket := newTicket("E1", "TKT-1", models.TicketTypeStandard, "20")
	require.NoError(t, ticketDB.CreateTicket(ctx, ticket))
	require.NoError(t, ticketDB.DeactivateTicket(ctx, ticket.ID))

	err := ticketDB.Claim(ctx, ticket.ID, "buyer", time.Now().UTC())
	assert.ErrorIs(t, err, db.ErrClaimLost)

	assert.ErrorIs(t, ticketDB.DeactivateTicket(ctx, ticket.ID), db.ErrNotFound)
}

func TestUpdateTicketDetails_OnlyWhileAvailable(t *testing.T) {
	ticketDB := setupTestDB(t)
	ctx := context.Background()

	ticket := newTicket("E1", "TKT-1", models.TicketTypeStandard, "20")
	require.NoError(t, ticketDB.CreateTicket(ctx, ticket))

	require.NoError(t, ticketDB.UpdateTicketDetails(ctx, ticket.ID, models.TicketTypeVIP, decimal.NewFromInt(80)))
	got, err := ticketDB.GetTicketByID(ctx, ticket.ID)
	require.NoError(t, err)
	assert.Equal(t, models.TicketTypeVIP, got.TicketType)

	require.NoError(t, ticketDB.Claim(ctx, ticket.ID, "buyer", time.Now().UTC()))
	err = ticketDB.UpdateTicketDetails(ctx, ticket.ID, models.TicketTypeStudent, decimal.NewFromInt(1))
	assert.ErrorIs(t, err, db.ErrClaimLost)
}

func TestGetTicketsPurchasedBy(t *testing.T) {
	ticketDB := setupTestDB(t)
	ctx := context.Background()

	a := newTicket("E1", "TKT-1", models.TicketTypeStandard, "20")
	b := newTicket("E1", "TKT-2", models.TicketTypeStandard, "20")
	require.NoError(t, ticketDB.CreateTickets(ctx, []models.Ticket{a, b}))
	require.NoError(t, ticketDB.Claim(ctx, a.ID, "buyer-1", time.Now().UTC()))
	require.NoError(t, ticketDB.Claim(ctx, b.ID, "buyer-2", time.Now().UTC()))

	got, err := ticketDB.GetTicketsPurchasedBy(ctx, "buyer-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, a.ID, got[0].ID)
}

func TestSearchTickets(t *testing.T) {
	ticketDB := setupTestDB(t)
	ctx := context.Background()

	sold := newTicket("E1", "TKT-20250101-3333", models.TicketTypeStandard, "20")
	require.NoError(t, ticketDB.CreateTickets(ctx, []models.Ticket{
		newTicket("E1", "TKT-20250101-1111", models.TicketTypeVIP, "20"),
		newTicket("E1", "TKT-20250101-2222", models.TicketTypeStudent, "20"),
		sold,
	}))
	require.NoError(t, ticketDB.Claim(ctx, sold.ID, "buyer", time.Now().UTC()))

	got, err := ticketDB.SearchTickets(ctx, models.TicketFilter{OwnerUserID: "owner-1", OnlyActive: true, NumberContains: "1111"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "TKT-20250101-1111", got[0].TicketNumber)

	got, err = ticketDB.SearchTickets(ctx, models.TicketFilter{OwnerUserID: "owner-1", Query: "student"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, models.TicketTypeStudent, got[0].TicketType)

	got, err = ticketDB.SearchTickets(ctx, models.TicketFilter{OwnerUserID: "owner-1", Query: "SOLD"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, sold.ID, got[0].ID)

	// the query matches number, type and status, not the event id
	got, err = ticketDB.SearchTickets(ctx, models.TicketFilter{OwnerUserID: "owner-1", Query: "E1"})
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = ticketDB.SearchTickets(ctx, models.TicketFilter{OwnerUserID: "someone-else"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestGetEventSummary(t *testing.T) {
	ticketDB := setupTestDB(t)
	ctx := context.Background()

	sold := newTicket("E1", "TKT-3", models.TicketTypeVIP, "100")
	require.NoError(t, ticketDB.CreateTickets(ctx, []models.Ticket{
		newTicket("E1", "TKT-1", models.TicketTypeStandard, "20"),
		newTicket("E1", "TKT-2", models.TicketTypeStandard, "20"),
		sold,
	}))
	require.NoError(t, ticketDB.Claim(ctx, sold.ID, "buyer", time.Now().UTC()))

	summary, err := ticketDB.GetEventSummary(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Total)
	assert.Equal(t, 2, summary.Available)
	assert.Equal(t, 1, summary.Sold)
	assert.Equal(t, 2, summary.ByType[models.TicketTypeStandard])

	total, err := ticketDB.GetTotalTicketsCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
}

func TestEventDB_GetEvent(t *testing.T) {
	ticketDB := setupTestDB(t)
	ctx := context.Background()

	event := models.Event{
		ID:          "E1",
		OwnerUserID: "owner-1",
		Title:       "Expo",
		StartDate:   time.Date(2025, 6, 1, 18, 30, 0, 0, time.UTC),
		EndDate:     time.Date(2025, 6, 1, 22, 0, 0, 0, time.UTC),
	}
	_, err := ticketDB.Bun.NewInsert().Model(&event).Exec(ctx)
	require.NoError(t, err)

	events := &db.EventDB{DB: ticketDB}
	got, err := events.GetEvent(ctx, "E1")
	require.NoError(t, err)
	assert.Equal(t, "Expo", got.Title)

	_, err = events.GetEvent(ctx, "missing")
	assert.ErrorIs(t, err, db.ErrNotFound)
}
