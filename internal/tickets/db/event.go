package db

import (
	"context"
	"fmt"

	"ms-ticket-lifecycle/internal/database"
	"ms-ticket-lifecycle/internal/models"
)

// EventDB reads the events table owned by the event CRUD service.
type EventDB struct {
	DB *DB
}

func (e *EventDB) GetEvent(ctx context.Context, eventID string) (*models.Event, error) {
	const op = "db.EventDB.GetEvent"

	var event models.Event
	err := e.DB.Bun.NewSelect().
		Model(&event).
		Where("id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, database.Translate(err))
	}
	return &event, nil
}
