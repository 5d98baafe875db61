package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Event is owned by the event CRUD service; this module only reads it.
type Event struct {
	bun.BaseModel `bun:"table:events"`

	ID             string    `bun:"id,pk"`
	OwnerUserID    string    `bun:"owner_user_id,notnull"`
	Title          string    `bun:"title,notnull"`
	OrganizerName  string    `bun:"organizer_name"`
	OrganizerEmail string    `bun:"organizer_email"`
	Location       string    `bun:"location"`
	StartDate      time.Time `bun:"start_date,notnull"`
	EndDate        time.Time `bun:"end_date,notnull"`
}
