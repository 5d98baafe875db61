package models

import (
	"time"

	"github.com/uptrace/bun"
)

type CheckInSource string

const (
	CheckInSourceCamera CheckInSource = "camera"
	CheckInSourceURL    CheckInSource = "url"
	CheckInSourceFile   CheckInSource = "file"
	CheckInSourceManual CheckInSource = "manual"
)

// CheckIn is one ledger entry. The ticket id is the primary key, so the
// insert itself is the uniqueness guard.
type CheckIn struct {
	bun.BaseModel `bun:"table:check_ins"`

	TicketID    string        `bun:"ticket_id,pk" json:"ticketId"`
	EventName   string        `bun:"event_name" json:"eventName,omitempty"`
	ScannedBy   string        `bun:"scanned_by" json:"scannedBy,omitempty"`
	Source      CheckInSource `bun:"source,notnull" json:"source"`
	CheckedInAt time.Time     `bun:"checked_in_at,notnull" json:"checkedInAt"`
}

type CheckInReport struct {
	ExportDate     time.Time `json:"exportDate"`
	TotalCheckedIn int       `json:"totalCheckedIn"`
	Tickets        []string  `json:"tickets"`
}
