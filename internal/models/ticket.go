package models

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

type TicketType string

const (
	TicketTypeVIP      TicketType = "VIP"
	TicketTypeStandard TicketType = "Standard"
	TicketTypeStudent  TicketType = "Student"
)

// TicketTypes is the closed set accepted at creation and update.
var TicketTypes = []TicketType{TicketTypeVIP, TicketTypeStandard, TicketTypeStudent}

func (t TicketType) Valid() bool {
	for _, known := range TicketTypes {
		if t == known {
			return true
		}
	}
	return false
}

type TicketStatus string

const (
	TicketStatusAvailable TicketStatus = "Available"
	TicketStatusSold      TicketStatus = "Sold"
)

type Ticket struct {
	bun.BaseModel `bun:"table:tickets"`

	ID                string          `bun:"id,pk" json:"id"`
	EventID           string          `bun:"event_id,notnull" json:"eventId"`
	OwnerUserID       string          `bun:"owner_user_id,notnull" json:"ownerUserId"`
	TicketNumber      string          `bun:"ticket_number,notnull,unique" json:"ticketNumber"`
	TicketType        TicketType      `bun:"ticket_type,notnull" json:"ticketType"`
	Price             decimal.Decimal `bun:"price,type:decimal(12,2),notnull" json:"price"`
	Status            TicketStatus    `bun:"status,notnull" json:"status"`
	IsPurchased       bool            `bun:"is_purchased,notnull" json:"isPurchased"`
	PurchasedByUserID *string         `bun:"purchased_by_user_id" json:"purchasedByUserId,omitempty"`
	PurchaseDate      *time.Time      `bun:"purchase_date" json:"purchaseDate,omitempty"`
	QRPayload         string          `bun:"qr_payload,notnull" json:"qrPayload,omitempty"`
	IsActive          bool            `bun:"is_active,notnull" json:"isActive"`
	CreatedAt         time.Time       `bun:"created_at,notnull" json:"createdAt"`
}

// Consistent reports whether the purchase fields agree with each other:
// Sold, IsPurchased and the buyer/date pair all move together.
func (t *Ticket) Consistent() bool {
	sold := t.Status == TicketStatusSold
	stamped := t.PurchasedByUserID != nil && t.PurchaseDate != nil
	return sold == t.IsPurchased && t.IsPurchased == stamped
}

// Redacted returns a copy without the QR payload, for viewers who have not bought the ticket.
func (t Ticket) Redacted() Ticket {
	t.QRPayload = ""
	return t
}

// TicketFilter narrows GetTicketsByEvent and SearchTickets.
type TicketFilter struct {
	OnlyActive     bool
	OnlyAvailable  bool
	OwnerUserID    string
	TicketType     TicketType
	NumberContains string
	Query          string
}

// IssueLine is one {ticketType, price, quantity} entry of an issuance request.
type IssueLine struct {
	TicketType TicketType      `json:"ticketType"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
}

// StatusUpdate carries the fields a purchase claim writes.
type StatusUpdate struct {
	Status            TicketStatus
	IsPurchased       bool
	PurchasedByUserID string
	PurchaseDate      time.Time
}

// TicketSummary counts an event's active tickets.
type TicketSummary struct {
	EventID   string             `json:"eventId"`
	Total     int                `json:"total"`
	Available int                `json:"available"`
	Sold      int                `json:"sold"`
	ByType    map[TicketType]int `json:"byType"`
}
