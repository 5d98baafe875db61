package qr

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"ms-ticket-lifecycle/internal/models"
)

const (
	payloadDateLayout = "2006-01-02"
	payloadTimeLayout = "15:04"
)

// Encode builds the QR payload for a ticket of event. The output depends only
// on its inputs, so encoding the same ticket twice yields identical text.
func Encode(ticket models.Ticket, event models.Event) (string, error) {
	const op = "qr.Encode"

	identity := Identity(ticket, event)
	if identity.TicketID == "" || identity.EventName == "" {
		return "", fmt.Errorf("%s: %w", op, ErrMissingRequiredField)
	}

	b, err := json.Marshal(identity)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return string(b), nil
}

// Identity projects a ticket and its event onto the payload fields.
func Identity(ticket models.Ticket, event models.Event) models.TicketIdentity {
	start := event.StartDate.UTC()

	id := models.TicketIdentity{
		TicketID:       ticket.ID,
		TicketNumber:   ticket.TicketNumber,
		EventID:        ticket.EventID,
		EventName:      event.Title,
		EventLocation:  event.Location,
		OrganizerName:  event.OrganizerName,
		OrganizerEmail: event.OrganizerEmail,
		TicketType:     string(ticket.TicketType),
		Price:          ticket.Price.StringFixed(2),
	}
	if !start.IsZero() {
		id.EventDate = start.Format(payloadDateLayout)
		id.EventTime = start.Format(payloadTimeLayout)
	}
	if !ticket.CreatedAt.IsZero() {
		id.GeneratedAt = ticket.CreatedAt.UTC().Format(time.RFC3339)
	}
	return id
}

// Decode parses a structured payload. Text that is not a JSON object is
// ErrMalformedPayload; an object without ticketId or eventName is
// ErrMissingRequiredField. Scalar fields written as numbers by older
// generators are accepted and kept in their textual form.
func Decode(payload string) (*models.TicketIdentity, error) {
	const op = "qr.Decode"

	var fields map[string]interface{}
	if err := json.Unmarshal([]byte(strings.TrimSpace(payload)), &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%s: %w", op, ErrMalformedPayload)
	}

	id := models.TicketIdentity{
		TicketID:       text(fields, "ticketId"),
		TicketNumber:   text(fields, "ticketNumber"),
		EventID:        text(fields, "eventId"),
		EventName:      text(fields, "eventName"),
		EventDate:      text(fields, "eventDate"),
		EventTime:      text(fields, "eventTime"),
		EventLocation:  text(fields, "eventLocation"),
		OrganizerName:  text(fields, "organizerName"),
		OrganizerEmail: text(fields, "organizerEmail"),
		TicketType:     text(fields, "ticketType"),
		Price:          text(fields, "price", "ticketPrice"),
		GeneratedAt:    text(fields, "generatedAt"),
	}
	if id.TicketID == "" {
		return nil, fmt.Errorf("%s: %w: ticketId", op, ErrMissingRequiredField)
	}
	if id.EventName == "" {
		return nil, fmt.Errorf("%s: %w: eventName", op, ErrMissingRequiredField)
	}
	return &id, nil
}

// text returns the first of keys holding a string or number.
func text(fields map[string]interface{}, keys ...string) string {
	for _, k := range keys {
		switch v := fields[k].(type) {
		case string:
			if s := strings.TrimSpace(v); s != "" {
				return s
			}
		case float64:
			return strconv.FormatFloat(v, 'f', -1, 64)
		}
	}
	return ""
}

// IsStructured reports whether text parses as JSON at all. Text that does
// not is eligible for the bare ticket id fallback at check-in.
func IsStructured(text string) bool {
	return json.Valid([]byte(strings.TrimSpace(text)))
}
