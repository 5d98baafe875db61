package models

// TicketIdentity is the content carried inside a ticket's QR code.
// TicketID and EventName are required; everything else is descriptive.
type TicketIdentity struct {
	TicketID       string `json:"ticketId"`
	TicketNumber   string `json:"ticketNumber,omitempty"`
	EventID        string `json:"eventId,omitempty"`
	EventName      string `json:"eventName"`
	EventDate      string `json:"eventDate,omitempty"`
	EventTime      string `json:"eventTime,omitempty"`
	EventLocation  string `json:"eventLocation,omitempty"`
	OrganizerName  string `json:"organizerName,omitempty"`
	OrganizerEmail string `json:"organizerEmail,omitempty"`
	TicketType     string `json:"ticketType,omitempty"`
	Price          string `json:"price,omitempty"`
	GeneratedAt    string `json:"generatedAt,omitempty"`

	// Raw is set when the scanned text was not structured data and the
	// whole string is being used as a bare ticket id.
	Raw bool `json:"-"`
}
