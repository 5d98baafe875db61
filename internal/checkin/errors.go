package checkin

import "errors"

var (
	// ErrAlreadyCheckedIn is an ordinary negative outcome: the ticket was
	// admitted before.
	ErrAlreadyCheckedIn = errors.New("ticket already checked in")
	ErrEmptyTicketID    = errors.New("ticket id is empty")
)
