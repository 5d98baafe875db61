package tickets

import "errors"

var (
	ErrInvalidTicketType = errors.New("invalid ticket type")
	ErrInvalidQuantity   = errors.New("invalid quantity")
	ErrInvalidPrice      = errors.New("price must be non-negative")
	ErrEventNotFound     = errors.New("event not found")
	ErrNotFound          = errors.New("ticket not found")
	ErrAlreadyPurchased  = errors.New("ticket already purchased")
	// ErrStorageConflict means the store rejected an issuance batch on a
	// duplicate ticket number, or no fresh number was left this second.
	// Nothing was written; retry with fresh numbers.
	ErrStorageConflict = errors.New("storage conflict")
	ErrNotTicketOwner  = errors.New("not the ticket owner")
	ErrTicketLocked    = errors.New("ticket can no longer be modified")
)
