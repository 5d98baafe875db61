package tickets

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"ms-ticket-lifecycle/internal/logger"
	"ms-ticket-lifecycle/internal/models"
)

type TicketDBLayer interface {
	CreateTickets(ctx context.Context, tickets []models.Ticket) error
	GetTicketByID(ctx context.Context, id string) (*models.Ticket, error)
	GetTicketsByEvent(ctx context.Context, eventID string, filter models.TicketFilter) ([]models.Ticket, error)
	SearchTickets(ctx context.Context, filter models.TicketFilter) ([]models.Ticket, error)
	GetTicketsPurchasedBy(ctx context.Context, userID string) ([]models.Ticket, error)
	Claim(ctx context.Context, id, buyerID string, at time.Time) error
	UpdateTicketDetails(ctx context.Context, id string, ticketType models.TicketType, price decimal.Decimal) error
	DeactivateTicket(ctx context.Context, id string) error
	GetEventSummary(ctx context.Context, eventID string) (*models.TicketSummary, error)
	GetTotalTicketsCount(ctx context.Context) (int, error)
}

// EventDirectory reads events owned by the event CRUD service.
type EventDirectory interface {
	GetEvent(ctx context.Context, eventID string) (*models.Event, error)
}

// EventPublisher receives lifecycle events after each committed change.
type EventPublisher interface {
	Publish(ctx context.Context, evt models.LifecycleEvent) error
}

type TicketService struct {
	DB        TicketDBLayer
	Events    EventDirectory
	Publisher EventPublisher
	Logger    *logger.Logger
	Now       func() time.Time
	// MaxQuantity caps one issuance request; zero means DefaultMaxIssueQuantity.
	MaxQuantity int
}

func NewTicketService(db TicketDBLayer, events EventDirectory, publisher EventPublisher, log *logger.Logger) *TicketService {
	if log == nil {
		log = logger.Discard()
	}
	return &TicketService{
		DB:        db,
		Events:    events,
		Publisher: publisher,
		Logger:    log,
		Now:       time.Now,
	}
}

func (s *TicketService) maxQuantity() int {
	if s.MaxQuantity <= 0 {
		return DefaultMaxIssueQuantity
	}
	return s.MaxQuantity
}

func (s *TicketService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// publish is best effort; failures are logged and never undo the write.
func (s *TicketService) publish(ctx context.Context, evt models.LifecycleEvent) {
	if s.Publisher == nil {
		return
	}
	if evt.OccurredAt.IsZero() {
		evt.OccurredAt = s.now()
	}
	if err := s.Publisher.Publish(ctx, evt); err != nil {
		s.Logger.Warn("KAFKA", "Failed to publish "+string(evt.Type)+" for "+evt.TicketID+": "+err.Error())
	}
}
