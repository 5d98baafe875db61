package checkin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ms-ticket-lifecycle/internal/logger"
	"ms-ticket-lifecycle/internal/models"
	"ms-ticket-lifecycle/internal/monitoring"
	"ms-ticket-lifecycle/internal/tickets/qr"
)

type Reason string

const ReasonAlreadyCheckedIn Reason = "AlreadyCheckedIn"

// UnknownEventName labels bare ticket ids read from unstructured codes.
const UnknownEventName = "Unknown Event"

type Result struct {
	OK       bool   `json:"ok"`
	TicketID string `json:"ticketId"`
	Reason   Reason `json:"reason,omitempty"`
}

// Outcome is broadcast to observers after every validation or check-in.
type Outcome struct {
	Stage     string                 `json:"stage"` // "validate" or "checkin"
	Identity  *models.TicketIdentity `json:"identity"`
	OK        bool                   `json:"ok"`
	Reason    Reason                 `json:"reason,omitempty"`
	Source    models.CheckInSource   `json:"source,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

type Observer interface {
	Observe(Outcome)
}

type LedgerStore interface {
	Insert(ctx context.Context, entry models.CheckIn) error
	Contains(ctx context.Context, ticketID string) (bool, error)
	List(ctx context.Context) ([]models.CheckIn, error)
	Reset(ctx context.Context) (int64, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, evt models.LifecycleEvent) error
}

type Validator struct {
	Ledger    LedgerStore
	Cache     Cache
	Publisher EventPublisher
	Observers []Observer
	Logger    *logger.Logger
	Now       func() time.Time
}

func NewValidator(ledger LedgerStore, cache Cache, publisher EventPublisher, log *logger.Logger) *Validator {
	if cache == nil {
		cache = NewMemoryCache()
	}
	if log == nil {
		log = logger.Discard()
	}
	return &Validator{
		Ledger:    ledger,
		Cache:     cache,
		Publisher: publisher,
		Logger:    log,
		Now:       time.Now,
	}
}

func (v *Validator) now() time.Time {
	if v.Now == nil {
		return time.Now().UTC()
	}
	return v.Now().UTC()
}

// Identify turns decoded QR text into a ticket identity. Text that is not
// JSON at all is accepted as a bare ticket id. JSON that is not a ticket
// object is rejected with the codec's error.
func Identify(text string) (*models.TicketIdentity, error) {
	if qr.IsStructured(text) {
		return qr.Decode(text)
	}

	id := strings.TrimSpace(text)
	if id == "" {
		return nil, fmt.Errorf("checkin.Identify: %w", qr.ErrMalformedPayload)
	}
	return &models.TicketIdentity{
		TicketID:  id,
		EventName: UnknownEventName,
		Raw:       true,
	}, nil
}

// Validate reports whether the ticket may still be admitted. Already used
// tickets come back as a negative Result, not an error.
func (v *Validator) Validate(ctx context.Context, identity *models.TicketIdentity) (Result, error) {
	const op = "checkin.Validator.Validate"

	if identity == nil || identity.TicketID == "" {
		return Result{}, fmt.Errorf("%s: %w", op, ErrEmptyTicketID)
	}

	used, err := v.seen(ctx, identity.TicketID)
	if err != nil {
		return Result{}, fmt.Errorf("%s: %w", op, err)
	}

	res := Result{OK: !used, TicketID: identity.TicketID}
	if used {
		res.Reason = ReasonAlreadyCheckedIn
	}
	v.notify(Outcome{Stage: "validate", Identity: identity, OK: res.OK, Reason: res.Reason})
	return res, nil
}

// ValidateText runs Identify then Validate.
func (v *Validator) ValidateText(ctx context.Context, text string) (*models.TicketIdentity, Result, error) {
	identity, err := Identify(text)
	if err != nil {
		return nil, Result{}, err
	}
	res, err := v.Validate(ctx, identity)
	return identity, res, err
}

// seen answers from the ledger. The cache is brought in line with the
// ledger's answer, so an entry surviving a reset is dropped on its next
// lookup. Only when the ledger read fails does a cache hit decide.
func (v *Validator) seen(ctx context.Context, ticketID string) (bool, error) {
	hit, err := v.Cache.Seen(ctx, ticketID)
	if err != nil {
		v.Logger.Warn("REDIS", fmt.Sprintf("Check-in cache lookup failed for %s: %v", ticketID, err))
		hit = false
	}

	used, err := v.Ledger.Contains(ctx, ticketID)
	if err != nil {
		if hit {
			v.Logger.Warn("CHECKIN", fmt.Sprintf("Ledger lookup failed for %s, answering from cache: %v", ticketID, err))
			return true, nil
		}
		return false, err
	}

	switch {
	case used && !hit:
		v.remember(ctx, ticketID)
	case !used && hit:
		v.forget(ctx, ticketID)
	}
	return used, nil
}

func (v *Validator) remember(ctx context.Context, ticketIDs ...string) {
	if err := v.Cache.Add(ctx, ticketIDs...); err != nil {
		v.Logger.Warn("REDIS", fmt.Sprintf("Check-in cache write failed: %v", err))
	}
}

func (v *Validator) forget(ctx context.Context, ticketIDs ...string) {
	if err := v.Cache.Remove(ctx, ticketIDs...); err != nil {
		v.Logger.Warn("REDIS", fmt.Sprintf("Check-in cache eviction failed: %v", err))
	}
}

type Request struct {
	TicketID  string
	EventID   string
	EventName string
	ScannedBy string
	Source    models.CheckInSource
}

// CheckIn admits a ticket. The ledger insert is the commit point, so of any
// number of concurrent calls for one ticket exactly one succeeds and the
// rest return ErrAlreadyCheckedIn.
func (v *Validator) CheckIn(ctx context.Context, req Request) (*models.CheckIn, error) {
	const op = "checkin.Validator.CheckIn"

	req.TicketID = strings.TrimSpace(req.TicketID)
	if req.TicketID == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrEmptyTicketID)
	}
	if req.Source == "" {
		req.Source = models.CheckInSourceManual
	}

	identity := &models.TicketIdentity{TicketID: req.TicketID, EventID: req.EventID, EventName: req.EventName}
	entry := models.CheckIn{
		TicketID:    req.TicketID,
		EventName:   req.EventName,
		ScannedBy:   req.ScannedBy,
		Source:      req.Source,
		CheckedInAt: v.now(),
	}

	if err := v.Ledger.Insert(ctx, entry); err != nil {
		if errors.Is(err, ErrAlreadyCheckedIn) {
			v.remember(ctx, req.TicketID)
			monitoring.TrackCheckin("already_checked_in")
			v.Logger.LogCheckin("DUPLICATE", req.TicketID, "rejected, already checked in")
			v.notify(Outcome{Stage: "checkin", Identity: identity, Reason: ReasonAlreadyCheckedIn, Source: req.Source})
			return nil, fmt.Errorf("%s: %w", op, ErrAlreadyCheckedIn)
		}
		monitoring.TrackCheckin("error")
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	v.remember(ctx, req.TicketID)
	monitoring.TrackCheckin("success")
	v.Logger.LogCheckin("ADMIT", req.TicketID, fmt.Sprintf("source=%s event=%q", req.Source, req.EventName))
	v.notify(Outcome{Stage: "checkin", Identity: identity, OK: true, Source: req.Source})
	v.publish(ctx, models.LifecycleEvent{
		Type:       models.LifecycleTicketCheckedIn,
		TicketID:   req.TicketID,
		EventID:    req.EventID,
		ActorID:    req.ScannedBy,
		OccurredAt: entry.CheckedInAt,
	})

	return &entry, nil
}

// MarkSeen warms the cache with check-ins committed elsewhere, so they are
// still refused while this instance cannot reach the ledger.
func (v *Validator) MarkSeen(ctx context.Context, ticketIDs ...string) error {
	return v.Cache.Add(ctx, ticketIDs...)
}

func (v *Validator) List(ctx context.Context) ([]models.CheckIn, error) {
	return v.Ledger.List(ctx)
}

// Export builds the operator report of admitted ticket ids.
func (v *Validator) Export(ctx context.Context) (*models.CheckInReport, error) {
	const op = "checkin.Validator.Export"

	entries, err := v.Ledger.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	report := &models.CheckInReport{
		ExportDate:     v.now(),
		TotalCheckedIn: len(entries),
		Tickets:        make([]string, 0, len(entries)),
	}
	for _, e := range entries {
		report.Tickets = append(report.Tickets, e.TicketID)
	}
	return report, nil
}

// Reset clears the ledger and the cache.
func (v *Validator) Reset(ctx context.Context, operatorID string) (int64, error) {
	const op = "checkin.Validator.Reset"

	n, err := v.Ledger.Reset(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if err := v.Cache.Clear(ctx); err != nil {
		v.Logger.Warn("REDIS", fmt.Sprintf("Check-in cache clear failed: %v", err))
	}

	v.Logger.Warn("CHECKIN", fmt.Sprintf("Ledger reset by %s, %d entries removed", operatorID, n))
	v.publish(ctx, models.LifecycleEvent{
		Type:       models.LifecycleLedgerReset,
		ActorID:    operatorID,
		OccurredAt: v.now(),
	})
	return n, nil
}

func (v *Validator) notify(o Outcome) {
	if o.Timestamp.IsZero() {
		o.Timestamp = v.now()
	}
	for _, obs := range v.Observers {
		obs.Observe(o)
	}
}

func (v *Validator) publish(ctx context.Context, evt models.LifecycleEvent) {
	if v.Publisher == nil {
		return
	}
	if err := v.Publisher.Publish(ctx, evt); err != nil {
		v.Logger.Warn("KAFKA", fmt.Sprintf("Failed to publish %s: %v", evt.Type, err))
	}
}
