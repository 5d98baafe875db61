// Package analytics reports door attendance: how many sold tickets were
// admitted, when, and through which check-in path.
package analytics

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"ms-ticket-lifecycle/internal/database"
	"ms-ticket-lifecycle/internal/models"
)

var (
	ErrEventNotFound = errors.New("event not found")
	ErrNotEventOwner = errors.New("not the event owner")
	ErrBatchTooLarge = errors.New("too many events in batch")
)

// maxBatchEvents bounds one batch request.
const maxBatchEvents = 50

// Store is the read side the service aggregates over.
type Store interface {
	GetEventOwner(ctx context.Context, eventID string) (string, error)
	GetSoldCountByEventID(ctx context.Context, eventID string) (int, error)
	GetCheckInsByEventID(ctx context.Context, eventID string) ([]CheckInRow, error)
}

// Service handles analytics operations
type Service struct {
	store Store
}

// NewService creates a new analytics service
func NewService(store Store) *Service {
	return &Service{store: store}
}

// EventAttendance represents aggregated door data for an event
type EventAttendance struct {
	EventID        string                       `json:"eventId"`
	TicketsSold    int                          `json:"ticketsSold"`
	CheckedIn      int                          `json:"checkedIn"`
	NoShows        int                          `json:"noShows"`
	AttendanceRate float64                      `json:"attendanceRate"`
	FirstCheckIn   *time.Time                   `json:"firstCheckIn,omitempty"`
	LastCheckIn    *time.Time                   `json:"lastCheckIn,omitempty"`
	Hourly         []HourlyCheckIns             `json:"hourly"`
	BySource       map[models.CheckInSource]int `json:"bySource"`
	ByType         map[models.TicketType]int    `json:"byType"`
}

// HourlyCheckIns contains the admissions of one UTC hour
type HourlyCheckIns struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

// BatchAttendance aggregates several events the caller owns
type BatchAttendance struct {
	EventIDs    []string           `json:"eventIds"`
	TicketsSold int                `json:"ticketsSold"`
	CheckedIn   int                `json:"checkedIn"`
	NoShows     int                `json:"noShows"`
	Events      []*EventAttendance `json:"events"`
}

// VerifyOwnership returns ErrEventNotFound or ErrNotEventOwner unless userID
// owns the event.
func (s *Service) VerifyOwnership(ctx context.Context, eventID, userID string) error {
	owner, err := s.store.GetEventOwner(ctx, eventID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrEventNotFound, eventID)
		}
		return err
	}
	if owner != userID {
		return ErrNotEventOwner
	}
	return nil
}

// GetEventAttendance returns the attendance report of one event.
func (s *Service) GetEventAttendance(ctx context.Context, eventID string) (*EventAttendance, error) {
	sold, err := s.store.GetSoldCountByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.GetCheckInsByEventID(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return summarize(eventID, sold, rows), nil
}

// GetBatchAttendance reports every event in eventIDs, skipping duplicates.
// Ownership is checked per event; the batch fails on the first event the
// user does not own.
func (s *Service) GetBatchAttendance(ctx context.Context, eventIDs []string, userID string) (*BatchAttendance, error) {
	ids := dedupe(eventIDs)
	if len(ids) > maxBatchEvents {
		return nil, fmt.Errorf("%w: at most %d", ErrBatchTooLarge, maxBatchEvents)
	}

	reports := make([]*EventAttendance, len(ids))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	for i, id := range ids {
		g.Go(func() error {
			if err := s.VerifyOwnership(gCtx, id, userID); err != nil {
				return err
			}
			report, err := s.GetEventAttendance(gCtx, id)
			if err != nil {
				return err
			}
			reports[i] = report
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	batch := &BatchAttendance{EventIDs: ids, Events: reports}
	for _, r := range reports {
		batch.TicketsSold += r.TicketsSold
		batch.CheckedIn += r.CheckedIn
		batch.NoShows += r.NoShows
	}
	return batch, nil
}

func summarize(eventID string, sold int, rows []CheckInRow) *EventAttendance {
	a := &EventAttendance{
		EventID:     eventID,
		TicketsSold: sold,
		CheckedIn:   len(rows),
		Hourly:      []HourlyCheckIns{},
		BySource:    make(map[models.CheckInSource]int),
		ByType:      make(map[models.TicketType]int),
	}
	if sold > a.CheckedIn {
		a.NoShows = sold - a.CheckedIn
	}
	if sold > 0 {
		a.AttendanceRate = float64(a.CheckedIn) / float64(sold)
	}

	hourly := make(map[string]int)
	for _, r := range rows {
		at := r.CheckedInAt.UTC()
		if a.FirstCheckIn == nil || at.Before(*a.FirstCheckIn) {
			a.FirstCheckIn = &at
		}
		if a.LastCheckIn == nil || at.After(*a.LastCheckIn) {
			a.LastCheckIn = &at
		}
		hourly[at.Truncate(time.Hour).Format(time.RFC3339)]++
		a.BySource[r.Source]++
		a.ByType[r.TicketType]++
	}

	for hour, count := range hourly {
		a.Hourly = append(a.Hourly, HourlyCheckIns{Hour: hour, Count: count})
	}
	sort.Slice(a.Hourly, func(i, j int) bool { return a.Hourly[i].Hour < a.Hourly[j].Hour })
	return a
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
