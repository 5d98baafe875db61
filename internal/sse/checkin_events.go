package sse

import (
	"context"
	"sync"

	"ms-ticket-lifecycle/internal/checkin"
)

// AllEvents subscribes to outcomes of every event, including raw codes that
// carry no event id.
const AllEvents = ""

// CheckinEventEmitter fans check-in outcomes out to door dashboards.
type CheckinEventEmitter struct {
	// key: eventID, value: client channels
	clients map[string][]chan checkin.Outcome
	mu      sync.RWMutex
}

func NewCheckinEventEmitter() *CheckinEventEmitter {
	return &CheckinEventEmitter{
		clients: make(map[string][]chan checkin.Outcome),
	}
}

// Subscribe registers a client for eventID until ctx is done; the returned
// channel is closed on removal.
func (e *CheckinEventEmitter) Subscribe(ctx context.Context, eventID string) <-chan checkin.Outcome {
	clientChan := make(chan checkin.Outcome, 10)

	e.mu.Lock()
	e.clients[eventID] = append(e.clients[eventID], clientChan)
	e.mu.Unlock()

	go func() {
		<-ctx.Done()
		e.removeClient(eventID, clientChan)
	}()

	return clientChan
}

// Observe implements checkin.Observer.
func (e *CheckinEventEmitter) Observe(o checkin.Outcome) {
	eventID := ""
	if o.Identity != nil {
		eventID = o.Identity.EventID
	}

	// Sends happen under the read lock so removeClient cannot close a
	// channel mid-send.
	e.mu.RLock()
	defer e.mu.RUnlock()

	e.send(e.clients[AllEvents], o)
	if eventID != AllEvents {
		e.send(e.clients[eventID], o)
	}
}

func (e *CheckinEventEmitter) send(clients []chan checkin.Outcome, o checkin.Outcome) {
	for _, clientChan := range clients {
		select {
		case clientChan <- o:
		default:
			// slow client, drop
		}
	}
}

func (e *CheckinEventEmitter) removeClient(eventID string, clientChan chan checkin.Outcome) {
	e.mu.Lock()
	defer e.mu.Unlock()

	clients := e.clients[eventID]
	for i, ch := range clients {
		if ch == clientChan {
			e.clients[eventID] = append(clients[:i], clients[i+1:]...)
			close(clientChan)
			break
		}
	}

	if len(e.clients[eventID]) == 0 {
		delete(e.clients, eventID)
	}
}

// ClientCount returns the number of clients subscribed to eventID.
func (e *CheckinEventEmitter) ClientCount(eventID string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.clients[eventID])
}
