package scanner

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"ms-ticket-lifecycle/internal/checkin"
	"ms-ticket-lifecycle/internal/logger"
	"ms-ticket-lifecycle/internal/models"
	"ms-ticket-lifecycle/internal/monitoring"
	"ms-ticket-lifecycle/internal/tickets/qr"
)

const DefaultInterval = 1200 * time.Millisecond

type Status string

const (
	StatusRunning    Status = "running"
	StatusDecoded    Status = "decoded"
	StatusCancelled  Status = "cancelled"
	StatusShutdown   Status = "shutdown"
	StatusDeviceLost Status = "device_lost"
)

// Decoder reads QR text from an encoded image.
type Decoder interface {
	DecodeImage(ctx context.Context, image []byte, filename string) (string, error)
}

// Validator checks decoded text against the check-in ledger.
type Validator interface {
	ValidateText(ctx context.Context, text string) (*models.TicketIdentity, checkin.Result, error)
}

// Result is the terminal state of a session.
type Result struct {
	Status     Status                 `json:"status"`
	Text       string                 `json:"text,omitempty"`
	Identity   *models.TicketIdentity `json:"identity,omitempty"`
	Validation *checkin.Result        `json:"validation,omitempty"`
	// Error explains a device loss or a decode that failed validation.
	Error string `json:"error,omitempty"`
	Ticks int    `json:"ticks"`
}

type Config struct {
	Source    Source
	Decoder   Decoder
	Validator Validator
	Interval  time.Duration
	Logger    *logger.Logger
}

// errStopped is the cancel cause for an explicit Stop, as opposed to the
// hosting context going away.
var errStopped = errors.New("scan session stopped")

// Session samples a source on a fixed interval, sends each frame to the
// decoder and stops at the first non-empty decode. At most one decode is in
// flight; ticks that arrive while one is running are skipped.
type Session struct {
	ID string

	cfg    Config
	ctx    context.Context
	cancel context.CancelCauseFunc
	done   chan struct{}

	mu     sync.Mutex
	result Result
}

type tickResult struct {
	text string
	err  error
}

// Start launches a session bound to parent. Cancelling parent ends the
// session with StatusShutdown.
func Start(parent context.Context, id string, cfg Config) *Session {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Discard()
	}

	ctx, cancel := context.WithCancelCause(parent)
	s := &Session{
		ID:     id,
		cfg:    cfg,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		result: Result{Status: StatusRunning},
	}
	go s.run()
	return s
}

// Stop cancels the session and waits for it to release its source. Calling
// it again, or after the session ended on its own, is a no-op.
func (s *Session) Stop() {
	s.cancel(errStopped)
	<-s.done
}

func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Result returns the current state; Status is StatusRunning until Done.
func (s *Session) Result() Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

func (s *Session) run() {
	log := s.cfg.Logger
	results := make(chan tickResult, 1)
	inFlight := false
	ticks := 0

	ticker := time.NewTicker(s.cfg.Interval)

	finish := func(r Result) {
		ticker.Stop()
		// let an in-flight tick observe cancellation before the source goes
		if inFlight {
			s.cancel(errStopped)
			<-results
		}
		if err := s.cfg.Source.Close(); err != nil {
			log.Warn("SCAN", fmt.Sprintf("[%s] releasing source: %v", s.ID, err))
		}

		r.Ticks = ticks
		s.mu.Lock()
		s.result = r
		s.mu.Unlock()

		s.cancel(errStopped)
		monitoring.TrackScanSessionEnd(string(r.Status))
		log.LogScan(s.ID, fmt.Sprintf("session ended: %s after %d ticks", r.Status, ticks))
		close(s.done)
	}

	log.LogScan(s.ID, fmt.Sprintf("session started, interval %s", s.cfg.Interval))
	startTick := func() {
		inFlight = true
		ticks++
		go func() { results <- s.tick(s.ctx) }()
	}
	startTick()

	for {
		select {
		case <-s.ctx.Done():
			status := StatusShutdown
			if errors.Is(context.Cause(s.ctx), errStopped) {
				status = StatusCancelled
			}
			finish(Result{Status: status})
			return

		case <-ticker.C:
			if inFlight {
				monitoring.TrackScanTick("skipped")
				continue
			}
			startTick()

		case r := <-results:
			inFlight = false

			if r.err != nil {
				if errors.Is(r.err, ErrDeviceLost) || errors.Is(r.err, ErrSourceClosed) {
					log.Error("SCAN", fmt.Sprintf("[%s] %v", s.ID, r.err))
					finish(Result{Status: StatusDeviceLost, Error: r.err.Error()})
					return
				}
				if s.ctx.Err() != nil {
					continue
				}
				if errors.Is(r.err, qr.ErrNoSymbol) || errors.Is(r.err, qr.ErrEmptyDecode) {
					monitoring.TrackScanTick("no_code")
					log.Debug("SCAN", fmt.Sprintf("[%s] no code in frame", s.ID))
					continue
				}
				monitoring.TrackScanTick("soft_error")
				log.Warn("SCAN", fmt.Sprintf("[%s] tick failed: %v", s.ID, r.err))
				continue
			}

			monitoring.TrackScanTick("decoded")
			finish(s.validate(r.text))
			return
		}
	}
}

func (s *Session) tick(ctx context.Context) tickResult {
	frame, err := s.cfg.Source.Capture(ctx)
	if err != nil {
		return tickResult{err: fmt.Errorf("capture: %w", err)}
	}

	text, err := s.cfg.Decoder.DecodeImage(ctx, frame.Image, frame.Filename)
	if err != nil {
		return tickResult{err: err}
	}
	if strings.TrimSpace(text) == "" {
		return tickResult{err: qr.ErrEmptyDecode}
	}
	return tickResult{text: text}
}

// validate runs once, after the loop has decided to stop. A decode that
// fails validation still ends the session; the operator rescans.
func (s *Session) validate(text string) Result {
	r := Result{Status: StatusDecoded, Text: text}
	if s.cfg.Validator == nil {
		return r
	}

	identity, res, err := s.cfg.Validator.ValidateText(s.ctx, text)
	if err != nil {
		r.Error = err.Error()
		s.cfg.Logger.Warn("SCAN", fmt.Sprintf("[%s] decoded text rejected: %v", s.ID, err))
		return r
	}
	r.Identity = identity
	r.Validation = &res
	return r
}
