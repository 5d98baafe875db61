package utils

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"
)

const ticketNumberLayout = "20060102150405"

// ErrNumberSpaceExhausted means a batch could not draw a fresh number within
// the current second.
var ErrNumberSpaceExhausted = errors.New("ticket number space exhausted")

// GenerateTicketID returns a fresh opaque ticket identifier.
func GenerateTicketID() string {
	return uuid.NewString()
}

// GenerateTicketNumber builds a human-readable number TKT-<yyyyMMddHHmmss>-<NNNN>
// with a 4-digit random suffix in [1000, 9999].
func GenerateTicketNumber(now time.Time) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(9000))
	if err != nil {
		return "", fmt.Errorf("ticket number suffix: %w", err)
	}
	return fmt.Sprintf("TKT-%s-%04d", now.UTC().Format(ticketNumberLayout), n.Int64()+1000), nil
}

// TicketNumberBatch hands out ticket numbers that are unique within one issuance batch.
// Uniqueness across batches is left to the store's unique constraint.
type TicketNumberBatch struct {
	now  func() time.Time
	used map[string]struct{}
}

func NewTicketNumberBatch(now func() time.Time) *TicketNumberBatch {
	if now == nil {
		now = time.Now
	}
	return &TicketNumberBatch{now: now, used: make(map[string]struct{})}
}

// maxDrawsPerNumber bounds redraws when a second's suffix space runs dry.
const maxDrawsPerNumber = 64

func (b *TicketNumberBatch) Next() (string, error) {
	for i := 0; i < maxDrawsPerNumber; i++ {
		number, err := GenerateTicketNumber(b.now())
		if err != nil {
			return "", err
		}
		if _, taken := b.used[number]; taken {
			continue
		}
		b.used[number] = struct{}{}
		return number, nil
	}
	return "", fmt.Errorf("%w after %d draws", ErrNumberSpaceExhausted, maxDrawsPerNumber)
}
