package checkin

import (
	"context"
	"fmt"

	"ms-ticket-lifecycle/internal/models"
)

// HandleLifecycleEvent keeps this instance's cache in step with check-ins
// and resets committed by other door instances.
func (v *Validator) HandleLifecycleEvent(ctx context.Context, evt models.LifecycleEvent) error {
	switch evt.Type {
	case models.LifecycleTicketCheckedIn:
		if evt.TicketID == "" {
			return fmt.Errorf("checked-in event without ticket id")
		}
		return v.MarkSeen(ctx, evt.TicketID)
	case models.LifecycleLedgerReset:
		return v.Cache.Clear(ctx)
	default:
		return nil
	}
}
