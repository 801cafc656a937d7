// Package allocation picks slots for vehicles and explains why it could not.
package allocation

import (
	"context"

	"github.com/nekogravitycat/parking-booking-backend/internal/compat"
	"github.com/nekogravitycat/parking-booking-backend/internal/inventory"
)

// Policy selects the first free compatible slot of an area in slot ID order.
// It reads only; holding the slot is the caller's job.
type Policy struct {
	matcher *compat.Matcher
	store   inventory.Store
}

func NewPolicy(matcher *compat.Matcher, store inventory.Store) *Policy {
	return &Policy{matcher: matcher, store: store}
}

// SelectSlot returns nil, nil when the area has no free slot the vehicle class
// may use.
func (p *Policy) SelectSlot(ctx context.Context, areaID string, vc compat.VehicleClass) (*inventory.Slot, error) {
	classes, err := p.matcher.CompatibleSlotClasses(vc)
	if err != nil {
		return nil, err
	}

	free, err := p.store.ListFreeSlots(ctx, areaID, classes)
	if err != nil {
		return nil, err
	}
	if len(free) == 0 {
		return nil, nil
	}
	return free[0], nil
}
