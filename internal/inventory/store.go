package inventory

import (
	"context"

	"github.com/nekogravitycat/parking-booking-backend/internal/compat"
)

// Store holds parking areas and their slots with current status.
//
// Status transitions only check the transition graph; they do not arbitrate
// between concurrent callers. The booking coordinator serializes every
// transition for an area under that area's lock.
type Store interface {
	CreateArea(ctx context.Context, area *Area) error
	GetArea(ctx context.Context, id string) (*Area, error)
	ListAreas(ctx context.Context, filter Filter) ([]*Area, int, error)
	UpdateAreaLayout(ctx context.Context, id string, layout Layout) error

	// CreateSlot assigns the next slot ID and sets the status to free.
	CreateSlot(ctx context.Context, slot *Slot) error
	GetSlot(ctx context.Context, id int64) (*Slot, error)
	// ListSlots returns every slot of the area ordered by ID.
	ListSlots(ctx context.Context, areaID string) ([]*Slot, error)
	// ListFreeSlots returns free slots of the area whose class is in classes,
	// ordered by ID.
	ListFreeSlots(ctx context.Context, areaID string, classes compat.SlotClassSet) ([]*Slot, error)

	MarkHeld(ctx context.Context, slotID int64) error
	MarkOccupied(ctx context.Context, slotID int64) error
	MarkFree(ctx context.Context, slotID int64) error
}
