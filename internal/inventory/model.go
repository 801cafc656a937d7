package inventory

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/parking-booking-backend/internal/compat"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/apperror"
)

var (
	ErrAreaNotFound      = apperror.New(http.StatusNotFound, "area_not_found", "parking area not found")
	ErrSlotNotFound      = apperror.New(http.StatusNotFound, "slot_not_found", "parking slot not found")
	ErrEmptyName         = apperror.New(http.StatusBadRequest, "empty_name", "name cannot be empty")
	ErrLabelTaken        = apperror.New(http.StatusConflict, "slot_label_taken", "slot label already used in this area")
	ErrInvalidTransition = apperror.New(http.StatusInternalServerError, "invalid_slot_transition", "invalid slot status transition")
	ErrLayoutNotFound    = apperror.New(http.StatusNotFound, "layout_not_found", "area has no layout image")
	ErrInvalidLayout     = apperror.New(http.StatusBadRequest, "invalid_layout", "layout must be a PNG or JPEG image")
)

// Status is the occupancy state of a slot.
type Status string

const (
	StatusFree     Status = "free"
	StatusHeld     Status = "held"
	StatusOccupied Status = "occupied"
)

// allowedFrom lists, per target status, the statuses a slot may move from.
var allowedFrom = map[Status][]Status{
	StatusHeld:     {StatusFree},
	StatusOccupied: {StatusHeld},
	StatusFree:     {StatusHeld, StatusOccupied},
}

// CanTransition reports whether a slot may move from s to to.
func (s Status) CanTransition(to Status) bool {
	for _, from := range allowedFrom[to] {
		if from == s {
			return true
		}
	}
	return false
}

// Area is a parking area (e.g., a garage level or a lot).
type Area struct {
	ID                  string
	Name                string
	Location            string
	LayoutPath          *string
	LayoutThumbnailPath *string
	CreatedAt           time.Time
}

// Slot is a single parking space. IDs are assigned in provisioning order, so
// ascending ID order is the physical layout order of an area.
type Slot struct {
	ID        int64
	AreaID    string
	Label     string
	Class     compat.SlotClass
	Status    Status
	UpdatedAt time.Time
}

// Filter defines parameters for listing areas.
type Filter struct {
	Keyword  string // Search in Name or Location
	Page     int
	PageSize int
}

// ClassAvailability counts the slots of one class in an area by status.
type ClassAvailability struct {
	Class    compat.SlotClass
	Total    int
	Free     int
	Held     int
	Occupied int
}

// Layout references the stored layout image of an area.
type Layout struct {
	Path          string
	ThumbnailPath *string
}
