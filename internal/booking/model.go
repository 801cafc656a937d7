package booking

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/parking-booking-backend/internal/allocation"
	"github.com/nekogravitycat/parking-booking-backend/internal/inventory"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound         = apperror.New(http.StatusNotFound, "booking_not_found", "booking not found")
	ErrVehicleNotFound  = apperror.New(http.StatusNotFound, "vehicle_not_found", "vehicle not found")
	ErrAreaNotFound     = inventory.ErrAreaNotFound
	ErrInvalidState     = apperror.New(http.StatusConflict, "invalid_booking_state", "booking is not in a state that allows this operation")
	ErrHoldExpired      = apperror.New(http.StatusGone, "hold_expired", "booking hold has expired")
	ErrPermissionDenied = apperror.New(http.StatusForbidden, "permission_denied", "permission denied")
	ErrInvalidFilter    = apperror.New(http.StatusBadRequest, "invalid_filter", "invalid booking filter")
)

type State string

const (
	StatePending   State = "pending"
	StateConfirmed State = "confirmed"
	StateCancelled State = "cancelled"
	StateExpired   State = "expired"
	StateRejected  State = "rejected"
)

// transitions lists the states each state may move to. Rejected is only
// ever a starting state.
var transitions = map[State][]State{
	StatePending:   {StateConfirmed, StateCancelled, StateExpired},
	StateConfirmed: {StateCancelled},
}

func (s State) Valid() bool {
	switch s {
	case StatePending, StateConfirmed, StateCancelled, StateExpired, StateRejected:
		return true
	}
	return false
}

func (s State) CanTransition(to State) bool {
	for _, next := range transitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return len(transitions[s]) == 0
}

type Booking struct {
	ID        string
	VehicleID string
	OwnerID   string
	AreaID    string
	// SlotID is nil for rejected bookings.
	SlotID *int64
	State  State
	// Reason explains a rejection.
	Reason    string
	CreatedAt time.Time
	UpdatedAt time.Time
	// HoldExpiresAt is set only while pending.
	HoldExpiresAt *time.Time
}

func (b *Booking) clone() *Booking {
	cp := *b
	if b.SlotID != nil {
		id := *b.SlotID
		cp.SlotID = &id
	}
	if b.HoldExpiresAt != nil {
		t := *b.HoldExpiresAt
		cp.HoldExpiresAt = &t
	}
	return &cp
}

type Filter struct {
	OwnerID  string
	State    State
	Page     int
	PageSize int
	// SortOrder is "asc" or "desc" on creation time; default desc.
	SortOrder string
}

// Result is the outcome of RequestBooking. A rejection is a normal result,
// not an error.
type Result struct {
	Status   State
	Booking  *Booking
	Mismatch *allocation.Mismatch
}

// StatusInfo is the lightweight view returned by GetBookingStatus.
type StatusInfo struct {
	ID            string
	State         State
	SlotID        *int64
	HoldExpiresAt *time.Time
}
