package http

import (
	"time"

	"github.com/nekogravitycat/parking-booking-backend/internal/allocation"
	"github.com/nekogravitycat/parking-booking-backend/internal/booking"
	"github.com/nekogravitycat/parking-booking-backend/internal/compat"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/request"
)

// ListBookingsRequest defines query parameters for listing bookings.
type ListBookingsRequest struct {
	request.ListParams
	State     string `form:"state" binding:"omitempty,oneof=pending confirmed cancelled expired rejected"`
	SortOrder string `form:"sort_order" binding:"omitempty,oneof=asc desc"`
}

type CreateBookingRequest struct {
	VehicleID string `json:"vehicle_id" binding:"required,uuid"`
	AreaID    string `json:"area_id" binding:"required,uuid"`
}

type BookingResponse struct {
	ID            string        `json:"id"`
	VehicleID     string        `json:"vehicle_id"`
	AreaID        string        `json:"area_id"`
	SlotID        *int64        `json:"slot_id"`
	State         booking.State `json:"state"`
	Reason        string        `json:"reason,omitempty"`
	HoldExpiresAt *time.Time    `json:"hold_expires_at,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}

func NewBookingResponse(b *booking.Booking) BookingResponse {
	return BookingResponse{
		ID:            b.ID,
		VehicleID:     b.VehicleID,
		AreaID:        b.AreaID,
		SlotID:        b.SlotID,
		State:         b.State,
		Reason:        b.Reason,
		HoldExpiresAt: b.HoldExpiresAt,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}

type AlternativeResponse struct {
	AreaID    string `json:"area_id"`
	AreaName  string `json:"area_name"`
	FreeSlots int    `json:"free_slots"`
}

type MismatchResponse struct {
	RequestedClass    compat.VehicleClass   `json:"requested_class"`
	CompatibleClasses []compat.SlotClass    `json:"compatible_classes"`
	AvailableClasses  []compat.SlotClass    `json:"available_classes"`
	Suggestion        string                `json:"suggestion"`
	Alternatives      []AlternativeResponse `json:"alternatives"`
}

func NewMismatchResponse(m *allocation.Mismatch) MismatchResponse {
	alts := make([]AlternativeResponse, len(m.Alternatives))
	for i, a := range m.Alternatives {
		alts[i] = AlternativeResponse(a)
	}
	return MismatchResponse{
		RequestedClass:    m.RequestedClass,
		CompatibleClasses: nonNil(m.CompatibleClasses.Classes()),
		AvailableClasses:  nonNil(m.AvailableClasses.Classes()),
		Suggestion:        m.Suggestion,
		Alternatives:      alts,
	}
}

func nonNil(classes []compat.SlotClass) []compat.SlotClass {
	if classes == nil {
		return []compat.SlotClass{}
	}
	return classes
}

// RequestBookingResponse carries either the pending booking or, for a
// rejection, the mismatch diagnostic.
type RequestBookingResponse struct {
	Status   booking.State     `json:"status"`
	Booking  BookingResponse   `json:"booking"`
	Mismatch *MismatchResponse `json:"mismatch,omitempty"`
}

type StatusResponse struct {
	ID            string        `json:"id"`
	State         booking.State `json:"state"`
	SlotID        *int64        `json:"slot_id"`
	HoldExpiresAt *time.Time    `json:"hold_expires_at,omitempty"`
}
