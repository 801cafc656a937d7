package http

import (
	"time"

	"github.com/nekogravitycat/parking-booking-backend/internal/compat"
	"github.com/nekogravitycat/parking-booking-backend/internal/vehicle"
)

type VehicleResponse struct {
	ID        string              `json:"id"`
	OwnerID   string              `json:"owner_id"`
	Plate     string              `json:"plate"`
	Class     compat.VehicleClass `json:"class"`
	CreatedAt time.Time           `json:"created_at"`
}

func NewVehicleResponse(v *vehicle.Vehicle) VehicleResponse {
	return VehicleResponse{
		ID:        v.ID,
		OwnerID:   v.OwnerID,
		Plate:     v.Plate,
		Class:     v.Class,
		CreatedAt: v.CreatedAt,
	}
}

type RegisterVehicleBody struct {
	Plate string              `json:"plate" binding:"required"`
	Class compat.VehicleClass `json:"class" binding:"required"`
}
