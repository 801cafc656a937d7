package vehicle

import (
	"net/http"
	"time"

	"github.com/nekogravitycat/parking-booking-backend/internal/compat"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/apperror"
)

var (
	ErrNotFound               = apperror.New(http.StatusNotFound, "vehicle_not_found", "vehicle not found")
	ErrEmptyPlate             = apperror.New(http.StatusBadRequest, "empty_plate", "plate cannot be empty")
	ErrPlateAlreadyRegistered = apperror.New(http.StatusConflict, "plate_already_registered", "plate already registered to this account")
)

// Vehicle is immutable once registered.
type Vehicle struct {
	ID        string
	OwnerID   string
	Plate     string
	Class     compat.VehicleClass
	CreatedAt time.Time
}

type Filter struct {
	OwnerID  string
	Page     int
	PageSize int
}
