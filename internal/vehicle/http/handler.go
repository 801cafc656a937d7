package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/parking-booking-backend/internal/auth"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/response"
	"github.com/nekogravitycat/parking-booking-backend/internal/vehicle"
)

type VehicleHandler struct {
	service vehicle.Service
}

func NewHandler(service vehicle.Service) *VehicleHandler {
	return &VehicleHandler{service: service}
}

// Register adds a vehicle to the caller's account.
func (h *VehicleHandler) Register(c *gin.Context) {
	var body RegisterVehicleBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	v, err := h.service.Register(c.Request.Context(), vehicle.RegisterRequest{
		OwnerID: auth.GetUserID(c),
		Plate:   body.Plate,
		Class:   body.Class,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewVehicleResponse(v))
}

// List returns the caller's vehicles.
func (h *VehicleHandler) List(c *gin.Context) {
	var params request.ListParams
	if err := c.ShouldBindQuery(&params); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}

	vehicles, total, err := h.service.ListByOwner(c.Request.Context(), auth.GetUserID(c), params.Page, params.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]VehicleResponse, len(vehicles))
	for i, v := range vehicles {
		items[i] = NewVehicleResponse(v)
	}
	c.JSON(http.StatusOK, response.NewPageResponse(items, params.Page, params.PageSize, total))
}

// Get returns one vehicle. Other users' vehicles are reported as not found.
func (h *VehicleHandler) Get(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid vehicle id", err)
		return
	}

	v, err := h.service.GetByID(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	if v.OwnerID != auth.GetUserID(c) && !auth.IsAdmin(c) {
		response.Error(c, vehicle.ErrNotFound)
		return
	}
	c.JSON(http.StatusOK, NewVehicleResponse(v))
}
