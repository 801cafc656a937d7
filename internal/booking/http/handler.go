package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/parking-booking-backend/internal/auth"
	"github.com/nekogravitycat/parking-booking-backend/internal/booking"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/response"
)

type Handler struct {
	service booking.Service
}

func NewHandler(service booking.Service) *Handler {
	return &Handler{service: service}
}

// Create requests a slot for the caller's vehicle. A pending hold answers
// 201; a rejection is a normal outcome and answers 200 with the mismatch.
func (h *Handler) Create(c *gin.Context) {
	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	res, err := h.service.RequestBooking(c.Request.Context(), auth.GetUserID(c), req.VehicleID, req.AreaID)
	if err != nil {
		response.Error(c, err)
		return
	}

	resp := RequestBookingResponse{
		Status:  res.Status,
		Booking: NewBookingResponse(res.Booking),
	}
	if res.Mismatch != nil {
		m := NewMismatchResponse(res.Mismatch)
		resp.Mismatch = &m
	}

	code := http.StatusCreated
	if res.Status == booking.StateRejected {
		code = http.StatusOK
	}
	c.JSON(code, resp)
}

func (h *Handler) Confirm(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid booking id", err)
		return
	}

	b, err := h.service.ConfirmBooking(c.Request.Context(), auth.GetUserID(c), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": b.State, "booking": NewBookingResponse(b)})
}

// Cancel is idempotent; cancelling a finished booking reports its state.
func (h *Handler) Cancel(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid booking id", err)
		return
	}

	b, err := h.service.CancelBooking(c.Request.Context(), auth.GetUserID(c), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": b.State, "booking": NewBookingResponse(b)})
}

func (h *Handler) Get(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid booking id", err)
		return
	}

	info, err := h.service.GetBookingStatus(c.Request.Context(), auth.GetUserID(c), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, StatusResponse{
		ID:            info.ID,
		State:         info.State,
		SlotID:        info.SlotID,
		HoldExpiresAt: info.HoldExpiresAt,
	})
}

// List returns the caller's bookings, newest first unless sort_order=asc.
func (h *Handler) List(c *gin.Context) {
	var req ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}

	bookings, total, err := h.service.ListBookings(c.Request.Context(), auth.GetUserID(c), booking.Filter{
		State:     booking.State(req.State),
		Page:      req.Page,
		PageSize:  req.PageSize,
		SortOrder: req.SortOrder,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]BookingResponse, len(bookings))
	for i, b := range bookings {
		items[i] = NewBookingResponse(b)
	}
	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}
