package http

import (
	"time"

	"github.com/nekogravitycat/parking-booking-backend/internal/compat"
	"github.com/nekogravitycat/parking-booking-backend/internal/inventory"
)

type AreaResponse struct {
	ID                 string    `json:"id"`
	Name               string    `json:"name"`
	Location           string    `json:"location"`
	LayoutURL          *string   `json:"layout_url"`
	LayoutThumbnailURL *string   `json:"layout_thumbnail_url"`
	CreatedAt          time.Time `json:"created_at"`
}

func NewAreaResponse(a *inventory.Area) AreaResponse {
	resp := AreaResponse{
		ID:        a.ID,
		Name:      a.Name,
		Location:  a.Location,
		CreatedAt: a.CreatedAt,
	}
	if a.LayoutPath != nil {
		u := "/v1/areas/" + a.ID + "/layout"
		resp.LayoutURL = &u
	}
	if a.LayoutThumbnailPath != nil {
		u := "/v1/areas/" + a.ID + "/layout/thumbnail"
		resp.LayoutThumbnailURL = &u
	}
	return resp
}

type SlotResponse struct {
	ID        int64            `json:"id"`
	AreaID    string           `json:"area_id"`
	Label     string           `json:"label"`
	Class     compat.SlotClass `json:"class"`
	Status    inventory.Status `json:"status"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func NewSlotResponse(s *inventory.Slot) SlotResponse {
	return SlotResponse{
		ID:        s.ID,
		AreaID:    s.AreaID,
		Label:     s.Label,
		Class:     s.Class,
		Status:    s.Status,
		UpdatedAt: s.UpdatedAt,
	}
}

type AvailabilityResponse struct {
	Class    compat.SlotClass `json:"class"`
	Total    int              `json:"total"`
	Free     int              `json:"free"`
	Held     int              `json:"held"`
	Occupied int              `json:"occupied"`
}

type ListAreasRequest struct {
	Q        string `form:"q"`
	Page     int    `form:"page,default=1" binding:"min=1"`
	PageSize int    `form:"page_size,default=20" binding:"min=1,max=100"`
}

type CreateAreaBody struct {
	Name     string `json:"name" binding:"required"`
	Location string `json:"location"`
}

type AddSlotBody struct {
	Label string           `json:"label" binding:"required"`
	Class compat.SlotClass `json:"class" binding:"required"`
}
