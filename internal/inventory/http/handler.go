package http

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/nekogravitycat/parking-booking-backend/internal/inventory"
	"github.com/nekogravitycat/parking-booking-backend/internal/logging"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/request"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/response"
)

// MaxLayoutBytes caps the layout image upload size.
const MaxLayoutBytes = 10 << 20

type AreaHandler struct {
	service inventory.Service
}

func NewHandler(service inventory.Service) *AreaHandler {
	return &AreaHandler{service: service}
}

// List retrieves a paginated list of parking areas, optionally filtered by q.
func (h *AreaHandler) List(c *gin.Context) {
	var req ListAreasRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, "invalid query parameters", err)
		return
	}

	areas, total, err := h.service.ListAreas(c.Request.Context(), inventory.Filter{
		Keyword:  req.Q,
		Page:     req.Page,
		PageSize: req.PageSize,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]AreaResponse, len(areas))
	for i, a := range areas {
		items[i] = NewAreaResponse(a)
	}
	c.JSON(http.StatusOK, response.NewPageResponse(items, req.Page, req.PageSize, total))
}

func (h *AreaHandler) Get(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid area id", err)
		return
	}

	area, err := h.service.GetArea(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewAreaResponse(area))
}

// Create provisions a new parking area. Admin only.
func (h *AreaHandler) Create(c *gin.Context) {
	var body CreateAreaBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	area, err := h.service.CreateArea(c.Request.Context(), inventory.CreateAreaRequest{
		Name:     body.Name,
		Location: body.Location,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewAreaResponse(area))
}

// ListSlots returns every slot of the area in layout order.
func (h *AreaHandler) ListSlots(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid area id", err)
		return
	}

	slots, err := h.service.ListSlots(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]SlotResponse, len(slots))
	for i, s := range slots {
		items[i] = NewSlotResponse(s)
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// AddSlot provisions a slot in the area. Admin only.
func (h *AreaHandler) AddSlot(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid area id", err)
		return
	}
	var body AddSlotBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body", err)
		return
	}

	slot, err := h.service.AddSlot(c.Request.Context(), inventory.AddSlotRequest{
		AreaID: uri.ID,
		Label:  body.Label,
		Class:  body.Class,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusCreated, NewSlotResponse(slot))
}

func (h *AreaHandler) Availability(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid area id", err)
		return
	}

	counts, err := h.service.Availability(c.Request.Context(), uri.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	items := make([]AvailabilityResponse, len(counts))
	for i, ca := range counts {
		items[i] = AvailabilityResponse(ca)
	}
	c.JSON(http.StatusOK, gin.H{"area_id": uri.ID, "classes": items})
}

// UploadLayout replaces the area's layout image from the "file" form field.
// Admin only.
func (h *AreaHandler) UploadLayout(c *gin.Context) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid area id", err)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file is required", err)
		return
	}
	if fileHeader.Size > MaxLayoutBytes {
		c.JSON(http.StatusRequestEntityTooLarge, response.ErrorResponse{Error: "layout image too large", Code: "file_too_large"})
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		response.Error(c, err)
		return
	}
	defer f.Close()

	area, err := h.service.UploadLayout(c.Request.Context(), uri.ID, io.LimitReader(f, MaxLayoutBytes))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.JSON(http.StatusOK, NewAreaResponse(area))
}

func (h *AreaHandler) Layout(c *gin.Context) {
	h.serveLayout(c, false)
}

func (h *AreaHandler) LayoutThumbnail(c *gin.Context) {
	h.serveLayout(c, true)
}

func (h *AreaHandler) serveLayout(c *gin.Context, thumbnail bool) {
	var uri request.ByIDRequest
	if err := c.ShouldBindUri(&uri); err != nil {
		response.BadRequest(c, "invalid area id", err)
		return
	}

	ctx := c.Request.Context()
	var (
		stream io.ReadCloser
		err    error
	)
	if thumbnail {
		stream, err = h.service.OpenLayoutThumbnail(ctx, uri.ID)
	} else {
		stream, err = h.service.OpenLayout(ctx, uri.ID)
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	defer stream.Close()

	// Sniff from the first bytes; layouts may be PNG or JPEG.
	head := make([]byte, 512)
	n, _ := io.ReadFull(stream, head)
	head = head[:n]

	c.Header("Content-Type", http.DetectContentType(head))
	c.Header("Content-Disposition", "inline")
	c.Status(http.StatusOK)
	if _, err := c.Writer.Write(head); err != nil {
		return
	}
	if _, err := io.Copy(c.Writer, stream); err != nil {
		// Response already started.
		logging.Warn(ctx, "layout stream interrupted", "area_id", uri.ID, "error", err.Error())
	}
}
