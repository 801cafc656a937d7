package inventory

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nekogravitycat/parking-booking-backend/internal/compat"
	"github.com/nekogravitycat/parking-booking-backend/internal/logging"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/storage"
)

const (
	thumbnailWidth  = 320
	thumbnailHeight = 320
)

type CreateAreaRequest struct {
	Name     string
	Location string
}

type AddSlotRequest struct {
	AreaID string
	Label  string
	Class  compat.SlotClass
}

// Service is the provisioning side of the inventory: the engine itself never
// creates or deletes slots.
type Service interface {
	CreateArea(ctx context.Context, req CreateAreaRequest) (*Area, error)
	GetArea(ctx context.Context, id string) (*Area, error)
	ListAreas(ctx context.Context, filter Filter) ([]*Area, int, error)
	AddSlot(ctx context.Context, req AddSlotRequest) (*Slot, error)
	ListSlots(ctx context.Context, areaID string) ([]*Slot, error)
	// Availability counts slots per class and status, one entry per slot
	// class present in the area, in class declaration order.
	Availability(ctx context.Context, areaID string) ([]ClassAvailability, error)

	UploadLayout(ctx context.Context, areaID string, content io.Reader) (*Area, error)
	OpenLayout(ctx context.Context, areaID string) (io.ReadCloser, error)
	OpenLayoutThumbnail(ctx context.Context, areaID string) (io.ReadCloser, error)
}

type service struct {
	store   Store
	blobs   storage.Storage
	imgProc *storage.ImageProcessor
}

func NewService(store Store, blobs storage.Storage) Service {
	return &service{
		store:   store,
		blobs:   blobs,
		imgProc: storage.NewImageProcessor(),
	}
}

func (s *service) CreateArea(ctx context.Context, req CreateAreaRequest) (*Area, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, ErrEmptyName
	}

	a := &Area{
		Name:     name,
		Location: strings.TrimSpace(req.Location),
	}
	if err := s.store.CreateArea(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *service) GetArea(ctx context.Context, id string) (*Area, error) {
	return s.store.GetArea(ctx, id)
}

func (s *service) ListAreas(ctx context.Context, filter Filter) ([]*Area, int, error) {
	return s.store.ListAreas(ctx, filter)
}

func (s *service) AddSlot(ctx context.Context, req AddSlotRequest) (*Slot, error) {
	label := strings.TrimSpace(req.Label)
	if label == "" {
		return nil, ErrEmptyName
	}
	if !req.Class.Valid() {
		return nil, compat.ErrInvalidSlotClass
	}

	slot := &Slot{
		AreaID: req.AreaID,
		Label:  label,
		Class:  req.Class,
	}
	if err := s.store.CreateSlot(ctx, slot); err != nil {
		return nil, err
	}
	return slot, nil
}

func (s *service) ListSlots(ctx context.Context, areaID string) ([]*Slot, error) {
	return s.store.ListSlots(ctx, areaID)
}

func (s *service) Availability(ctx context.Context, areaID string) ([]ClassAvailability, error) {
	slots, err := s.store.ListSlots(ctx, areaID)
	if err != nil {
		return nil, err
	}
	return summarize(slots), nil
}

func summarize(slots []*Slot) []ClassAvailability {
	counts := make(map[compat.SlotClass]*ClassAvailability)
	for _, slot := range slots {
		c, ok := counts[slot.Class]
		if !ok {
			c = &ClassAvailability{Class: slot.Class}
			counts[slot.Class] = c
		}
		c.Total++
		switch slot.Status {
		case StatusFree:
			c.Free++
		case StatusHeld:
			c.Held++
		case StatusOccupied:
			c.Occupied++
		}
	}

	out := []ClassAvailability{}
	for _, class := range compat.SlotClasses() {
		if c, ok := counts[class]; ok {
			out = append(out, *c)
		}
	}
	return out
}

func (s *service) UploadLayout(ctx context.Context, areaID string, content io.Reader) (*Area, error) {
	area, err := s.store.GetArea(ctx, areaID)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(content)
	if err != nil {
		return nil, fmt.Errorf("failed to read layout: %w", err)
	}

	format, err := s.imgProc.Format(bytes.NewReader(data))
	if err != nil || (format != "png" && format != "jpeg") {
		return nil, ErrInvalidLayout
	}

	ext := ".png"
	if format == "jpeg" {
		ext = ".jpg"
	}
	layoutPath := fmt.Sprintf("layouts/%s/layout%s", area.ID, ext)
	if err := s.blobs.Save(ctx, layoutPath, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to save layout: %w", err)
	}

	var thumbPath *string
	thumb, err := s.imgProc.GenerateThumbnail(bytes.NewReader(data), thumbnailWidth, thumbnailHeight)
	if err != nil {
		logging.Warn(ctx, "layout thumbnail generation failed", "area_id", area.ID, "error", err.Error())
	} else {
		p := fmt.Sprintf("layouts/%s/layout_thumb.jpg", area.ID)
		if err := s.blobs.Save(ctx, p, thumb); err != nil {
			logging.Warn(ctx, "layout thumbnail save failed", "area_id", area.ID, "error", err.Error())
		} else {
			thumbPath = &p
		}
	}

	// Replacing a PNG layout with a JPEG one leaves the old object behind.
	if area.LayoutPath != nil && *area.LayoutPath != layoutPath {
		_ = s.blobs.Delete(ctx, *area.LayoutPath)
	}

	layout := Layout{Path: layoutPath, ThumbnailPath: thumbPath}
	if err := s.store.UpdateAreaLayout(ctx, area.ID, layout); err != nil {
		return nil, err
	}
	area.LayoutPath = &layout.Path
	area.LayoutThumbnailPath = thumbPath
	return area, nil
}

func (s *service) OpenLayout(ctx context.Context, areaID string) (io.ReadCloser, error) {
	area, err := s.store.GetArea(ctx, areaID)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, area.LayoutPath)
}

func (s *service) OpenLayoutThumbnail(ctx context.Context, areaID string) (io.ReadCloser, error) {
	area, err := s.store.GetArea(ctx, areaID)
	if err != nil {
		return nil, err
	}
	return s.open(ctx, area.LayoutThumbnailPath)
}

func (s *service) open(ctx context.Context, path *string) (io.ReadCloser, error) {
	if path == nil {
		return nil, ErrLayoutNotFound
	}
	rc, err := s.blobs.Get(ctx, *path)
	if err != nil {
		if errors.Is(err, storage.ErrNotExist) {
			return nil, ErrLayoutNotFound
		}
		return nil, err
	}
	return rc, nil
}
