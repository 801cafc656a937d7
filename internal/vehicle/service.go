package vehicle

import (
	"context"
	"strings"

	"github.com/nekogravitycat/parking-booking-backend/internal/compat"
)

type RegisterRequest struct {
	OwnerID string
	Plate   string
	Class   compat.VehicleClass
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*Vehicle, error)
	GetByID(ctx context.Context, id string) (*Vehicle, error)
	ListByOwner(ctx context.Context, ownerID string, page, pageSize int) ([]*Vehicle, int, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Register normalizes the plate to upper case without surrounding spaces so
// "ab 123" and "AB 123 " are the same vehicle.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*Vehicle, error) {
	plate := strings.ToUpper(strings.TrimSpace(req.Plate))
	if plate == "" {
		return nil, ErrEmptyPlate
	}
	if !req.Class.Valid() {
		return nil, compat.ErrInvalidVehicleClass
	}

	v := &Vehicle{
		OwnerID: req.OwnerID,
		Plate:   plate,
		Class:   req.Class,
	}
	if err := s.repo.Create(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

func (s *service) GetByID(ctx context.Context, id string) (*Vehicle, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListByOwner(ctx context.Context, ownerID string, page, pageSize int) ([]*Vehicle, int, error) {
	return s.repo.List(ctx, Filter{OwnerID: ownerID, Page: page, PageSize: pageSize})
}
