package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/nekogravitycat/parking-booking-backend/internal/compat"
	"github.com/nekogravitycat/parking-booking-backend/internal/logging"
)

// SeedDocument is the provisioning feed format read by LoadSeed.
//
//	{"areas": [{"name": "North lot", "location": "Gate 2",
//	            "slots": [{"label": "A-01", "class": "car_slot"}]}]}
type SeedDocument struct {
	Areas []SeedArea `json:"areas"`
}

type SeedArea struct {
	ID       string     `json:"id,omitempty"`
	Name     string     `json:"name"`
	Location string     `json:"location"`
	Slots    []SeedSlot `json:"slots"`
}

type SeedSlot struct {
	Label string           `json:"label"`
	Class compat.SlotClass `json:"class"`
}

// LoadSeed provisions every area and slot in the document, in document order,
// so slot IDs follow the listed layout. It stops at the first failure.
// Areas listed with an id that already exists are skipped, so a restart with
// the same feed against a database is a no-op.
func LoadSeed(ctx context.Context, store Store, r io.Reader) (int, error) {
	var doc SeedDocument
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&doc); err != nil {
		return 0, fmt.Errorf("decode seed: %w", err)
	}

	slots := 0
	for _, sa := range doc.Areas {
		area := &Area{ID: sa.ID, Name: sa.Name, Location: sa.Location}
		if area.ID != "" {
			if _, err := uuid.Parse(area.ID); err != nil {
				return slots, fmt.Errorf("seed area %q: id must be a uuid: %w", sa.ID, err)
			}
		}
		if area.ID != "" {
			if _, err := store.GetArea(ctx, area.ID); err == nil {
				logging.Info(ctx, "parking area already provisioned", "area_id", area.ID)
				continue
			} else if !errors.Is(err, ErrAreaNotFound) {
				return slots, fmt.Errorf("seed area %q: %w", sa.ID, err)
			}
		}
		if area.Name == "" {
			return slots, fmt.Errorf("seed area %q: %w", sa.ID, ErrEmptyName)
		}
		if err := store.CreateArea(ctx, area); err != nil {
			return slots, fmt.Errorf("seed area %q: %w", sa.Name, err)
		}
		for _, ss := range sa.Slots {
			if !ss.Class.Valid() {
				return slots, fmt.Errorf("seed slot %q: %w", ss.Label, compat.ErrInvalidSlotClass)
			}
			slot := &Slot{AreaID: area.ID, Label: ss.Label, Class: ss.Class}
			if err := store.CreateSlot(ctx, slot); err != nil {
				return slots, fmt.Errorf("seed slot %q in %q: %w", ss.Label, sa.Name, err)
			}
			slots++
		}
		logging.Info(ctx, "seeded parking area", "area_id", area.ID, "name", area.Name, "slots", len(sa.Slots))
	}
	return slots, nil
}
