package inventory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nekogravitycat/parking-booking-backend/internal/compat"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/paging"
)

type memoryStore struct {
	mu         sync.RWMutex
	areas      map[string]*Area
	areaOrder  []string
	slots      map[int64]*Slot
	areaSlots  map[string][]int64 // ascending
	nextSlotID int64
	now        func() time.Time
}

// NewMemoryStore returns an empty in-process Store. Returned areas and slots
// are copies; mutating them does not change the store.
func NewMemoryStore() Store {
	return &memoryStore{
		areas:     make(map[string]*Area),
		slots:     make(map[int64]*Slot),
		areaSlots: make(map[string][]int64),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *memoryStore) CreateArea(ctx context.Context, a *Area) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = uuid.New().String()
	}
	if _, exists := s.areas[a.ID]; exists {
		return fmt.Errorf("area %s already exists", a.ID)
	}
	a.CreatedAt = s.now()

	cp := *a
	s.areas[a.ID] = &cp
	s.areaOrder = append(s.areaOrder, a.ID)
	return nil
}

func (s *memoryStore) GetArea(ctx context.Context, id string) (*Area, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.areas[id]
	if !ok {
		return nil, ErrAreaNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *memoryStore) ListAreas(ctx context.Context, filter Filter) ([]*Area, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keyword := strings.ToLower(strings.TrimSpace(filter.Keyword))
	var matched []*Area
	for _, id := range s.areaOrder {
		a := s.areas[id]
		if keyword != "" &&
			!strings.Contains(strings.ToLower(a.Name), keyword) &&
			!strings.Contains(strings.ToLower(a.Location), keyword) {
			continue
		}
		cp := *a
		matched = append(matched, &cp)
	}

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Name < matched[j].Name
	})

	return paging.Slice(matched, filter.Page, filter.PageSize), len(matched), nil
}

func (s *memoryStore) UpdateAreaLayout(ctx context.Context, id string, layout Layout) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.areas[id]
	if !ok {
		return ErrAreaNotFound
	}
	path := layout.Path
	a.LayoutPath = &path
	a.LayoutThumbnailPath = layout.ThumbnailPath
	return nil
}

func (s *memoryStore) CreateSlot(ctx context.Context, slot *Slot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.areas[slot.AreaID]; !ok {
		return ErrAreaNotFound
	}
	for _, id := range s.areaSlots[slot.AreaID] {
		if s.slots[id].Label == slot.Label {
			return ErrLabelTaken
		}
	}

	s.nextSlotID++
	slot.ID = s.nextSlotID
	slot.Status = StatusFree
	slot.UpdatedAt = s.now()

	cp := *slot
	s.slots[slot.ID] = &cp
	// IDs only grow, so appending keeps the per-area list sorted.
	s.areaSlots[slot.AreaID] = append(s.areaSlots[slot.AreaID], slot.ID)
	return nil
}

func (s *memoryStore) GetSlot(ctx context.Context, id int64) (*Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slot, ok := s.slots[id]
	if !ok {
		return nil, ErrSlotNotFound
	}
	cp := *slot
	return &cp, nil
}

func (s *memoryStore) ListSlots(ctx context.Context, areaID string) ([]*Slot, error) {
	return s.list(areaID, func(*Slot) bool { return true })
}

func (s *memoryStore) ListFreeSlots(ctx context.Context, areaID string, classes compat.SlotClassSet) ([]*Slot, error) {
	return s.list(areaID, func(slot *Slot) bool {
		return slot.Status == StatusFree && classes.Has(slot.Class)
	})
}

func (s *memoryStore) list(areaID string, keep func(*Slot) bool) ([]*Slot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.areas[areaID]; !ok {
		return nil, ErrAreaNotFound
	}

	var out []*Slot
	for _, id := range s.areaSlots[areaID] {
		slot := s.slots[id]
		if keep(slot) {
			cp := *slot
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (s *memoryStore) MarkHeld(ctx context.Context, slotID int64) error {
	return s.transition(slotID, StatusHeld)
}

func (s *memoryStore) MarkOccupied(ctx context.Context, slotID int64) error {
	return s.transition(slotID, StatusOccupied)
}

func (s *memoryStore) MarkFree(ctx context.Context, slotID int64) error {
	return s.transition(slotID, StatusFree)
}

func (s *memoryStore) transition(slotID int64, to Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.slots[slotID]
	if !ok {
		return ErrSlotNotFound
	}
	if !slot.Status.CanTransition(to) {
		return fmt.Errorf("slot %d %s -> %s: %w", slotID, slot.Status, to, ErrInvalidTransition)
	}
	slot.Status = to
	slot.UpdatedAt = s.now()
	return nil
}
