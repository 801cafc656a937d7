package allocation

import (
	"context"
	"fmt"
	"strings"

	"github.com/nekogravitycat/parking-booking-backend/internal/compat"
	"github.com/nekogravitycat/parking-booking-backend/internal/inventory"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/paging"
)

// MaxAlternatives bounds how many other areas a Mismatch suggests.
const MaxAlternatives = 3

// Mismatch explains a rejected booking request.
type Mismatch struct {
	RequestedClass    compat.VehicleClass
	CompatibleClasses compat.SlotClassSet
	// AvailableClasses are the classes with at least one free slot in the
	// area, compatible or not.
	AvailableClasses compat.SlotClassSet
	Suggestion       string
	Alternatives     []Alternative
}

// Alternative is another area with free slots the vehicle could use.
type Alternative struct {
	AreaID    string
	AreaName  string
	FreeSlots int
}

type Resolver struct {
	matcher *compat.Matcher
	store   inventory.Store
}

func NewResolver(matcher *compat.Matcher, store inventory.Store) *Resolver {
	return &Resolver{matcher: matcher, store: store}
}

func (r *Resolver) Explain(ctx context.Context, vc compat.VehicleClass, areaID string) (*Mismatch, error) {
	compatible, err := r.matcher.CompatibleSlotClasses(vc)
	if err != nil {
		return nil, err
	}

	var all compat.SlotClassSet
	for _, c := range compat.SlotClasses() {
		all = all.With(c)
	}
	free, err := r.store.ListFreeSlots(ctx, areaID, all)
	if err != nil {
		return nil, err
	}

	var available compat.SlotClassSet
	for _, s := range free {
		available = available.With(s.Class)
	}

	alternatives, err := r.alternatives(ctx, areaID, compatible)
	if err != nil {
		return nil, err
	}

	return &Mismatch{
		RequestedClass:    vc,
		CompatibleClasses: compatible,
		AvailableClasses:  available,
		Suggestion:        suggestion(vc, compatible, available, alternatives),
		Alternatives:      alternatives,
	}, nil
}

// alternatives scans areas in listing order and stops once MaxAlternatives
// areas with a free compatible slot are found.
func (r *Resolver) alternatives(ctx context.Context, excludeAreaID string, classes compat.SlotClassSet) ([]Alternative, error) {
	var out []Alternative
	for page := 1; ; page++ {
		areas, total, err := r.store.ListAreas(ctx, inventory.Filter{Page: page, PageSize: paging.MaxPageSize})
		if err != nil {
			return nil, err
		}
		for _, a := range areas {
			if a.ID == excludeAreaID {
				continue
			}
			free, err := r.store.ListFreeSlots(ctx, a.ID, classes)
			if err != nil {
				return nil, err
			}
			if len(free) == 0 {
				continue
			}
			out = append(out, Alternative{AreaID: a.ID, AreaName: a.Name, FreeSlots: len(free)})
			if len(out) == MaxAlternatives {
				return out, nil
			}
		}
		if len(areas) == 0 || page*paging.MaxPageSize >= total {
			return out, nil
		}
	}
}

func suggestion(vc compat.VehicleClass, compatible, available compat.SlotClassSet, alternatives []Alternative) string {
	var b strings.Builder
	if available.Empty() {
		fmt.Fprintf(&b, "no compatible slot for %s; this area has no free slots", vc)
	} else {
		fmt.Fprintf(&b, "no compatible slot for %s (needs %s); this area currently has free %s slots only",
			vc, joinClasses(compatible), joinClasses(available))
	}
	if len(alternatives) > 0 {
		names := make([]string, len(alternatives))
		for i, a := range alternatives {
			names[i] = a.AreaName
		}
		fmt.Fprintf(&b, "; try %s", strings.Join(names, ", "))
	}
	return b.String()
}

func joinClasses(set compat.SlotClassSet) string {
	classes := set.Classes()
	names := make([]string, len(classes))
	for i, c := range classes {
		names[i] = c.String()
	}
	return strings.Join(names, ", ")
}
