package compat

import (
	"fmt"
	"strings"
)

// Rules is the compatibility table indexed by vehicle class.
type Rules [vehicleClassEnd]SlotClassSet

// DefaultRules returns the built-in table. Every vehicle class has exactly
// the slot classes sized for it.
func DefaultRules() Rules {
	return Rules{
		Car:        NewSlotClassSet(CarSlot),
		Motorcycle: NewSlotClassSet(MotorcycleSlot),
		Bicycle:    NewSlotClassSet(BikeSlot),
		EBike:      NewSlotClassSet(BikeSlot),
	}
}

// ParseRules reads a table written as
// "car=car_slot;motorcycle=motorcycle_slot,car_slot;bicycle=bike_slot;ebike=bike_slot".
// Classes that are not mentioned keep their default entry.
func ParseRules(s string) (Rules, error) {
	rules := DefaultRules()
	s = strings.TrimSpace(s)
	if s == "" {
		return rules, nil
	}

	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		vehiclePart, slotsPart, ok := strings.Cut(entry, "=")
		if !ok {
			return Rules{}, fmt.Errorf("compat rule %q: expected <vehicle>=<slot>[,<slot>...]", entry)
		}
		vc, err := ParseVehicleClass(vehiclePart)
		if err != nil {
			return Rules{}, fmt.Errorf("compat rule %q: %w", entry, err)
		}
		var set SlotClassSet
		for _, name := range strings.Split(slotsPart, ",") {
			sc, err := ParseSlotClass(name)
			if err != nil {
				return Rules{}, fmt.Errorf("compat rule %q: %w", entry, err)
			}
			set = set.With(sc)
		}
		rules[vc] = set
	}
	return rules, nil
}

// Matcher answers compatibility questions against a fixed table.
// It is immutable after construction and safe for concurrent use.
type Matcher struct {
	rules Rules
}

// NewMatcher validates that the table is total: every vehicle class maps to at
// least one slot class.
func NewMatcher(rules Rules) (*Matcher, error) {
	for _, vc := range VehicleClasses() {
		if rules[vc].Empty() {
			return nil, fmt.Errorf("compat rules: no slot class for vehicle class %s", vc)
		}
	}
	return &Matcher{rules: rules}, nil
}

// NewDefaultMatcher builds a Matcher over DefaultRules.
func NewDefaultMatcher() *Matcher {
	return &Matcher{rules: DefaultRules()}
}

// CompatibleSlotClasses returns the slot classes vc may occupy.
func (m *Matcher) CompatibleSlotClasses(vc VehicleClass) (SlotClassSet, error) {
	if !vc.Valid() {
		return 0, ErrInvalidVehicleClass
	}
	return m.rules[vc], nil
}

// Allows reports whether a vehicle of class vc may occupy a slot of class sc.
func (m *Matcher) Allows(vc VehicleClass, sc SlotClass) bool {
	set, err := m.CompatibleSlotClasses(vc)
	return err == nil && set.Has(sc)
}
