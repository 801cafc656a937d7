// Package compat holds the vehicle and slot class enums and the static rule
// table that says which slot classes a vehicle class may occupy.
package compat

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/apperror"
)

var (
	ErrInvalidVehicleClass = apperror.New(http.StatusUnprocessableEntity, "invalid_vehicle_class", "invalid vehicle class")
	ErrInvalidSlotClass    = apperror.New(http.StatusUnprocessableEntity, "invalid_slot_class", "invalid slot class")
)

// VehicleClass is the category of a registered vehicle.
// The zero value is invalid so an unset field is never mistaken for a car.
type VehicleClass uint8

const (
	Car VehicleClass = iota + 1
	Motorcycle
	Bicycle
	EBike

	vehicleClassEnd
)

var vehicleClassNames = [vehicleClassEnd]string{
	Car:        "car",
	Motorcycle: "motorcycle",
	Bicycle:    "bicycle",
	EBike:      "ebike",
}

// VehicleClasses lists every valid vehicle class in declaration order.
func VehicleClasses() []VehicleClass {
	out := make([]VehicleClass, 0, vehicleClassEnd-1)
	for c := Car; c < vehicleClassEnd; c++ {
		out = append(out, c)
	}
	return out
}

func (c VehicleClass) Valid() bool {
	return c >= Car && c < vehicleClassEnd
}

func (c VehicleClass) String() string {
	if !c.Valid() {
		return fmt.Sprintf("VehicleClass(%d)", uint8(c))
	}
	return vehicleClassNames[c]
}

// ParseVehicleClass maps the wire name ("car", "ebike", ...) to its class.
func ParseVehicleClass(s string) (VehicleClass, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for c := Car; c < vehicleClassEnd; c++ {
		if vehicleClassNames[c] == name {
			return c, nil
		}
	}
	return 0, apperror.Wrap(ErrInvalidVehicleClass, fmt.Errorf("unknown vehicle class %q", s))
}

func (c VehicleClass) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, ErrInvalidVehicleClass
	}
	return []byte(c.String()), nil
}

func (c *VehicleClass) UnmarshalText(b []byte) error {
	v, err := ParseVehicleClass(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// SlotClass is the category of a parking space.
type SlotClass uint8

const (
	CarSlot SlotClass = iota + 1
	MotorcycleSlot
	BikeSlot

	slotClassEnd
)

var slotClassNames = [slotClassEnd]string{
	CarSlot:        "car_slot",
	MotorcycleSlot: "motorcycle_slot",
	BikeSlot:       "bike_slot",
}

// SlotClasses lists every valid slot class in declaration order.
func SlotClasses() []SlotClass {
	out := make([]SlotClass, 0, slotClassEnd-1)
	for c := CarSlot; c < slotClassEnd; c++ {
		out = append(out, c)
	}
	return out
}

func (c SlotClass) Valid() bool {
	return c >= CarSlot && c < slotClassEnd
}

func (c SlotClass) String() string {
	if !c.Valid() {
		return fmt.Sprintf("SlotClass(%d)", uint8(c))
	}
	return slotClassNames[c]
}

// ParseSlotClass maps the wire name ("car_slot", ...) to its class.
func ParseSlotClass(s string) (SlotClass, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for c := CarSlot; c < slotClassEnd; c++ {
		if slotClassNames[c] == name {
			return c, nil
		}
	}
	return 0, apperror.Wrap(ErrInvalidSlotClass, fmt.Errorf("unknown slot class %q", s))
}

func (c SlotClass) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, ErrInvalidSlotClass
	}
	return []byte(c.String()), nil
}

func (c *SlotClass) UnmarshalText(b []byte) error {
	v, err := ParseSlotClass(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// SlotClassSet is a bitset of slot classes.
type SlotClassSet uint8

func NewSlotClassSet(classes ...SlotClass) SlotClassSet {
	var s SlotClassSet
	for _, c := range classes {
		s = s.With(c)
	}
	return s
}

// With returns the set plus c. Invalid classes are ignored.
func (s SlotClassSet) With(c SlotClass) SlotClassSet {
	if !c.Valid() {
		return s
	}
	return s | 1<<c
}

func (s SlotClassSet) Has(c SlotClass) bool {
	return c.Valid() && s&(1<<c) != 0
}

func (s SlotClassSet) Empty() bool {
	return s == 0
}

// Classes returns the members in declaration order.
func (s SlotClassSet) Classes() []SlotClass {
	out := []SlotClass{}
	for c := CarSlot; c < slotClassEnd; c++ {
		if s.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

func (s SlotClassSet) String() string {
	names := make([]string, 0, slotClassEnd)
	for _, c := range s.Classes() {
		names = append(names, c.String())
	}
	return "{" + strings.Join(names, ",") + "}"
}
