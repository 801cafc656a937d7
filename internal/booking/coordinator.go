package booking

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nekogravitycat/parking-booking-backend/internal/allocation"
	"github.com/nekogravitycat/parking-booking-backend/internal/compat"
	"github.com/nekogravitycat/parking-booking-backend/internal/inventory"
	"github.com/nekogravitycat/parking-booking-backend/internal/logging"
	"github.com/nekogravitycat/parking-booking-backend/internal/metrics"
	"github.com/nekogravitycat/parking-booking-backend/internal/vehicle"
)

const (
	DefaultHoldTTL        = 5 * time.Minute
	DefaultSweepBatchSize = 100

	maxHoldAttempts = 5
)

// VehicleLookup resolves the vehicle a booking is requested for.
type VehicleLookup interface {
	GetByID(ctx context.Context, id string) (*vehicle.Vehicle, error)
}

type Service interface {
	RequestBooking(ctx context.Context, callerID, vehicleID, areaID string) (*Result, error)
	ConfirmBooking(ctx context.Context, callerID, bookingID string) (*Booking, error)
	// CancelBooking is idempotent: cancelling a cancelled, expired or
	// rejected booking returns it unchanged.
	CancelBooking(ctx context.Context, callerID, bookingID string) (*Booking, error)
	GetBookingStatus(ctx context.Context, callerID, bookingID string) (*StatusInfo, error)
	ListBookings(ctx context.Context, callerID string, filter Filter) ([]*Booking, int, error)
}

type Options struct {
	HoldTTL        time.Duration
	SweepBatchSize int
	Metrics        *metrics.Booking
	// Now defaults to time.Now in UTC.
	Now func() time.Time
}

// Coordinator owns every booking and slot status transition. All transitions
// touching an area run under that area's lock, so two requests can never
// hold the same slot.
type Coordinator struct {
	repo      Repository
	inventory inventory.Store
	vehicles  VehicleLookup
	policy    *allocation.Policy
	resolver  *allocation.Resolver

	holdTTL   time.Duration
	batchSize int
	metrics   *metrics.Booking
	tracer    trace.Tracer
	now       func() time.Time

	locksMu   sync.Mutex
	areaLocks map[string]*sync.Mutex
}

func NewCoordinator(
	repo Repository,
	store inventory.Store,
	vehicles VehicleLookup,
	policy *allocation.Policy,
	resolver *allocation.Resolver,
	opts Options,
) *Coordinator {
	if opts.HoldTTL <= 0 {
		opts.HoldTTL = DefaultHoldTTL
	}
	if opts.SweepBatchSize < 1 {
		opts.SweepBatchSize = DefaultSweepBatchSize
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNopBooking()
	}
	if opts.Now == nil {
		opts.Now = func() time.Time { return time.Now().UTC() }
	}

	return &Coordinator{
		repo:      repo,
		inventory: store,
		vehicles:  vehicles,
		policy:    policy,
		resolver:  resolver,
		holdTTL:   opts.HoldTTL,
		batchSize: opts.SweepBatchSize,
		metrics:   opts.Metrics,
		tracer:    otel.Tracer("parking-booking-backend/booking"),
		now:       opts.Now,
		areaLocks: make(map[string]*sync.Mutex),
	}
}

// lockArea blocks until the caller owns the area and returns the unlock func.
func (c *Coordinator) lockArea(areaID string) func() {
	c.locksMu.Lock()
	m, ok := c.areaLocks[areaID]
	if !ok {
		m = &sync.Mutex{}
		c.areaLocks[areaID] = m
	}
	c.locksMu.Unlock()

	m.Lock()
	return m.Unlock
}

func (c *Coordinator) RequestBooking(ctx context.Context, callerID, vehicleID, areaID string) (res *Result, err error) {
	ctx, span := c.tracer.Start(ctx, "booking.request", trace.WithAttributes(
		attribute.String("vehicle.id", vehicleID),
		attribute.String("area.id", areaID),
	))
	defer func() {
		outcome := "error"
		if err != nil {
			endSpan(span, err)
		} else {
			outcome = string(res.Status)
			span.SetAttributes(attribute.String("booking.status", outcome))
			span.End()
		}
		c.metrics.Requests.WithLabelValues(outcome).Inc()
	}()

	v, err := c.vehicles.GetByID(ctx, vehicleID)
	if err != nil {
		if errors.Is(err, vehicle.ErrNotFound) {
			return nil, ErrVehicleNotFound
		}
		return nil, err
	}
	if v.OwnerID != callerID {
		return nil, ErrPermissionDenied
	}
	span.SetAttributes(attribute.String("vehicle.class", v.Class.String()))

	if _, err := c.inventory.GetArea(ctx, areaID); err != nil {
		return nil, err
	}

	unlock := c.lockArea(areaID)
	defer unlock()

	slot, err := c.holdSlot(ctx, areaID, v.Class)
	if err != nil {
		return nil, err
	}

	now := c.now()
	b := &Booking{
		VehicleID: v.ID,
		OwnerID:   v.OwnerID,
		AreaID:    areaID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if slot == nil {
		mismatch, err := c.resolver.Explain(ctx, v.Class, areaID)
		if err != nil {
			return nil, err
		}
		b.State = StateRejected
		b.Reason = mismatch.Suggestion
		if err := c.repo.Create(ctx, b); err != nil {
			return nil, err
		}
		logging.Info(ctx, "booking rejected",
			"booking_id", b.ID,
			"area_id", areaID,
			"vehicle_class", v.Class.String(),
			"available_classes", mismatch.AvailableClasses.String(),
		)
		return &Result{Status: StateRejected, Booking: b, Mismatch: mismatch}, nil
	}

	expires := now.Add(c.holdTTL)
	slotID := slot.ID
	b.SlotID = &slotID
	b.State = StatePending
	b.HoldExpiresAt = &expires
	if err := c.repo.Create(ctx, b); err != nil {
		if rbErr := c.inventory.MarkFree(ctx, slot.ID); rbErr != nil {
			logging.Error(ctx, "failed to release slot after booking create failure",
				"slot_id", slot.ID, "error", rbErr.Error())
		}
		return nil, err
	}
	c.metrics.HeldSlots.Inc()

	span.SetAttributes(attribute.Int64("slot.id", slot.ID), attribute.String("booking.id", b.ID))
	logging.Info(ctx, "slot held",
		"booking_id", b.ID,
		"area_id", areaID,
		"slot_id", slot.ID,
		"hold_expires_at", expires,
	)
	return &Result{Status: StatePending, Booking: b}, nil
}

func (c *Coordinator) ConfirmBooking(ctx context.Context, callerID, bookingID string) (b *Booking, err error) {
	ctx, span := c.tracer.Start(ctx, "booking.confirm", trace.WithAttributes(
		attribute.String("booking.id", bookingID),
	))
	defer func() { endSpan(span, err) }()

	b, unlock, err := c.lockBooking(ctx, callerID, bookingID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	switch {
	case b.State == StateExpired:
		return nil, ErrHoldExpired
	case b.State != StatePending:
		return nil, ErrInvalidState
	case c.now().After(*b.HoldExpiresAt):
		if err := c.expireLocked(ctx, b); err != nil {
			return nil, err
		}
		return nil, ErrHoldExpired
	}

	// The booking row moves first: a held slot can be put back, an occupied one cannot.
	prev := b.clone()
	if err := c.transition(ctx, b, StateConfirmed); err != nil {
		return nil, err
	}
	if err := c.inventory.MarkOccupied(ctx, *b.SlotID); err != nil {
		if rbErr := c.repo.Update(ctx, prev, StateConfirmed); rbErr != nil {
			logging.Error(ctx, "failed to restore booking after slot update failure",
				"booking_id", b.ID, "slot_id", *b.SlotID, "error", rbErr.Error())
		}
		return nil, err
	}
	c.metrics.HeldSlots.Dec()
	return b, nil
}

func (c *Coordinator) CancelBooking(ctx context.Context, callerID, bookingID string) (b *Booking, err error) {
	ctx, span := c.tracer.Start(ctx, "booking.cancel", trace.WithAttributes(
		attribute.String("booking.id", bookingID),
	))
	defer func() { endSpan(span, err) }()

	b, unlock, err := c.lockBooking(ctx, callerID, bookingID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if b.State.Terminal() {
		span.AddEvent("already_terminal", trace.WithAttributes(attribute.String("booking.state", string(b.State))))
		return b, nil
	}

	wasPending := b.State == StatePending
	slotStatus := inventory.StatusOccupied
	if wasPending {
		slotStatus = inventory.StatusHeld
	}
	if err := c.inventory.MarkFree(ctx, *b.SlotID); err != nil {
		return nil, err
	}
	if err := c.transition(ctx, b, StateCancelled); err != nil {
		c.restoreSlot(ctx, *b.SlotID, slotStatus)
		return nil, err
	}
	if wasPending {
		c.metrics.HeldSlots.Dec()
	}
	return b, nil
}

func (c *Coordinator) GetBookingStatus(ctx context.Context, callerID, bookingID string) (*StatusInfo, error) {
	b, err := c.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if b.OwnerID != callerID {
		return nil, ErrPermissionDenied
	}
	return &StatusInfo{
		ID:            b.ID,
		State:         b.State,
		SlotID:        b.SlotID,
		HoldExpiresAt: b.HoldExpiresAt,
	}, nil
}

func (c *Coordinator) ListBookings(ctx context.Context, callerID string, filter Filter) ([]*Booking, int, error) {
	if filter.State != "" && !filter.State.Valid() {
		return nil, 0, ErrInvalidFilter
	}
	filter.OwnerID = callerID
	return c.repo.List(ctx, filter)
}

// SweepExpired expires pending bookings whose hold has passed and frees their
// slots, batch by batch, until none are left or a batch makes no progress.
func (c *Coordinator) SweepExpired(ctx context.Context) (expired int, err error) {
	ctx, span := c.tracer.Start(ctx, "booking.sweep")
	start := time.Now()
	defer func() {
		c.metrics.SweepDuration.Observe(time.Since(start).Seconds())
		span.SetAttributes(attribute.Int("booking.expired_count", expired))
		endSpan(span, err)
	}()

	var errs []error
	for {
		if err := ctx.Err(); err != nil {
			return expired, err
		}

		batch, err := c.repo.ListExpiredPending(ctx, c.now(), c.batchSize)
		if err != nil {
			return expired, err
		}

		progress := 0
		for _, candidate := range batch {
			ok, err := c.sweepOne(ctx, candidate)
			if err != nil {
				logging.Error(ctx, "failed to expire booking",
					"booking_id", candidate.ID,
					"area_id", candidate.AreaID,
					"error", err.Error(),
				)
				errs = append(errs, fmt.Errorf("booking %s: %w", candidate.ID, err))
				continue
			}
			if ok {
				progress++
			}
		}
		expired += progress
		c.metrics.SweepExpired.Add(float64(progress))

		if len(batch) < c.batchSize || progress == 0 {
			return expired, errors.Join(errs...)
		}
	}
}

// sweepOne re-reads the booking under its area lock, since it may have been
// confirmed or cancelled after the batch was listed.
func (c *Coordinator) sweepOne(ctx context.Context, candidate *Booking) (bool, error) {
	unlock := c.lockArea(candidate.AreaID)
	defer unlock()

	b, err := c.repo.GetByID(ctx, candidate.ID)
	if err != nil {
		return false, err
	}
	if b.State != StatePending || !b.HoldExpiresAt.Before(c.now()) {
		return false, nil
	}
	if err := c.expireLocked(ctx, b); err != nil {
		return false, err
	}
	return true, nil
}

// expireLocked frees the slot and marks b expired. The area lock must be held.
func (c *Coordinator) expireLocked(ctx context.Context, b *Booking) error {
	if err := c.inventory.MarkFree(ctx, *b.SlotID); err != nil {
		return err
	}
	expiredAt := *b.HoldExpiresAt
	if err := c.transition(ctx, b, StateExpired); err != nil {
		c.restoreSlot(ctx, *b.SlotID, inventory.StatusHeld)
		return err
	}
	c.metrics.HeldSlots.Dec()
	logging.Info(ctx, "booking expired",
		"booking_id", b.ID,
		"area_id", b.AreaID,
		"slot_id", *b.SlotID,
		"hold_expired_at", expiredAt,
	)
	return nil
}

// holdSlot selects and holds the first compatible free slot, or returns nil
// when there is none. A slot taken between selection and hold by another
// process fails its guarded transition; selection then runs again on the
// smaller free list. The area lock must be held.
func (c *Coordinator) holdSlot(ctx context.Context, areaID string, vc compat.VehicleClass) (*inventory.Slot, error) {
	for attempt := 1; ; attempt++ {
		slot, err := c.policy.SelectSlot(ctx, areaID, vc)
		if err != nil || slot == nil {
			return nil, err
		}

		err = c.inventory.MarkHeld(ctx, slot.ID)
		if err == nil {
			return slot, nil
		}
		if !errors.Is(err, inventory.ErrInvalidTransition) || attempt == maxHoldAttempts {
			return nil, err
		}
		logging.Warn(ctx, "slot taken concurrently, selecting again",
			"area_id", areaID, "slot_id", slot.ID, "attempt", attempt)
	}
}

// restoreSlot walks a freed slot back to status after the booking write
// failed. The area lock must be held.
func (c *Coordinator) restoreSlot(ctx context.Context, slotID int64, status inventory.Status) {
	err := c.inventory.MarkHeld(ctx, slotID)
	if err == nil && status == inventory.StatusOccupied {
		err = c.inventory.MarkOccupied(ctx, slotID)
	}
	if err != nil {
		logging.Error(ctx, "failed to restore slot after booking update failure",
			"slot_id", slotID, "status", string(status), "error", err.Error())
	}
}

// lockBooking loads the booking, checks ownership, takes its area lock and
// reloads it so the caller acts on the state seen under the lock.
func (c *Coordinator) lockBooking(ctx context.Context, callerID, bookingID string) (*Booking, func(), error) {
	b, err := c.repo.GetByID(ctx, bookingID)
	if err != nil {
		return nil, nil, err
	}
	if b.OwnerID != callerID {
		return nil, nil, ErrPermissionDenied
	}

	unlock := c.lockArea(b.AreaID)
	b, err = c.repo.GetByID(ctx, bookingID)
	if err != nil {
		unlock()
		return nil, nil, err
	}
	return b, unlock, nil
}

func (c *Coordinator) transition(ctx context.Context, b *Booking, to State) error {
	from := b.State
	if !from.CanTransition(to) {
		return fmt.Errorf("booking %s %s -> %s: %w", b.ID, from, to, ErrInvalidState)
	}

	b.State = to
	b.UpdatedAt = c.now()
	b.HoldExpiresAt = nil
	if err := c.repo.Update(ctx, b, from); err != nil {
		return err
	}
	c.metrics.Transitions.WithLabelValues(string(from), string(to)).Inc()
	return nil
}

// SyncHeldGauge sets the held slots gauge from the stored pending bookings.
// Used at startup when bookings survive a restart.
func (c *Coordinator) SyncHeldGauge(ctx context.Context) error {
	_, total, err := c.repo.List(ctx, Filter{State: StatePending, Page: 1, PageSize: 1})
	if err != nil {
		return err
	}
	c.metrics.HeldSlots.Set(float64(total))
	return nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
