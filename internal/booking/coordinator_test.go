package booking

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nekogravitycat/parking-booking-backend/internal/allocation"
	"github.com/nekogravitycat/parking-booking-backend/internal/compat"
	"github.com/nekogravitycat/parking-booking-backend/internal/inventory"
	"github.com/nekogravitycat/parking-booking-backend/internal/metrics"
	"github.com/nekogravitycat/parking-booking-backend/internal/vehicle"
)

const holdTTL = 5 * time.Minute

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	coord    *Coordinator
	repo     Repository
	store    inventory.Store
	vehicles vehicle.Service
	clock    *fakeClock
	metrics  *metrics.Booking
	plates   int
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil, nil)
}

// newFixtureWith lets a test wrap the repository or the store the coordinator
// writes through. Selection always reads the unwrapped store.
func newFixtureWith(t *testing.T, wrapRepo func(Repository) Repository, wrapStore func(inventory.Store) inventory.Store) *fixture {
	t.Helper()
	store := inventory.NewMemoryStore()
	repo := NewMemoryRepository()
	var coordRepo Repository = repo
	if wrapRepo != nil {
		coordRepo = wrapRepo(repo)
	}
	var coordStore inventory.Store = store
	if wrapStore != nil {
		coordStore = wrapStore(store)
	}
	vehicles := vehicle.NewService(vehicle.NewMemoryRepository())
	matcher := compat.NewDefaultMatcher()
	clock := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	m, err := metrics.NewBooking(prometheus.NewRegistry())
	require.NoError(t, err)

	coord := NewCoordinator(coordRepo, coordStore, vehicles,
		allocation.NewPolicy(matcher, store),
		allocation.NewResolver(matcher, store),
		Options{HoldTTL: holdTTL, SweepBatchSize: 2, Metrics: m, Now: clock.Now},
	)
	return &fixture{coord: coord, repo: repo, store: store, vehicles: vehicles, clock: clock, metrics: m}
}

func (f *fixture) area(t *testing.T, name string, classes ...compat.SlotClass) (*inventory.Area, []*inventory.Slot) {
	t.Helper()
	ctx := context.Background()
	area := &inventory.Area{Name: name}
	require.NoError(t, f.store.CreateArea(ctx, area))

	var slots []*inventory.Slot
	for i, c := range classes {
		s := &inventory.Slot{AreaID: area.ID, Label: fmt.Sprintf("%s-%d", name, i+1), Class: c}
		require.NoError(t, f.store.CreateSlot(ctx, s))
		slots = append(slots, s)
	}
	return area, slots
}

func (f *fixture) vehicle(t *testing.T, owner string, class compat.VehicleClass) *vehicle.Vehicle {
	t.Helper()
	f.plates++
	v, err := f.vehicles.Register(context.Background(), vehicle.RegisterRequest{
		OwnerID: owner,
		Plate:   fmt.Sprintf("P-%d", f.plates),
		Class:   class,
	})
	require.NoError(t, err)
	return v
}

func (f *fixture) slotStatus(t *testing.T, id int64) inventory.Status {
	t.Helper()
	s, err := f.store.GetSlot(context.Background(), id)
	require.NoError(t, err)
	return s.Status
}

func TestRequestBooking(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	area, slots := f.area(t, "Lot", compat.CarSlot)
	car := f.vehicle(t, "alice", compat.Car)

	t.Run("Pending hold", func(t *testing.T) {
		res, err := f.coord.RequestBooking(ctx, "alice", car.ID, area.ID)
		require.NoError(t, err)
		assert.Equal(t, StatePending, res.Status)
		assert.Nil(t, res.Mismatch)

		b := res.Booking
		require.NotNil(t, b.SlotID)
		assert.Equal(t, slots[0].ID, *b.SlotID)
		require.NotNil(t, b.HoldExpiresAt)
		assert.Equal(t, f.clock.Now().Add(holdTTL), *b.HoldExpiresAt)
		assert.Equal(t, inventory.StatusHeld, f.slotStatus(t, slots[0].ID))
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.HeldSlots))
	})

	t.Run("Rejected when full", func(t *testing.T) {
		other := f.vehicle(t, "alice", compat.Car)
		res, err := f.coord.RequestBooking(ctx, "alice", other.ID, area.ID)
		require.NoError(t, err)
		assert.Equal(t, StateRejected, res.Status)
		require.NotNil(t, res.Mismatch)
		assert.Nil(t, res.Booking.SlotID)
		assert.Nil(t, res.Booking.HoldExpiresAt)
		assert.NotEmpty(t, res.Booking.Reason)

		stored, err := f.repo.GetByID(ctx, res.Booking.ID)
		require.NoError(t, err)
		assert.Equal(t, StateRejected, stored.State)
		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Requests.WithLabelValues("rejected")))
	})

	t.Run("Unknown vehicle", func(t *testing.T) {
		_, err := f.coord.RequestBooking(ctx, "alice", "missing", area.ID)
		assert.ErrorIs(t, err, ErrVehicleNotFound)
	})

	t.Run("Someone else's vehicle", func(t *testing.T) {
		_, err := f.coord.RequestBooking(ctx, "mallory", car.ID, area.ID)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})

	t.Run("Unknown area", func(t *testing.T) {
		_, err := f.coord.RequestBooking(ctx, "alice", car.ID, "missing")
		assert.ErrorIs(t, err, ErrAreaNotFound)
	})
}

// One car, one motorcycle and one bike slot; two cars and a bicycle arrive.
func TestThreeSlotScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	area, slots := f.area(t, "Three", compat.CarSlot, compat.MotorcycleSlot, compat.BikeSlot)

	car1 := f.vehicle(t, "u1", compat.Car)
	car2 := f.vehicle(t, "u2", compat.Car)
	bike := f.vehicle(t, "u3", compat.Bicycle)

	r1, err := f.coord.RequestBooking(ctx, "u1", car1.ID, area.ID)
	require.NoError(t, err)
	require.Equal(t, StatePending, r1.Status)
	assert.Equal(t, slots[0].ID, *r1.Booking.SlotID)

	r2, err := f.coord.RequestBooking(ctx, "u2", car2.ID, area.ID)
	require.NoError(t, err)
	require.Equal(t, StateRejected, r2.Status)
	assert.Equal(t, compat.Car, r2.Mismatch.RequestedClass)
	assert.Equal(t, compat.NewSlotClassSet(compat.MotorcycleSlot, compat.BikeSlot), r2.Mismatch.AvailableClasses)

	r3, err := f.coord.RequestBooking(ctx, "u3", bike.ID, area.ID)
	require.NoError(t, err)
	require.Equal(t, StatePending, r3.Status)
	assert.Equal(t, slots[2].ID, *r3.Booking.SlotID)

	confirmed, err := f.coord.ConfirmBooking(ctx, "u1", r1.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, StateConfirmed, confirmed.State)
	assert.Nil(t, confirmed.HoldExpiresAt)
	assert.Equal(t, inventory.StatusOccupied, f.slotStatus(t, slots[0].ID))

	_, err = f.coord.CancelBooking(ctx, "u1", r1.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, inventory.StatusFree, f.slotStatus(t, slots[0].ID))

	r4, err := f.coord.RequestBooking(ctx, "u2", car2.ID, area.ID)
	require.NoError(t, err)
	assert.Equal(t, StatePending, r4.Status)
	assert.Equal(t, slots[0].ID, *r4.Booking.SlotID)
}

func TestConcurrentRequestsNeverShareASlot(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	area, slots := f.area(t, "Race", compat.CarSlot)

	const n = 50
	cars := make([]*vehicle.Vehicle, n)
	for i := range cars {
		cars[i] = f.vehicle(t, fmt.Sprintf("u%d", i), compat.Car)
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		pending []*Booking
		errs    []error
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(v *vehicle.Vehicle) {
			defer wg.Done()
			<-start
			res, err := f.coord.RequestBooking(ctx, v.OwnerID, v.ID, area.ID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			if res.Status == StatePending {
				pending = append(pending, res.Booking)
			}
		}(cars[i])
	}
	close(start)
	wg.Wait()

	assert.Empty(t, errs)
	require.Len(t, pending, 1, "exactly one request may win the only slot")
	assert.Equal(t, slots[0].ID, *pending[0].SlotID)
	assert.Equal(t, float64(n-1), testutil.ToFloat64(f.metrics.Requests.WithLabelValues("rejected")))
}

func TestConcurrentMixedOperationsKeepExclusivity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	area, slots := f.area(t, "Busy", compat.CarSlot, compat.CarSlot, compat.CarSlot)

	const workers = 12
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		owner := fmt.Sprintf("w%d", i)
		v := f.vehicle(t, owner, compat.Car)
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				res, err := f.coord.RequestBooking(ctx, owner, v.ID, area.ID)
				if !assert.NoError(t, err) || res.Status != StatePending {
					continue
				}
				if (i+j)%2 == 0 {
					_, err = f.coord.ConfirmBooking(ctx, owner, res.Booking.ID)
					assert.NoError(t, err)
				}
				_, err = f.coord.CancelBooking(ctx, owner, res.Booking.ID)
				assert.NoError(t, err)
			}
		}(i)
	}
	wg.Wait()

	for _, s := range slots {
		assert.Equal(t, inventory.StatusFree, f.slotStatus(t, s.ID))
	}
	active, _, err := f.repo.List(ctx, Filter{State: StatePending})
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.HeldSlots))
}

func TestConfirmBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("Expired hold on confirm", func(t *testing.T) {
		f := newFixture(t)
		area, slots := f.area(t, "Lot", compat.CarSlot)
		car := f.vehicle(t, "alice", compat.Car)

		res, err := f.coord.RequestBooking(ctx, "alice", car.ID, area.ID)
		require.NoError(t, err)

		f.clock.Advance(holdTTL + time.Second)
		_, err = f.coord.ConfirmBooking(ctx, "alice", res.Booking.ID)
		assert.ErrorIs(t, err, ErrHoldExpired)

		stored, err := f.repo.GetByID(ctx, res.Booking.ID)
		require.NoError(t, err)
		assert.Equal(t, StateExpired, stored.State)
		assert.Nil(t, stored.HoldExpiresAt)
		assert.Equal(t, inventory.StatusFree, f.slotStatus(t, slots[0].ID))

		_, err = f.coord.ConfirmBooking(ctx, "alice", res.Booking.ID)
		assert.ErrorIs(t, err, ErrHoldExpired, "already expired")
	})

	t.Run("Exactly at expiry still confirms", func(t *testing.T) {
		f := newFixture(t)
		area, _ := f.area(t, "Lot", compat.CarSlot)
		car := f.vehicle(t, "alice", compat.Car)

		res, err := f.coord.RequestBooking(ctx, "alice", car.ID, area.ID)
		require.NoError(t, err)

		f.clock.Advance(holdTTL)
		b, err := f.coord.ConfirmBooking(ctx, "alice", res.Booking.ID)
		require.NoError(t, err)
		assert.Equal(t, StateConfirmed, b.State)
	})

	t.Run("Invalid states", func(t *testing.T) {
		f := newFixture(t)
		area, _ := f.area(t, "Lot", compat.CarSlot)
		car := f.vehicle(t, "alice", compat.Car)

		res, err := f.coord.RequestBooking(ctx, "alice", car.ID, area.ID)
		require.NoError(t, err)
		_, err = f.coord.ConfirmBooking(ctx, "alice", res.Booking.ID)
		require.NoError(t, err)

		_, err = f.coord.ConfirmBooking(ctx, "alice", res.Booking.ID)
		assert.ErrorIs(t, err, ErrInvalidState, "confirmed twice")

		rejected, err := f.coord.RequestBooking(ctx, "alice", f.vehicle(t, "alice", compat.Car).ID, area.ID)
		require.NoError(t, err)
		require.Equal(t, StateRejected, rejected.Status)
		_, err = f.coord.ConfirmBooking(ctx, "alice", rejected.Booking.ID)
		assert.ErrorIs(t, err, ErrInvalidState, "rejected")

		_, err = f.coord.CancelBooking(ctx, "alice", res.Booking.ID)
		require.NoError(t, err)
		_, err = f.coord.ConfirmBooking(ctx, "alice", res.Booking.ID)
		assert.ErrorIs(t, err, ErrInvalidState, "cancelled")
	})

	t.Run("Unknown booking", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.coord.ConfirmBooking(ctx, "alice", "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("Not the owner", func(t *testing.T) {
		f := newFixture(t)
		area, _ := f.area(t, "Lot", compat.CarSlot)
		car := f.vehicle(t, "alice", compat.Car)
		res, err := f.coord.RequestBooking(ctx, "alice", car.ID, area.ID)
		require.NoError(t, err)

		_, err = f.coord.ConfirmBooking(ctx, "mallory", res.Booking.ID)
		assert.ErrorIs(t, err, ErrPermissionDenied)
		_, err = f.coord.CancelBooking(ctx, "mallory", res.Booking.ID)
		assert.ErrorIs(t, err, ErrPermissionDenied)
		_, err = f.coord.GetBookingStatus(ctx, "mallory", res.Booking.ID)
		assert.ErrorIs(t, err, ErrPermissionDenied)
	})
}

func TestCancelBookingIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	area, slots := f.area(t, "Lot", compat.CarSlot)
	car := f.vehicle(t, "alice", compat.Car)

	res, err := f.coord.RequestBooking(ctx, "alice", car.ID, area.ID)
	require.NoError(t, err)

	first, err := f.coord.CancelBooking(ctx, "alice", res.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, StateCancelled, first.State)
	assert.Nil(t, first.HoldExpiresAt)
	assert.Equal(t, inventory.StatusFree, f.slotStatus(t, slots[0].ID))

	second, err := f.coord.CancelBooking(ctx, "alice", res.Booking.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Transitions.WithLabelValues("pending", "cancelled")))

	t.Run("Expired and rejected", func(t *testing.T) {
		held, err := f.coord.RequestBooking(ctx, "alice", car.ID, area.ID)
		require.NoError(t, err)
		rejected, err := f.coord.RequestBooking(ctx, "alice", f.vehicle(t, "alice", compat.Car).ID, area.ID)
		require.NoError(t, err)
		require.Equal(t, StateRejected, rejected.Status)

		f.clock.Advance(holdTTL + time.Minute)
		n, err := f.coord.SweepExpired(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, n)

		b, err := f.coord.CancelBooking(ctx, "alice", held.Booking.ID)
		require.NoError(t, err)
		assert.Equal(t, StateExpired, b.State)

		b, err = f.coord.CancelBooking(ctx, "alice", rejected.Booking.ID)
		require.NoError(t, err)
		assert.Equal(t, StateRejected, b.State)

		assert.Equal(t, inventory.StatusFree, f.slotStatus(t, slots[0].ID))
	})
}

func TestSweepExpired(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	area, slots := f.area(t, "Lot",
		compat.CarSlot, compat.CarSlot, compat.CarSlot, compat.CarSlot, compat.CarSlot)

	var ids []string
	for i := 0; i < 5; i++ {
		v := f.vehicle(t, "alice", compat.Car)
		res, err := f.coord.RequestBooking(ctx, "alice", v.ID, area.ID)
		require.NoError(t, err)
		require.Equal(t, StatePending, res.Status)
		ids = append(ids, res.Booking.ID)
		f.clock.Advance(time.Second)
	}

	_, err := f.coord.ConfirmBooking(ctx, "alice", ids[0])
	require.NoError(t, err)

	t.Run("Nothing expired yet", func(t *testing.T) {
		n, err := f.coord.SweepExpired(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	// Holds of ids[1..4] expire at +1s..+4s after TTL; stop between them.
	f.clock.Advance(holdTTL - 5*time.Second + 2500*time.Millisecond)

	n, err := f.coord.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	f.clock.Advance(time.Hour)
	n, err = f.coord.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for i, id := range ids {
		info, err := f.coord.GetBookingStatus(ctx, "alice", id)
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, StateConfirmed, info.State)
			assert.Equal(t, inventory.StatusOccupied, f.slotStatus(t, slots[i].ID))
			continue
		}
		assert.Equal(t, StateExpired, info.State)
		assert.Nil(t, info.HoldExpiresAt)
		assert.Equal(t, inventory.StatusFree, f.slotStatus(t, slots[i].ID))
	}
	assert.Equal(t, 4.0, testutil.ToFloat64(f.metrics.SweepExpired))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.HeldSlots))
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	f := newFixture(t)
	area, slots := f.area(t, "Lot", compat.CarSlot)
	car := f.vehicle(t, "alice", compat.Car)

	_, err := f.coord.RequestBooking(context.Background(), "alice", car.ID, area.ID)
	require.NoError(t, err)
	f.clock.Advance(holdTTL + time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		NewSweeper(f.coord, 10*time.Millisecond).Run(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		s, err := f.store.GetSlot(context.Background(), slots[0].ID)
		return err == nil && s.Status == inventory.StatusFree
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("sweeper did not stop")
	}
}

func TestListBookings(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	area, _ := f.area(t, "Lot", compat.CarSlot)

	car := f.vehicle(t, "alice", compat.Car)
	held, err := f.coord.RequestBooking(ctx, "alice", car.ID, area.ID)
	require.NoError(t, err)
	f.clock.Advance(time.Second)
	rejected, err := f.coord.RequestBooking(ctx, "alice", f.vehicle(t, "alice", compat.Car).ID, area.ID)
	require.NoError(t, err)

	_, err = f.coord.RequestBooking(ctx, "bob", f.vehicle(t, "bob", compat.Car).ID, area.ID)
	require.NoError(t, err)

	list, total, err := f.coord.ListBookings(ctx, "alice", Filter{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	require.Len(t, list, 2)
	assert.Equal(t, rejected.Booking.ID, list[0].ID, "newest first")
	assert.Equal(t, held.Booking.ID, list[1].ID)

	list, total, err = f.coord.ListBookings(ctx, "alice", Filter{State: StatePending})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, held.Booking.ID, list[0].ID)

	_, _, err = f.coord.ListBookings(ctx, "alice", Filter{State: "parked"})
	assert.ErrorIs(t, err, ErrInvalidFilter)
}

func TestStateTransitions(t *testing.T) {
	assert.True(t, StatePending.CanTransition(StateConfirmed))
	assert.True(t, StatePending.CanTransition(StateExpired))
	assert.True(t, StateConfirmed.CanTransition(StateCancelled))
	assert.False(t, StateConfirmed.CanTransition(StateExpired))
	assert.False(t, StateCancelled.CanTransition(StatePending))
	assert.False(t, StateRejected.CanTransition(StateCancelled))

	for _, s := range []State{StateCancelled, StateExpired, StateRejected} {
		assert.True(t, s.Terminal(), s)
	}
	assert.False(t, StatePending.Terminal())
	assert.False(t, StateConfirmed.Terminal())
}
