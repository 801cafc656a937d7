package booking

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/paging"
)

type Repository interface {
	Create(ctx context.Context, booking *Booking) error
	GetByID(ctx context.Context, id string) (*Booking, error)
	List(ctx context.Context, filter Filter) ([]*Booking, int, error)
	// Update persists booking only if the stored state is still from, and
	// returns ErrInvalidState otherwise.
	Update(ctx context.Context, booking *Booking, from State) error
	// ListExpiredPending returns up to limit pending bookings whose hold
	// expired before now, oldest expiry first.
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*Booking, error)
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

var bookingColumns = []string{
	"id", "vehicle_id", "owner_id", "area_id", "slot_id", "state", "reason",
	"hold_expires_at", "created_at", "updated_at",
}

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) Create(ctx context.Context, b *Booking) error {
	query, args, err := psql.Insert("public.bookings").
		Columns("vehicle_id", "owner_id", "area_id", "slot_id", "state", "reason",
			"hold_expires_at", "created_at", "updated_at").
		Values(b.VehicleID, b.OwnerID, b.AreaID, b.SlotID, b.State, b.Reason,
			b.HoldExpiresAt, b.CreatedAt, b.UpdatedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create booking query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&b.ID); err != nil {
		return fmt.Errorf("create booking failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	query, args, err := psql.Select(bookingColumns...).
		From("public.bookings").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get booking query failed: %w", err)
	}

	b, err := scanBooking(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get booking failed: %w", err)
	}
	return b, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	query := psql.Select(append(bookingColumns, "count(*) OVER() AS total_count")...).
		From("public.bookings")

	if filter.OwnerID != "" {
		query = query.Where(squirrel.Eq{"owner_id": filter.OwnerID})
	}
	if filter.State != "" {
		query = query.Where(squirrel.Eq{"state": filter.State})
	}

	orderDir := "DESC"
	if strings.EqualFold(filter.SortOrder, "asc") {
		orderDir = "ASC"
	}
	page, pageSize := paging.Normalize(filter.Page, filter.PageSize)
	query = query.OrderBy("created_at "+orderDir, "id "+orderDir).
		Limit(uint64(pageSize)).
		Offset(uint64(paging.Offset(page, pageSize)))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list bookings query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list bookings failed: %w", err)
	}
	defer rows.Close()

	var bookings []*Booking
	var total int
	for rows.Next() {
		var b Booking
		if err := rows.Scan(
			&b.ID, &b.VehicleID, &b.OwnerID, &b.AreaID, &b.SlotID, &b.State, &b.Reason,
			&b.HoldExpiresAt, &b.CreatedAt, &b.UpdatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan booking failed: %w", err)
		}
		bookings = append(bookings, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate bookings failed: %w", err)
	}
	return bookings, total, nil
}

func (r *pgxRepository) Update(ctx context.Context, b *Booking, from State) error {
	query, args, err := psql.Update("public.bookings").
		Set("state", b.State).
		Set("hold_expires_at", b.HoldExpiresAt).
		Set("updated_at", b.UpdatedAt).
		Where(squirrel.Eq{"id": b.ID, "state": from}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update booking query failed: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update booking failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, b.ID); err != nil {
			return err
		}
		return ErrInvalidState
	}
	return nil
}

func (r *pgxRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*Booking, error) {
	query, args, err := psql.Select(bookingColumns...).
		From("public.bookings").
		Where(squirrel.Eq{"state": StatePending}).
		Where(squirrel.Lt{"hold_expires_at": now}).
		OrderBy("hold_expires_at ASC").
		Limit(uint64(limit)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list expired query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expired bookings failed: %w", err)
	}
	defer rows.Close()

	var out []*Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("scan booking failed: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired bookings failed: %w", err)
	}
	return out, nil
}

func scanBooking(row pgx.Row) (*Booking, error) {
	var b Booking
	if err := row.Scan(
		&b.ID, &b.VehicleID, &b.OwnerID, &b.AreaID, &b.SlotID, &b.State, &b.Reason,
		&b.HoldExpiresAt, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &b, nil
}

type memoryRepository struct {
	mu       sync.RWMutex
	bookings map[string]*Booking
	order    []string
}

func NewMemoryRepository() Repository {
	return &memoryRepository{bookings: make(map[string]*Booking)}
}

func (r *memoryRepository) Create(ctx context.Context, b *Booking) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b.ID = uuid.New().String()
	r.bookings[b.ID] = b.clone()
	r.order = append(r.order, b.ID)
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bookings[id]
	if !ok {
		return nil, ErrNotFound
	}
	return b.clone(), nil
}

func (r *memoryRepository) List(ctx context.Context, filter Filter) ([]*Booking, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Booking
	for _, id := range r.order {
		b := r.bookings[id]
		if filter.OwnerID != "" && b.OwnerID != filter.OwnerID {
			continue
		}
		if filter.State != "" && b.State != filter.State {
			continue
		}
		matched = append(matched, b.clone())
	}

	// r.order is creation order.
	if !strings.EqualFold(filter.SortOrder, "asc") {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}
	return paging.Slice(matched, filter.Page, filter.PageSize), len(matched), nil
}

func (r *memoryRepository) Update(ctx context.Context, b *Booking, from State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.bookings[b.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.State != from {
		return ErrInvalidState
	}
	r.bookings[b.ID] = b.clone()
	return nil
}

func (r *memoryRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Booking
	for _, b := range r.bookings {
		if b.State == StatePending && b.HoldExpiresAt != nil && b.HoldExpiresAt.Before(now) {
			out = append(out, b.clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].HoldExpiresAt.Before(*out[j].HoldExpiresAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
