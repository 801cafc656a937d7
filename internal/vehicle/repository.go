package vehicle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nekogravitycat/parking-booking-backend/internal/compat"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/paging"
)

type Repository interface {
	Create(ctx context.Context, v *Vehicle) error
	GetByID(ctx context.Context, id string) (*Vehicle, error)
	List(ctx context.Context, filter Filter) ([]*Vehicle, int, error)
}

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

type pgxRepository struct {
	pool *pgxpool.Pool
}

func NewPgxRepository(pool *pgxpool.Pool) Repository {
	return &pgxRepository{pool: pool}
}

func (r *pgxRepository) Create(ctx context.Context, v *Vehicle) error {
	query, args, err := psql.Insert("public.vehicles").
		Columns("owner_id", "plate", "class").
		Values(v.OwnerID, v.Plate, v.Class.String()).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create vehicle query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&v.ID, &v.CreatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return ErrPlateAlreadyRegistered
		}
		return fmt.Errorf("create vehicle failed: %w", err)
	}
	return nil
}

func (r *pgxRepository) GetByID(ctx context.Context, id string) (*Vehicle, error) {
	query, args, err := psql.Select("id", "owner_id", "plate", "class", "created_at").
		From("public.vehicles").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get vehicle query failed: %w", err)
	}

	var (
		v     Vehicle
		class string
	)
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&v.ID, &v.OwnerID, &v.Plate, &class, &v.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get vehicle failed: %w", err)
	}
	if v.Class, err = compat.ParseVehicleClass(class); err != nil {
		return nil, fmt.Errorf("vehicle %s: %w", v.ID, err)
	}
	return &v, nil
}

func (r *pgxRepository) List(ctx context.Context, filter Filter) ([]*Vehicle, int, error) {
	page, pageSize := paging.Normalize(filter.Page, filter.PageSize)
	query := psql.Select("id", "owner_id", "plate", "class", "created_at", "count(*) OVER() AS total_count").
		From("public.vehicles").
		OrderBy("created_at ASC", "id ASC").
		Limit(uint64(pageSize)).
		Offset(uint64(paging.Offset(page, pageSize)))
	if filter.OwnerID != "" {
		query = query.Where(squirrel.Eq{"owner_id": filter.OwnerID})
	}

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list vehicles query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list vehicles failed: %w", err)
	}
	defer rows.Close()

	var (
		out   []*Vehicle
		total int
	)
	for rows.Next() {
		var (
			v     Vehicle
			class string
		)
		if err := rows.Scan(&v.ID, &v.OwnerID, &v.Plate, &class, &v.CreatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("scan vehicle failed: %w", err)
		}
		if v.Class, err = compat.ParseVehicleClass(class); err != nil {
			return nil, 0, fmt.Errorf("vehicle %s: %w", v.ID, err)
		}
		out = append(out, &v)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate vehicles failed: %w", err)
	}
	return out, total, nil
}

type memoryRepository struct {
	mu       sync.RWMutex
	vehicles map[string]*Vehicle
	order    []string
	now      func() time.Time
}

func NewMemoryRepository() Repository {
	return &memoryRepository{
		vehicles: make(map[string]*Vehicle),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (r *memoryRepository) Create(ctx context.Context, v *Vehicle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.vehicles {
		if existing.OwnerID == v.OwnerID && existing.Plate == v.Plate {
			return ErrPlateAlreadyRegistered
		}
	}
	v.ID = uuid.New().String()
	v.CreatedAt = r.now()

	cp := *v
	r.vehicles[v.ID] = &cp
	r.order = append(r.order, v.ID)
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id string) (*Vehicle, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.vehicles[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	return &cp, nil
}

func (r *memoryRepository) List(ctx context.Context, filter Filter) ([]*Vehicle, int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Vehicle
	for _, id := range r.order {
		v := r.vehicles[id]
		if filter.OwnerID != "" && v.OwnerID != filter.OwnerID {
			continue
		}
		cp := *v
		matched = append(matched, &cp)
	}
	return paging.Slice(matched, filter.Page, filter.PageSize), len(matched), nil
}
