package inventory

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/nekogravitycat/parking-booking-backend/internal/compat"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/paging"
)

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

type pgxStore struct {
	pool *pgxpool.Pool
}

// NewPgxStore returns a Store backed by the areas and slots tables.
func NewPgxStore(pool *pgxpool.Pool) Store {
	return &pgxStore{pool: pool}
}

var areaColumns = []string{"id", "name", "location", "layout_path", "layout_thumbnail_path", "created_at"}

func (r *pgxStore) CreateArea(ctx context.Context, a *Area) error {
	insert := psql.Insert("public.parking_areas")
	if a.ID != "" {
		insert = insert.Columns("id", "name", "location").Values(a.ID, a.Name, a.Location)
	} else {
		insert = insert.Columns("name", "location").Values(a.Name, a.Location)
	}
	query, args, err := insert.Suffix("RETURNING id, created_at").ToSql()
	if err != nil {
		return fmt.Errorf("build create area query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&a.ID, &a.CreatedAt); err != nil {
		return fmt.Errorf("create area failed: %w", err)
	}
	return nil
}

func (r *pgxStore) GetArea(ctx context.Context, id string) (*Area, error) {
	query, args, err := psql.Select(areaColumns...).
		From("public.parking_areas").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get area query failed: %w", err)
	}

	var a Area
	if err := r.pool.QueryRow(ctx, query, args...).Scan(
		&a.ID, &a.Name, &a.Location, &a.LayoutPath, &a.LayoutThumbnailPath, &a.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAreaNotFound
		}
		return nil, fmt.Errorf("get area failed: %w", err)
	}
	return &a, nil
}

func (r *pgxStore) ListAreas(ctx context.Context, filter Filter) ([]*Area, int, error) {
	query := psql.Select(append(areaColumns, "count(*) OVER() AS total_count")...).
		From("public.parking_areas")

	if filter.Keyword != "" {
		pattern := "%" + filter.Keyword + "%"
		query = query.Where(squirrel.Or{
			squirrel.ILike{"name": pattern},
			squirrel.ILike{"location": pattern},
		})
	}

	page, pageSize := paging.Normalize(filter.Page, filter.PageSize)
	query = query.OrderBy("name ASC").
		Limit(uint64(pageSize)).
		Offset(uint64(paging.Offset(page, pageSize)))

	sql, args, err := query.ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("build list areas query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list areas failed: %w", err)
	}
	defer rows.Close()

	var areas []*Area
	var total int
	for rows.Next() {
		var a Area
		if err := rows.Scan(
			&a.ID, &a.Name, &a.Location, &a.LayoutPath, &a.LayoutThumbnailPath, &a.CreatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan area failed: %w", err)
		}
		areas = append(areas, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate areas failed: %w", err)
	}
	return areas, total, nil
}

func (r *pgxStore) UpdateAreaLayout(ctx context.Context, id string, layout Layout) error {
	query, args, err := psql.Update("public.parking_areas").
		Set("layout_path", layout.Path).
		Set("layout_thumbnail_path", layout.ThumbnailPath).
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update layout query failed: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update layout failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrAreaNotFound
	}
	return nil
}

var slotColumns = []string{"id", "area_id", "label", "class", "status", "updated_at"}

func (r *pgxStore) CreateSlot(ctx context.Context, slot *Slot) error {
	query, args, err := psql.Insert("public.parking_slots").
		Columns("area_id", "label", "class", "status").
		Values(slot.AreaID, slot.Label, slot.Class.String(), StatusFree).
		Suffix("RETURNING id, status, updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("build create slot query failed: %w", err)
	}

	if err := r.pool.QueryRow(ctx, query, args...).Scan(&slot.ID, &slot.Status, &slot.UpdatedAt); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			switch pgErr.Code {
			case pgerrcode.UniqueViolation:
				return ErrLabelTaken
			case pgerrcode.ForeignKeyViolation:
				return ErrAreaNotFound
			}
		}
		return fmt.Errorf("create slot failed: %w", err)
	}
	return nil
}

func (r *pgxStore) GetSlot(ctx context.Context, id int64) (*Slot, error) {
	query, args, err := psql.Select(slotColumns...).
		From("public.parking_slots").
		Where(squirrel.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get slot query failed: %w", err)
	}

	slot, err := scanSlot(r.pool.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSlotNotFound
		}
		return nil, fmt.Errorf("get slot failed: %w", err)
	}
	return slot, nil
}

func (r *pgxStore) ListSlots(ctx context.Context, areaID string) ([]*Slot, error) {
	return r.listSlots(ctx, areaID, squirrel.Eq{"area_id": areaID})
}

func (r *pgxStore) ListFreeSlots(ctx context.Context, areaID string, classes compat.SlotClassSet) ([]*Slot, error) {
	names := make([]string, 0, len(classes.Classes()))
	for _, c := range classes.Classes() {
		names = append(names, c.String())
	}
	if len(names) == 0 {
		if _, err := r.GetArea(ctx, areaID); err != nil {
			return nil, err
		}
		return nil, nil
	}

	return r.listSlots(ctx, areaID, squirrel.And{
		squirrel.Eq{"area_id": areaID},
		squirrel.Eq{"status": StatusFree},
		squirrel.Eq{"class": names},
	})
}

func (r *pgxStore) listSlots(ctx context.Context, areaID string, where squirrel.Sqlizer) ([]*Slot, error) {
	query, args, err := psql.Select(slotColumns...).
		From("public.parking_slots").
		Where(where).
		OrderBy("id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list slots query failed: %w", err)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list slots failed: %w", err)
	}
	defer rows.Close()

	var slots []*Slot
	for rows.Next() {
		slot, err := scanSlot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan slot failed: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slots failed: %w", err)
	}

	// An empty result is ambiguous: distinguish "no slots" from "no area".
	if len(slots) == 0 {
		if _, err := r.GetArea(ctx, areaID); err != nil {
			return nil, err
		}
	}
	return slots, nil
}

func (r *pgxStore) MarkHeld(ctx context.Context, slotID int64) error {
	return r.transition(ctx, slotID, StatusHeld)
}

func (r *pgxStore) MarkOccupied(ctx context.Context, slotID int64) error {
	return r.transition(ctx, slotID, StatusOccupied)
}

func (r *pgxStore) MarkFree(ctx context.Context, slotID int64) error {
	return r.transition(ctx, slotID, StatusFree)
}

// transition applies the status change only when the current status is a
// legal predecessor, so the row itself enforces the transition graph.
func (r *pgxStore) transition(ctx context.Context, slotID int64, to Status) error {
	query, args, err := psql.Update("public.parking_slots").
		Set("status", to).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"id": slotID}).
		Where(squirrel.Eq{"status": allowedFrom[to]}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build slot transition query failed: %w", err)
	}

	ct, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("slot transition failed: %w", err)
	}
	if ct.RowsAffected() == 1 {
		return nil
	}

	current, err := r.GetSlot(ctx, slotID)
	if err != nil {
		return err
	}
	return fmt.Errorf("slot %d %s -> %s: %w", slotID, current.Status, to, ErrInvalidTransition)
}

func scanSlot(row pgx.Row) (*Slot, error) {
	var (
		s     Slot
		class string
	)
	if err := row.Scan(&s.ID, &s.AreaID, &s.Label, &class, &s.Status, &s.UpdatedAt); err != nil {
		return nil, err
	}
	c, err := compat.ParseSlotClass(class)
	if err != nil {
		return nil, fmt.Errorf("slot %d: %w", s.ID, err)
	}
	s.Class = c
	return &s, nil
}
