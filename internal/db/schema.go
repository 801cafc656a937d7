package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is idempotent; EnsureSchema runs it on every start.
var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS pgcrypto`,

	`CREATE TABLE IF NOT EXISTS public.parking_areas (
		id                    uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		name                  text NOT NULL,
		location              text NOT NULL DEFAULT '',
		layout_path           text,
		layout_thumbnail_path text,
		created_at            timestamptz NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS public.parking_slots (
		id         bigserial PRIMARY KEY,
		area_id    uuid NOT NULL REFERENCES public.parking_areas (id),
		label      text NOT NULL,
		class      text NOT NULL CHECK (class IN ('car_slot', 'motorcycle_slot', 'bike_slot')),
		status     text NOT NULL DEFAULT 'free' CHECK (status IN ('free', 'held', 'occupied')),
		updated_at timestamptz NOT NULL DEFAULT now(),
		UNIQUE (area_id, label)
	)`,
	`CREATE INDEX IF NOT EXISTS parking_slots_area_status_idx
		ON public.parking_slots (area_id, status, id)`,

	`CREATE TABLE IF NOT EXISTS public.vehicles (
		id         uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		owner_id   text NOT NULL,
		plate      text NOT NULL,
		class      text NOT NULL CHECK (class IN ('car', 'motorcycle', 'bicycle', 'ebike')),
		created_at timestamptz NOT NULL DEFAULT now(),
		UNIQUE (owner_id, plate)
	)`,

	`CREATE TABLE IF NOT EXISTS public.bookings (
		id              uuid PRIMARY KEY DEFAULT gen_random_uuid(),
		vehicle_id      uuid NOT NULL REFERENCES public.vehicles (id),
		owner_id        text NOT NULL,
		area_id         uuid NOT NULL REFERENCES public.parking_areas (id),
		slot_id         bigint REFERENCES public.parking_slots (id),
		state           text NOT NULL CHECK (state IN ('pending', 'confirmed', 'cancelled', 'expired', 'rejected')),
		reason          text NOT NULL DEFAULT '',
		hold_expires_at timestamptz,
		created_at      timestamptz NOT NULL,
		updated_at      timestamptz NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS bookings_owner_created_idx
		ON public.bookings (owner_id, created_at DESC)`,
	`CREATE INDEX IF NOT EXISTS bookings_pending_expiry_idx
		ON public.bookings (hold_expires_at) WHERE state = 'pending'`,
	// A slot has at most one active booking.
	`CREATE UNIQUE INDEX IF NOT EXISTS bookings_active_slot_idx
		ON public.bookings (slot_id) WHERE state IN ('pending', 'confirmed')`,
}

// EnsureSchema creates the tables the pgx stores use, if missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for i, stmt := range schema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("schema statement %d failed: %w", i, err)
		}
	}
	return nil
}
