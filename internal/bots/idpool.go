package bots

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// The reservation pool keeps pre-allocated low display ids so freshly
// generated bots are indistinguishable from organically-registered users.
// Ids live in level buckets 1..5; reservation drains the highest bucket
// first so the base level-1 allocation survives longest.

// PoolLevelForSize derives the pool level from the number of available ids.
// It is recomputed after every reservation, so the level regresses as the
// pool drains.
func PoolLevelForSize(size int) int {
	switch {
	case size >= 86:
		return 5
	case size >= 36:
		return 4
	case size >= 16:
		return 3
	case size >= 6:
		return 2
	default:
		return 1
	}
}

// poolSeedLevel assigns the bucket for the i-th seeded id (0-based): the
// first 5 ids form the base bucket, later ids spill into overflow tiers.
func poolSeedLevel(i int) int {
	switch {
	case i < 5:
		return 1
	case i < 15:
		return 2
	case i < 35:
		return 3
	case i < 85:
		return 4
	default:
		return 5
	}
}

type PoolStatus struct {
	Size         int         `json:"size"`
	CurrentLevel int         `json:"current_level"`
	ByLevel      map[int]int `json:"by_level"`
}

// reserveDisplayID pops one id inside the caller's transaction, preferring
// the highest non-empty bucket, and persists the recomputed level in the
// same transaction so concurrent generation calls cannot lose the update.
// ok is false when the pool is empty; that is an expected condition, not an
// error.
func reserveDisplayID(ctx context.Context, tx pgx.Tx) (id int64, ok bool, err error) {
	err = tx.QueryRow(ctx, `
		DELETE FROM id_pool
		WHERE id = (
			SELECT id FROM id_pool
			ORDER BY level DESC, id ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id
	`).Scan(&id)
	if err == pgx.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}

	var size int
	if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM id_pool`).Scan(&size); err != nil {
		return 0, false, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE id_pool_state SET current_level = $1, updated_at = now() WHERE id = 1
	`, PoolLevelForSize(size)); err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// nextFallbackDisplayID synthesizes a display id when the pool is empty.
// Fallback ids live at or above FallbackDisplayIDFloor so they can be
// recognized and excluded later; the max query ignores other fallback ids so
// one bad batch cannot ratchet the range upward forever.
func nextFallbackDisplayID(ctx context.Context, tx pgx.Tx, offset int64) (int64, error) {
	var maxReal int64
	if err := tx.QueryRow(ctx, `
		SELECT COALESCE(MAX(reserved_display_id), 0)
		FROM bots
		WHERE reserved_display_id < $1
	`, FallbackDisplayIDFloor).Scan(&maxReal); err != nil {
		return 0, err
	}
	return fallbackDisplayID(maxReal, offset), nil
}

func fallbackDisplayID(maxRealID, offset int64) int64 {
	base := FallbackDisplayIDFloor
	if maxRealID >= base {
		base = maxRealID + 1
	}
	return base + offset
}

// SeedPool replaces the pool contents with the given ids, bucketed base
// first, and persists the derived level.
func (s *Service) SeedPool(ctx context.Context, ids []int64) (PoolStatus, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return PoolStatus{}, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM id_pool`); err != nil {
		return PoolStatus{}, err
	}
	for i, id := range ids {
		if _, err := tx.Exec(ctx, `
			INSERT INTO id_pool (id, level) VALUES ($1, $2)
			ON CONFLICT (id) DO NOTHING
		`, id, poolSeedLevel(i)); err != nil {
			return PoolStatus{}, err
		}
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO id_pool_state (id, current_level) VALUES (1, $1)
		ON CONFLICT (id) DO UPDATE SET current_level = $1, updated_at = now()
	`, PoolLevelForSize(len(ids))); err != nil {
		return PoolStatus{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return PoolStatus{}, err
	}
	return s.Pool(ctx)
}

// Pool reports the current pool size, level and bucket breakdown.
func (s *Service) Pool(ctx context.Context) (PoolStatus, error) {
	out := PoolStatus{ByLevel: map[int]int{}}
	rows, err := s.db.Query(ctx, `
		SELECT level, COUNT(*) FROM id_pool GROUP BY level ORDER BY level
	`)
	if err != nil {
		return out, err
	}
	defer rows.Close()
	for rows.Next() {
		var level, n int
		if err := rows.Scan(&level, &n); err != nil {
			return out, err
		}
		out.ByLevel[level] = n
		out.Size += n
	}
	if err := rows.Err(); err != nil {
		return out, err
	}

	err = s.db.QueryRow(ctx, `SELECT current_level FROM id_pool_state WHERE id = 1`).Scan(&out.CurrentLevel)
	if err == pgx.ErrNoRows {
		out.CurrentLevel = 1
		return out, nil
	}
	return out, err
}

// resetPoolTx empties the pool and drops the level to 1. Part of hard-delete.
func resetPoolTx(ctx context.Context, tx pgx.Tx) error {
	if _, err := tx.Exec(ctx, `DELETE FROM id_pool`); err != nil {
		return err
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO id_pool_state (id, current_level) VALUES (1, 1)
		ON CONFLICT (id) DO UPDATE SET current_level = 1, updated_at = now()
	`)
	return err
}
