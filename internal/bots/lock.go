package bots

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// The simulation lock is a leased advisory mutex over a single row: the
// lease holds while now - last_run_at is inside the lease duration, and
// expiry is purely time based. There is no explicit release and no fencing
// token; a double-acquire at worst duplicates idempotent increments. Forced
// runs skip the lock entirely.

type Lease struct {
	Owner      string
	AcquiredAt time.Time
	ExpiresAt  time.Time
}

// TryAcquire attempts to take the simulation lease with one conditional
// write. ok is false while another runner's lease is still fresh; that is
// expected contention, not an error.
func (s *Service) TryAcquire(ctx context.Context) (Lease, bool, error) {
	owner := uuid.NewString()
	lease := s.tuning.Lease()

	if _, err := s.db.Exec(ctx, `
		INSERT INTO sim_lock (id, last_run_at, owner)
		VALUES (1, to_timestamp(0), '')
		ON CONFLICT (id) DO NOTHING
	`); err != nil {
		return Lease{}, false, err
	}

	var acquiredAt time.Time
	err := s.db.QueryRow(ctx, `
		UPDATE sim_lock
		SET last_run_at = now(), owner = $1
		WHERE id = 1 AND last_run_at <= now() - ($2 * interval '1 second')
		RETURNING last_run_at
	`, owner, lease.Seconds()).Scan(&acquiredAt)
	if err == pgx.ErrNoRows {
		return Lease{}, false, nil
	}
	if err != nil {
		return Lease{}, false, err
	}
	return Lease{
		Owner:      owner,
		AcquiredAt: acquiredAt,
		ExpiresAt:  acquiredAt.Add(lease),
	}, true, nil
}
