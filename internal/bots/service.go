package bots

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Service owns every operation of the bot engine: registry lifecycle, the
// identity reservation pool, rank-target resolution, the simulation loop,
// its lease and the lottery helper.
type Service struct {
	db     *pgxpool.Pool
	log    *slog.Logger
	tuning Tuning
	mu     sync.Mutex
	rand   *rand.Rand
}

func NewService(db *pgxpool.Pool, logger *slog.Logger, tuning Tuning) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		db:     db,
		log:    logger,
		tuning: tuning,
		rand:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (s *Service) Tuning() Tuning { return s.tuning }

func (s *Service) nextIntn(n int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rand.Intn(n)
}

// creditBot is the sole write path for a reward: three atomic increments
// (bot record, public profile, leaderboard entry) in one transaction, so the
// denormalized stores never diverge and concurrent windows never lose an
// update. Never read-modify-write scores outside this function.
func (s *Service) creditBot(ctx context.Context, weekKey, botID string, amount, spins int64) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `
		UPDATE bots
		SET score = score + $1,
		    weekly_score = weekly_score + $1,
		    activity_count = activity_count + $2,
		    last_active_at = now()
		WHERE id = $3
	`, amount, spins, botID)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrBotNotFound
	}
	if _, err := tx.Exec(ctx, `
		UPDATE profiles
		SET total_score = total_score + $1,
		    spin_count = spin_count + $2,
		    last_active_at = now()
		WHERE user_id = $3
	`, amount, spins, botID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE leaderboard_entries
		SET score = score + $1,
		    activity_count = activity_count + $2,
		    last_updated = now()
		WHERE week_key = $3 AND user_id = $4
	`, amount, spins, weekKey, botID); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// touchRetired bumps only the freshness fields of a batch of retired bots so
// dormant accounts still look occasionally alive when fetched directly. No
// leaderboard write.
func (s *Service) touchRetired(ctx context.Context, batch int) (int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT id FROM bots
		WHERE role = $1
		ORDER BY random()
		LIMIT $2
	`, RoleRetired, batch)
	if err != nil {
		return 0, err
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return 0, err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for _, id := range ids {
		if _, err := tx.Exec(ctx, `
			UPDATE bots
			SET activity_count = activity_count + 1, last_active_at = now()
			WHERE id = $1
		`, id); err != nil {
			return 0, err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE profiles
			SET spin_count = spin_count + 1, last_active_at = now()
			WHERE user_id = $1
		`, id); err != nil {
			return 0, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}
