package bots

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
)

var botFirstNames = []string{
	"arjun", "neha", "rohit", "priya", "vikas", "anita", "sameer", "kavya",
	"dinesh", "pooja", "rahul", "sneha", "manish", "ritu", "akash", "divya",
}

var botNameSuffixes = []string{
	"", "_x", "07", "99", "_win", "23", "_sp", "11", "_og", "88",
}

var botAvatars = []string{
	"avatars/a01.png", "avatars/a04.png", "avatars/a07.png", "avatars/a09.png",
	"avatars/a12.png", "avatars/a15.png", "avatars/a18.png", "avatars/a21.png",
}

// Generate upserts the fixed bot roster for a week. It is idempotent:
// calling it twice with no intervening retire/delete changes nothing. A
// retired slot is regenerated in place with fresh attributes, so exactly one
// non-retired record exists per (week, slot) at any time. Everything runs in
// one transaction; a failure commits nothing.
func (s *Service) Generate(ctx context.Context, weekKey string) ([]Bot, error) {
	if err := ValidateWeekKey(weekKey); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var out []Bot
	var fallbackOffset int64
	for slot := 0; slot < s.tuning.BotSlots; slot++ {
		bot, usedFallback, err := s.generateSlot(ctx, tx, weekKey, slot, fallbackOffset)
		if err != nil {
			return nil, fmt.Errorf("generate slot %d: %w", slot, err)
		}
		if usedFallback {
			fallbackOffset++
		}
		out = append(out, bot)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	s.log.Info("bot roster generated", "week", weekKey, "bots", len(out))
	return out, nil
}

func (s *Service) generateSlot(ctx context.Context, tx pgx.Tx, weekKey string, slot int, fallbackOffset int64) (Bot, bool, error) {
	id := BotID(weekKey, slot)

	var existing Bot
	err := tx.QueryRow(ctx, `
		SELECT id, week_key, slot, display_name, avatar_ref, role, score,
		       weekly_score, activity_count, level, reserved_display_id, last_active_at
		FROM bots
		WHERE id = $1
		FOR UPDATE
	`, id).Scan(
		&existing.ID, &existing.WeekKey, &existing.Slot, &existing.DisplayName,
		&existing.AvatarRef, &existing.Role, &existing.Score, &existing.WeeklyScore,
		&existing.ActivityCount, &existing.Level, &existing.ReservedDisplayID,
		&existing.LastActiveAt,
	)
	if err != nil && err != pgx.ErrNoRows {
		return Bot{}, false, err
	}
	found := err == nil

	if found && existing.Role != RoleRetired {
		// Live record: keep its identity. A pool-issued display id is
		// preserved; a fallback-range id may collide later, so it is
		// discarded and re-reserved.
		if !IsFallbackDisplayID(existing.ReservedDisplayID) {
			return existing, false, nil
		}
		displayID, usedFallback, err := s.pickDisplayID(ctx, tx, fallbackOffset)
		if err != nil {
			return Bot{}, false, err
		}
		if _, err := tx.Exec(ctx, `
			UPDATE bots SET reserved_display_id = $1 WHERE id = $2
		`, displayID, id); err != nil {
			return Bot{}, false, err
		}
		existing.ReservedDisplayID = displayID
		return existing, usedFallback, nil
	}

	// Fresh slot, or a retired tombstone being regenerated in place.
	displayID, usedFallback, err := s.pickDisplayID(ctx, tx, fallbackOffset)
	if err != nil {
		return Bot{}, false, err
	}
	bot := Bot{
		ID:                id,
		WeekKey:           weekKey,
		Slot:              slot,
		DisplayName:       s.randomBotName(),
		AvatarRef:         botAvatars[s.nextIntn(len(botAvatars))],
		Role:              RoleForSlot(slot, s.tuning.LeaderSlots),
		Level:             2 + s.nextIntn(5),
		ReservedDisplayID: displayID,
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO bots
		    (id, week_key, slot, display_name, avatar_ref, role, score,
		     weekly_score, activity_count, level, reserved_display_id, last_active_at)
		VALUES ($1, $2, $3, $4, $5, $6, 0, 0, 0, $7, $8, now())
		ON CONFLICT (id) DO UPDATE SET
		    display_name = $4, avatar_ref = $5, role = $6,
		    score = 0, weekly_score = 0, activity_count = 0,
		    level = $7, reserved_display_id = $8, last_active_at = now()
	`, bot.ID, bot.WeekKey, bot.Slot, bot.DisplayName, bot.AvatarRef, bot.Role,
		bot.Level, bot.ReservedDisplayID); err != nil {
		return Bot{}, false, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO profiles
		    (user_id, display_name, avatar_ref, level, total_score, spin_count, is_bot, last_active_at)
		VALUES ($1, $2, $3, $4, 0, 0, true, now())
		ON CONFLICT (user_id) DO UPDATE SET
		    display_name = $2, avatar_ref = $3, level = $4, last_active_at = now()
	`, bot.ID, bot.DisplayName, bot.AvatarRef, bot.Level); err != nil {
		return Bot{}, false, err
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO leaderboard_entries
		    (week_key, user_id, score, display_name, avatar_ref, activity_count, level, last_updated)
		VALUES ($1, $2, 0, $3, $4, 0, $5, now())
		ON CONFLICT (week_key, user_id) DO UPDATE SET
		    score = 0, display_name = $3, avatar_ref = $4, activity_count = 0,
		    level = $5, last_updated = now()
	`, bot.WeekKey, bot.ID, bot.DisplayName, bot.AvatarRef, bot.Level); err != nil {
		return Bot{}, false, err
	}
	return bot, usedFallback, nil
}

func (s *Service) pickDisplayID(ctx context.Context, tx pgx.Tx, fallbackOffset int64) (int64, bool, error) {
	id, ok, err := reserveDisplayID(ctx, tx)
	if err != nil {
		return 0, false, err
	}
	if ok {
		return id, false, nil
	}
	s.log.Warn("id pool empty, falling back to high-range display id")
	id, err = nextFallbackDisplayID(ctx, tx, fallbackOffset)
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

func (s *Service) randomBotName() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	first := botFirstNames[s.rand.Intn(len(botFirstNames))]
	suffix := botNameSuffixes[s.rand.Intn(len(botNameSuffixes))]
	return first + suffix
}

// Retire tombstones every live bot in the week: role flips to retired in
// place and the leaderboard entries disappear, but the bot rows and their
// public profiles survive so direct lookups keep working.
func (s *Service) Retire(ctx context.Context, weekKey string) (int, error) {
	if err := ValidateWeekKey(weekKey); err != nil {
		return 0, err
	}
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	cmd, err := tx.Exec(ctx, `
		UPDATE bots SET role = $1 WHERE week_key = $2 AND role <> $1
	`, RoleRetired, weekKey)
	if err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM leaderboard_entries
		WHERE week_key = $1 AND user_id IN (SELECT id FROM bots WHERE week_key = $1)
	`, weekKey); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	retired := int(cmd.RowsAffected())
	s.log.Info("bots retired", "week", weekKey, "count", retired)
	return retired, nil
}

// HardDelete erases every bot across all weeks, their profiles and
// leaderboard entries, and resets the reservation pool to empty at level 1.
// Operator recovery only; there is no undo.
func (s *Service) HardDelete(ctx context.Context) (int, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		DELETE FROM leaderboard_entries WHERE user_id IN (SELECT id FROM bots)
	`); err != nil {
		return 0, err
	}
	if _, err := tx.Exec(ctx, `
		DELETE FROM profiles WHERE user_id IN (SELECT id FROM bots)
	`); err != nil {
		return 0, err
	}
	cmd, err := tx.Exec(ctx, `DELETE FROM bots`)
	if err != nil {
		return 0, err
	}
	if err := resetPoolTx(ctx, tx); err != nil {
		return 0, err
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	deleted := int(cmd.RowsAffected())
	s.log.Warn("hard delete completed", "bots_deleted", deleted)
	return deleted, nil
}

// List returns the live (non-retired) roster for a week, slot order.
func (s *Service) List(ctx context.Context, weekKey string) ([]Bot, error) {
	if err := ValidateWeekKey(weekKey); err != nil {
		return nil, err
	}
	rows, err := s.db.Query(ctx, `
		SELECT id, week_key, slot, display_name, avatar_ref, role, score,
		       weekly_score, activity_count, level, reserved_display_id, last_active_at
		FROM bots
		WHERE week_key = $1 AND role <> $2
		ORDER BY slot
	`, weekKey, RoleRetired)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Bot
	for rows.Next() {
		var b Bot
		if err := rows.Scan(
			&b.ID, &b.WeekKey, &b.Slot, &b.DisplayName, &b.AvatarRef, &b.Role,
			&b.Score, &b.WeeklyScore, &b.ActivityCount, &b.Level,
			&b.ReservedDisplayID, &b.LastActiveAt,
		); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
