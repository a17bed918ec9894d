package bots

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// ScoreForRank returns the score held by the entry at targetRank (1-indexed)
// on the week's board, ranked score descending with earliest last_updated
// winning ties. A board shallower than targetRank falls back to the fixed
// day-of-week base table instead of failing.
func (s *Service) ScoreForRank(ctx context.Context, weekKey string, targetRank int, day time.Weekday) (int64, error) {
	if targetRank < 1 {
		targetRank = 1
	}
	var score int64
	err := s.db.QueryRow(ctx, `
		SELECT score
		FROM leaderboard_entries
		WHERE week_key = $1
		ORDER BY score DESC, last_updated ASC
		OFFSET $2
		LIMIT 1
	`, weekKey, targetRank-1).Scan(&score)
	if err == pgx.ErrNoRows {
		return s.tuning.BaseScoreForDay(day), nil
	}
	if err != nil {
		return 0, err
	}
	return score, nil
}

// TopRealUserScore is the highest score among entries that do not belong to
// a bot, or 0 when no real user is on the board yet. Used in rush hour,
// where bots chase the leading human directly.
func (s *Service) TopRealUserScore(ctx context.Context, weekKey string) (int64, error) {
	var score int64
	err := s.db.QueryRow(ctx, `
		SELECT le.score
		FROM leaderboard_entries le
		JOIN profiles p ON p.user_id = le.user_id
		WHERE le.week_key = $1 AND p.is_bot = false
		ORDER BY le.score DESC, le.last_updated ASC
		LIMIT 1
	`, weekKey).Scan(&score)
	if err == pgx.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return score, nil
}

type WeekAnalytics struct {
	WeekKey     string `json:"week_key"`
	RealEntries int    `json:"real_entries"`
	BotEntries  int    `json:"bot_entries"`
	RetiredBots int    `json:"retired_bots"`
}

// Analytics counts real vs synthetic leaderboard entries for the week.
func (s *Service) Analytics(ctx context.Context, weekKey string) (WeekAnalytics, error) {
	out := WeekAnalytics{WeekKey: weekKey}
	if err := ValidateWeekKey(weekKey); err != nil {
		return out, err
	}
	err := s.db.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE p.is_bot = false),
			COUNT(*) FILTER (WHERE p.is_bot = true)
		FROM leaderboard_entries le
		JOIN profiles p ON p.user_id = le.user_id
		WHERE le.week_key = $1
	`, weekKey).Scan(&out.RealEntries, &out.BotEntries)
	if err != nil {
		return out, err
	}
	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM bots WHERE week_key = $1 AND role = $2
	`, weekKey, RoleRetired).Scan(&out.RetiredBots)
	return out, err
}
