package bots

import (
	"context"

	"github.com/jackc/pgx/v5"
)

// Ticket is a guaranteed lottery participation for a prize draw.
type Ticket struct {
	Number      int64  `json:"number"`
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
}

const (
	ticketMin = int64(100_000)
	ticketMax = int64(999_999)
)

// EnsureParticipation makes sure the bot holding the requested prize role
// has a ticket for this week's draw, minting one if needed, and returns it.
// Calling it again returns the identical ticket.
func (s *Service) EnsureParticipation(ctx context.Context, weekKey, prizeKind string) (Ticket, error) {
	if err := ValidateWeekKey(weekKey); err != nil {
		return Ticket{}, err
	}
	role, err := RoleForPrize(prizeKind)
	if err != nil {
		return Ticket{}, err
	}

	var out Ticket
	err = s.db.QueryRow(ctx, `
		SELECT id, display_name FROM bots
		WHERE week_key = $1 AND role = $2
		ORDER BY slot
		LIMIT 1
	`, weekKey, role).Scan(&out.UserID, &out.DisplayName)
	if err == pgx.ErrNoRows {
		return Ticket{}, ErrNoPrizeBot
	}
	if err != nil {
		return Ticket{}, err
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Ticket{}, err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		SELECT ticket FROM lottery_entries
		WHERE week_key = $1 AND prize_kind = $2 AND user_id = $3
	`, weekKey, prizeKind, out.UserID).Scan(&out.Number)
	if err == nil {
		return out, tx.Commit(ctx)
	}
	if err != pgx.ErrNoRows {
		return Ticket{}, err
	}

	out.Number = s.mintTicket()
	if _, err := tx.Exec(ctx, `
		INSERT INTO lottery_entries (week_key, prize_kind, user_id, ticket, created_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (week_key, prize_kind, user_id) DO NOTHING
	`, weekKey, prizeKind, out.UserID, out.Number); err != nil {
		return Ticket{}, err
	}
	// A concurrent insert may have won; read back the persisted ticket.
	if err := tx.QueryRow(ctx, `
		SELECT ticket FROM lottery_entries
		WHERE week_key = $1 AND prize_kind = $2 AND user_id = $3
	`, weekKey, prizeKind, out.UserID).Scan(&out.Number); err != nil {
		return Ticket{}, err
	}
	return out, tx.Commit(ctx)
}

// PickWinner resolves the prize draw: the designated bot always wins. The
// random-looking fallback only fires when no bot carries the role, which
// should not occur in normal operation.
func (s *Service) PickWinner(ctx context.Context, weekKey, prizeKind string) (Ticket, error) {
	out, err := s.EnsureParticipation(ctx, weekKey, prizeKind)
	if err == ErrNoPrizeBot {
		s.log.Warn("no prize bot configured, returning synthetic winner", "prize", prizeKind)
		return Ticket{Number: s.mintTicket(), DisplayName: "lucky_player"}, nil
	}
	return out, err
}

func (s *Service) mintTicket() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return randRange(s.rand, ticketMin, ticketMax)
}
