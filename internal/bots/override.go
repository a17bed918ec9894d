package bots

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// Override carries the operator-settable simulation switches. Both fields
// are optional; nil means "use the real clock". The running loop re-reads
// the override on every tick, so an operator change takes effect within one
// tick.
type Override struct {
	ForcedDay  *time.Weekday `json:"forced_day,omitempty"`
	ForcedRush *bool         `json:"forced_rush,omitempty"`
}

// OverrideProvider abstracts where the switches come from. The store-backed
// provider is the production one; forced run options and tests supply their
// own.
type OverrideProvider interface {
	Current(ctx context.Context) (Override, error)
}

// StaticOverride is an OverrideProvider with fixed values.
type StaticOverride Override

func (o StaticOverride) Current(context.Context) (Override, error) {
	return Override(o), nil
}

type storeOverride struct {
	svc *Service
}

func (p storeOverride) Current(ctx context.Context) (Override, error) {
	return p.svc.GetOverride(ctx)
}

func (s *Service) OverrideProvider() OverrideProvider {
	return storeOverride{svc: s}
}

func (s *Service) GetOverride(ctx context.Context) (Override, error) {
	var day *int16
	var rush *bool
	err := s.db.QueryRow(ctx, `
		SELECT forced_day, forced_rush FROM sim_override WHERE id = 1
	`).Scan(&day, &rush)
	if err == pgx.ErrNoRows {
		return Override{}, nil
	}
	if err != nil {
		return Override{}, err
	}
	out := Override{ForcedRush: rush}
	if day != nil {
		d := time.Weekday(*day)
		out.ForcedDay = &d
	}
	return out, nil
}

func (s *Service) SetOverride(ctx context.Context, ov Override) error {
	var day *int16
	if ov.ForcedDay != nil {
		d := int16(*ov.ForcedDay)
		day = &d
	}
	_, err := s.db.Exec(ctx, `
		INSERT INTO sim_override (id, forced_day, forced_rush, updated_at)
		VALUES (1, $1, $2, now())
		ON CONFLICT (id) DO UPDATE SET forced_day = $1, forced_rush = $2, updated_at = now()
	`, day, ov.ForcedRush)
	return err
}

func (s *Service) ClearOverride(ctx context.Context) error {
	return s.SetOverride(ctx, Override{})
}

// merged layers run-scoped forced values over a base provider; the forced
// values win for the duration of that run.
type mergedOverride struct {
	base   OverrideProvider
	forced Override
}

func (m mergedOverride) Current(ctx context.Context) (Override, error) {
	out, err := m.base.Current(ctx)
	if err != nil {
		return out, err
	}
	if m.forced.ForcedDay != nil {
		out.ForcedDay = m.forced.ForcedDay
	}
	if m.forced.ForcedRush != nil {
		out.ForcedRush = m.forced.ForcedRush
	}
	return out, nil
}
