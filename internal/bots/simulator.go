package bots

import (
	"context"
	"math/rand"
	"time"
)

// The activity simulator runs as a bounded window, not a daemon: one
// invocation ticks for ~55 seconds and returns, and an external scheduler
// re-invokes it. Per tick it re-reads the operator override, re-resolves the
// base target, and nudges a random sample of bots toward their individual
// targets with tiered randomized rewards.

type RunOptions struct {
	// Force skips the simulation lock: an operator explicitly asking for a
	// window gets one regardless of lease state.
	Force bool

	// Forced switches for this run only, layered over the stored override.
	ForcedDay  *time.Weekday
	ForcedRush *bool

	// Seed pins the window's randomness (lead offsets, reward draws) for
	// tests; 0 means derive from the clock.
	Seed int64

	// Overrides for the tuned window/tick durations; zero keeps tuning.
	Window    time.Duration
	TickEvery time.Duration
}

type runState int

const (
	stateLockPending runState = iota
	stateRunning
	stateFinished
)

type RunReport struct {
	WeekKey        string        `json:"week_key"`
	Skipped        bool          `json:"skipped"`
	SkipReason     string        `json:"skip_reason,omitempty"`
	Ticks          int           `json:"ticks"`
	RewardsApplied int           `json:"rewards_applied"`
	RetiredWoken   int           `json:"retired_woken"`
	Elapsed        time.Duration `json:"elapsed"`
}

// windowState is the explicit per-invocation simulation state: the rng and
// the sticky lead/lag offsets assigned to each bot for this window. Offsets
// are randomized once per window, not per tick, so a bot's relative position
// on the board holds steady for the session.
type windowState struct {
	rng     *rand.Rand
	offsets map[string]int64
}

func (w *windowState) offsetFor(t Tuning, bot Bot) int64 {
	if off, ok := w.offsets[bot.ID]; ok {
		return off
	}
	var off int64
	if bot.Slot == LeaderSlot {
		off = randRange(w.rng, t.LeadAheadMin, t.LeadAheadMax)
	} else {
		off = -randRange(w.rng, t.LagBehindMin, t.LagBehindMax)
	}
	w.offsets[bot.ID] = off
	return off
}

// RunWindow drives one simulation window. State machine per invocation:
// lock pending -> running (ticking until the duration elapses) -> finished.
func (s *Service) RunWindow(ctx context.Context, opts RunOptions) (RunReport, error) {
	now := time.Now().UTC()
	report := RunReport{WeekKey: CurrentWeekKey(now)}

	// Lock-pending phase: a fresh lease, or a forced bypass.
	if !opts.Force {
		_, ok, err := s.TryAcquire(ctx)
		if err != nil {
			return report, err
		}
		if !ok {
			report.Skipped = true
			report.SkipReason = "lease held by another runner"
			s.log.Info("simulation window skipped", "reason", report.SkipReason)
			return report, nil
		}
	}
	state := stateRunning

	seed := opts.Seed
	if seed == 0 {
		seed = now.UnixNano()
	}
	ws := &windowState{
		rng:     rand.New(rand.NewSource(seed)),
		offsets: make(map[string]int64),
	}

	provider := s.OverrideProvider()
	if opts.ForcedDay != nil || opts.ForcedRush != nil {
		provider = mergedOverride{
			base:   provider,
			forced: Override{ForcedDay: opts.ForcedDay, ForcedRush: opts.ForcedRush},
		}
	}

	window := opts.Window
	if window <= 0 {
		window = s.tuning.Window()
	}
	tickEvery := opts.TickEvery
	if tickEvery <= 0 {
		tickEvery = s.tuning.TickEvery()
	}

	start := time.Now()
	deadline := start.Add(window)
	ticker := time.NewTicker(tickEvery)
	defer ticker.Stop()

	for state == stateRunning {
		rewards, woken := s.tick(ctx, report.WeekKey, provider, ws)
		report.Ticks++
		report.RewardsApplied += rewards
		report.RetiredWoken += woken

		if time.Now().Add(tickEvery).After(deadline) {
			state = stateFinished
			break
		}
		select {
		case <-ctx.Done():
			state = stateFinished
		case <-ticker.C:
		}
	}

	report.Elapsed = time.Since(start)
	s.log.Info("simulation window finished",
		"week", report.WeekKey,
		"ticks", report.Ticks,
		"rewards", report.RewardsApplied,
		"woken", report.RetiredWoken,
		"elapsed", report.Elapsed.String(),
	)
	return report, nil
}

// tick performs one re-evaluation pass. Individual write failures are
// logged and skipped: targets are re-derived next tick, so a stale score
// self-corrects.
func (s *Service) tick(ctx context.Context, weekKey string, provider OverrideProvider, ws *windowState) (rewards, woken int) {
	now := time.Now().UTC()

	ov, err := provider.Current(ctx)
	if err != nil {
		s.log.Error("override read failed", "err", err)
		ov = Override{}
	}

	day := now.Weekday()
	if ov.ForcedDay != nil {
		day = *ov.ForcedDay
	}
	remaining := TimeRemaining(weekKey, now)

	rush := day == WeekEndDay && remaining <= time.Duration(s.tuning.RushFinalHours)*time.Hour
	if ov.ForcedRush != nil {
		rush = *ov.ForcedRush
	}
	// Super-aggressive convergence is purely time-derived and cannot be
	// switched off by an override.
	super := day == WeekEndDay && remaining <= time.Duration(s.tuning.SuperFinalMinutes)*time.Minute

	var base int64
	if rush {
		base, err = s.TopRealUserScore(ctx, weekKey)
	} else {
		base, err = s.ScoreForRank(ctx, weekKey, s.tuning.RankForDay(day), day)
	}
	if err != nil {
		s.log.Error("target resolution failed", "err", err)
		return 0, 0
	}

	roster, err := s.List(ctx, weekKey)
	if err != nil {
		s.log.Error("roster read failed", "err", err)
		return 0, 0
	}

	for _, bot := range roster {
		amount, spins, ok := s.planBot(ws, bot, base, super)
		if !ok {
			continue
		}
		if err := s.creditBot(ctx, weekKey, bot.ID, amount, spins); err != nil {
			s.log.Error("reward write failed", "bot", bot.ID, "err", err)
			continue
		}
		rewards++
	}

	if ws.rng.Float64() < s.tuning.RetiredWakeProbability {
		n, err := s.touchRetired(ctx, s.tuning.RetiredWakeBatch)
		if err != nil {
			s.log.Error("retired wake failed", "err", err)
		}
		woken += n
	}
	return rewards, woken
}

// planBot decides whether a bot gets a reward this tick and how big. Pure
// relative to the window state, so convergence is testable without a store.
func (s *Service) planBot(ws *windowState, bot Bot, base int64, super bool) (amount, spins int64, ok bool) {
	t := s.tuning

	switch bot.Role {
	case RolePrizeIphone, RolePrizeKTM:
		// Prize bots never compete on the board; they just earn enough to
		// keep holding lottery tickets. The KTM bot earns half the iphone
		// bot's coin rate.
		if ws.rng.Float64() >= t.LotteryRewardProbability {
			return 0, 0, false
		}
		amount = randRange(ws.rng, t.LotteryRewardMin, t.LotteryRewardMax)
		if bot.Role == RolePrizeKTM {
			amount = amount / 2
			if amount < 1 {
				amount = 1
			}
		}
		return amount, 1, true
	case RoleRetired:
		return 0, 0, false
	}

	if ws.rng.Float64() >= t.UpdateProbability {
		return 0, 0, false
	}

	target := base + ws.offsetFor(t, bot)
	if target < 0 {
		target = 0
	}
	deficit := target - bot.WeeklyScore
	if deficit <= 0 {
		// At or above target: a leader must not run away. Rarely, apply a
		// token reward just to keep last_active_at fresh.
		if ws.rng.Float64() >= t.KeepAliveProbability {
			return 0, 0, false
		}
		return randRange(ws.rng, 1, t.KeepAliveMaxReward), 1, true
	}

	amount, spins = t.DrawReward(ws.rng, deficit, super)
	return amount, spins, true
}
