package bots

import (
	"fmt"
	"math/rand"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Tuning carries every tuned constant of the simulation. The boundaries and
// ranges have no derivation beyond "plausible-looking convergence", so they
// are loaded from a YAML file instead of being baked in; DefaultTuning is
// what production runs with.
type Tuning struct {
	BotSlots    int `yaml:"bot_slots"`
	LeaderSlots int `yaml:"leader_slots"`

	WindowSeconds int `yaml:"window_seconds"`
	TickSeconds   int `yaml:"tick_seconds"`
	LeaseSeconds  int `yaml:"lease_seconds"`

	// Per-bot per-tick probability that a leader bot re-evaluates at all.
	UpdateProbability float64 `yaml:"update_probability"`

	// Residual activity for bots already at or above target.
	KeepAliveProbability float64 `yaml:"keep_alive_probability"`
	KeepAliveMaxReward   int64   `yaml:"keep_alive_max_reward"`

	// Sticky per-window lead/lag offsets around the base target.
	LeadAheadMin int64 `yaml:"lead_ahead_min"`
	LeadAheadMax int64 `yaml:"lead_ahead_max"`
	LagBehindMin int64 `yaml:"lag_behind_min"`
	LagBehindMax int64 `yaml:"lag_behind_max"`

	// Deficit tier boundaries and reward ranges.
	SmallDeficit    int64 `yaml:"small_deficit"`
	LargeDeficit    int64 `yaml:"large_deficit"`
	SmallRewardMin  int64 `yaml:"small_reward_min"`
	SmallRewardMax  int64 `yaml:"small_reward_max"`
	MediumRewardMin int64 `yaml:"medium_reward_min"`
	MediumRewardMax int64 `yaml:"medium_reward_max"`
	LargeRewardMin  int64 `yaml:"large_reward_min"`
	LargeRewardMax  int64 `yaml:"large_reward_max"`

	// Super-aggressive mode widens each tier range by these factors.
	SuperMinFactor int64 `yaml:"super_min_factor"`
	SuperMaxFactor int64 `yaml:"super_max_factor"`

	// Week-end windows.
	RushFinalHours    int `yaml:"rush_final_hours"`
	SuperFinalMinutes int `yaml:"super_final_minutes"`

	// Lottery-role bots.
	LotteryRewardProbability float64 `yaml:"lottery_reward_probability"`
	LotteryRewardMin         int64   `yaml:"lottery_reward_min"`
	LotteryRewardMax         int64   `yaml:"lottery_reward_max"`

	// Retired wake-ups.
	RetiredWakeProbability float64 `yaml:"retired_wake_probability"`
	RetiredWakeBatch       int     `yaml:"retired_wake_batch"`

	// Rank chased per effective weekday, Monday first. Competition tightens
	// as the week goes on.
	RankSchedule []int `yaml:"rank_schedule"`

	// Fallback base score per effective weekday when the leaderboard is
	// shallower than the chased rank. Monday first, monotonically increasing.
	BaseScoreSchedule []int64 `yaml:"base_score_schedule"`
}

func DefaultTuning() Tuning {
	return Tuning{
		BotSlots:    8,
		LeaderSlots: 6,

		WindowSeconds: 55,
		TickSeconds:   6,
		LeaseSeconds:  50,

		UpdateProbability: 0.6,

		KeepAliveProbability: 0.04,
		KeepAliveMaxReward:   25,

		LeadAheadMin: 150,
		LeadAheadMax: 600,
		LagBehindMin: 80,
		LagBehindMax: 900,

		SmallDeficit:    1_000,
		LargeDeficit:    5_000,
		SmallRewardMin:  20,
		SmallRewardMax:  120,
		MediumRewardMin: 150,
		MediumRewardMax: 600,
		LargeRewardMin:  800,
		LargeRewardMax:  2_000,

		SuperMinFactor: 3,
		SuperMaxFactor: 10,

		RushFinalHours:    5,
		SuperFinalMinutes: 15,

		LotteryRewardProbability: 0.15,
		LotteryRewardMin:         5,
		LotteryRewardMax:         40,

		RetiredWakeProbability: 0.08,
		RetiredWakeBatch:       2,

		RankSchedule:      []int{45, 40, 30, 20, 10, 5, 3},
		BaseScoreSchedule: []int64{500, 1_200, 2_500, 4_500, 7_000, 10_000, 14_000},
	}
}

// LoadTuning reads a YAML tuning file over the defaults. A missing path is
// not an error; a malformed file is.
func LoadTuning(path string) (Tuning, error) {
	t := DefaultTuning()
	if path == "" {
		return t, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return t, nil
		}
		return t, fmt.Errorf("read tuning file: %w", err)
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("parse tuning file: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, err
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.LeaderSlots < 1 || t.BotSlots != t.LeaderSlots+2 {
		return fmt.Errorf("bot_slots must be leader_slots plus the two prize slots")
	}
	if len(t.RankSchedule) != 7 || len(t.BaseScoreSchedule) != 7 {
		return fmt.Errorf("rank_schedule and base_score_schedule must have 7 entries")
	}
	if t.SmallDeficit <= 0 || t.LargeDeficit <= t.SmallDeficit {
		return fmt.Errorf("deficit boundaries must satisfy 0 < small < large")
	}
	if t.TickSeconds <= 0 || t.WindowSeconds < t.TickSeconds {
		return fmt.Errorf("window must cover at least one tick")
	}
	return nil
}

func (t Tuning) Window() time.Duration    { return time.Duration(t.WindowSeconds) * time.Second }
func (t Tuning) TickEvery() time.Duration { return time.Duration(t.TickSeconds) * time.Second }
func (t Tuning) Lease() time.Duration     { return time.Duration(t.LeaseSeconds) * time.Second }

// scheduleIndex maps a weekday to the Monday-first schedule tables.
func scheduleIndex(day time.Weekday) int {
	return (int(day) + 6) % 7
}

// RankForDay is the leaderboard rank chased on a given effective weekday.
func (t Tuning) RankForDay(day time.Weekday) int {
	return t.RankSchedule[scheduleIndex(day)]
}

// BaseScoreForDay is the resolver fallback when the board is too shallow.
func (t Tuning) BaseScoreForDay(day time.Weekday) int64 {
	return t.BaseScoreSchedule[scheduleIndex(day)]
}

type rewardTier int

const (
	tierSmall rewardTier = iota
	tierMedium
	tierLarge
)

func (t Tuning) tierFor(deficit int64) rewardTier {
	switch {
	case deficit > t.LargeDeficit:
		return tierLarge
	case deficit >= t.SmallDeficit:
		return tierMedium
	default:
		return tierSmall
	}
}

func (t Tuning) tierRange(tier rewardTier) (int64, int64) {
	switch tier {
	case tierLarge:
		return t.LargeRewardMin, t.LargeRewardMax
	case tierMedium:
		return t.MediumRewardMin, t.MediumRewardMax
	default:
		return t.SmallRewardMin, t.SmallRewardMax
	}
}

// SpinsForReward keeps the score-to-activity ratio plausible: small rewards
// look like one spin, medium like three, jackpots like five.
func (t Tuning) SpinsForReward(tier rewardTier) int64 {
	switch tier {
	case tierLarge:
		return 5
	case tierMedium:
		return 3
	default:
		return 1
	}
}

// DrawReward picks a reward for the given deficit. In super-aggressive mode
// the tier range is widened so even worst-case draws close the gap before
// the week ends.
func (t Tuning) DrawReward(rng *rand.Rand, deficit int64, super bool) (amount int64, spins int64) {
	tier := t.tierFor(deficit)
	lo, hi := t.tierRange(tier)
	if super {
		lo, hi = lo*t.SuperMinFactor, hi*t.SuperMaxFactor
	}
	return randRange(rng, lo, hi), t.SpinsForReward(tier)
}

func randRange(rng *rand.Rand, lo, hi int64) int64 {
	if hi <= lo {
		return lo
	}
	return lo + rng.Int63n(hi-lo+1)
}
