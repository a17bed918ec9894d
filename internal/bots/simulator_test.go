package bots

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"testing"
	"time"
)

func testService() *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(nil, logger, DefaultTuning())
}

func testWindow(seed int64) *windowState {
	return &windowState{
		rng:     rand.New(rand.NewSource(seed)),
		offsets: make(map[string]int64),
	}
}

func TestOffsetForStickyAndSigned(t *testing.T) {
	tn := DefaultTuning()
	ws := testWindow(3)

	leader := Bot{ID: "bot:2025-W36:0", Slot: LeaderSlot}
	off := ws.offsetFor(tn, leader)
	if off < tn.LeadAheadMin || off > tn.LeadAheadMax {
		t.Fatalf("leader offset %d outside [%d,%d]", off, tn.LeadAheadMin, tn.LeadAheadMax)
	}
	for i := 0; i < 10; i++ {
		if again := ws.offsetFor(tn, leader); again != off {
			t.Fatalf("offset changed within a window: %d then %d", off, again)
		}
	}

	for slot := 1; slot < 6; slot++ {
		chaser := Bot{ID: BotID("2025-W36", slot), Slot: slot}
		off := ws.offsetFor(tn, chaser)
		if off > -tn.LagBehindMin || off < -tn.LagBehindMax {
			t.Fatalf("slot %d offset %d outside [-%d,-%d]", slot, off, tn.LagBehindMax, tn.LagBehindMin)
		}
	}
}

func TestPlanBotRetiredNeverRewarded(t *testing.T) {
	s := testService()
	ws := testWindow(5)
	bot := Bot{ID: "bot:2025-W36:2", Slot: 2, Role: RoleRetired}
	for i := 0; i < 1_000; i++ {
		if _, _, ok := s.planBot(ws, bot, 10_000, false); ok {
			t.Fatalf("retired bot got a reward")
		}
	}
}

func TestPlanBotPrizeRoles(t *testing.T) {
	s := testService()
	tn := s.Tuning()
	ws := testWindow(9)

	iphone := Bot{ID: "bot:2025-W36:6", Slot: 6, Role: RolePrizeIphone}
	ktm := Bot{ID: "bot:2025-W36:7", Slot: 7, Role: RolePrizeKTM}

	var iphoneHits, ktmHits int
	for i := 0; i < 5_000; i++ {
		if amount, spins, ok := s.planBot(ws, iphone, 10_000, false); ok {
			iphoneHits++
			if amount < tn.LotteryRewardMin || amount > tn.LotteryRewardMax {
				t.Fatalf("iphone reward %d outside [%d,%d]", amount, tn.LotteryRewardMin, tn.LotteryRewardMax)
			}
			if spins != 1 {
				t.Fatalf("prize bot spins=%d want 1", spins)
			}
		}
		if amount, _, ok := s.planBot(ws, ktm, 10_000, false); ok {
			ktmHits++
			if amount < 1 || amount > tn.LotteryRewardMax/2 {
				t.Fatalf("ktm reward %d outside [1,%d]", amount, tn.LotteryRewardMax/2)
			}
		}
	}
	if iphoneHits == 0 || ktmHits == 0 {
		t.Fatalf("expected some prize rewards, got iphone=%d ktm=%d", iphoneHits, ktmHits)
	}
	if iphoneHits > 5_000/2 {
		t.Fatalf("prize rewards fired too often: %d of 5000", iphoneHits)
	}
}

func TestPlanBotAtTargetStaysPut(t *testing.T) {
	s := testService()
	tn := s.Tuning()
	ws := testWindow(13)

	// Pin a known positive offset so the bot is comfortably above target.
	bot := Bot{ID: "bot:2025-W36:3", Slot: 3, Role: RoleLeader, WeeklyScore: 50_000}
	var hits int
	for i := 0; i < 5_000; i++ {
		amount, spins, ok := s.planBot(ws, bot, 10_000, false)
		if !ok {
			continue
		}
		hits++
		if amount < 1 || amount > tn.KeepAliveMaxReward {
			t.Fatalf("keep-alive reward %d outside [1,%d]", amount, tn.KeepAliveMaxReward)
		}
		if spins != 1 {
			t.Fatalf("keep-alive spins=%d want 1", spins)
		}
	}
	// update gate (0.6) times keep-alive gate (0.04) ~ 2.4% of ticks.
	if hits == 0 {
		t.Fatalf("expected occasional keep-alive rewards")
	}
	if hits > 5_000/4 {
		t.Fatalf("keep-alive fired too often: %d of 5000", hits)
	}
}

func TestPlanBotBehindTargetDrawsTieredReward(t *testing.T) {
	s := testService()
	tn := s.Tuning()
	ws := testWindow(17)

	bot := Bot{ID: "bot:2025-W36:1", Slot: 1, Role: RoleLeader, WeeklyScore: 0}
	base := int64(20_000)
	var hits int
	for i := 0; i < 2_000; i++ {
		amount, spins, ok := s.planBot(ws, bot, base, false)
		if !ok {
			continue
		}
		hits++
		// Deficit is way past the large boundary regardless of the lag offset.
		if amount < tn.LargeRewardMin || amount > tn.LargeRewardMax {
			t.Fatalf("reward %d outside large range [%d,%d]", amount, tn.LargeRewardMin, tn.LargeRewardMax)
		}
		if spins != 5 {
			t.Fatalf("spins=%d want 5", spins)
		}
	}
	if hits == 0 {
		t.Fatalf("expected rewards for a far-behind bot")
	}
}

// A bot that starts the final stretch at half the target must close the gap
// within a handful of super-aggressive ticks even with worst-case draws.
func TestSuperAggressiveConvergence(t *testing.T) {
	s := testService()
	tn := s.Tuning()

	for _, seed := range []int64{1, 2, 3, 4, 5} {
		ws := testWindow(seed)
		base := tn.BaseScoreForDay(time.Sunday)
		bot := Bot{ID: "bot:2025-W36:4", Slot: 4, Role: RoleLeader, WeeklyScore: base / 2}
		target := base + ws.offsetFor(tn, bot)

		converged := false
		for tick := 0; tick < 40; tick++ {
			amount, _, ok := s.planBot(ws, bot, base, true)
			if ok {
				bot.WeeklyScore += amount
			}
			if bot.WeeklyScore >= target {
				converged = true
				break
			}
		}
		if !converged {
			t.Fatalf("seed %d: bot stuck at %d, target %d", seed, bot.WeeklyScore, target)
		}
	}
}

func TestMergedOverridePrecedence(t *testing.T) {
	ctx := context.Background()
	baseDay := time.Tuesday
	baseRush := false
	base := StaticOverride{ForcedDay: &baseDay, ForcedRush: &baseRush}

	forcedDay := time.Sunday
	m := mergedOverride{base: base, forced: Override{ForcedDay: &forcedDay}}
	got, err := m.Current(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ForcedDay == nil || *got.ForcedDay != time.Sunday {
		t.Fatalf("forced day must win, got %v", got.ForcedDay)
	}
	if got.ForcedRush == nil || *got.ForcedRush != false {
		t.Fatalf("untouched base rush must survive, got %v", got.ForcedRush)
	}

	forcedRush := true
	m = mergedOverride{base: base, forced: Override{ForcedRush: &forcedRush}}
	got, err = m.Current(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ForcedRush == nil || !*got.ForcedRush {
		t.Fatalf("forced rush must win")
	}
	if got.ForcedDay == nil || *got.ForcedDay != time.Tuesday {
		t.Fatalf("untouched base day must survive")
	}
}
