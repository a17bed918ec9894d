package bots

// Store-backed tests for the registry, lock and lottery flows. They need a
// reachable Postgres and are skipped unless DATABASE_URL is set:
//
//	DATABASE_URL=postgres://localhost/spinrank_test go test ./internal/bots

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
)

func storeService(t *testing.T) (*Service, context.Context) {
	t.Helper()
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL not set")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	schema, err := os.ReadFile(filepath.Join("..", "..", "scripts", "schema.sql"))
	if err != nil {
		t.Fatalf("read schema: %v", err)
	}
	if _, err := pool.Exec(ctx, string(schema)); err != nil {
		t.Fatalf("apply schema: %v", err)
	}
	for _, stmt := range []string{
		`DELETE FROM lottery_entries`,
		`DELETE FROM leaderboard_entries`,
		`DELETE FROM profiles`,
		`DELETE FROM bots`,
		`DELETE FROM id_pool`,
		`DELETE FROM id_pool_state`,
		`DELETE FROM sim_lock`,
		`DELETE FROM sim_override`,
	} {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			t.Fatalf("clean %q: %v", stmt, err)
		}
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(pool, logger, DefaultTuning()), ctx
}

func seedTestPool(t *testing.T, s *Service, ctx context.Context, n int) {
	t.Helper()
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = int64(1_000 + i)
	}
	if _, err := s.SeedPool(ctx, ids); err != nil {
		t.Fatalf("seed pool: %v", err)
	}
}

func TestGenerateFreshRoster(t *testing.T) {
	s, ctx := storeService(t)
	seedTestPool(t, s, ctx, 20)

	roster, err := s.Generate(ctx, "2025-W10")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(roster) != s.Tuning().BotSlots {
		t.Fatalf("got %d bots want %d", len(roster), s.Tuning().BotSlots)
	}

	seen := make(map[int64]struct{})
	for _, b := range roster {
		if IsFallbackDisplayID(b.ReservedDisplayID) {
			t.Fatalf("bot %s got fallback id %d with a non-empty pool", b.ID, b.ReservedDisplayID)
		}
		if _, dup := seen[b.ReservedDisplayID]; dup {
			t.Fatalf("display id %d issued twice", b.ReservedDisplayID)
		}
		seen[b.ReservedDisplayID] = struct{}{}
		if want := RoleForSlot(b.Slot, s.Tuning().LeaderSlots); b.Role != want {
			t.Fatalf("slot %d role %s want %s", b.Slot, b.Role, want)
		}
	}

	var entries int
	err = s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM leaderboard_entries WHERE week_key = $1 AND score = 0
	`, "2025-W10").Scan(&entries)
	if err != nil {
		t.Fatalf("count entries: %v", err)
	}
	if entries != len(roster) {
		t.Fatalf("got %d zero-score entries want %d", entries, len(roster))
	}
}

func TestGenerateIdempotent(t *testing.T) {
	s, ctx := storeService(t)
	seedTestPool(t, s, ctx, 20)

	first, err := s.Generate(ctx, "2025-W10")
	if err != nil {
		t.Fatalf("first generate: %v", err)
	}
	second, err := s.Generate(ctx, "2025-W10")
	if err != nil {
		t.Fatalf("second generate: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("roster size changed: %d then %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("slot %d identity churned: %s then %s", i, first[i].ID, second[i].ID)
		}
		if first[i].ReservedDisplayID != second[i].ReservedDisplayID {
			t.Fatalf("slot %d display id churned: %d then %d",
				i, first[i].ReservedDisplayID, second[i].ReservedDisplayID)
		}
		if first[i].DisplayName != second[i].DisplayName {
			t.Fatalf("slot %d name churned: %q then %q", i, first[i].DisplayName, second[i].DisplayName)
		}
	}
}

func TestGenerateReplacesFallbackIDs(t *testing.T) {
	s, ctx := storeService(t)

	// Empty pool: every slot lands on a distinct fallback id.
	first, err := s.Generate(ctx, "2025-W11")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	seen := make(map[int64]struct{})
	for _, b := range first {
		if !IsFallbackDisplayID(b.ReservedDisplayID) {
			t.Fatalf("bot %s got pool id %d from an empty pool", b.ID, b.ReservedDisplayID)
		}
		if _, dup := seen[b.ReservedDisplayID]; dup {
			t.Fatalf("fallback id %d issued twice", b.ReservedDisplayID)
		}
		seen[b.ReservedDisplayID] = struct{}{}
	}

	// Refilled pool: regeneration discards the fallback ids and re-reserves,
	// keeping the rest of the identity.
	seedTestPool(t, s, ctx, 20)
	second, err := s.Generate(ctx, "2025-W11")
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	for i, b := range second {
		if IsFallbackDisplayID(b.ReservedDisplayID) {
			t.Fatalf("bot %s kept fallback id %d after the pool refilled", b.ID, b.ReservedDisplayID)
		}
		if b.DisplayName != first[i].DisplayName {
			t.Fatalf("slot %d lost its identity: %q then %q", i, first[i].DisplayName, b.DisplayName)
		}
	}
}

func TestRetireKeepsProfiles(t *testing.T) {
	s, ctx := storeService(t)
	seedTestPool(t, s, ctx, 20)

	roster, err := s.Generate(ctx, "2025-W12")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	n, err := s.Retire(ctx, "2025-W12")
	if err != nil {
		t.Fatalf("retire: %v", err)
	}
	if n != len(roster) {
		t.Fatalf("retired %d want %d", n, len(roster))
	}

	var retired, entries, profiles int
	if err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM bots WHERE week_key = $1 AND role = $2
	`, "2025-W12", RoleRetired).Scan(&retired); err != nil {
		t.Fatalf("count retired: %v", err)
	}
	if retired != len(roster) {
		t.Fatalf("got %d retired rows want %d", retired, len(roster))
	}
	if err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM leaderboard_entries WHERE week_key = $1
	`, "2025-W12").Scan(&entries); err != nil {
		t.Fatalf("count entries: %v", err)
	}
	if entries != 0 {
		t.Fatalf("retired bots still hold %d leaderboard entries", entries)
	}
	if err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM profiles WHERE is_bot = true
	`).Scan(&profiles); err != nil {
		t.Fatalf("count profiles: %v", err)
	}
	if profiles != len(roster) {
		t.Fatalf("got %d surviving profiles want %d", profiles, len(roster))
	}

	live, err := s.List(ctx, "2025-W12")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(live) != 0 {
		t.Fatalf("list returned %d retired bots", len(live))
	}
}

func TestHardDeleteResetsEverything(t *testing.T) {
	s, ctx := storeService(t)
	seedTestPool(t, s, ctx, 20)

	if _, err := s.Generate(ctx, "2025-W13"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	deleted, err := s.HardDelete(ctx)
	if err != nil {
		t.Fatalf("hard delete: %v", err)
	}
	if deleted != s.Tuning().BotSlots {
		t.Fatalf("deleted %d want %d", deleted, s.Tuning().BotSlots)
	}

	for _, table := range []string{"bots", "leaderboard_entries"} {
		var n int
		if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM `+table).Scan(&n); err != nil {
			t.Fatalf("count %s: %v", table, err)
		}
		if n != 0 {
			t.Fatalf("%s still holds %d rows", table, n)
		}
	}
	status, err := s.Pool(ctx)
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	if status.Size != 0 || status.CurrentLevel != 1 {
		t.Fatalf("pool not reset: size=%d level=%d", status.Size, status.CurrentLevel)
	}
}

func TestTryAcquireSingleWinner(t *testing.T) {
	s, ctx := storeService(t)

	results := make(chan bool, 2)
	for i := 0; i < 2; i++ {
		go func() {
			_, ok, err := s.TryAcquire(ctx)
			if err != nil {
				t.Errorf("acquire: %v", err)
			}
			results <- ok
		}()
	}
	wins := 0
	for i := 0; i < 2; i++ {
		if <-results {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("got %d lease winners want exactly 1", wins)
	}

	// The lease is still fresh, so a later attempt loses too.
	if _, ok, err := s.TryAcquire(ctx); err != nil || ok {
		t.Fatalf("fresh lease must block re-acquisition (ok=%v err=%v)", ok, err)
	}
}

func TestEnsureParticipationStableTicket(t *testing.T) {
	s, ctx := storeService(t)
	seedTestPool(t, s, ctx, 20)

	if _, err := s.Generate(ctx, "2025-W14"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	first, err := s.EnsureParticipation(ctx, "2025-W14", PrizeIphone)
	if err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if first.Number < ticketMin || first.Number > ticketMax {
		t.Fatalf("ticket %d outside [%d,%d]", first.Number, ticketMin, ticketMax)
	}
	if first.UserID != BotID("2025-W14", s.Tuning().LeaderSlots) {
		t.Fatalf("ticket holder %s is not the iphone-role bot", first.UserID)
	}

	second, err := s.EnsureParticipation(ctx, "2025-W14", PrizeIphone)
	if err != nil {
		t.Fatalf("re-ensure: %v", err)
	}
	if second.Number != first.Number {
		t.Fatalf("ticket changed: %d then %d", first.Number, second.Number)
	}

	if _, err := s.EnsureParticipation(ctx, "2025-W14", "yacht"); err != ErrInvalidPrize {
		t.Fatalf("expected ErrInvalidPrize, got %v", err)
	}
}
