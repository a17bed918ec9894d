package bots

import "testing"

func TestPoolLevelForSize(t *testing.T) {
	tests := []struct {
		size int
		want int
	}{
		{size: 0, want: 1},
		{size: 5, want: 1},
		{size: 6, want: 2},
		{size: 15, want: 2},
		{size: 16, want: 3},
		{size: 35, want: 3},
		{size: 36, want: 4},
		{size: 85, want: 4},
		{size: 86, want: 5},
		{size: 500, want: 5},
	}
	for _, tc := range tests {
		if got := PoolLevelForSize(tc.size); got != tc.want {
			t.Fatalf("size=%d got=%d want=%d", tc.size, got, tc.want)
		}
	}
}

func TestPoolSeedLevel(t *testing.T) {
	tests := []struct {
		i    int
		want int
	}{
		{i: 0, want: 1},
		{i: 4, want: 1},
		{i: 5, want: 2},
		{i: 14, want: 2},
		{i: 15, want: 3},
		{i: 34, want: 3},
		{i: 35, want: 4},
		{i: 84, want: 4},
		{i: 85, want: 5},
	}
	for _, tc := range tests {
		if got := poolSeedLevel(tc.i); got != tc.want {
			t.Fatalf("i=%d got=%d want=%d", tc.i, got, tc.want)
		}
	}
}

// A 20-id pool sits at level 3; six reservations later the derived level has
// regressed to 2.
func TestPoolLevelRegression(t *testing.T) {
	size := 20
	if got := PoolLevelForSize(size); got != 3 {
		t.Fatalf("fresh pool of 20: got level %d want 3", got)
	}
	size -= 6
	if got := PoolLevelForSize(size); got != 2 {
		t.Fatalf("after 6 reservations (size 14): got level %d want 2", got)
	}
}

func TestFallbackDisplayID(t *testing.T) {
	// No real ids yet: fall back to the floor.
	if got := fallbackDisplayID(0, 0); got != FallbackDisplayIDFloor {
		t.Fatalf("got %d want %d", got, FallbackDisplayIDFloor)
	}
	// Real ids below the floor still start the range at the floor.
	if got := fallbackDisplayID(12_345, 2); got != FallbackDisplayIDFloor+2 {
		t.Fatalf("got %d want %d", got, FallbackDisplayIDFloor+2)
	}
	// An existing id at or above the floor pushes the base past it.
	if got := fallbackDisplayID(900_010, 0); got != 900_011 {
		t.Fatalf("got %d want 900011", got)
	}
	// Every fallback id is recognizable as synthetic.
	for offset := int64(0); offset < 8; offset++ {
		if !IsFallbackDisplayID(fallbackDisplayID(0, offset)) {
			t.Fatalf("offset %d produced a non-fallback id", offset)
		}
	}
}
