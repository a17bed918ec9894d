package bots

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// FallbackDisplayIDFloor marks the visibly-synthetic id range used when
	// the reservation pool is empty. Ids at or above this value are never
	// preserved across regeneration.
	FallbackDisplayIDFloor = int64(900_000)

	// Slot 0 is the designated perpetual near-leader.
	LeaderSlot = 0
)

type Role string

const (
	RoleLeader      Role = "leader"
	RolePrizeIphone Role = "prize_iphone"
	RolePrizeKTM    Role = "prize_ktm"
	RoleRetired     Role = "retired"
)

const (
	PrizeIphone = "iphone"
	PrizeKTM    = "ktm"
)

var (
	ErrInvalidWeekKey = errors.New("week key must look like 2025-W10")
	ErrInvalidPrize   = errors.New("prize kind must be iphone or ktm")
	ErrBotNotFound    = errors.New("bot not found")
	ErrNoPrizeBot     = errors.New("no bot configured for prize role")
	ErrUnauthorized   = errors.New("unauthorized")
)

var weekKeyRE = regexp.MustCompile(`^(\d{4})-W(\d{2})$`)

// Bot is the registry record for one synthetic competitor in one week.
type Bot struct {
	ID                string    `json:"id"`
	WeekKey           string    `json:"week_key"`
	Slot              int       `json:"slot"`
	DisplayName       string    `json:"display_name"`
	AvatarRef         string    `json:"avatar_ref"`
	Role              Role      `json:"role"`
	Score             int64     `json:"score"`
	WeeklyScore       int64     `json:"weekly_score"`
	ActivityCount     int64     `json:"activity_count"`
	Level             int       `json:"level"`
	ReservedDisplayID int64     `json:"reserved_display_id"`
	LastActiveAt      time.Time `json:"last_active_at"`
}

// IsFallbackDisplayID reports whether id was synthesized outside the pool.
func IsFallbackDisplayID(id int64) bool {
	return id >= FallbackDisplayIDFloor
}

// RoleForSlot maps a slot ordinal to its fixed role: slots below leaderSlots
// compete on the board, the two slots after carry the lottery prize roles.
func RoleForSlot(slot, leaderSlots int) Role {
	switch {
	case slot < leaderSlots:
		return RoleLeader
	case slot == leaderSlots:
		return RolePrizeIphone
	default:
		return RolePrizeKTM
	}
}

func RoleForPrize(kind string) (Role, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case PrizeIphone:
		return RolePrizeIphone, nil
	case PrizeKTM:
		return RolePrizeKTM, nil
	default:
		return "", ErrInvalidPrize
	}
}

// BotID derives the stable registry key for a week/slot pair, so that
// re-generation inside the same week finds the existing record instead of
// minting a new identity.
func BotID(weekKey string, slot int) string {
	return fmt.Sprintf("bot:%s:%d", weekKey, slot)
}

func ValidateWeekKey(weekKey string) error {
	m := weekKeyRE.FindStringSubmatch(strings.TrimSpace(weekKey))
	if m == nil {
		return ErrInvalidWeekKey
	}
	week, err := strconv.Atoi(m[2])
	if err != nil || week < 1 || week > 53 {
		return ErrInvalidWeekKey
	}
	return nil
}

// CurrentWeekKey formats the ISO week containing now, e.g. "2025-W36".
func CurrentWeekKey(now time.Time) string {
	year, week := now.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// WeekBounds returns the UTC start (Monday 00:00) and end (next Monday
// 00:00) of an ISO week key.
func WeekBounds(weekKey string) (time.Time, time.Time, error) {
	m := weekKeyRE.FindStringSubmatch(strings.TrimSpace(weekKey))
	if m == nil {
		return time.Time{}, time.Time{}, ErrInvalidWeekKey
	}
	year, _ := strconv.Atoi(m[1])
	week, _ := strconv.Atoi(m[2])
	if week < 1 || week > 53 {
		return time.Time{}, time.Time{}, ErrInvalidWeekKey
	}

	// Jan 4 is always inside ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	offset := int(jan4.Weekday())
	if offset == 0 {
		offset = 7 // Sunday
	}
	week1Monday := jan4.AddDate(0, 0, 1-offset)
	start := week1Monday.AddDate(0, 0, (week-1)*7)
	return start, start.AddDate(0, 0, 7), nil
}

// WeekEndDay is the day on which the scoring period closes out.
const WeekEndDay = time.Sunday

// TimeRemaining reports how long is left in the week containing now, or zero
// if the key does not match now's week.
func TimeRemaining(weekKey string, now time.Time) time.Duration {
	_, end, err := WeekBounds(weekKey)
	if err != nil {
		return 0
	}
	remaining := end.Sub(now.UTC())
	if remaining < 0 {
		return 0
	}
	return remaining
}
