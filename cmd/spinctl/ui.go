package main

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"spinrank/internal/bots"
	cl "spinrank/internal/cli"

	"github.com/fatih/color"
)

var (
	stdinReader = bufio.NewReader(os.Stdin)
	accent      = color.New(color.FgCyan, color.Bold)
	success     = color.New(color.FgGreen, color.Bold)
	warn        = color.New(color.FgYellow, color.Bold)
	danger      = color.New(color.FgRed, color.Bold)
	neutral     = color.New(color.FgHiWhite)
)

func printSuccess(msg string) {
	success.Println(msg)
}

func printWarn(msg string) {
	warn.Println(msg)
}

func printInfo(msg string) {
	neutral.Println(msg)
}

func promptRequired(label string) (string, error) {
	for {
		fmt.Printf("%s: ", label)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.TrimSpace(text)
		if text != "" {
			return text, nil
		}
		printWarn(label + " is required.")
	}
}

func promptOptional(label string) (string, error) {
	fmt.Printf("%s: ", label)
	text, err := stdinReader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

func promptChoice(label string, options []string, defaultValue string) (string, error) {
	normalized := make(map[string]struct{}, len(options))
	for _, opt := range options {
		normalized[strings.ToLower(strings.TrimSpace(opt))] = struct{}{}
	}
	for {
		fmt.Printf("%s (%s) [%s]: ", label, strings.Join(options, "/"), defaultValue)
		text, err := stdinReader.ReadString('\n')
		if err != nil {
			return "", err
		}
		text = strings.ToLower(strings.TrimSpace(text))
		if text == "" {
			text = strings.ToLower(strings.TrimSpace(defaultValue))
		}
		if _, ok := normalized[text]; ok {
			return text, nil
		}
		printWarn("Invalid option. Please pick one of the listed values.")
	}
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

func parseWeekday(s string) (time.Weekday, error) {
	if d, ok := weekdayNames[strings.ToLower(strings.TrimSpace(s))]; ok {
		return d, nil
	}
	return 0, fmt.Errorf("unknown weekday %q (use mon..sun)", s)
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func renderRoster(out cl.RosterResponse) error {
	accent.Printf("\n== ROSTER %s ==\n", out.WeekKey)
	if len(out.Bots) == 0 {
		printInfo("No active bots this week.")
		return nil
	}
	fmt.Printf("%-5s %-22s %-14s %10s %10s %9s %-8s %-20s\n", "SLOT", "NAME", "ROLE", "SCORE", "WEEKLY", "ACTIVITY", "ID", "LAST ACTIVE")
	for _, b := range out.Bots {
		fmt.Printf("%-5d %-22s %-14s %10d %10d %9d %-8d %-20s\n",
			b.Slot,
			truncate(b.DisplayName, 22),
			string(b.Role),
			b.Score,
			b.WeeklyScore,
			b.ActivityCount,
			b.ReservedDisplayID,
			b.LastActiveAt.Local().Format("2006-01-02 15:04"),
		)
	}
	fmt.Println()
	return nil
}

func renderRunReport(report bots.RunReport) error {
	accent.Printf("\n== SIMULATION RUN (%s) ==\n", report.WeekKey)
	if report.Skipped {
		printWarn("Skipped: " + report.SkipReason)
		return nil
	}
	fmt.Printf("Ticks:           %d\n", report.Ticks)
	fmt.Printf("Rewards applied: %d\n", report.RewardsApplied)
	fmt.Printf("Retired woken:   %d\n", report.RetiredWoken)
	fmt.Printf("Elapsed:         %s\n", report.Elapsed.Round(time.Millisecond))
	fmt.Println()
	return nil
}

func renderOverride(ov bots.Override) error {
	accent.Println("\n== OVERRIDES ==")
	if ov.ForcedDay == nil && ov.ForcedRush == nil {
		printInfo("No overrides set.")
		return nil
	}
	if ov.ForcedDay != nil {
		fmt.Printf("Forced day:  %s\n", ov.ForcedDay.String())
	}
	if ov.ForcedRush != nil {
		state := "off"
		if *ov.ForcedRush {
			state = "on"
		}
		fmt.Printf("Forced rush: %s\n", state)
	}
	fmt.Println()
	return nil
}

func renderPool(status bots.PoolStatus) error {
	accent.Println("\n== IDENTITY POOL ==")
	fmt.Printf("Size:          %d\n", status.Size)
	fmt.Printf("Current level: %d\n", status.CurrentLevel)
	if len(status.ByLevel) > 0 {
		levels := make([]int, 0, len(status.ByLevel))
		for lvl := range status.ByLevel {
			levels = append(levels, lvl)
		}
		sort.Ints(levels)
		for _, lvl := range levels {
			fmt.Printf("  level %d: %d ids\n", lvl, status.ByLevel[lvl])
		}
	}
	fmt.Println()
	return nil
}

func renderAnalytics(out bots.WeekAnalytics) error {
	accent.Printf("\n== ANALYTICS %s ==\n", out.WeekKey)
	fmt.Printf("Real entries: %d\n", out.RealEntries)
	fmt.Printf("Bot entries:  %d\n", out.BotEntries)
	fmt.Printf("Retired bots: %d\n", out.RetiredBots)
	fmt.Println()
	return nil
}

func renderTicket(t bots.Ticket) error {
	fmt.Printf("Ticket:  %d\n", t.Number)
	fmt.Printf("Holder:  %s (%s)\n", t.DisplayName, t.UserID)
	fmt.Println()
	return nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:max]
	}
	return s[:max-3] + "..."
}
