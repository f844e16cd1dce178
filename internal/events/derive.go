package events

import (
	"fmt"
	"strconv"
	"strings"

	re2 "github.com/wasilibs/go-re2"
)

// Schedule kinds.
const (
	KindDaily    = "daily"
	KindWeekly   = "weekly"
	KindInterval = "interval"
)

// defaultMessage is used when a note carries neither message nor title.
const defaultMessage = "Scheduled event."

// Event is one normalized recurring event derived from a note or the global
// events file.
type Event struct {
	ID       string
	Kind     string
	Time     string // HH:MM for daily/weekly; raw schedule text on fallback
	Weekday  string // weekly only
	Interval int    // interval only
	Unit     string // interval only: minutes, hours, days
	Message  string
	TaskPath string // empty for global events
	IsGlobal bool
}

// DSL reconstructs the schedule expression for scheduler registration.
func (e Event) DSL() string {
	switch e.Kind {
	case KindWeekly:
		return fmt.Sprintf("every %s at %s", e.Weekday, e.Time)
	case KindInterval:
		return fmt.Sprintf("every %d %s", e.Interval, e.Unit)
	default:
		return "daily at " + e.Time
	}
}

var (
	dailyRe    = re2.MustCompile(`(?i)^daily\s+at\s+(\d{1,2}:\d{2})$`)
	weeklyRe   = re2.MustCompile(`(?i)^every\s+(monday|tuesday|wednesday|thursday|friday|saturday|sunday)\s+at\s+(\d{1,2}:\d{2})$`)
	intervalRe = re2.MustCompile(`(?i)^every\s+(\d+)\s+(minute|hour|day)s?$`)
)

// deriveFromContent parses a note and produces its events: the main event
// plus one per reminder entry. A note without parseable frontmatter or
// without a schedule field produces nothing.
func deriveFromContent(relPath, content string) []Event {
	fm, ok := parseFrontmatter(content)
	if !ok || strings.TrimSpace(fm.Schedule) == "" {
		return nil
	}

	message := fm.Message
	if message == "" {
		message = fm.Title
	}
	if message == "" {
		message = defaultMessage
	}

	main := classifySchedule(strings.TrimSpace(fm.Schedule))
	main.ID = "task:" + relPath
	main.Message = message
	main.TaskPath = relPath

	derived := []Event{main}
	for i, rem := range fm.Reminders {
		if rem.MinutesBefore <= 0 {
			continue
		}
		reminder, ok := deriveReminder(main, rem)
		if !ok {
			continue
		}
		reminder.ID = fmt.Sprintf("task:%s:reminder:%d", relPath, i)
		derived = append(derived, reminder)
	}
	return derived
}

// classifySchedule matches the DSL against the three schedule kinds. An
// unrecognized expression falls back to daily with the raw text retained;
// registration will then reject the bad time and the event is skipped with a
// log line rather than crashing the derivation pass.
func classifySchedule(dsl string) Event {
	if m := dailyRe.FindStringSubmatch(dsl); m != nil {
		return Event{Kind: KindDaily, Time: normalizeClock(m[1])}
	}
	if m := weeklyRe.FindStringSubmatch(dsl); m != nil {
		return Event{Kind: KindWeekly, Weekday: strings.ToLower(m[1]), Time: normalizeClock(m[2])}
	}
	if m := intervalRe.FindStringSubmatch(dsl); m != nil {
		n, _ := strconv.Atoi(m[1])
		return Event{Kind: KindInterval, Interval: n, Unit: strings.ToLower(m[2]) + "s"}
	}
	return Event{Kind: KindDaily, Time: dsl}
}

// deriveReminder offsets the main event's wall-clock time backwards by
// minutesBefore, wrapping across midnight. Interval events have no wall-clock
// anchor, so reminders are skipped for them.
func deriveReminder(main Event, rem Reminder) (Event, bool) {
	if main.Kind == KindInterval {
		return Event{}, false
	}

	hour, minute, err := splitClock(main.Time)
	if err != nil {
		return Event{}, false
	}

	total := hour*60 + minute - rem.MinutesBefore
	for total < 0 {
		total += 24 * 60
	}

	message := rem.Message
	if message == "" {
		message = fmt.Sprintf("Reminder: '%s' in %d minutes.", main.Message, rem.MinutesBefore)
	}

	reminder := main
	reminder.Time = fmt.Sprintf("%02d:%02d", total/60, total%60)
	reminder.Message = message
	return reminder, true
}

func normalizeClock(s string) string {
	hour, minute, err := splitClock(s)
	if err != nil {
		return s
	}
	return fmt.Sprintf("%02d:%02d", hour, minute)
}

func splitClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("not a clock time: %q", s)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("bad hour in %q", s)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("bad minute in %q", s)
	}
	return hour, minute, nil
}
