package schedule

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Kind classifies a parsed schedule.
type Kind int

const (
	// KindDaily fires once per day at a fixed time.
	KindDaily Kind = iota
	// KindWeekly fires once per week on a fixed weekday and time.
	KindWeekly
	// KindInterval fires on a fixed period.
	KindInterval
)

// Spec is a parsed schedule expression.
type Spec struct {
	Kind    Kind
	Hour    int
	Minute  int
	Weekday time.Weekday  // KindWeekly only
	Every   time.Duration // KindInterval only
}

var weekdays = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// ParseSpec parses the schedule DSL used in note frontmatter:
//
//	daily at HH:MM
//	every <weekday> at HH:MM
//	every N minutes|hours|days
func ParseSpec(dsl string) (Spec, error) {
	fields := strings.Fields(strings.ToLower(strings.TrimSpace(dsl)))
	if len(fields) == 0 {
		return Spec{}, fmt.Errorf("empty schedule")
	}

	switch fields[0] {
	case "daily":
		// daily at HH:MM
		if len(fields) != 3 || fields[1] != "at" {
			return Spec{}, fmt.Errorf("invalid daily schedule %q", dsl)
		}
		hour, minute, err := parseClock(fields[2])
		if err != nil {
			return Spec{}, fmt.Errorf("invalid daily schedule %q: %w", dsl, err)
		}
		return Spec{Kind: KindDaily, Hour: hour, Minute: minute}, nil

	case "every":
		if len(fields) < 2 {
			return Spec{}, fmt.Errorf("invalid schedule %q", dsl)
		}

		// every <weekday> at HH:MM
		if day, ok := weekdays[fields[1]]; ok {
			if len(fields) != 4 || fields[2] != "at" {
				return Spec{}, fmt.Errorf("invalid weekly schedule %q", dsl)
			}
			hour, minute, err := parseClock(fields[3])
			if err != nil {
				return Spec{}, fmt.Errorf("invalid weekly schedule %q: %w", dsl, err)
			}
			return Spec{Kind: KindWeekly, Weekday: day, Hour: hour, Minute: minute}, nil
		}

		// every N minutes|hours|days
		if len(fields) != 3 {
			return Spec{}, fmt.Errorf("invalid interval schedule %q", dsl)
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n <= 0 {
			return Spec{}, fmt.Errorf("invalid interval count in %q", dsl)
		}
		var unit time.Duration
		switch strings.TrimSuffix(fields[2], "s") {
		case "minute":
			unit = time.Minute
		case "hour":
			unit = time.Hour
		case "day":
			unit = 24 * time.Hour
		default:
			return Spec{}, fmt.Errorf("unknown interval unit in %q", dsl)
		}
		return Spec{Kind: KindInterval, Every: time.Duration(n) * unit}, nil
	}

	return Spec{}, fmt.Errorf("unrecognized schedule %q", dsl)
}

// CronExpr renders a daily or weekly spec as a standard 5-field cron
// expression. Interval specs have no cron form.
func (s Spec) CronExpr() (string, error) {
	switch s.Kind {
	case KindDaily:
		return fmt.Sprintf("%d %d * * *", s.Minute, s.Hour), nil
	case KindWeekly:
		return fmt.Sprintf("%d %d * * %d", s.Minute, s.Hour, int(s.Weekday)), nil
	default:
		return "", fmt.Errorf("interval schedules have no cron expression")
	}
}

// WithClock returns a copy of s with the time of day replaced. Used when
// deriving reminder offsets from a main event.
func (s Spec) WithClock(hour, minute int) Spec {
	s.Hour = hour
	s.Minute = minute
	return s
}

func parseClock(s string) (hour, minute int, err error) {
	parts := strings.SplitN(s, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("time must be HH:MM")
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("invalid hour %q", parts[0])
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("invalid minute %q", parts[1])
	}
	return hour, minute, nil
}
