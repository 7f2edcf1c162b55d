// Package recurrence computes habit reset times and projects habit
// occurrences onto a calendar window.
package recurrence

import (
	"strings"
	"time"

	"github.com/starford/gtdspace/internal/models"
)

var frequencyAliases = map[string]models.Frequency{
	"5-minute":        models.FrequencyFiveMinute,
	"5-minutes":       models.FrequencyFiveMinute,
	"5min":            models.FrequencyFiveMinute,
	"five-minute":     models.FrequencyFiveMinute,
	"daily":           models.FrequencyDaily,
	"every-day":       models.FrequencyDaily,
	"weekdays":        models.FrequencyWeekdays,
	"weekday":         models.FrequencyWeekdays,
	"every-other-day": models.FrequencyEveryOtherDay,
	"alternate-days":  models.FrequencyEveryOtherDay,
	"twice-weekly":    models.FrequencyTwiceWeekly,
	"twice-a-week":    models.FrequencyTwiceWeekly,
	"weekly":          models.FrequencyWeekly,
	"biweekly":        models.FrequencyBiweekly,
	"bi-weekly":       models.FrequencyBiweekly,
	"fortnightly":     models.FrequencyBiweekly,
	"monthly":         models.FrequencyMonthly,
}

// ParseFrequency maps a stored value to a Frequency. Case, spaces and
// underscores are ignored.
func ParseFrequency(s string) (models.Frequency, bool) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("_", "-", " ", "-").Replace(key)
	f, ok := frequencyAliases[key]
	return f, ok
}

// StepDays returns the fixed calendar-day step of f, or 0 when f does not
// advance by whole days at a fixed rate.
func StepDays(f models.Frequency) int {
	switch f {
	case models.FrequencyDaily, models.FrequencyWeekdays:
		return 1
	case models.FrequencyEveryOtherDay:
		return 2
	case models.FrequencyTwiceWeekly:
		return 3
	case models.FrequencyWeekly:
		return 7
	case models.FrequencyBiweekly:
		return 14
	default:
		return 0
	}
}

// NextReset returns the first instant after baseline at which a habit with
// frequency f resets. Unknown frequencies behave as daily.
func NextReset(f models.Frequency, baseline time.Time) time.Time {
	switch f {
	case models.FrequencyFiveMinute:
		return baseline.Add(5 * time.Minute)
	case models.FrequencyMonthly:
		return AddMonthsClamped(baseline, 1)
	case models.FrequencyWeekdays:
		next := baseline.AddDate(0, 0, 1)
		for IsWeekend(next) {
			next = next.AddDate(0, 0, 1)
		}
		return next
	}
	step := StepDays(f)
	if step == 0 {
		step = 1
	}
	return baseline.AddDate(0, 0, step)
}

// AddMonthsClamped adds n calendar months to t. When the day of month does not
// exist in the target month it is clamped to the month's last day, so
// January 31 plus one month is the last day of February.
func AddMonthsClamped(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	first := time.Date(y, m+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	if last := daysIn(first.Year(), first.Month(), t.Location()); d > last {
		d = last
	}
	return time.Date(first.Year(), first.Month(), d, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// IsWeekend reports whether t falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func daysIn(y int, m time.Month, loc *time.Location) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, loc).Day()
}
