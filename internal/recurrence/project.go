package recurrence

import (
	"time"

	"github.com/starford/gtdspace/internal/models"
)

// maxSteps bounds a single expansion. A year of 5-minute ticks fits.
const maxSteps = 1 << 17

const day = 24 * time.Hour

// Expand returns the occurrences of def inside [start, end], both bounds
// inclusive, in ascending order. The cursor is fast-forwarded from the
// creation instant instead of iterating every tick since then. A zero
// creation instant yields no occurrences.
func Expand(def models.RecurrenceDefinition, start, end time.Time) []time.Time {
	if def.Created.IsZero() || end.Before(start) {
		return nil
	}
	freq := def.Frequency
	if _, ok := frequencyAliases[string(freq)]; !ok {
		freq = models.FrequencyDaily
	}

	bufStart := start.Add(-day)
	bufEnd := end.Add(day)

	cursor, monthIdx := fastForward(def.Created, freq, start)

	var out []time.Time
	for i := 0; i < maxSteps && !cursor.After(bufEnd); i++ {
		if !cursor.Before(bufStart) && !cursor.Before(start) && !cursor.After(end) {
			if freq != models.FrequencyWeekdays || !IsWeekend(cursor) {
				out = append(out, cursor)
			}
		}
		if freq == models.FrequencyMonthly {
			monthIdx++
			cursor = AddMonthsClamped(def.Created, monthIdx)
			continue
		}
		cursor = NextReset(freq, cursor)
	}
	return out
}

// fastForward lands the cursor at most one step before start. For monthly
// rules it also returns the month offset from created so later steps stay
// anchored on the creation day.
func fastForward(created time.Time, freq models.Frequency, start time.Time) (time.Time, int) {
	if !created.Before(start.Add(-day)) {
		return created, 0
	}

	switch freq {
	case models.FrequencyFiveMinute:
		k := start.Sub(created) / (5 * time.Minute)
		return created.Add(k * 5 * time.Minute), 0

	case models.FrequencyMonthly:
		cy, cm, _ := created.Date()
		sy, sm, _ := start.Date()
		k := (sy-cy)*12 + int(sm-cm)
		cursor := AddMonthsClamped(created, k)
		for k > 0 && cursor.After(start) {
			k--
			cursor = AddMonthsClamped(created, k)
		}
		return cursor, k
	}

	step := StepDays(freq)
	days := calendarDays(created, start)
	k := days / step
	cursor := created.AddDate(0, 0, k*step)
	for k > 0 && cursor.After(start) {
		k--
		cursor = created.AddDate(0, 0, k*step)
	}
	return cursor, 0
}

// calendarDays counts whole calendar days from a to b, ignoring clock time
// and DST transitions.
func calendarDays(a, b time.Time) int {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da) / day)
}
