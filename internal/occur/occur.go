// Package occur is the read side of the calendar: it projects the master
// event collection onto concrete calendar dates. It never mutates events and
// never fails; malformed recurrence input degrades to "no occurrence".
package occur

import (
	"sort"

	"simplecal/internal/caldate"
	"simplecal/internal/model"
)

// Filters is the set of entry types currently visible. The zero value hides
// everything; use DefaultFilters for the usual "show all" state.
type Filters struct {
	Events bool
	Tasks  bool
}

// DefaultFilters shows both events and tasks.
func DefaultFilters() Filters {
	return Filters{Events: true, Tasks: true}
}

// Allows reports whether entries of type t pass the filter.
func (f Filters) Allows(t model.EventType) bool {
	switch t {
	case model.TypeEvent:
		return f.Events
	case model.TypeTask:
		return f.Tasks
	default:
		return false
	}
}

// ForDate returns the ordered list of occurrences visible on the given date.
//
//   - Non-recurring events are visible iff the date falls inside the closed
//     interval [Date, EndDate]; they carry occurrence index 0.
//   - Recurring events are matched via MatchRecurrence and materialized via
//     Build, which applies task rotation.
//   - The result is sorted by time of day: timed entries first in HH:MM
//     order, untimed entries after them. The sort is stable, so ties keep
//     collection order.
func ForDate(events []model.Event, date caldate.Date, filters Filters) []model.Occurrence {
	dateStr := date.String()
	out := make([]model.Occurrence, 0)

	for _, ev := range events {
		if !filters.Allows(ev.Type) {
			continue
		}

		if !ev.IsRecurring {
			// Zero-padded ISO dates order lexicographically, so plain string
			// comparison against the closed interval is exact.
			endDate := ev.EndDate
			if endDate == "" {
				endDate = ev.Date
			}
			if dateStr >= ev.Date && dateStr <= endDate {
				out = append(out, Build(ev, 0))
			}
			continue
		}

		if idx, ok := MatchRecurrence(ev, date); ok {
			out = append(out, Build(ev, idx))
		}
	}

	sortOccurrences(out)
	return out
}

// Day pairs a calendar date with its visible occurrences.
type Day struct {
	Date        string             `json:"date"`
	Occurrences []model.Occurrence `json:"occurrences"`
}

// ForRange expands a window of consecutive days starting at start. Each day
// is computed independently, exactly as a grid renderer would call ForDate
// per visible cell.
func ForRange(events []model.Event, start caldate.Date, days int, filters Filters) []Day {
	if days < 1 {
		days = 1
	}
	out := make([]Day, 0, days)
	for i := 0; i < days; i++ {
		d := start.AddDays(i)
		out = append(out, Day{
			Date:        d.String(),
			Occurrences: ForDate(events, d, filters),
		})
	}
	return out
}

// MatchRecurrence reports whether date is an occurrence of the recurring
// event and, if so, its 0-based occurrence index. The index is the raw
// period difference since the start date, never re-ranked.
//
// Matching is intentionally literal: a monthly or yearly rule only fires on
// the exact start day-of-month, so an event starting on the 31st never
// occurs in shorter months.
func MatchRecurrence(ev model.Event, date caldate.Date) (int, bool) {
	if !ev.IsRecurring || ev.Recurrence == nil {
		return 0, false
	}
	rule := ev.Recurrence

	start, err := caldate.Parse(ev.Date)
	if err != nil {
		return 0, false
	}

	if date.Before(start) {
		return 0, false
	}

	if rule.EndType == model.RecurrenceEndDate && rule.EndDate != "" {
		end, err := caldate.Parse(rule.EndDate)
		if err != nil {
			return 0, false
		}
		if date.After(end) {
			return 0, false
		}
	}

	switch rule.Frequency {
	case model.FreqDaily:
		idx := start.DaysUntil(date)
		return idx, idx >= 0

	case model.FreqWeekly:
		if date.Weekday() != start.Weekday() {
			return 0, false
		}
		idx := start.DaysUntil(date) / 7
		return idx, idx >= 0

	case model.FreqMonthly:
		if date.Day != start.Day {
			return 0, false
		}
		idx := start.MonthsUntil(date)
		return idx, idx >= 0

	case model.FreqYearly:
		if date.Day != start.Day || date.Month != start.Month {
			return 0, false
		}
		idx := start.YearsUntil(date)
		return idx, idx >= 0

	default:
		return 0, false
	}
}

// Build materializes one occurrence of an event. When task auto-rotation is
// enabled and there is more than one participant, task strings are shifted
// cyclically by occurrenceIndex mod participant count; names, emails and
// phones stay with their participant, only the task assignment moves.
func Build(ev model.Event, occurrenceIndex int) model.Occurrence {
	occ := model.Occurrence{
		Event:           ev.Clone(),
		OccurrenceIndex: occurrenceIndex,
	}

	n := len(ev.Participants)
	if !ev.AutoRotateTasks || n <= 1 {
		return occ
	}

	shift := occurrenceIndex % n
	rotated := make([]model.Participant, n)
	for i, p := range ev.Participants {
		p.Task = ev.Participants[(i+shift)%n].Task
		rotated[i] = p
	}
	occ.Participants = rotated
	return occ
}

// sortOccurrences orders timed entries by HH:MM string comparison and places
// untimed entries after all timed ones. Stable, so equal keys keep their
// input order.
func sortOccurrences(list []model.Occurrence) {
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i].Time, list[j].Time
		if a != "" && b != "" {
			return a < b
		}
		return a != "" && b == ""
	})
}
