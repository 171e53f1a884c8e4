package occur

import (
	"testing"

	"simplecal/internal/caldate"
	"simplecal/internal/model"
)

func date(t *testing.T, s string) caldate.Date {
	t.Helper()
	d, err := caldate.Parse(s)
	if err != nil {
		t.Fatalf("parse %q: %v", s, err)
	}
	return d
}

func recurring(start string, freq model.Frequency) model.Event {
	return model.Event{
		ID:          "r1",
		Title:       "recurring",
		Type:        model.TypeEvent,
		Date:        start,
		EndDate:     start,
		IsRecurring: true,
		Recurrence: &model.RecurrenceRule{
			Frequency: freq,
			EndType:   model.RecurrenceEndIndefinite,
		},
	}
}

func TestForDateNonRecurringInterval(t *testing.T) {
	ev := model.Event{
		ID:      "e1",
		Title:   "conference",
		Type:    model.TypeEvent,
		Date:    "2024-03-10",
		EndDate: "2024-03-12",
	}
	tests := []struct {
		date string
		want bool
	}{
		{"2024-03-09", false},
		{"2024-03-10", true},
		{"2024-03-11", true},
		{"2024-03-12", true},
		{"2024-03-13", false},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			got := ForDate([]model.Event{ev}, date(t, tt.date), DefaultFilters())
			if (len(got) == 1) != tt.want {
				t.Fatalf("visible = %v, want %v", len(got) == 1, tt.want)
			}
			if tt.want && got[0].OccurrenceIndex != 0 {
				t.Errorf("index = %d, want 0", got[0].OccurrenceIndex)
			}
		})
	}
}

func TestForDateEmptyEndDateFallsBackToStart(t *testing.T) {
	ev := model.Event{ID: "e1", Type: model.TypeTask, Date: "2024-03-10"}
	if got := ForDate([]model.Event{ev}, date(t, "2024-03-10"), DefaultFilters()); len(got) != 1 {
		t.Errorf("event should be visible on its start date, got %d results", len(got))
	}
	if got := ForDate([]model.Event{ev}, date(t, "2024-03-11"), DefaultFilters()); len(got) != 0 {
		t.Errorf("event without endDate must be single-day, got %d results", len(got))
	}
}

func TestMatchRecurrenceDaily(t *testing.T) {
	ev := recurring("2024-01-01", model.FreqDaily)
	for n := 0; n < 400; n++ {
		d := date(t, "2024-01-01").AddDays(n)
		idx, ok := MatchRecurrence(ev, d)
		if !ok || idx != n {
			t.Fatalf("day +%d: got (%d, %v), want (%d, true)", n, idx, ok, n)
		}
	}
	if _, ok := MatchRecurrence(ev, date(t, "2023-12-31")); ok {
		t.Error("matched before start date")
	}
}

func TestMatchRecurrenceWeekly(t *testing.T) {
	// 2024-01-03 is a Wednesday.
	ev := recurring("2024-01-03", model.FreqWeekly)
	tests := []struct {
		date    string
		wantIdx int
		wantOK  bool
	}{
		{"2024-01-03", 0, true},
		{"2024-01-10", 1, true},
		{"2024-01-17", 2, true},
		{"2024-01-04", 0, false}, // Thursday
		{"2024-01-09", 0, false}, // Tuesday
		{"2023-12-27", 0, false}, // Wednesday before start
		{"2024-12-25", 51, true},
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			idx, ok := MatchRecurrence(ev, date(t, tt.date))
			if ok != tt.wantOK || (ok && idx != tt.wantIdx) {
				t.Errorf("got (%d, %v), want (%d, %v)", idx, ok, tt.wantIdx, tt.wantOK)
			}
		})
	}
}

func TestMatchRecurrenceMonthlyDay31(t *testing.T) {
	ev := recurring("2024-01-31", model.FreqMonthly)

	// February has no 31st, so the event silently skips it; March keeps the
	// raw month difference as its index.
	idx, ok := MatchRecurrence(ev, date(t, "2024-03-31"))
	if !ok || idx != 2 {
		t.Errorf("2024-03-31: got (%d, %v), want (2, true)", idx, ok)
	}
	for _, d := range []string{"2024-02-28", "2024-02-29", "2024-04-30"} {
		if _, ok := MatchRecurrence(ev, date(t, d)); ok {
			t.Errorf("%s should not match a day-31 monthly rule", d)
		}
	}
}

func TestMatchRecurrenceYearly(t *testing.T) {
	ev := recurring("2024-02-29", model.FreqYearly)
	tests := []struct {
		date    string
		wantIdx int
		wantOK  bool
	}{
		{"2024-02-29", 0, true},
		{"2028-02-29", 4, true},
		{"2025-02-28", 0, false}, // day mismatch
		{"2025-03-29", 0, false}, // month mismatch
	}
	for _, tt := range tests {
		t.Run(tt.date, func(t *testing.T) {
			idx, ok := MatchRecurrence(ev, date(t, tt.date))
			if ok != tt.wantOK || (ok && idx != tt.wantIdx) {
				t.Errorf("got (%d, %v), want (%d, %v)", idx, ok, tt.wantIdx, tt.wantOK)
			}
		})
	}
}

func TestMatchRecurrenceEndDate(t *testing.T) {
	ev := recurring("2024-01-01", model.FreqDaily)
	ev.Recurrence.EndType = model.RecurrenceEndDate
	ev.Recurrence.EndDate = "2024-01-05"

	if idx, ok := MatchRecurrence(ev, date(t, "2024-01-05")); !ok || idx != 4 {
		t.Errorf("end date itself should match with index 4, got (%d, %v)", idx, ok)
	}
	if _, ok := MatchRecurrence(ev, date(t, "2024-01-06")); ok {
		t.Error("matched past the recurrence end date")
	}

	// A date-bounded rule whose endDate was never filled in behaves as
	// unbounded, matching the browser build.
	ev.Recurrence.EndDate = ""
	if idx, ok := MatchRecurrence(ev, date(t, "2024-06-01")); !ok || idx != 152 {
		t.Errorf("missing endDate should not bound the rule, got (%d, %v)", idx, ok)
	}
}

func TestMatchRecurrenceDegradesToNoMatch(t *testing.T) {
	base := recurring("2024-01-01", model.FreqDaily)
	d := date(t, "2024-01-02")

	unknown := base
	unknown.Recurrence = &model.RecurrenceRule{Frequency: "fortnightly"}
	if _, ok := MatchRecurrence(unknown, d); ok {
		t.Error("unknown frequency must never match")
	}

	nilRule := base
	nilRule.Recurrence = nil
	if _, ok := MatchRecurrence(nilRule, d); ok {
		t.Error("recurring event without a rule must never match")
	}

	badStart := base
	badStart.Date = "not-a-date"
	if _, ok := MatchRecurrence(badStart, d); ok {
		t.Error("unparseable start date must never match")
	}

	badEnd := base
	badEnd.Recurrence = &model.RecurrenceRule{
		Frequency: model.FreqDaily,
		EndType:   model.RecurrenceEndDate,
		EndDate:   "2024-99-99",
	}
	if _, ok := MatchRecurrence(badEnd, d); ok {
		t.Error("unparseable end date must never match")
	}
}

func TestBuildRotation(t *testing.T) {
	ev := recurring("2024-01-01", model.FreqWeekly)
	ev.AutoRotateTasks = true
	ev.Participants = []model.Participant{
		{Name: "Ann", Email: "ann@example.com", Task: "A"},
		{Name: "Ben", Phone: "555-0101", Task: "B"},
		{Name: "Cleo", Task: "C"},
	}

	tests := []struct {
		index int
		want  []string
	}{
		{0, []string{"A", "B", "C"}},
		{1, []string{"B", "C", "A"}},
		{2, []string{"C", "A", "B"}},
		{3, []string{"A", "B", "C"}}, // full cycle
	}
	for _, tt := range tests {
		occ := Build(ev, tt.index)
		for i, want := range tt.want {
			p := occ.Participants[i]
			if p.Task != want {
				t.Errorf("index %d participant %d task = %q, want %q", tt.index, i, p.Task, want)
			}
			if p.Name != ev.Participants[i].Name ||
				p.Email != ev.Participants[i].Email ||
				p.Phone != ev.Participants[i].Phone {
				t.Errorf("index %d participant %d identity fields must not rotate", tt.index, i)
			}
		}
	}

	// Rotation never mutates the master record.
	if ev.Participants[0].Task != "A" {
		t.Error("Build mutated the source event")
	}
}

func TestBuildNoRotation(t *testing.T) {
	ev := recurring("2024-01-01", model.FreqWeekly)
	ev.Participants = []model.Participant{{Name: "Ann", Task: "A"}, {Name: "Ben", Task: "B"}}

	// Rotation off.
	occ := Build(ev, 3)
	if occ.Participants[0].Task != "A" {
		t.Error("tasks rotated with autoRotateTasks disabled")
	}

	// Single participant: nothing to rotate.
	ev.AutoRotateTasks = true
	ev.Participants = ev.Participants[:1]
	occ = Build(ev, 5)
	if occ.Participants[0].Task != "A" {
		t.Error("single participant must keep its task")
	}
}

func TestForDateSorting(t *testing.T) {
	events := []model.Event{
		{ID: "1", Type: model.TypeEvent, Date: "2024-05-01", EndDate: "2024-05-01", Time: "14:00"},
		{ID: "2", Type: model.TypeEvent, Date: "2024-05-01", EndDate: "2024-05-01", Time: ""},
		{ID: "3", Type: model.TypeEvent, Date: "2024-05-01", EndDate: "2024-05-01", Time: "09:00"},
		{ID: "4", Type: model.TypeTask, Date: "2024-05-01", EndDate: "2024-05-01", Time: ""},
	}
	got := ForDate(events, date(t, "2024-05-01"), DefaultFilters())
	wantIDs := []string{"3", "1", "2", "4"}
	if len(got) != len(wantIDs) {
		t.Fatalf("got %d occurrences, want %d", len(got), len(wantIDs))
	}
	for i, id := range wantIDs {
		if got[i].ID != id {
			t.Errorf("position %d = id %s, want %s", i, got[i].ID, id)
		}
	}
}

func TestForDateFilters(t *testing.T) {
	events := []model.Event{
		{ID: "1", Type: model.TypeEvent, Date: "2024-05-01", EndDate: "2024-05-01"},
		{ID: "2", Type: model.TypeTask, Date: "2024-05-01", EndDate: "2024-05-01"},
	}
	d := date(t, "2024-05-01")

	got := ForDate(events, d, Filters{Events: true})
	if len(got) != 1 || got[0].ID != "1" {
		t.Errorf("events-only filter returned %v", got)
	}
	got = ForDate(events, d, Filters{Tasks: true})
	if len(got) != 1 || got[0].ID != "2" {
		t.Errorf("tasks-only filter returned %v", got)
	}
	if got = ForDate(events, d, Filters{}); len(got) != 0 {
		t.Errorf("empty filter returned %v", got)
	}
}

func TestForRange(t *testing.T) {
	ev := recurring("2024-01-01", model.FreqDaily)
	days := ForRange([]model.Event{ev}, date(t, "2023-12-31"), 3, DefaultFilters())
	if len(days) != 3 {
		t.Fatalf("got %d days, want 3", len(days))
	}
	if len(days[0].Occurrences) != 0 {
		t.Error("day before start must be empty")
	}
	for i, day := range days[1:] {
		if len(day.Occurrences) != 1 || day.Occurrences[0].OccurrenceIndex != i {
			t.Errorf("day %s: %+v", day.Date, day.Occurrences)
		}
	}
}
