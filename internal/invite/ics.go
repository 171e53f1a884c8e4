package invite

import (
	"fmt"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/teambition/rrule-go"

	"simplecal/internal/caldate"
	"simplecal/internal/model"
)

// EventICS serializes the event as an iCalendar payload suitable for a
// .ics download. Recurring events carry an RRULE derived from the native
// recurrence rule; an unknown frequency simply omits the RRULE rather than
// failing, mirroring the engine's degrade-to-no-match policy.
func EventICS(ev model.Event) (string, error) {
	start, err := caldate.Parse(ev.Date)
	if err != nil {
		return "", fmt.Errorf("invite: event start date: %w", err)
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//simplecal//EN")

	ve := cal.AddEvent(ev.ID + "@simplecal")
	ve.SetDtStampTime(time.Now().UTC())
	ve.SetSummary(ev.Title)
	if ev.Location != "" {
		ve.SetLocation(ev.Location)
	}
	if ev.Note != "" {
		ve.SetDescription(ev.Note)
	}

	if hh, mm, ok := splitTime(ev.Time); ok && !ev.IsAllDay {
		startAt := time.Date(start.Year, time.Month(start.Month), start.Day, hh, mm, 0, 0, time.Local)
		ve.SetStartAt(startAt)
		if eh, em, ok := splitTime(ev.EndTime); ok {
			ve.SetEndAt(time.Date(start.Year, time.Month(start.Month), start.Day, eh, em, 0, 0, time.Local))
		} else {
			ve.SetEndAt(startAt.Add(time.Hour))
		}
	} else {
		// All-day (or untimed): DATE values, end exclusive.
		end := start
		if ev.EndDate != "" {
			if parsed, err := caldate.Parse(ev.EndDate); err == nil {
				end = parsed
			}
		}
		ve.SetAllDayStartAt(time.Date(start.Year, time.Month(start.Month), start.Day, 0, 0, 0, 0, time.UTC))
		endNext := end.AddDays(1)
		ve.SetAllDayEndAt(time.Date(endNext.Year, time.Month(endNext.Month), endNext.Day, 0, 0, 0, 0, time.UTC))
	}

	if ev.IsRecurring && ev.Recurrence != nil {
		if line, ok := rruleLine(ev.Recurrence); ok {
			ve.AddRrule(line)
		}
	}

	for _, p := range ev.Participants {
		if p.Email != "" {
			ve.AddAttendee(p.Email)
		}
	}

	return cal.Serialize(), nil
}

// rruleLine converts the native recurrence rule into an RFC 5545 RRULE
// value via rrule-go.
func rruleLine(rule *model.RecurrenceRule) (string, bool) {
	opt := rrule.ROption{}
	switch rule.Frequency {
	case model.FreqDaily:
		opt.Freq = rrule.DAILY
	case model.FreqWeekly:
		opt.Freq = rrule.WEEKLY
	case model.FreqMonthly:
		opt.Freq = rrule.MONTHLY
	case model.FreqYearly:
		opt.Freq = rrule.YEARLY
	default:
		return "", false
	}

	if rule.EndType == model.RecurrenceEndDate && rule.EndDate != "" {
		if end, err := caldate.Parse(rule.EndDate); err == nil {
			opt.Until = time.Date(end.Year, time.Month(end.Month), end.Day, 23, 59, 59, 0, time.UTC)
		}
	}

	r, err := rrule.NewRRule(opt)
	if err != nil {
		return "", false
	}
	return r.String(), true
}
