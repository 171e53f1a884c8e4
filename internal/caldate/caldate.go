// Package caldate implements arithmetic on pure calendar dates (proleptic
// Gregorian, no time of day, no timezone). Recurrence matching must not be
// sensitive to daylight-saving shifts, so all differences are computed on
// civil day numbers rather than on time.Time subtraction.
package caldate

import (
	"fmt"
	"time"
)

// Layout is the wire format for calendar dates. It is zero-padded, so
// lexicographic comparison of formatted dates orders them correctly.
const Layout = "2006-01-02"

// Date is a local calendar date.
type Date struct {
	Year  int
	Month int // 1..12
	Day   int // 1..31
}

// Parse parses a YYYY-MM-DD string into a Date. Non-existent dates such as
// 2024-02-31 are rejected.
func Parse(s string) (Date, error) {
	t, err := time.Parse(Layout, s)
	if err != nil {
		return Date{}, fmt.Errorf("caldate: %w", err)
	}
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}, nil
}

// FromTime truncates t to its calendar date in t's own location.
func FromTime(t time.Time) Date {
	return Date{Year: t.Year(), Month: int(t.Month()), Day: t.Day()}
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
}

// IsZero reports whether d is the zero value.
func (d Date) IsZero() bool {
	return d == Date{}
}

// Compare returns -1 if d is before o, 0 if equal, +1 if after.
func (d Date) Compare(o Date) int {
	a, b := d.dayNumber(), o.dayNumber()
	switch {
	case a < b:
		return -1
	case a > b:
		return +1
	default:
		return 0
	}
}

// Before reports whether d is strictly earlier than o.
func (d Date) Before(o Date) bool { return d.Compare(o) < 0 }

// After reports whether d is strictly later than o.
func (d Date) After(o Date) bool { return d.Compare(o) > 0 }

// AddDays returns the date n whole days after d (n may be negative).
func (d Date) AddDays(n int) Date {
	return fromDayNumber(d.dayNumber() + n)
}

// Weekday returns the day of the week for d.
func (d Date) Weekday() time.Weekday {
	// Day number 0 is 1970-01-01, a Thursday.
	n := (d.dayNumber() + 4) % 7
	if n < 0 {
		n += 7
	}
	return time.Weekday(n)
}

// DaysUntil returns the number of whole days from d to o.
func (d Date) DaysUntil(o Date) int {
	return o.dayNumber() - d.dayNumber()
}

// MonthsUntil returns the signed calendar-month difference from d to o,
// ignoring the day-of-month.
func (d Date) MonthsUntil(o Date) int {
	return (o.Year-d.Year)*12 + (o.Month - d.Month)
}

// YearsUntil returns the signed calendar-year difference from d to o,
// ignoring month and day.
func (d Date) YearsUntil(o Date) int {
	return o.Year - d.Year
}

// dayNumber converts d into days since 1970-01-01 using the civil-from-days
// construction over 400-year eras.
func (d Date) dayNumber() int {
	y := d.Year
	if d.Month <= 2 {
		y--
	}
	era := y / 400
	if y < 0 && y%400 != 0 {
		era--
	}
	yoe := y - era*400 // [0, 399]
	m := d.Month
	var mp int
	if m > 2 {
		mp = m - 3
	} else {
		mp = m + 9
	}
	doy := (153*mp+2)/5 + d.Day - 1          // [0, 365]
	doe := yoe*365 + yoe/4 - yoe/100 + doy   // [0, 146096]
	return era*146097 + doe - 719468         // shift epoch to 1970-01-01
}

// fromDayNumber is the inverse of dayNumber.
func fromDayNumber(n int) Date {
	n += 719468
	era := n / 146097
	if n < 0 && n%146097 != 0 {
		era--
	}
	doe := n - era*146097 // [0, 146096]
	yoe := (doe - doe/1460 + doe/36524 - doe/146096) / 365
	y := yoe + era*400
	doy := doe - (365*yoe + yoe/4 - yoe/100)
	mp := (5*doy + 2) / 153
	day := doy - (153*mp+2)/5 + 1
	var m int
	if mp < 10 {
		m = mp + 3
	} else {
		m = mp - 9
	}
	if m <= 2 {
		y++
	}
	return Date{Year: y, Month: m, Day: day}
}
