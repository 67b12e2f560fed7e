package ledger

import (
	"errors"
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

var ErrInvalidRange = errors.New("start date is after end date")

// DateRange selects whole calendar days, both ends inclusive.
// A zero Start or End leaves that side open; the zero range is all history.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// Day is the range covering exactly one calendar day.
func Day(d time.Time) DateRange { return DateRange{Start: d, End: d} }

func (r DateRange) IsZero() bool { return r.Start.IsZero() && r.End.IsZero() }

func (r DateRange) Validate() error {
	if !r.Start.IsZero() && !r.End.IsZero() && dayStart(r.Start, time.UTC).After(dayStart(r.End, time.UTC)) {
		return ErrInvalidRange
	}
	return nil
}

// Window converts the range into the half-open instant window [from, to)
// using calendar days in loc. Nil means unbounded.
func (r DateRange) Window(loc *time.Location) (from, to *time.Time) {
	if loc == nil {
		loc = time.Local
	}
	if !r.Start.IsZero() {
		f := dayStart(r.Start, loc)
		from = &f
	}
	if !r.End.IsZero() {
		t := dayStart(r.End, loc).AddDate(0, 0, 1)
		to = &t
	}
	return from, to
}

// dayStart is midnight of d's calendar date, interpreted in loc.
func dayStart(d time.Time, loc *time.Location) time.Time {
	y, m, dd := d.Date()
	return time.Date(y, m, dd, 0, 0, 0, 0, loc)
}

// ParseDate reads a YYYY-MM-DD date in loc.
func ParseDate(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	d, err := time.ParseInLocation(DateLayout, s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD: %w", err)
	}
	return d, nil
}
