package subscription

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSchedule is returned when a billing schedule cannot be interpreted.
var ErrInvalidSchedule = errors.New("invalid billing schedule")

// Period is the unit a billing interval is expressed in.
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// Valid reports whether the period is one of the supported units.
func (p Period) Valid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return true
	}
	return false
}

// Schedule describes how a subscription product bills over time.
// All date arithmetic operates in UTC.
type Schedule struct {
	// Interval is the number of periods between renewals (every N periods).
	Interval int
	Period   Period
	// Length is the total number of billing periods before the subscription
	// expires. Zero means it renews indefinitely.
	Length int

	TrialLength int
	TrialPeriod Period

	// SyncDay aligns renewals to a fixed calendar day instead of the purchase
	// date: day of month for month/year periods, ISO weekday (1=Monday) for
	// week periods. Zero disables synchronization.
	SyncDay int
}

// Validate checks the schedule fields are internally consistent.
func (s Schedule) Validate() error {
	if s.Interval <= 0 {
		return fmt.Errorf("interval %d: %w", s.Interval, ErrInvalidSchedule)
	}
	if !s.Period.Valid() {
		return fmt.Errorf("period %q: %w", s.Period, ErrInvalidSchedule)
	}
	if s.TrialLength > 0 && !s.TrialPeriod.Valid() {
		return fmt.Errorf("trial period %q: %w", s.TrialPeriod, ErrInvalidSchedule)
	}
	if s.Length < 0 || s.TrialLength < 0 {
		return ErrInvalidSchedule
	}
	return nil
}

// HasTrial reports whether the schedule starts with a free trial.
func (s Schedule) HasTrial() bool { return s.TrialLength > 0 }

// IsSynced reports whether renewals align to a fixed calendar day.
func (s Schedule) IsSynced() bool {
	return s.SyncDay > 0 && s.Period != PeriodDay
}

// Add advances from by n periods. Month and year additions clamp the day of
// month so a renewal anchored on the 31st lands on the last day of shorter
// months instead of rolling over.
func Add(p Period, n int, from time.Time) time.Time {
	from = from.UTC()
	switch p {
	case PeriodDay:
		return from.AddDate(0, 0, n)
	case PeriodWeek:
		return from.AddDate(0, 0, 7*n)
	case PeriodMonth:
		return addMonthsClamped(from, n)
	case PeriodYear:
		return addMonthsClamped(from, 12*n)
	}
	return from
}

func addMonthsClamped(from time.Time, months int) time.Time {
	year, month, day := from.Date()
	first := time.Date(year, month, 1, from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), time.UTC)
	shifted := first.AddDate(0, months, 0)
	last := daysIn(shifted.Year(), shifted.Month())
	if day > last {
		day = last
	}
	return time.Date(shifted.Year(), shifted.Month(), day, from.Hour(), from.Minute(), from.Second(), from.Nanosecond(), time.UTC)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// TrialEnd returns when the free trial finishes, or the zero time when the
// schedule has no trial.
func (s Schedule) TrialEnd(from time.Time) time.Time {
	if !s.HasTrial() {
		return time.Time{}
	}
	return Add(s.TrialPeriod, s.TrialLength, from)
}

// NextPayment returns the first renewal charge date after from. Trials defer
// the first payment to the trial end; synchronized schedules then align it to
// the configured calendar day.
func (s Schedule) NextPayment(from time.Time) (time.Time, error) {
	if err := s.Validate(); err != nil {
		return time.Time{}, err
	}
	anchor := from.UTC()
	if s.HasTrial() {
		anchor = s.TrialEnd(from)
	}
	if s.IsSynced() {
		return s.syncedAfter(anchor), nil
	}
	if s.HasTrial() {
		return anchor, nil
	}
	return Add(s.Period, s.Interval, anchor), nil
}

// FirstRenewal is NextPayment for synchronized schedules and the zero time
// otherwise. Grouping uses it so two synchronized products renewing on
// different calendar days never share a cohort.
func (s Schedule) FirstRenewal(from time.Time) time.Time {
	if !s.IsSynced() {
		return time.Time{}
	}
	next, err := s.NextPayment(from)
	if err != nil {
		return time.Time{}
	}
	return next
}

// Expiration returns when the subscription ends, or the zero time for
// unlimited schedules. A trial extends the overall term.
func (s Schedule) Expiration(from time.Time) time.Time {
	if s.Length <= 0 {
		return time.Time{}
	}
	anchor := from.UTC()
	if s.HasTrial() {
		anchor = s.TrialEnd(from)
	}
	return Add(s.Period, s.Length, anchor)
}

// syncedAfter returns the first occurrence of the sync day strictly after t,
// truncated to midnight UTC.
func (s Schedule) syncedAfter(t time.Time) time.Time {
	t = t.UTC()
	switch s.Period {
	case PeriodWeek:
		weekday := isoWeekday(t)
		delta := (s.SyncDay - weekday + 7) % 7
		if delta == 0 {
			delta = 7
		}
		next := t.AddDate(0, 0, delta)
		return midnight(next)
	case PeriodMonth, PeriodYear:
		day := s.SyncDay
		candidate := clampedDate(t.Year(), t.Month(), day)
		if !candidate.After(midnight(t)) {
			candidate = clampedDate(t.Year(), t.Month()+1, day)
		}
		return candidate
	}
	return midnight(t)
}

func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func clampedDate(year int, month time.Month, day int) time.Time {
	norm := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	if last := daysIn(norm.Year(), norm.Month()); day > last {
		day = last
	}
	return time.Date(norm.Year(), norm.Month(), day, 0, 0, 0, 0, time.UTC)
}
