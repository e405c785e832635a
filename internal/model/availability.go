package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SlotDuration is the fixed length of a bookable slot and of a consultation.
const SlotDuration = 30 * time.Minute

// ClockTime is a time of day stored as the offset from midnight.
type ClockTime time.Duration

// NewClockTime builds a ClockTime from hours and minutes.
func NewClockTime(hour, minute int) ClockTime {
	return ClockTime(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// ClockOf returns the UTC time of day of t.
func ClockOf(t time.Time) ClockTime {
	t = t.UTC()
	midnight := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	return ClockTime(t.Sub(midnight))
}

// ParseClock accepts "15:04" or "15:04:05".
func ParseClock(s string) (ClockTime, error) {
	for _, layout := range []string{"15:04:05", "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return NewClockTime(t.Hour(), t.Minute()) + ClockTime(time.Duration(t.Second())*time.Second), nil
		}
	}
	return 0, fmt.Errorf("invalid time of day %q", s)
}

// Duration returns the offset from midnight.
func (c ClockTime) Duration() time.Duration { return time.Duration(c) }

// On returns the instant at this time of day on the UTC date of day.
func (c ClockTime) On(day time.Time) time.Time {
	day = day.UTC()
	return time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC).Add(time.Duration(c))
}

func (c ClockTime) String() string {
	d := time.Duration(c)
	h := int(d / time.Hour)
	m := int((d % time.Hour) / time.Minute)
	s := int((d % time.Minute) / time.Second)
	if s != 0 {
		return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%02d:%02d", h, m)
}

func (c ClockTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *ClockTime) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("time of day must be a string: %w", err)
	}
	v, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Scan implements sql.Scanner for postgres TIME columns.
func (c *ClockTime) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*c = 0
		return nil
	case time.Time:
		*c = NewClockTime(v.Hour(), v.Minute()) + ClockTime(time.Duration(v.Second())*time.Second)
		return nil
	case []byte:
		return c.scanString(string(v))
	case string:
		return c.scanString(v)
	default:
		return fmt.Errorf("cannot scan %T into ClockTime", src)
	}
}

func (c *ClockTime) scanString(s string) error {
	// TIME values may carry fractional seconds.
	if len(s) > 8 {
		s = s[:8]
	}
	v, err := ParseClock(s)
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Value implements driver.Valuer.
func (c ClockTime) Value() (driver.Value, error) {
	d := time.Duration(c)
	return fmt.Sprintf("%02d:%02d:%02d", int(d/time.Hour), int((d%time.Hour)/time.Minute), int((d%time.Minute)/time.Second)), nil
}

// AvailabilityRule is a doctor's open window. Recurring rules match a
// weekday every week, one-off rules match SpecificDate only.
type AvailabilityRule struct {
	ID                     uuid.UUID    `db:"id" json:"id"`
	DoctorID               uuid.UUID    `db:"doctor_id" json:"doctor_id"`
	DayOfWeek              time.Weekday `db:"day_of_week" json:"day_of_week"`
	StartTime              ClockTime    `db:"start_time" json:"start_time"`
	EndTime                ClockTime    `db:"end_time" json:"end_time"`
	IsRecurring            bool         `db:"is_recurring" json:"is_recurring"`
	SpecificDate           *time.Time   `db:"specific_date" json:"specific_date,omitempty"`
	MaxAppointmentsPerSlot int          `db:"max_appointments_per_slot" json:"max_appointments_per_slot"`
	CreatedAt              time.Time    `db:"created_at" json:"created_at"`
}

// AppliesOn reports whether the rule covers the UTC date of day.
func (r *AvailabilityRule) AppliesOn(day time.Time) bool {
	day = day.UTC()
	if r.IsRecurring {
		return r.DayOfWeek == day.Weekday()
	}
	if r.SpecificDate == nil {
		return false
	}
	d := r.SpecificDate.UTC()
	return d.Year() == day.Year() && d.YearDay() == day.YearDay()
}

// Slot is a 30-minute window with its booking count.
type Slot struct {
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	IsAvailable     bool      `json:"is_available"`
	BookedCount     int       `json:"booked_count"`
	MaxAppointments int       `json:"max_appointments"`
}

type AvailabilityRuleRequest struct {
	DayOfWeek              *int      `json:"day_of_week" binding:"omitempty,min=0,max=6"`
	StartTime              ClockTime `json:"start_time" binding:"clock"`
	EndTime                ClockTime `json:"end_time" binding:"clock"`
	IsRecurring            *bool     `json:"is_recurring"`
	SpecificDate           *Instant  `json:"specific_date"`
	MaxAppointmentsPerSlot int       `json:"max_appointments_per_slot" binding:"omitempty,min=1,max=50"`
}
