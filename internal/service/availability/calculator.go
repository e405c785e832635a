// Package availability decides whether a doctor can take a consultation at a
// given instant and lists the open slots over a date range.
package availability

import (
	"sort"
	"time"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// Match is the outcome of a slot check.
type Match struct {
	Rule   *model.AvailabilityRule
	Booked int
}

// NormalizeUTC converts t to UTC.
func NormalizeUTC(t time.Time) time.Time {
	return t.UTC()
}

// ParseInstant reads an ISO-8601 timestamp; a missing offset means UTC.
func ParseInstant(s string) (time.Time, error) {
	return model.ParseInstant(s)
}

// MatchRule returns the rule covering the slot starting at candidate, or nil.
// A one-off rule wins over a recurring one; ties go to the earliest start.
func MatchRule(rules []*model.AvailabilityRule, candidate time.Time) *model.AvailabilityRule {
	candidate = candidate.UTC()
	tod := model.ClockOf(candidate)
	end := tod + model.ClockTime(model.SlotDuration)

	var best *model.AvailabilityRule
	for _, r := range rules {
		if !r.AppliesOn(candidate) || r.StartTime > tod || r.EndTime < end {
			continue
		}
		if best == nil || better(r, best) {
			best = r
		}
	}
	return best
}

func better(a, b *model.AvailabilityRule) bool {
	if a.IsRecurring != b.IsRecurring {
		return !a.IsRecurring
	}
	return a.StartTime < b.StartTime
}

// IsSlotAvailable reports whether a 30-minute consultation starting at
// candidate fits a rule and the rule's capacity. Intervals are half-open.
func IsSlotAvailable(rules []*model.AvailabilityRule, existing []*model.Consultation, candidate time.Time) (Match, bool) {
	candidate = candidate.UTC()
	rule := MatchRule(rules, candidate)
	if rule == nil {
		return Match{}, false
	}

	end := candidate.Add(model.SlotDuration)
	booked := 0
	for _, c := range existing {
		if c.Status == model.ConsultationStatusCancelled {
			continue
		}
		if candidate.Before(c.EndsAt()) && end.After(c.ScheduledAt) {
			booked++
		}
	}
	return Match{Rule: rule, Booked: booked}, booked < maxOf(rule)
}

// EnumerateSlots lists every 30-minute slot of every matching rule for each
// UTC date in [from, to], skipping slots that start before now.
func EnumerateSlots(rules []*model.AvailabilityRule, existing []*model.Consultation, from, to, now time.Time) []model.Slot {
	first := startOfDay(from)
	last := startOfDay(to)
	now = now.UTC()

	ordered := make([]*model.AvailabilityRule, len(rules))
	copy(ordered, rules)
	sort.SliceStable(ordered, func(i, j int) bool { return better(ordered[i], ordered[j]) })

	seen := make(map[time.Time]struct{})
	slots := []model.Slot{}
	for day := first; !day.After(last); day = day.AddDate(0, 0, 1) {
		for _, r := range ordered {
			if !r.AppliesOn(day) {
				continue
			}
			windowEnd := r.EndTime.On(day)
			for start := r.StartTime.On(day); !start.Add(model.SlotDuration).After(windowEnd); start = start.Add(model.SlotDuration) {
				if start.Before(now) {
					continue
				}
				if _, dup := seen[start]; dup {
					continue
				}
				seen[start] = struct{}{}

				end := start.Add(model.SlotDuration)
				booked := countStarts(existing, start, end)
				slots = append(slots, model.Slot{
					StartTime:       start,
					EndTime:         end,
					BookedCount:     booked,
					MaxAppointments: maxOf(r),
					IsAvailable:     booked < maxOf(r),
				})
			}
		}
	}

	sort.Slice(slots, func(i, j int) bool { return slots[i].StartTime.Before(slots[j].StartTime) })
	return slots
}

func countStarts(existing []*model.Consultation, start, end time.Time) int {
	n := 0
	for _, c := range existing {
		if c.Status == model.ConsultationStatusCancelled {
			continue
		}
		s := c.ScheduledAt.UTC()
		if !s.Before(start) && s.Before(end) {
			n++
		}
	}
	return n
}

func maxOf(r *model.AvailabilityRule) int {
	if r.MaxAppointmentsPerSlot < 1 {
		return 1
	}
	return r.MaxAppointmentsPerSlot
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
