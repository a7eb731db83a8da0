package models

import (
	"fmt"
	"time"

	appErrors "github.com/tutorhive/tutorhive-api/pkg/errors"
)

// Tick granularity: all overlap arithmetic runs on 30-minute ticks.
const (
	TickMinutes = 30
	TicksPerDay = 24 * 60 / TickMinutes
)

// DateLayout is the single wire format for calendar dates.
const DateLayout = "2006-01-02"

// FormalSlots are the six fixed 2-hour teaching windows of a day,
// in canonical order.
var FormalSlots = []string{
	"08:00-10:00",
	"10:00-12:00",
	"13:00-15:00",
	"15:00-17:00",
	"18:00-20:00",
	"20:00-22:00",
}

// Segment narrows availability computation to a part of the day.
type Segment string

const (
	SegmentMorning   Segment = "morning"
	SegmentAfternoon Segment = "afternoon"
	SegmentEvening   Segment = "evening"
)

// FormalSlotsFor returns the formal slots belonging to a segment, or
// all six when segment is empty.
func FormalSlotsFor(segment Segment) []string {
	switch segment {
	case SegmentMorning:
		return FormalSlots[0:2]
	case SegmentAfternoon:
		return FormalSlots[2:4]
	case SegmentEvening:
		return FormalSlots[4:6]
	default:
		return FormalSlots
	}
}

// SlotRange is a half-open tick interval [Start, End) within one day.
type SlotRange struct {
	Start int
	End   int
}

// ParseSlot parses "HH:mm-HH:mm" into a tick range. Both ends must sit
// on half-hour boundaries with start strictly before end.
func ParseSlot(raw string) (SlotRange, error) {
	var sh, sm, eh, em int
	if _, err := fmt.Sscanf(raw, "%2d:%2d-%2d:%2d", &sh, &sm, &eh, &em); err != nil || len(raw) != 11 {
		return SlotRange{}, appErrors.Clone(appErrors.ErrInvalidSlotFormat, fmt.Sprintf("malformed time slot %q", raw))
	}
	if sh < 0 || sh > 23 || eh < 0 || eh > 23 {
		return SlotRange{}, appErrors.Clone(appErrors.ErrInvalidSlotFormat, fmt.Sprintf("slot %q: hours must be between 00 and 23", raw))
	}
	if (sm != 0 && sm != 30) || (em != 0 && em != 30) {
		return SlotRange{}, appErrors.Clone(appErrors.ErrInvalidSlotFormat, fmt.Sprintf("slot %q: minutes must fall on half-hour boundaries", raw))
	}
	start := sh*2 + sm/TickMinutes
	end := eh*2 + em/TickMinutes
	if start >= end {
		return SlotRange{}, appErrors.Clone(appErrors.ErrInvalidSlotFormat, fmt.Sprintf("slot %q: start must precede end", raw))
	}
	return SlotRange{Start: start, End: end}, nil
}

// ParseSlots parses a pattern's slot list. Entries must be pairwise
// disjoint; a list that books the same tick twice is malformed.
func ParseSlots(raws []string) ([]SlotRange, error) {
	slots := make([]SlotRange, 0, len(raws))
	for _, raw := range raws {
		slot, err := ParseSlot(raw)
		if err != nil {
			return nil, err
		}
		for _, prior := range slots {
			if slot.Overlaps(prior) {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("slots %s and %s overlap", prior, slot))
			}
		}
		slots = append(slots, slot)
	}
	return slots, nil
}

// MustParseSlot panics on malformed input. Reserved for the canonical
// formal slot table and tests.
func MustParseSlot(raw string) SlotRange {
	r, err := ParseSlot(raw)
	if err != nil {
		panic(err)
	}
	return r
}

// String re-serialises the range into "HH:mm-HH:mm".
func (r SlotRange) String() string {
	return fmt.Sprintf("%s-%s", tickLabel(r.Start), tickLabel(r.End))
}

// Overlaps reports whether two ranges share at least one tick.
func (r SlotRange) Overlaps(o SlotRange) bool {
	return r.Start < o.End && o.Start < r.End
}

// ContainsTick reports whether the tick falls inside the range.
func (r SlotRange) ContainsTick(tick int) bool {
	return tick >= r.Start && tick < r.End
}

// Contains reports whether o lies fully within r.
func (r SlotRange) Contains(o SlotRange) bool {
	return o.Start >= r.Start && o.End <= r.End
}

// Ticks enumerates every tick in the range.
func (r SlotRange) Ticks() []int {
	ticks := make([]int, 0, r.End-r.Start)
	for t := r.Start; t < r.End; t++ {
		ticks = append(ticks, t)
	}
	return ticks
}

// StartClock returns the wall-clock start as "HH:mm".
func (r SlotRange) StartClock() string {
	return tickLabel(r.Start)
}

// EndClock returns the wall-clock end as "HH:mm".
func (r SlotRange) EndClock() string {
	return tickLabel(r.End)
}

// TrialSlotAt is the single-tick range used for trial lessons.
func TrialSlotAt(tick int) SlotRange {
	return SlotRange{Start: tick, End: tick + 1}
}

// FormalSlotContaining locates the canonical formal slot covering the
// tick, if any.
func FormalSlotContaining(tick int) (SlotRange, bool) {
	for _, raw := range FormalSlots {
		slot := MustParseSlot(raw)
		if slot.ContainsTick(tick) {
			return slot, true
		}
	}
	return SlotRange{}, false
}

// WeekdayOf maps a date to ISO weekday numbering, Monday=1 .. Sunday=7.
func WeekdayOf(date time.Time) int {
	wd := int(date.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}

func tickLabel(tick int) string {
	return fmt.Sprintf("%02d:%02d", tick/2, (tick%2)*TickMinutes)
}
