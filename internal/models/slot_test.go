package models

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "github.com/tutorhive/tutorhive-api/pkg/errors"
)

func TestParseSlotRoundTrip(t *testing.T) {
	valid := []string{"00:00-00:30", "08:00-10:00", "13:30-15:00", "20:00-22:00", "23:00-23:30"}
	for _, raw := range valid {
		slot, err := ParseSlot(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, raw, slot.String())
	}
}

func TestParseSlotRejectsMalformedInput(t *testing.T) {
	malformed := []string{
		"",
		"08:00",
		"8:00-10:00",
		"08:00-10:0",
		"08:15-10:00",
		"08:00-10:45",
		"24:00-25:00",
		"10:00-08:00",
		"08:00-08:00",
		"08:00~10:00",
		"ab:cd-ef:gh",
	}
	for _, raw := range malformed {
		_, err := ParseSlot(raw)
		require.Error(t, err, raw)
		var typed *appErrors.Error
		require.True(t, errors.As(err, &typed), raw)
		assert.Equal(t, appErrors.ErrInvalidSlotFormat.Code, typed.Code, raw)
	}
}

func TestFormalSlotsRoundTrip(t *testing.T) {
	for _, raw := range FormalSlots {
		slot := MustParseSlot(raw)
		assert.Equal(t, raw, slot.String())
		assert.Equal(t, 4, len(slot.Ticks()))
	}
}

func TestSlotRangeOverlaps(t *testing.T) {
	a := MustParseSlot("08:00-10:00")
	assert.True(t, a.Overlaps(MustParseSlot("09:30-11:00")))
	assert.True(t, a.Overlaps(MustParseSlot("08:30-09:00")))
	assert.False(t, a.Overlaps(MustParseSlot("10:00-12:00")))
	assert.False(t, a.Overlaps(MustParseSlot("06:00-08:00")))
}

func TestParseSlotsRejectsOverlappingEntries(t *testing.T) {
	slots, err := ParseSlots([]string{"08:00-10:00", "18:00-20:00"})
	require.NoError(t, err)
	assert.Len(t, slots, 2)

	for _, raws := range [][]string{
		{"18:00-20:00", "19:00-21:00"},
		{"18:00-20:00", "18:00-20:00"},
		{"08:00-10:00", "13:00-15:00", "09:30-10:30"},
	} {
		_, err := ParseSlots(raws)
		require.Error(t, err, "%v", raws)
		var typed *appErrors.Error
		require.True(t, errors.As(err, &typed))
		assert.Equal(t, appErrors.ErrValidation.Code, typed.Code)
	}
}

func TestFormalSlotContaining(t *testing.T) {
	slot, ok := FormalSlotContaining(MustParseSlot("14:00-14:30").Start)
	require.True(t, ok)
	assert.Equal(t, "13:00-15:00", slot.String())

	_, ok = FormalSlotContaining(MustParseSlot("12:00-12:30").Start)
	assert.False(t, ok, "12:00 sits between formal slots")
}

func TestFormalSlotsForSegments(t *testing.T) {
	assert.Equal(t, []string{"08:00-10:00", "10:00-12:00"}, FormalSlotsFor(SegmentMorning))
	assert.Equal(t, []string{"13:00-15:00", "15:00-17:00"}, FormalSlotsFor(SegmentAfternoon))
	assert.Equal(t, []string{"18:00-20:00", "20:00-22:00"}, FormalSlotsFor(SegmentEvening))
	assert.Len(t, FormalSlotsFor(""), 6)
}

func TestWeekdayOf(t *testing.T) {
	monday := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	sunday := time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 1, WeekdayOf(monday))
	assert.Equal(t, 7, WeekdayOf(sunday))
}

func TestDeclaredAvailabilityCovers(t *testing.T) {
	declared := DeclaredAvailability{Slots: []SlotRange{MustParseSlot("14:00-16:00"), MustParseSlot("18:00-20:00")}}
	assert.True(t, declared.Covers(MustParseSlot("14:00-16:00")))
	assert.True(t, declared.Covers(MustParseSlot("14:30-15:00")))
	assert.False(t, declared.Covers(MustParseSlot("16:00-18:00")))
	assert.False(t, declared.Covers(MustParseSlot("15:00-17:00")))
}
