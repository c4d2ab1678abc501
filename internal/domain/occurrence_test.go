package domain

import (
	"testing"
	"time"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/samber/mo"
	"github.com/stretchr/testify/assert"
)

func generatedOcc(date string) *Occurrence {
	d := calendar.MustParse(date)
	return &Occurrence{ID: "o1", GoalID: "g1", Date: d, OriginalDate: d, Origin: OriginGenerated}
}

func TestApply_FirstEditTurnsIntoException(t *testing.T) {
	o := generatedOcc("2023-05-03")
	now := time.Date(2023, 5, 3, 10, 0, 0, 0, time.UTC)

	changed := o.Apply(OccurrencePatch{Completed: mo.Some(true)}, now)

	assert.True(t, changed)
	assert.True(t, o.Completed)
	assert.Equal(t, OriginException, o.Origin)
	assert.Equal(t, now, o.UpdatedAt)
}

func TestApply_NoopPatchKeepsGenerated(t *testing.T) {
	o := generatedOcc("2023-05-03")

	assert.False(t, o.Apply(OccurrencePatch{}, time.Now()))
	assert.False(t, o.Apply(OccurrencePatch{Completed: mo.Some(false)}, time.Now()))
	assert.False(t, o.Apply(OccurrencePatch{Notes: mo.Some("   ")}, time.Now()))
	assert.Equal(t, OriginGenerated, o.Origin)
}

func TestApply_NotesAreNormalizedAndClearable(t *testing.T) {
	o := generatedOcc("2023-05-03")

	// "e" followed by a combining acute accent composes to U+00E9.
	assert.True(t, o.Apply(OccurrencePatch{Notes: mo.Some("  cafe\u0301 ")}, time.Now()))
	if assert.NotNil(t, o.Notes) {
		assert.Equal(t, "caf\u00e9", *o.Notes)
	}

	assert.True(t, o.Apply(OccurrencePatch{Notes: mo.Some("")}, time.Now()))
	assert.Nil(t, o.Notes)
	assert.Equal(t, OriginException, o.Origin)
}

func TestApply_RescheduleKeepsOriginalSlot(t *testing.T) {
	o := generatedOcc("2023-05-03")
	o.OriginalDate = calendar.Date{}

	o.Apply(OccurrencePatch{Date: mo.Some(calendar.MustParse("2023-05-04"))}, time.Now())
	assert.Equal(t, "2023-05-04", o.Date.String())
	assert.Equal(t, "2023-05-03", o.OriginalDate.String())
	assert.Equal(t, []calendar.Date{calendar.MustParse("2023-05-04"), calendar.MustParse("2023-05-03")}, o.Slots())

	o.Apply(OccurrencePatch{Date: mo.Some(calendar.MustParse("2023-05-06"))}, time.Now())
	assert.Equal(t, "2023-05-03", o.OriginalDate.String(), "second move keeps the generated slot")
}

func TestSkip(t *testing.T) {
	o := generatedOcc("2023-05-03")
	o.Skip(time.Now())
	assert.True(t, o.Skipped)
	assert.True(t, o.IsException())
	assert.Equal(t, []calendar.Date{o.Date}, o.Slots())
}

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "Read", NormalizeText("  Read\n"))
	assert.Equal(t, "\u00c5", NormalizeText("A\u030a"))
}
