// Package ical exports recurring goals as iCalendar VEVENTs and reads them
// back.
//
// A goal becomes a master VEVENT carrying DTSTART;VALUE=DATE and the goal's
// RRULE. Cancelled occurrences are listed as EXDATEs on the master. Every
// other exception is a child VEVENT with the same UID whose RECURRENCE-ID is
// the date the rule generated it for:
//
//	BEGIN:VEVENT
//	UID:3f1c...
//	RECURRENCE-ID;VALUE=DATE:20230503
//	DTSTART;VALUE=DATE:20230504
//	X-CADENCE-COMPLETED:TRUE
//	END:VEVENT
package ical

import (
	"errors"
	"strings"

	ics "github.com/arran4/golang-ical"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/domain"
)

// ErrInvalidCalendar is returned when an iCalendar document cannot be mapped
// onto goals.
var ErrInvalidCalendar = errors.New("invalid calendar")

const productID = "-//cadence//recurring goals//EN"

const (
	propDtStamp      = ics.ComponentProperty("DTSTAMP")
	propRecurrenceID = ics.ComponentProperty("RECURRENCE-ID")
	propHorizon      = ics.ComponentProperty("X-CADENCE-HORIZON")
	propCompleted    = ics.ComponentProperty("X-CADENCE-COMPLETED")
)

// Entry is one goal together with its exceptions. On export Exceptions may
// hold any occurrences; Generated ones are ignored.
type Entry struct {
	Goal       domain.Goal
	Exceptions []domain.Occurrence
}

var textEscaper = strings.NewReplacer(`\`, `\\`, ";", `\;`, ",", `\,`, "\n", `\n`)

var textUnescaper = strings.NewReplacer(`\\`, `\`, `\;`, ";", `\,`, ",", `\n`, "\n", `\N`, "\n")

func escapeText(s string) string { return textEscaper.Replace(s) }

func unescapeText(s string) string { return textUnescaper.Replace(s) }

// parseDate accepts the DATE form and the date part of a DATE-TIME value.
func parseDate(v string) (calendar.Date, error) {
	v = strings.TrimSpace(v)
	if len(v) > 8 && (v[8] == 'T' || v[8] == 't') {
		v = v[:8]
	}
	return calendar.ParseCompact(v)
}
