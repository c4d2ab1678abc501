package ical

import (
	"fmt"
	"io"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"

	"github.com/alexanderramin/cadence/internal/rrule"
)

// Encode writes entries as one VCALENDAR. stamp becomes every event's
// DTSTAMP.
func Encode(w io.Writer, stamp time.Time, entries ...Entry) error {
	cal := ics.NewCalendar()
	cal.SetProductId(productID)
	cal.SetMethod(ics.MethodPublish)

	dtstamp := stamp.UTC().Format("20060102T150405Z")
	for _, e := range entries {
		if err := addEntry(cal, dtstamp, e); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, cal.Serialize())
	return err
}

func addEntry(cal *ics.Calendar, dtstamp string, e Entry) error {
	g := e.Goal
	if g.Rule == nil {
		return fmt.Errorf("export goal %s: no recurrence rule", g.ID)
	}
	if g.ID == "" {
		return fmt.Errorf("export goal %q: missing id", g.Title)
	}

	master := cal.AddEvent(g.ID)
	master.SetProperty(propDtStamp, dtstamp)
	master.SetProperty(ics.ComponentPropertySummary, escapeText(g.Title))
	if g.Description != "" {
		master.SetProperty(ics.ComponentPropertyDescription, escapeText(g.Description))
	}
	master.SetProperty(ics.ComponentPropertyDtStart, g.Rule.Anchor.Compact(), ics.WithValue("DATE"))
	master.AddProperty(ics.ComponentPropertyRrule, rrule.EncodeValue(*g.Rule))
	if !g.Horizon.IsZero() {
		master.SetProperty(propHorizon, g.Horizon.Compact())
	}

	var exdates []string
	for _, o := range e.Exceptions {
		if !o.IsException() {
			continue
		}
		original := o.OriginalDate
		if original.IsZero() {
			original = o.Date
		}
		if o.Skipped {
			exdates = append(exdates, original.Compact())
			continue
		}
		child := cal.AddEvent(g.ID)
		child.SetProperty(propDtStamp, dtstamp)
		child.SetProperty(propRecurrenceID, original.Compact(), ics.WithValue("DATE"))
		child.SetProperty(ics.ComponentPropertyDtStart, o.Date.Compact(), ics.WithValue("DATE"))
		child.SetProperty(ics.ComponentPropertySummary, escapeText(g.Title))
		if o.Notes != nil {
			child.SetProperty(ics.ComponentPropertyDescription, escapeText(*o.Notes))
		}
		if o.Completed {
			child.SetProperty(propCompleted, "TRUE")
		}
	}
	if len(exdates) > 0 {
		master.AddProperty(ics.ComponentPropertyExdate, strings.Join(exdates, ","), ics.WithValue("DATE"))
	}
	return nil
}

