package ical

import (
	"fmt"
	"io"
	"strings"

	ics "github.com/arran4/golang-ical"

	"github.com/alexanderramin/cadence/internal/calendar"
	"github.com/alexanderramin/cadence/internal/domain"
	"github.com/alexanderramin/cadence/internal/rrule"
)

// Decode reads every goal in an iCalendar document. Events are grouped by
// UID; the event without RECURRENCE-ID is the master and the rest become
// exceptions. A master without RRULE is read as a single occurrence.
// Returned goals carry the UID as ID and keep document order.
func Decode(r io.Reader) ([]Entry, error) {
	cal, err := ics.ParseCalendar(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCalendar, err)
	}

	var (
		order     []string
		masters   = make(map[string]*ics.VEvent)
		overrides = make(map[string][]*ics.VEvent)
	)
	for _, ev := range cal.Events() {
		uid := propValue(ev, ics.ComponentPropertyUniqueId)
		if uid == "" {
			return nil, fmt.Errorf("%w: VEVENT without UID", ErrInvalidCalendar)
		}
		if ev.GetProperty(propRecurrenceID) != nil {
			overrides[uid] = append(overrides[uid], ev)
			continue
		}
		if _, dup := masters[uid]; dup {
			return nil, fmt.Errorf("%w: duplicate master event %s", ErrInvalidCalendar, uid)
		}
		masters[uid] = ev
		order = append(order, uid)
	}
	for uid := range overrides {
		if _, ok := masters[uid]; !ok {
			return nil, fmt.Errorf("%w: override for unknown event %s", ErrInvalidCalendar, uid)
		}
	}

	entries := make([]Entry, 0, len(order))
	for _, uid := range order {
		e, err := decodeEntry(uid, masters[uid], overrides[uid])
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func decodeEntry(uid string, master *ics.VEvent, children []*ics.VEvent) (Entry, error) {
	fail := func(format string, args ...any) (Entry, error) {
		return Entry{}, fmt.Errorf("%w: event %s: %s", ErrInvalidCalendar, uid, fmt.Sprintf(format, args...))
	}

	start := propValue(master, ics.ComponentPropertyDtStart)
	if start == "" {
		return fail("missing DTSTART")
	}
	anchor, err := parseDate(start)
	if err != nil {
		return fail("DTSTART: %v", err)
	}

	var rule domain.RecurrenceRule
	switch rules := master.GetProperties(ics.ComponentPropertyRrule); len(rules) {
	case 0:
		rule = domain.RecurrenceRule{
			Frequency: domain.FreqDaily,
			Interval:  1,
			Bound:     domain.CountBound(1),
			Anchor:    anchor,
		}
	case 1:
		if rule, err = rrule.DecodeValue(anchor, rules[0].Value); err != nil {
			return Entry{}, fmt.Errorf("event %s: %w", uid, err)
		}
	default:
		return fail("multiple RRULE properties")
	}

	e := Entry{Goal: domain.Goal{
		ID:          uid,
		Title:       unescapeText(propValue(master, ics.ComponentPropertySummary)),
		Description: unescapeText(propValue(master, ics.ComponentPropertyDescription)),
		Rule:        &rule,
	}}
	if v := propValue(master, propHorizon); v != "" {
		if e.Goal.Horizon, err = calendar.ParseCompact(v); err != nil {
			return fail("%s: %v", propHorizon, err)
		}
	}

	for _, p := range master.GetProperties(ics.ComponentPropertyExdate) {
		for _, part := range strings.Split(p.Value, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			d, err := parseDate(part)
			if err != nil {
				return fail("EXDATE: %v", err)
			}
			e.Exceptions = append(e.Exceptions, domain.Occurrence{
				GoalID:       uid,
				Date:         d,
				OriginalDate: d,
				Origin:       domain.OriginException,
				Skipped:      true,
			})
		}
	}

	for _, child := range children {
		original, err := parseDate(propValue(child, propRecurrenceID))
		if err != nil {
			return fail("RECURRENCE-ID: %v", err)
		}
		date := original
		if v := propValue(child, ics.ComponentPropertyDtStart); v != "" {
			if date, err = parseDate(v); err != nil {
				return fail("DTSTART of %s: %v", original, err)
			}
		}
		o := domain.Occurrence{
			GoalID:       uid,
			Date:         date,
			OriginalDate: original,
			Origin:       domain.OriginException,
			Completed:    strings.EqualFold(propValue(child, propCompleted), "TRUE"),
		}
		if v := unescapeText(propValue(child, ics.ComponentPropertyDescription)); v != "" {
			o.Notes = &v
		}
		e.Exceptions = append(e.Exceptions, o)
	}
	return e, nil
}

func propValue(ev *ics.VEvent, prop ics.ComponentProperty) string {
	if p := ev.GetProperty(prop); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}
