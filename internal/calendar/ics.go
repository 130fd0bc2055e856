// Package calendar renders meetings as an iCalendar feed.
package calendar

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/pfrederiksen/cuya-elections/internal/meeting"
)

// ProductID identifies the generator in the PRODID property
const ProductID = "-//cuya-elections//meetings//EN"

// uidDomain scopes meeting IDs into globally unique UIDs
const uidDomain = "boe.cuyahogacounty.gov"

// defaultDuration is used when a meeting lists no end time
const defaultDuration = time.Hour

// Write encodes meetings as a VCALENDAR to w. stamp is used for DTSTAMP.
func Write(w io.Writer, meetings []*meeting.Meeting, stamp time.Time) error {
	// The encoder rejects a calendar without components
	if len(meetings) == 0 {
		return writeEmpty(w)
	}

	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)
	cal.Props.SetText(ical.PropCalendarScale, "GREGORIAN")
	cal.Props.SetText(ical.PropMethod, "PUBLISH")

	for _, m := range meetings {
		cal.Children = append(cal.Children, newEvent(m, stamp).Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encoding calendar: %w", err)
	}
	return nil
}

// writeEmpty writes a VCALENDAR with the same header and no events
func writeEmpty(w io.Writer) error {
	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:" + ProductID,
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"END:VCALENDAR",
	}
	if _, err := io.WriteString(w, strings.Join(lines, "\r\n")+"\r\n"); err != nil {
		return fmt.Errorf("encoding calendar: %w", err)
	}
	return nil
}

// GenerateICS returns the iCalendar text for meetings
func GenerateICS(meetings []*meeting.Meeting, stamp time.Time) (string, error) {
	var sb strings.Builder
	if err := Write(&sb, meetings, stamp); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func newEvent(m *meeting.Meeting, stamp time.Time) *ical.Event {
	ev := ical.NewEvent()

	ev.Props.SetText(ical.PropUID, fmt.Sprintf("%s@%s", m.ID, uidDomain))
	ev.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
	ev.Props.SetDateTime(ical.PropDateTimeStart, m.Start.UTC())

	end := m.Start.Add(defaultDuration)
	if m.End != nil {
		end = *m.End
	}
	ev.Props.SetDateTime(ical.PropDateTimeEnd, end.UTC())

	ev.Props.SetText(ical.PropSummary, m.Title)
	ev.Props.SetText(ical.PropDescription, description(m))
	ev.Props.SetText(ical.PropLocation, location(m.Location))
	ev.Props.SetText(ical.PropStatus, status(m.Status))

	if m.Source != "" {
		url := ical.NewProp(ical.PropURL)
		url.Value = m.Source
		ev.Props.Set(url)
	}

	for _, link := range m.Links {
		if link.Href == "" {
			continue
		}
		attach := ical.NewProp(ical.PropAttach)
		attach.Value = link.Href
		ev.Props.Add(attach)
	}

	return ev
}

func description(m *meeting.Meeting) string {
	var sb strings.Builder
	sb.WriteString(m.Description)
	for _, link := range m.Links {
		if sb.Len() > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s: %s", link.Title, link.Href)
	}
	return sb.String()
}

func location(loc meeting.Location) string {
	switch {
	case loc.Name != "" && loc.Address != "":
		return loc.Name + ", " + loc.Address
	case loc.Name != "":
		return loc.Name
	default:
		return loc.Address
	}
}

func status(s meeting.Status) string {
	if s == meeting.StatusCancelled {
		return "CANCELLED"
	}
	return "CONFIRMED"
}
