package cli

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pfrederiksen/cuya-elections/internal/meeting"
	"github.com/pfrederiksen/cuya-elections/internal/sink"
)

// SortOrder represents the available sorting options
type SortOrder string

const (
	SortByStart  SortOrder = "start"
	SortByTitle  SortOrder = "title"
	SortByStatus SortOrder = "status"
)

// ParseSortOrder validates a sort order name
func ParseSortOrder(s string) (SortOrder, error) {
	order := SortOrder(strings.ToLower(strings.TrimSpace(s)))
	switch order {
	case SortByStart, SortByTitle, SortByStatus:
		return order, nil
	default:
		return "", fmt.Errorf("invalid sort order: %s (must be 'start', 'title' or 'status')", s)
	}
}

// statusRank orders upcoming meetings before passed and cancelled ones
var statusRank = map[meeting.Status]int{
	meeting.StatusUpcoming:  0,
	meeting.StatusPassed:    1,
	meeting.StatusCancelled: 2,
}

// orderedMeetings returns the collected meetings in the specified sort order
func orderedMeetings(c *sink.Collector, order SortOrder) []*meeting.Meeting {
	meetings := c.Sorted()
	if order != SortByStart {
		sortMeetings(meetings, order)
	}
	return meetings
}

// sortMeetings sorts meetings based on the specified sort order
func sortMeetings(meetings []*meeting.Meeting, order SortOrder) {
	switch order {
	case SortByStart:
		sink.SortMeetings(meetings)
	case SortByTitle:
		sort.SliceStable(meetings, func(i, j int) bool {
			ti, tj := strings.ToLower(meetings[i].Title), strings.ToLower(meetings[j].Title)
			if ti != tj {
				return ti < tj
			}
			// If titles are equal, sort by start
			return compareByStart(meetings[i], meetings[j])
		})
	case SortByStatus:
		sort.SliceStable(meetings, func(i, j int) bool {
			ri, rj := statusRank[meetings[i].Status], statusRank[meetings[j].Status]
			if ri != rj {
				return ri < rj
			}
			return compareByStart(meetings[i], meetings[j])
		})
	}
}

// compareByStart returns true if meeting i starts before meeting j,
// falling back to the id for a stable order
func compareByStart(i, j *meeting.Meeting) bool {
	if !i.Start.Equal(j.Start) {
		return i.Start.Before(j.Start)
	}
	return i.ID < j.ID
}
