package sink

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/pfrederiksen/cuya-elections/internal/meeting"
)

// Sink defines the interface for receiving emitted meetings
type Sink interface {
	// Emit hands one meeting to the sink
	Emit(m *meeting.Meeting) error
}

// JSONLines writes one JSON object per meeting
type JSONLines struct {
	enc *json.Encoder
}

// NewJSONLines creates a JSON lines sink writing to w
func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

// Emit writes the meeting as a single line
func (s *JSONLines) Emit(m *meeting.Meeting) error {
	if err := s.enc.Encode(m); err != nil {
		return fmt.Errorf("encoding meeting %s: %w", m.ID, err)
	}
	return nil
}

// Collector keeps emitted meetings in memory
type Collector struct {
	Meetings []*meeting.Meeting
}

// NewCollector creates an empty collector
func NewCollector() *Collector {
	return &Collector{Meetings: make([]*meeting.Meeting, 0)}
}

// Emit appends the meeting
func (c *Collector) Emit(m *meeting.Meeting) error {
	c.Meetings = append(c.Meetings, m)
	return nil
}

// Sorted returns the meetings ordered by start, then title
func (c *Collector) Sorted() []*meeting.Meeting {
	out := make([]*meeting.Meeting, len(c.Meetings))
	copy(out, c.Meetings)
	SortMeetings(out)
	return out
}

// SortMeetings orders meetings by start time, then title, then ID
func SortMeetings(meetings []*meeting.Meeting) {
	sort.SliceStable(meetings, func(i, j int) bool {
		a, b := meetings[i], meetings[j]
		if !a.Start.Equal(b.Start) {
			return a.Start.Before(b.Start)
		}
		if !strings.EqualFold(a.Title, b.Title) {
			return strings.ToLower(a.Title) < strings.ToLower(b.Title)
		}
		return a.ID < b.ID
	})
}

// Func adapts a function to the Sink interface
type Func func(m *meeting.Meeting) error

// Emit calls f(m)
func (f Func) Emit(m *meeting.Meeting) error {
	return f(m)
}
