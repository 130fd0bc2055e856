package meeting

import (
	"encoding/json"
	"time"
)

// Classification of a meeting body
type Classification string

const (
	ClassificationBoard Classification = "Board"
)

// Status is derived from the meeting time and text
type Status string

const (
	StatusUpcoming  Status = "upcoming"
	StatusPassed    Status = "passed"
	StatusCancelled Status = "cancelled"
)

// TimeLayout is the naive timestamp layout used on the wire
const TimeLayout = "2006-01-02T15:04:05"

// Location where a meeting takes place
type Location struct {
	Name    string `json:"name" mapstructure:"name"`
	Address string `json:"address" mapstructure:"address"`
}

// Link is a document attached to a meeting (agenda, minutes, board book)
type Link struct {
	Title string `json:"title"`
	Href  string `json:"href"`
}

// Meeting is a normalized public meeting record
type Meeting struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Classification Classification `json:"classification"`
	Start          time.Time      `json:"start"`
	End            *time.Time     `json:"end"`
	AllDay         bool           `json:"all_day"`
	TimeNotes      string         `json:"time_notes"`
	Location       Location       `json:"location"`
	Links          []Link         `json:"links"`
	Source         string         `json:"source"`
	Status         Status         `json:"status"`
}

// MarshalJSON writes start and end as naive local timestamps and links as [] when empty
func (m Meeting) MarshalJSON() ([]byte, error) {
	type alias Meeting
	out := struct {
		*alias
		Start string  `json:"start"`
		End   *string `json:"end"`
		Links []Link  `json:"links"`
	}{
		alias: (*alias)(&m),
		Start: m.Start.Format(TimeLayout),
		Links: m.Links,
	}
	if m.End != nil {
		end := m.End.Format(TimeLayout)
		out.End = &end
	}
	if out.Links == nil {
		out.Links = []Link{}
	}
	return json.Marshal(out)
}
