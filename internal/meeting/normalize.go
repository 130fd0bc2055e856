package meeting

import "time"

// Fields holds the values extracted for one calendar event
type Fields struct {
	Title       string
	Description string
	Start       time.Time
	End         *time.Time
	Links       []Link
	Source      string
}

// Normalizer assembles extracted fields into canonical meetings
type Normalizer struct {
	Spider   string
	Location Location
	Now      func() time.Time
}

// NewNormalizer creates a Normalizer that uses the wall clock
func NewNormalizer(spider string, location Location) *Normalizer {
	return &Normalizer{
		Spider:   spider,
		Location: location,
		Now:      time.Now,
	}
}

// Normalize builds a Meeting with status and ID populated
func (n *Normalizer) Normalize(f Fields) *Meeting {
	links := f.Links
	if links == nil {
		links = []Link{}
	}

	m := &Meeting{
		Title:          f.Title,
		Description:    f.Description,
		Classification: ClassificationBoard,
		Start:          f.Start,
		End:            f.End,
		AllDay:         false,
		TimeNotes:      "",
		Location:       n.Location,
		Links:          links,
		Source:         f.Source,
	}

	now := time.Now
	if n.Now != nil {
		now = n.Now
	}
	m.Status = DeriveStatus(m, now())
	m.ID = GenerateID(n.Spider, m.Start, m.Title)

	return m
}
