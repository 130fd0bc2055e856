package documents

import (
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/cuya-elections/internal/extract"
	"github.com/pfrederiksen/cuya-elections/internal/meeting"
)

// Selectors for the board meeting documents page
const (
	SectionSelector   = "section#Contentplaceholder1_TAA75111F019_Col00"
	HeadingSelector   = "h3.heading-s"
	ParagraphSelector = "h3.heading-s + p"
)

// DateKeyLayout is the format of document headings and meeting date keys
const DateKeyLayout = "01/02/2006"

// Index maps a date key (MM/DD/YYYY) to the documents published for that meeting
type Index map[string][]meeting.Link

// DateKey formats a meeting start as a document index key
func DateKey(t time.Time) string {
	return t.Format(DateKeyLayout)
}

// Build parses the documents page into an Index. Each link paragraph is keyed
// by the date heading directly before it. Headings with no link paragraph
// after them are returned as orphans and get no entry.
func Build(doc *goquery.Selection) (Index, []string) {
	index := make(Index)

	section := doc.Find(SectionSelector)
	if section.Length() == 0 {
		return index, nil
	}

	section.Find(ParagraphSelector).Each(func(_ int, para *goquery.Selection) {
		key := extract.DirectText(para.Prev())
		index[key] = parseLinks(para)
	})

	var orphans []string
	section.Find(HeadingSelector).Each(func(_ int, heading *goquery.Selection) {
		if !heading.Next().Is("p") {
			orphans = append(orphans, strings.TrimSpace(heading.Text()))
		}
	})

	return index, orphans
}

// parseLinks returns one link per anchor in the paragraph
func parseLinks(para *goquery.Selection) []meeting.Link {
	links := make([]meeting.Link, 0, para.Find("a").Length())
	para.Find("a").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		links = append(links, meeting.Link{
			Title: strings.TrimSpace(extract.DirectText(a)),
			Href:  href,
		})
	})
	return links
}

// Lookup returns a copy of the documents for a date key, or an empty list
func (idx Index) Lookup(key string) []meeting.Link {
	links, ok := idx[key]
	if !ok {
		return []meeting.Link{}
	}
	out := make([]meeting.Link, len(links))
	copy(out, links)
	return out
}

// Len returns the number of dates in the index
func (idx Index) Len() int {
	return len(idx)
}
