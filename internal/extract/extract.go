package extract

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pfrederiksen/cuya-elections/internal/meeting"
)

// Selectors for the calendar list and event detail pages
const (
	TitleSelector             = "h3.title a"
	DateTokenSelector         = "div.event span"
	TimeTokenSelector         = "div.meta em"
	AddressSelector           = "address, address *"
	DescriptionParagraphs     = "div.related-content + p"
	DescriptionListItems      = "div.related-content ~ ul li"
	excludedDescriptionMarker = "About Us"
)

// DateTimeLayout matches "Jan 22 2019 6:00 PM"
const DateTimeLayout = "Jan 2 2006 3:04 PM"

// ErrMalformedDate is returned when a list item's date or time tokens cannot be parsed
var ErrMalformedDate = errors.New("malformed event date")

// Title returns the trimmed first text node of the title anchor, or "" when
// the header is absent. Markup nested inside the anchor is ignored.
func Title(item *goquery.Selection) string {
	anchor := item.Find(TitleSelector).First()
	if anchor.Length() == 0 {
		return ""
	}
	return strings.TrimSpace(DirectText(anchor))
}

// DetailURL returns the href of the title anchor
func DetailURL(item *goquery.Selection) (string, bool) {
	href, ok := item.Find(TitleSelector).First().Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return "", false
	}
	return strings.TrimSpace(href), true
}

// StartEnd parses start and end times from the month/day/year and time-of-day
// tokens of a calendar list item. End is nil when only one time is listed.
func StartEnd(item *goquery.Selection, loc *time.Location) (time.Time, *time.Time, error) {
	return ParseStartEnd(texts(item.Find(DateTokenSelector)), texts(item.Find(TimeTokenSelector)), loc)
}

// ParseStartEnd combines date tokens (month, day, year) with one or two time tokens
func ParseStartEnd(dateTokens, timeTokens []string, loc *time.Location) (time.Time, *time.Time, error) {
	if len(dateTokens) != 3 {
		return time.Time{}, nil, fmt.Errorf("%w: expected 3 date tokens, got %d", ErrMalformedDate, len(dateTokens))
	}
	if len(timeTokens) == 0 {
		return time.Time{}, nil, fmt.Errorf("%w: no time tokens", ErrMalformedDate)
	}
	if loc == nil {
		loc = time.UTC
	}

	times := make([]time.Time, 0, len(timeTokens))
	for _, tok := range timeTokens {
		raw := fmt.Sprintf("%s %s %s %s", dateTokens[0], dateTokens[1], dateTokens[2], strings.ToUpper(tok))
		t, err := time.ParseInLocation(DateTimeLayout, raw, loc)
		if err != nil {
			return time.Time{}, nil, fmt.Errorf("%w: %q: %v", ErrMalformedDate, raw, err)
		}
		times = append(times, t)
	}

	var end *time.Time
	if len(times) > 1 {
		end = &times[1]
	}
	return times[0], end, nil
}

// Address returns the first non-empty text in the detail page's address block
func Address(detail *goquery.Selection) (string, bool) {
	var address string
	detail.Find(AddressSelector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		for _, text := range directTexts(s) {
			text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", ""))
			if text != "" {
				address = text
				return false
			}
		}
		return true
	})
	return address, address != ""
}

// Location returns the fixed registered office location along with the raw
// address text found on the detail page, if any. The address text never
// changes the returned location.
func Location(detail *goquery.Selection, fixed meeting.Location) (meeting.Location, string) {
	address, _ := Address(detail)
	return fixed, address
}

// Description joins the paragraph and list item text following the related
// content marker, skipping blank entries and site navigation text.
func Description(detail *goquery.Selection) string {
	var parts []string
	collect := func(_ int, s *goquery.Selection) {
		for _, text := range directTexts(s) {
			text = strings.TrimSpace(text)
			if text == "" || strings.Contains(text, excludedDescriptionMarker) {
				continue
			}
			parts = append(parts, text)
		}
	}

	detail.Find(DescriptionParagraphs).Each(collect)
	detail.Find(DescriptionListItems).Each(collect)

	return strings.Join(parts, " ")
}

// texts returns the trimmed text of each selected element
func texts(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.TrimSpace(s.Text()))
	})
	return out
}

// directTexts returns the text nodes that are direct children of the selection
func directTexts(sel *goquery.Selection) []string {
	var out []string
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		if goquery.NodeName(c) == "#text" {
			out = append(out, c.Text())
		}
	})
	return out
}

// DirectText returns the first direct text node of the selection, untrimmed
func DirectText(sel *goquery.Selection) string {
	if texts := directTexts(sel.First()); len(texts) > 0 {
		return texts[0]
	}
	return ""
}
