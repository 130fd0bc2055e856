// Package extract pulls single semantic fields out of parsed calendar pages.
//
// Extractors operate on goquery selections: the calendar list item supplies
// the title, detail link and start/end times, while the event detail page
// supplies the description and location.
package extract
