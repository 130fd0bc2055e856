// Package cli implements the command-line interface for cuya-elections.
//
// The cli package provides the Cobra-based CLI that loads configuration,
// runs one crawl of the Cuyahoga County Board of Elections site and writes
// the resulting meetings as JSON lines, JSON, a text table or an iCalendar
// feed. It coordinates the config, fetch, scraper, sink and metrics packages.
package cli
