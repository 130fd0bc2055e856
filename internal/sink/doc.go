// Package sink receives meeting records emitted by the scraper.
//
// Sinks are called from a single goroutine and do not need to be safe for
// concurrent use.
package sink
