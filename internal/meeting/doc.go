// Package meeting provides the canonical meeting record emitted by the scraper.
//
// A Meeting follows the city-scrapers schema consumed by the downstream
// aggregation pipeline. Each meeting carries a deterministic ID derived from
// the spider name, start time and title, so repeated scrapes of an unchanged
// listing produce identical IDs.
package meeting
