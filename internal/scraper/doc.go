// Package scraper correlates the board of elections calendar, event detail
// pages and board documents page into meeting records.
//
// A run is a three-stage pipeline. The documents page is fetched and indexed
// by date first. Each calendar listing (past and current events) is then
// crawled concurrently: items whose title contains the relevance keyword get
// their detail page fetched, their start date joined against the document
// index, and the normalized meeting sent to a single emitting goroutine.
// Items that fail to fetch or parse are dropped and never emitted with
// partial data.
package scraper
