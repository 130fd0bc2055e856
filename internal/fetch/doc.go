// Package fetch retrieves pages and parses them into goquery documents.
//
// Two backends implement Fetcher: a colly collector that owns politeness
// (parallelism, delay), retries and visited-URL deduplication, and a plain
// net/http client with a bounded number of in-flight requests. Scheduling and
// retry policy live here so the correlation logic only sees documents.
package fetch
