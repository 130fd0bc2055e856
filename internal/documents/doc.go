// Package documents builds the date-keyed index of board meeting documents.
//
// The board documents page lists a date heading followed by a paragraph of
// links (agendas, minutes, board books) for each meeting. Every link
// paragraph is keyed by the heading directly before it, so a heading with no
// paragraph cannot shift later dates. Such headings are reported as orphans.
package documents
