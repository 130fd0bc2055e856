package meeting

import (
	"strings"
	"time"
)

// cancellationWords mark a meeting as cancelled when found in its title or description
var cancellationWords = []string{"cancel", "rescheduled", "postpone"}

// DeriveStatus computes the status of a meeting relative to now
func DeriveStatus(m *Meeting, now time.Time) Status {
	text := strings.ToLower(m.Title + " " + m.Description)
	for _, word := range cancellationWords {
		if strings.Contains(text, word) {
			return StatusCancelled
		}
	}
	if m.Start.Before(now) {
		return StatusPassed
	}
	return StatusUpcoming
}
