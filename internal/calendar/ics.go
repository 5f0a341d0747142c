package calendar

import (
	"io"

	"github.com/emersion/go-ical"
)

// WriteICS encodes events as a single VCALENDAR document.
func WriteICS(w io.Writer, events []Event) error {
	return ical.NewEncoder(w).Encode(NewICalendar(events...))
}
