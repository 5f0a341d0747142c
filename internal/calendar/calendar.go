// Package calendar mirrors events to an external calendar service and renders
// iCalendar exports.
package calendar

import (
	"context"
	"fmt"
	"time"

	"github.com/groupcal/backend/internal/models"
)

// Credential is the caller-supplied access to the external calendar.
type Credential struct {
	AccessToken string
}

type Event struct {
	UID         string
	Summary     string
	Description string
	Location    string
	Organizer   string
	Start       time.Time
	End         time.Time
	Attendees   []string
}

// Mirror describes the remote copy of an event after a create or update.
type Mirror struct {
	ExternalID string `json:"externalID"`
	Status     int    `json:"status"`
	Link       string `json:"link,omitempty"`
}

// Provider is the remote calendar contract. Failures are returned as
// *apperr.RemoteError carrying the upstream status when known.
type Provider interface {
	Create(ctx context.Context, cred Credential, ev Event) (Mirror, error)
	Update(ctx context.Context, cred Credential, externalID string, ev Event) (Mirror, error)
	Delete(ctx context.Context, cred Credential, externalID string) error
}

// FromUserEvent converts a stored event into a remote calendar event in loc.
func FromUserEvent(ev *models.UserEvent, loc *time.Location, organizer string, attendees []string) (Event, error) {
	start, err := time.ParseInLocation(models.DateLayout+" "+models.TimeLayout, ev.Date+" "+ev.StartTime, loc)
	if err != nil {
		return Event{}, fmt.Errorf("parsing start of event %s: %w", ev.ID, err)
	}
	end, err := time.ParseInLocation(models.DateLayout+" "+models.TimeLayout, ev.Date+" "+ev.EndTime, loc)
	if err != nil {
		return Event{}, fmt.Errorf("parsing end of event %s: %w", ev.ID, err)
	}

	return Event{
		UID:         ev.ID.String(),
		Summary:     ev.Description,
		Description: ev.Description,
		Location:    ev.Location,
		Organizer:   organizer,
		Start:       start,
		End:         end,
		Attendees:   attendees,
	}, nil
}

// LoadLocation falls back to UTC for an empty or unknown zone name.
func LoadLocation(name string) *time.Location {
	if name == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return time.UTC
	}
	return loc
}
