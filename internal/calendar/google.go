package calendar

import (
	"context"
	"errors"
	"net/http"

	"github.com/groupcal/backend/internal/apperr"
	"golang.org/x/oauth2"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const primaryCalendar = "primary"

// GoogleProvider talks to the Google Calendar API with the caller's OAuth
// access token.
type GoogleProvider struct {
	calendarID string
	timezone   string
	opts       []option.ClientOption
}

func NewGoogleProvider(timezone string, opts ...option.ClientOption) *GoogleProvider {
	return &GoogleProvider{
		calendarID: primaryCalendar,
		timezone:   timezone,
		opts:       opts,
	}
}

func (p *GoogleProvider) Create(ctx context.Context, cred Credential, ev Event) (Mirror, error) {
	svc, err := p.service(ctx, cred)
	if err != nil {
		return Mirror{}, err
	}

	created, err := svc.Events.Insert(p.calendarID, p.toGoogle(ev)).Context(ctx).Do()
	if err != nil {
		return Mirror{}, googleError(err)
	}
	return Mirror{ExternalID: created.Id, Status: statusOr(created.HTTPStatusCode, http.StatusOK), Link: created.HtmlLink}, nil
}

func (p *GoogleProvider) Update(ctx context.Context, cred Credential, externalID string, ev Event) (Mirror, error) {
	svc, err := p.service(ctx, cred)
	if err != nil {
		return Mirror{}, err
	}

	patched, err := svc.Events.Patch(p.calendarID, externalID, p.toGoogle(ev)).Context(ctx).Do()
	if err != nil {
		return Mirror{}, googleError(err)
	}
	return Mirror{ExternalID: patched.Id, Status: statusOr(patched.HTTPStatusCode, http.StatusOK), Link: patched.HtmlLink}, nil
}

func (p *GoogleProvider) Delete(ctx context.Context, cred Credential, externalID string) error {
	svc, err := p.service(ctx, cred)
	if err != nil {
		return err
	}
	if err := svc.Events.Delete(p.calendarID, externalID).Context(ctx).Do(); err != nil {
		return googleError(err)
	}
	return nil
}

func (p *GoogleProvider) service(ctx context.Context, cred Credential) (*gcal.Service, error) {
	if cred.AccessToken == "" {
		return nil, apperr.Invalid("calendar access token is required")
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cred.AccessToken, TokenType: "Bearer"})
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, p.opts...)

	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, &apperr.RemoteError{Service: "google_calendar", Message: "failed to create calendar client", Err: err}
	}
	return svc, nil
}

func (p *GoogleProvider) toGoogle(ev Event) *gcal.Event {
	out := &gcal.Event{
		Summary:     ev.Summary,
		Description: ev.Description,
		Location:    ev.Location,
		Start: &gcal.EventDateTime{
			DateTime: ev.Start.Format(timeFormat),
			TimeZone: p.timezone,
		},
		End: &gcal.EventDateTime{
			DateTime: ev.End.Format(timeFormat),
			TimeZone: p.timezone,
		},
	}
	for _, email := range ev.Attendees {
		out.Attendees = append(out.Attendees, &gcal.EventAttendee{Email: email})
	}
	return out
}

const timeFormat = "2006-01-02T15:04:05Z07:00"

func googleError(err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		msg := gerr.Message
		if msg == "" {
			msg = http.StatusText(gerr.Code)
		}
		return &apperr.RemoteError{Service: "google_calendar", Status: gerr.Code, Message: msg, Err: err}
	}
	return &apperr.RemoteError{Service: "google_calendar", Message: err.Error(), Err: err}
}

func statusOr(status, fallback int) int {
	if status == 0 {
		return fallback
	}
	return status
}
