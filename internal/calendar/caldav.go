package calendar

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav/caldav"
	"github.com/google/uuid"
	"github.com/groupcal/backend/internal/apperr"
	"github.com/groupcal/backend/internal/config"
	"github.com/groupcal/backend/pkg/logger"
)

const productID = "-//groupcal//EN"

type basicAuthTransport struct {
	Username  string
	Password  string
	Transport http.RoundTripper
}

func (t *basicAuthTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	req.SetBasicAuth(t.Username, t.Password)
	req.Header.Set("User-Agent", "groupcal/1.0")
	return t.Transport.RoundTrip(req)
}

// CalDAVProvider stores events as calendar objects on a CalDAV server using
// server-side credentials. The external id is the object path.
type CalDAVProvider struct {
	client       *caldav.Client
	calendarName string

	mu           sync.Mutex
	calendarPath string
}

func NewCalDAVProvider(cfg config.CalendarConfig) (*CalDAVProvider, error) {
	httpClient := &http.Client{
		Timeout: cfg.RequestTimeout,
		Transport: &basicAuthTransport{
			Username:  cfg.CalDAVUsername,
			Password:  cfg.CalDAVPassword,
			Transport: http.DefaultTransport,
		},
	}

	client, err := caldav.NewClient(httpClient, cfg.CalDAVEndpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to create caldav client: %w", err)
	}
	return &CalDAVProvider{client: client, calendarName: cfg.CalDAVCalendar}, nil
}

func (p *CalDAVProvider) Create(ctx context.Context, _ Credential, ev Event) (Mirror, error) {
	calPath, err := p.findCalendar(ctx)
	if err != nil {
		return Mirror{}, err
	}

	if ev.UID == "" {
		ev.UID = uuid.New().String()
	}
	objectPath := path.Join(calPath, ev.UID+".ics")
	if _, err := p.client.PutCalendarObject(ctx, objectPath, NewICalendar(ev)); err != nil {
		return Mirror{}, caldavError("failed to create calendar object", err)
	}

	logger.Info("caldav_event_created", map[string]interface{}{
		"path": objectPath,
	})
	return Mirror{ExternalID: objectPath, Status: http.StatusCreated}, nil
}

func (p *CalDAVProvider) Update(ctx context.Context, _ Credential, externalID string, ev Event) (Mirror, error) {
	if _, err := p.client.PutCalendarObject(ctx, externalID, NewICalendar(ev)); err != nil {
		return Mirror{}, caldavError("failed to update calendar object", err)
	}
	return Mirror{ExternalID: externalID, Status: http.StatusOK}, nil
}

func (p *CalDAVProvider) Delete(ctx context.Context, _ Credential, externalID string) error {
	if err := p.client.RemoveAll(ctx, externalID); err != nil {
		return caldavError("failed to delete calendar object", err)
	}
	return nil
}

// findCalendar resolves the configured calendar once and caches its path.
func (p *CalDAVProvider) findCalendar(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.calendarPath != "" {
		return p.calendarPath, nil
	}

	principal, err := p.client.FindCurrentUserPrincipal(ctx)
	if err != nil {
		return "", caldavError("failed to find principal", err)
	}
	homeSet, err := p.client.FindCalendarHomeSet(ctx, principal)
	if err != nil {
		return "", caldavError("failed to find calendar home set", err)
	}
	calendars, err := p.client.FindCalendars(ctx, homeSet)
	if err != nil {
		return "", caldavError("failed to list calendars", err)
	}

	for _, cal := range calendars {
		if cal.Name == p.calendarName {
			p.calendarPath = cal.Path
			return p.calendarPath, nil
		}
	}
	return "", &apperr.RemoteError{
		Service: "caldav",
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("no calendar named %q", p.calendarName),
	}
}

// NewICalendar wraps a single event in a VCALENDAR.
func NewICalendar(events ...Event) *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, productID)
	for _, ev := range events {
		cal.Children = append(cal.Children, toICal(ev))
	}
	return cal
}

func toICal(ev Event) *ical.Component {
	ve := ical.NewComponent(ical.CompEvent)
	ve.Props.SetText(ical.PropUID, ev.UID)
	ve.Props.SetText(ical.PropSummary, ev.Summary)
	ve.Props.SetDateTime(ical.PropDateTimeStamp, time.Now().UTC())
	ve.Props.SetDateTime(ical.PropDateTimeStart, ev.Start)
	ve.Props.SetDateTime(ical.PropDateTimeEnd, ev.End)

	if ev.Description != "" {
		ve.Props.SetText(ical.PropDescription, ev.Description)
	}
	if ev.Location != "" {
		ve.Props.SetText(ical.PropLocation, ev.Location)
	}
	if ev.Organizer != "" {
		p := ical.NewProp(ical.PropOrganizer)
		p.SetText("mailto:" + ev.Organizer)
		ve.Props.Add(p)
	}
	for _, attendee := range ev.Attendees {
		p := ical.NewProp(ical.PropAttendee)
		p.SetText("mailto:" + attendee)
		ve.Props.Add(p)
	}
	return ve
}

func caldavError(message string, err error) error {
	status := http.StatusBadGateway
	if strings.Contains(err.Error(), "404") {
		status = http.StatusNotFound
	}
	return &apperr.RemoteError{Service: "caldav", Status: status, Message: message, Err: err}
}
