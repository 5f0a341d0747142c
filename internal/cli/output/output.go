// Package output renders CLI results as tables or JSON.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/groupcal/backend/internal/cli/api"
)

func JSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func EventTable(w io.Writer, events []api.Event) {
	if len(events) == 0 {
		fmt.Fprintln(w, "No events found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tDATE\tTIME\tTYPE\tDESCRIPTION\tLOCATION")
	for _, e := range events {
		location := e.Location
		if location == "" {
			location = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s-%s\t%s\t%s\t%s\n", e.ID, e.Date, e.StartTime, e.EndTime, e.Type, e.Description, location)
	}
	tw.Flush()
}

func EventDetail(w io.Writer, e api.Event) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "ID:\t%s\n", e.ID)
	fmt.Fprintf(tw, "Type:\t%s\n", e.Type)
	fmt.Fprintf(tw, "Description:\t%s\n", e.Description)
	fmt.Fprintf(tw, "When:\t%s %s-%s\n", e.Date, e.StartTime, e.EndTime)
	if e.Location != "" {
		fmt.Fprintf(tw, "Location:\t%s\n", e.Location)
	}
	if e.GroupID != nil {
		fmt.Fprintf(tw, "Group:\t%s\n", *e.GroupID)
	}
	if e.ExternalCalendarID != nil {
		fmt.Fprintf(tw, "Calendar ID:\t%s\n", *e.ExternalCalendarID)
	}
	tw.Flush()
}

func ParticipationTable(w io.Writer, participations []api.Participation) {
	if len(participations) == 0 {
		fmt.Fprintln(w, "No responses yet.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "USER\tRESPONSE\tUPDATED")
	for _, p := range participations {
		who := p.UserID
		if p.User != nil {
			who = p.User.Username
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", who, p.Response, RelativeTime(p.RespondedAt))
	}
	tw.Flush()
}

func GroupTable(w io.Writer, groups []api.Group) {
	if len(groups) == 0 {
		fmt.Fprintln(w, "No groups found.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tROLE")
	for _, g := range groups {
		role := g.Role
		if role == "" {
			role = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", g.ID, g.Name, role)
	}
	tw.Flush()
}

func MemberTable(w io.Writer, members []api.Member) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "USERNAME\tEMAIL\tROLE\tJOINED")
	for _, m := range members {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Username, m.Email, m.Role, RelativeTime(m.JoinedAt))
	}
	tw.Flush()
}

func UserInfo(w io.Writer, u api.User) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Username:\t%s\n", u.Username)
	fmt.Fprintf(tw, "Email:\t%s\n", u.Email)
	fmt.Fprintf(tw, "Name:\t%s %s\n", u.FirstName, u.LastName)
	fmt.Fprintf(tw, "ID:\t%s\n", u.ID)
	tw.Flush()
}

// RelativeTime formats a timestamp relative to now (e.g. "2h ago", "3d ago").
func RelativeTime(t time.Time) string {
	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 30*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}
