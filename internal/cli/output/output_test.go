package output

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/groupcal/backend/internal/cli/api"
)

func TestRelativeTime(t *testing.T) {
	tests := []struct {
		name string
		at   time.Time
		want string
	}{
		{"just now", time.Now(), "just now"},
		{"minutes", time.Now().Add(-5 * time.Minute), "5m ago"},
		{"hours", time.Now().Add(-3 * time.Hour), "3h ago"},
		{"days", time.Now().Add(-7 * 24 * time.Hour), "7d ago"},
		{"old", time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC), "2020-01-02"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := RelativeTime(tt.at); got != tt.want {
				t.Errorf("RelativeTime() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestEventTable(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		var buf bytes.Buffer
		EventTable(&buf, nil)
		if buf.String() != "No events found.\n" {
			t.Errorf("unexpected output %q", buf.String())
		}
	})

	t.Run("rows", func(t *testing.T) {
		var buf bytes.Buffer
		EventTable(&buf, []api.Event{
			{ID: "e1", Type: "group", Description: "Standup", Date: "2026-05-20", StartTime: "10:00", EndTime: "10:15", Location: "Room 1"},
			{ID: "e2", Type: "solo", Description: "Dentist", Date: "2026-05-21", StartTime: "08:00", EndTime: "09:00"},
		})
		lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
		if len(lines) != 3 {
			t.Fatalf("expected header and 2 rows, got %d lines", len(lines))
		}
		if !strings.HasPrefix(lines[0], "ID") || !strings.Contains(lines[1], "10:00-10:15") {
			t.Errorf("unexpected table:\n%s", buf.String())
		}
		if !strings.HasSuffix(strings.TrimSpace(lines[2]), "-") {
			t.Errorf("expected placeholder location, got %q", lines[2])
		}
	})
}

func TestGroupTable(t *testing.T) {
	var buf bytes.Buffer
	GroupTable(&buf, []api.Group{{ID: "g1", Name: "Choir", Role: "owner"}, {ID: "g2", Name: "Chess"}})
	out := buf.String()
	if !strings.Contains(out, "owner") || !strings.Contains(out, "Chess") {
		t.Errorf("unexpected table:\n%s", out)
	}
}

func TestJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := JSON(&buf, api.Group{ID: "g1", Name: "Choir"}); err != nil {
		t.Fatalf("JSON() returned error: %v", err)
	}
	if !strings.Contains(buf.String(), `"name": "Choir"`) {
		t.Errorf("expected indented json, got %s", buf.String())
	}
}
