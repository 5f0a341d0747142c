package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
)

func TestNewClient(t *testing.T) {
	client := NewClient("http://example.com///", "tok")
	if client.BaseURL != "http://example.com/api" {
		t.Errorf("expected BaseURL 'http://example.com/api', got %s", client.BaseURL)
	}
	if client.HTTPClient == nil || client.HTTPClient.Timeout == 0 {
		t.Error("expected HTTPClient with a timeout")
	}
}

func TestClient_Get(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/events" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer test-token" {
			t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		if r.URL.Query().Get("start_date") != "2026-05-01" {
			t.Errorf("expected start_date query, got %q", r.URL.RawQuery)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    []map[string]any{{"id": "e1", "description": "Standup"}},
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-token")
	var resp Response[[]Event]
	if err := client.Get(context.Background(), "/events", url.Values{"start_date": {"2026-05-01"}}, &resp); err != nil {
		t.Fatalf("Get() returned error: %v", err)
	}
	if len(resp.Data) != 1 || resp.Data[0].Description != "Standup" {
		t.Fatalf("unexpected data %+v", resp.Data)
	}
}

func TestClient_PostSendsJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("expected json content type, got %q", r.Header.Get("Content-Type"))
		}
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "a@example.com" {
			t.Errorf("unexpected body %v", body)
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"success":true,"data":{"token":"jwt","user":{"email":"a@example.com"}}}`))
	}))
	defer server.Close()

	var resp Response[LoginResult]
	err := NewClient(server.URL, "").Post(context.Background(), "/auth/login", map[string]string{"email": "a@example.com"}, &resp)
	if err != nil {
		t.Fatalf("Post() returned error: %v", err)
	}
	if resp.Data.Token != "jwt" {
		t.Fatalf("expected token, got %+v", resp.Data)
	}
}

func TestClient_ErrorEnvelope(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/events/x":
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"success":false,"error":"you don't have access to this event"}`))
		default:
			w.WriteHeader(http.StatusBadGateway)
			_, _ = w.Write([]byte("upstream down\n"))
		}
	}))
	defer server.Close()

	client := NewClient(server.URL, "")

	err := client.Delete(context.Background(), "/events/x", nil)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusForbidden || apiErr.Message != "you don't have access to this event" {
		t.Fatalf("unexpected error %+v", apiErr)
	}

	err = client.Get(context.Background(), "/other", nil, nil)
	if !errors.As(err, &apiErr) || apiErr.Message != "upstream down" {
		t.Fatalf("expected raw body message, got %v", err)
	}
	if apiErr.Error() != "api: 502: upstream down" {
		t.Fatalf("unexpected formatting %q", apiErr.Error())
	}
}

func TestClient_Download(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/calendar")
		_, _ = io.WriteString(w, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n")
	}))
	defer server.Close()

	var buf bytes.Buffer
	if err := NewClient(server.URL, "t").Download(context.Background(), "/events/calendar.ics", nil, &buf); err != nil {
		t.Fatalf("Download() returned error: %v", err)
	}
	if buf.String() != "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n" {
		t.Fatalf("unexpected body %q", buf.String())
	}
}
