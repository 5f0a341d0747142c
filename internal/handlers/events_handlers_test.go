package handlers

import (
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/groupcal/backend/internal/models"
)

func TestEventsEndpoints(t *testing.T) {
	env := setupTestEnv(t)
	owner, ownerToken := createTestUser(t, env.db, "owner")
	admin, adminToken := createTestUser(t, env.db, "admin")
	member, memberToken := createTestUser(t, env.db, "member")
	_, outsiderToken := createTestUser(t, env.db, "outsider")

	groupID := createTestGroup(t, env, ownerToken, "Choir")
	addMember(t, env.db, groupID, admin, models.GroupRoleAdmin)
	addMember(t, env.db, groupID, member, models.GroupRoleMember)

	var groupEventID, soloEventID string

	t.Run("POST /api/events/ solo event for self", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/", map[string]any{
			"type":        "solo",
			"description": "Dentist",
			"date":        "2026-05-21",
			"startTime":   "08:00:00",
			"endTime":     "09:00",
			"userID":      member.ID.String(),
		}, authHeaders(memberToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusCreated)

		data := body["data"].(map[string]any)
		soloEventID = data["id"].(string)
		if data["startTime"] != "08:00" {
			t.Fatalf("expected normalized start time, got %v", data["startTime"])
		}
	})

	t.Run("POST /api/events/ solo event without user or group", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/", map[string]any{
			"type":        "solo",
			"description": "Nobody's",
			"date":        "2026-05-21",
			"startTime":   "08:00",
			"endTime":     "09:00",
		}, authHeaders(memberToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "solo events require a user")
	})

	t.Run("POST /api/events/ solo event for someone else", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/", map[string]any{
			"type":        "solo",
			"description": "Not mine",
			"date":        "2026-05-21",
			"startTime":   "08:00",
			"endTime":     "09:00",
			"userID":      owner.ID.String(),
		}, authHeaders(memberToken))
		assertStatus(t, resp, http.StatusForbidden)
	})

	t.Run("POST /api/events/ group event by plain member", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/", groupEventPayload(groupID, "Rehearsal"), authHeaders(memberToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusForbidden)
		assertEnvelopeError(t, body, "only group owners and admins can create group events")
	})

	t.Run("POST /api/events/ group event end before start", func(t *testing.T) {
		payload := groupEventPayload(groupID, "Backwards")
		payload["endTime"] = "09:00"
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/", payload, authHeaders(ownerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "endTime must be after startTime")
	})

	t.Run("POST /api/events/ group event by admin fans out and notifies", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/", groupEventPayload(groupID, "Rehearsal"), authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusCreated)
		groupEventID = body["data"].(map[string]any)["id"].(string)

		var count int64
		env.db.Model(&models.EventParticipation{}).Where("event_id = ?", groupEventID).Count(&count)
		if count != 2 {
			t.Fatalf("expected participations for owner and member, got %d", count)
		}

		env.notifier.Wait()
		messages := env.mail.Messages()
		if len(messages) != 2 {
			t.Fatalf("expected 2 notifications, got %d", len(messages))
		}
		if messages[0].Subject != "Group Event Created: Rehearsal" {
			t.Fatalf("unexpected subject %q", messages[0].Subject)
		}
	})

	t.Run("GET /api/events/ visible events with range", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/events/?start_date=2026-05-01&end_date=2026-05-31", nil, authHeaders(memberToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if got := len(body["data"].([]any)); got != 2 {
			t.Fatalf("expected solo and group event, got %d", got)
		}

		resp = performRequest(t, env.app, http.MethodGet, "/api/events/", nil, authHeaders(outsiderToken))
		body = decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if got := len(body["data"].([]any)); got != 0 {
			t.Fatalf("expected outsider to see nothing, got %d", got)
		}
	})

	t.Run("GET /api/events/ bad date", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/events/?start_date=20-05-2026", nil, authHeaders(memberToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "start_date must be formatted as YYYY-MM-DD")
	})

	t.Run("GET /api/events/:id visibility", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/events/"+groupEventID, nil, authHeaders(memberToken))
		assertStatus(t, resp, http.StatusOK)

		resp = performRequest(t, env.app, http.MethodGet, "/api/events/"+groupEventID, nil, authHeaders(outsiderToken))
		assertStatus(t, resp, http.StatusForbidden)

		resp = performRequest(t, env.app, http.MethodGet, "/api/events/"+soloEventID, nil, authHeaders(ownerToken))
		assertStatus(t, resp, http.StatusForbidden)

		resp = performRequest(t, env.app, http.MethodGet, "/api/events/not-a-uuid", nil, authHeaders(ownerToken))
		assertStatus(t, resp, http.StatusBadRequest)
	})

	t.Run("PUT /api/events/:id", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPut, "/api/events/"+groupEventID, map[string]any{
			"location": "Hall",
		}, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if body["data"].(map[string]any)["location"] != "Hall" {
			t.Fatalf("expected location update, got %v", body["data"])
		}

		resp = performJSONRequest(t, env.app, http.MethodPut, "/api/events/"+groupEventID, map[string]any{
			"location": "Basement",
		}, authHeaders(memberToken))
		assertStatus(t, resp, http.StatusForbidden)

		resp = performJSONRequest(t, env.app, http.MethodPut, "/api/events/"+groupEventID, map[string]any{
			"type": "solo",
		}, authHeaders(adminToken))
		assertStatus(t, resp, http.StatusForbidden)
	})

	t.Run("POST /api/events/:id/respond", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/"+groupEventID+"/respond", map[string]any{
			"response": "yes",
		}, authHeaders(memberToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if body["data"].(map[string]any)["response"] != "yes" {
			t.Fatalf("expected yes, got %v", body["data"])
		}

		resp = performJSONRequest(t, env.app, http.MethodPost, "/api/events/"+groupEventID+"/respond", map[string]any{
			"response": "perhaps",
		}, authHeaders(memberToken))
		assertStatus(t, resp, http.StatusBadRequest)

		resp = performJSONRequest(t, env.app, http.MethodPost, "/api/events/"+groupEventID+"/respond", map[string]any{
			"response": "no",
		}, authHeaders(outsiderToken))
		assertStatus(t, resp, http.StatusForbidden)

		resp = performJSONRequest(t, env.app, http.MethodPost, "/api/events/"+soloEventID+"/respond", map[string]any{
			"response": "no",
		}, authHeaders(memberToken))
		body = decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "you can only respond to group events")
	})

	t.Run("GET /api/events/:id/participations", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/events/"+groupEventID+"/participations", nil, authHeaders(ownerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if got := len(body["data"].([]any)); got != 2 {
			t.Fatalf("expected 2 participations, got %d", got)
		}

		resp = performRequest(t, env.app, http.MethodGet, "/api/events/"+groupEventID+"/participations", nil, authHeaders(outsiderToken))
		assertStatus(t, resp, http.StatusForbidden)
	})

	t.Run("GET /api/groups/:id/events", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/groups/"+groupID+"/events", nil, authHeaders(memberToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusOK)
		if got := len(body["data"].([]any)); got != 1 {
			t.Fatalf("expected 1 group event, got %d", got)
		}

		resp = performRequest(t, env.app, http.MethodGet, "/api/groups/"+groupID+"/events", nil, authHeaders(outsiderToken))
		assertStatus(t, resp, http.StatusForbidden)
	})

	t.Run("GET /api/events/calendar.ics", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodGet, "/api/events/calendar.ics", nil, authHeaders(memberToken))
		assertStatus(t, resp, http.StatusOK)
		if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/calendar") {
			t.Fatalf("expected text/calendar, got %q", ct)
		}
		raw, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		ics := string(raw)
		for _, want := range []string{"BEGIN:VCALENDAR", "SUMMARY:Rehearsal", "SUMMARY:Dentist"} {
			if !strings.Contains(ics, want) {
				t.Fatalf("expected %q in export:\n%s", want, ics)
			}
		}
	})

	t.Run("DELETE /api/events/:id", func(t *testing.T) {
		resp := performRequest(t, env.app, http.MethodDelete, "/api/events/"+groupEventID, nil, authHeaders(adminToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusForbidden)
		assertEnvelopeError(t, body, "only the group owner can delete group events")

		resp = performRequest(t, env.app, http.MethodDelete, "/api/events/"+groupEventID, nil, authHeaders(ownerToken))
		assertStatus(t, resp, http.StatusNoContent)

		resp = performRequest(t, env.app, http.MethodGet, "/api/events/"+groupEventID, nil, authHeaders(ownerToken))
		assertStatus(t, resp, http.StatusNotFound)
	})
}

func TestBatchCreateEndpoint(t *testing.T) {
	env := setupTestEnv(t)
	owner, ownerToken := createTestUser(t, env.db, "owner")
	groupID := createTestGroup(t, env, ownerToken, "Rota")

	t.Run("creates every draft", func(t *testing.T) {
		second := groupEventPayload(groupID, "Shift 2")
		second["date"] = "2026-05-21"
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/batch", map[string]any{
			"events": []any{
				groupEventPayload(groupID, "Shift 1"),
				second,
				map[string]any{
					"type":        "solo",
					"description": "Day off",
					"date":        "2026-05-22",
					"startTime":   "00:00",
					"endTime":     "23:59",
					"userID":      owner.ID.String(),
				},
			},
		}, authHeaders(ownerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusCreated)
		if got := len(body["data"].([]any)); got != 3 {
			t.Fatalf("expected 3 events, got %d", got)
		}
	})

	t.Run("one bad draft rejects the batch", func(t *testing.T) {
		bad := groupEventPayload(groupID, "Broken")
		bad["date"] = "tomorrow"
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/batch", map[string]any{
			"events": []any{groupEventPayload(groupID, "Fine"), bad},
		}, authHeaders(ownerToken))
		body := decodeJSONMap(t, resp)
		assertStatus(t, resp, http.StatusBadRequest)
		assertEnvelopeError(t, body, "event 1: date must be formatted as YYYY-MM-DD")

		var count int64
		env.db.Model(&models.UserEvent{}).Where("description = ?", "Fine").Count(&count)
		if count != 0 {
			t.Fatalf("expected nothing persisted, got %d", count)
		}
	})

	t.Run("empty batch", func(t *testing.T) {
		resp := performJSONRequest(t, env.app, http.MethodPost, "/api/events/batch", map[string]any{"events": []any{}}, authHeaders(ownerToken))
		assertStatus(t, resp, http.StatusBadRequest)
	})
}

func TestGroupEventLifecycleScenarios(t *testing.T) {
	env := setupTestEnv(t)
	owner, ownerToken := createTestUser(t, env.db, "owner")
	member, memberToken := createTestUser(t, env.db, "member")
	_, outsiderToken := createTestUser(t, env.db, "outsider")

	groupID := createTestGroup(t, env, ownerToken, "Team")

	resp := performRequest(t, env.app, http.MethodPost, "/api/groups/"+groupID+"/join", nil, authHeaders(memberToken))
	assertStatus(t, resp, http.StatusCreated)

	resp = performRequest(t, env.app, http.MethodGet, "/api/groups/"+groupID+"/role?user_id="+member.ID.String(), nil, authHeaders(ownerToken))
	body := decodeJSONMap(t, resp)
	assertStatus(t, resp, http.StatusOK)
	if body["data"].(map[string]any)["role"] != "member" {
		t.Fatalf("expected member role, got %v", body["data"])
	}

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/events/", groupEventPayload(groupID, "Standup"), authHeaders(ownerToken))
	body = decodeJSONMap(t, resp)
	assertStatus(t, resp, http.StatusCreated)
	eventID := body["data"].(map[string]any)["id"].(string)

	var participation models.EventParticipation
	if err := env.db.First(&participation, "event_id = ? AND user_id = ?", eventID, member.ID).Error; err != nil {
		t.Fatalf("expected member participation: %v", err)
	}

	resp = performJSONRequest(t, env.app, http.MethodPost, "/api/events/"+eventID+"/respond", map[string]any{"response": "yes"}, authHeaders(outsiderToken))
	assertStatus(t, resp, http.StatusForbidden)

	resp = performRequest(t, env.app, http.MethodDelete, "/api/events/"+eventID, nil, authHeaders(memberToken))
	assertStatus(t, resp, http.StatusForbidden)

	resp = performRequest(t, env.app, http.MethodDelete, "/api/events/"+eventID, nil, authHeaders(ownerToken))
	assertStatus(t, resp, http.StatusNoContent)

	var count int64
	env.db.Model(&models.EventParticipation{}).Where("event_id = ?", eventID).Count(&count)
	if count != 0 {
		t.Fatalf("expected participations to be removed, got %d", count)
	}

	resp = performRequest(t, env.app, http.MethodDelete, "/api/groups/"+groupID+"/members/"+owner.ID.String(), nil, authHeaders(ownerToken))
	assertStatus(t, resp, http.StatusBadRequest)

	resp = performJSONRequest(t, env.app, http.MethodPut, "/api/groups/"+groupID+"/members/"+owner.ID.String(), map[string]any{"role": "admin"}, authHeaders(ownerToken))
	assertStatus(t, resp, http.StatusBadRequest)
}
