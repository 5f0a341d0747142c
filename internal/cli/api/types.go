package api

import "time"

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  string    `json:"username"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	CreatedAt time.Time `json:"createdAt"`
}

type LoginResult struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

type Event struct {
	ID                 string  `json:"id"`
	Type               string  `json:"type"`
	Description        string  `json:"description"`
	Date               string  `json:"date"`
	StartTime          string  `json:"startTime"`
	EndTime            string  `json:"endTime"`
	Location           string  `json:"location"`
	UserID             *string `json:"userID,omitempty"`
	GroupID            *string `json:"groupID,omitempty"`
	ExternalCalendarID *string `json:"externalCalendarID,omitempty"`
}

// EventDraft is the body of a create request.
type EventDraft struct {
	Type        string  `json:"type"`
	Description string  `json:"description"`
	Date        string  `json:"date"`
	StartTime   string  `json:"startTime"`
	EndTime     string  `json:"endTime"`
	Location    string  `json:"location,omitempty"`
	UserID      *string `json:"userID,omitempty"`
	GroupID     *string `json:"groupID,omitempty"`
}

type Participation struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userID"`
	EventID     string    `json:"eventID"`
	Response    string    `json:"response"`
	RespondedAt time.Time `json:"respondedAt"`
	User        *User     `json:"user,omitempty"`
}

type Group struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	OwnerID     string    `json:"ownerID"`
	Role        string    `json:"role,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

type Member struct {
	UserID   string    `json:"userID"`
	Username string    `json:"username"`
	Email    string    `json:"email"`
	Role     string    `json:"role"`
	JoinedAt time.Time `json:"joinedAt"`
}

type Mirror struct {
	ExternalID string `json:"externalID"`
	Status     int    `json:"status"`
	Link       string `json:"link,omitempty"`
}

type SyncResult struct {
	Event  Event  `json:"event"`
	Mirror Mirror `json:"mirror"`
}

type ServerInfo struct {
	Version          string `json:"version"`
	Commit           string `json:"commit,omitempty"`
	APIVersion       string `json:"apiVersion"`
	Timezone         string `json:"timezone"`
	CalendarProvider string `json:"calendarProvider"`
	GoogleSignIn     bool   `json:"googleSignIn"`
	EmailDelivery    bool   `json:"emailDelivery"`
}
