package models

import (
	"github.com/google/uuid"
)

type EventType string

const (
	EventTypeSolo  EventType = "solo"
	EventTypeGroup EventType = "group"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// UserEvent is either a solo event owned by UserID or a group event owned by
// GroupID. Date and times are stored as ISO strings so range filters compare
// lexically on every driver.
type UserEvent struct {
	BaseModel
	Type               EventType  `json:"type" gorm:"type:varchar(10);not null;index"`
	Description        string     `json:"description" gorm:"type:text;not null"`
	Date               string     `json:"date" gorm:"type:varchar(10);not null;index"`
	StartTime          string     `json:"startTime" gorm:"type:varchar(5);not null"`
	EndTime            string     `json:"endTime" gorm:"type:varchar(5);not null"`
	Location           string     `json:"location" gorm:"type:varchar(255);not null;default:''"`
	UserID             *uuid.UUID `json:"userID,omitempty" gorm:"type:uuid;index"`
	GroupID            *uuid.UUID `json:"groupID,omitempty" gorm:"type:uuid;index"`
	ExternalCalendarID *string    `json:"externalCalendarID,omitempty" gorm:"type:varchar(255);index"`

	User           *User                `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:SET NULL"`
	Group          *Group               `json:"-" gorm:"foreignKey:GroupID;constraint:OnDelete:CASCADE"`
	Participations []EventParticipation `json:"-" gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
}

func (UserEvent) TableName() string {
	return "user_events"
}

func (e *UserEvent) IsGroup() bool {
	return e.Type == EventTypeGroup
}
