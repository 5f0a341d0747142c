package models

import (
	"time"

	"github.com/google/uuid"
)

type ParticipationResponse string

const (
	ResponseYes   ParticipationResponse = "yes"
	ResponseNo    ParticipationResponse = "no"
	ResponseMaybe ParticipationResponse = "maybe"
)

func (r ParticipationResponse) Valid() bool {
	switch r {
	case ResponseYes, ResponseNo, ResponseMaybe:
		return true
	default:
		return false
	}
}

type EventParticipation struct {
	BaseModel
	UserID      uuid.UUID             `json:"userID" gorm:"type:uuid;not null;index;uniqueIndex:idx_user_event"`
	EventID     uuid.UUID             `json:"eventID" gorm:"type:uuid;not null;index;uniqueIndex:idx_user_event"`
	Response    ParticipationResponse `json:"response" gorm:"type:varchar(10);not null;default:'maybe'"`
	RespondedAt time.Time             `json:"respondedAt" gorm:"not null"`
	User        *User                 `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

func (EventParticipation) TableName() string {
	return "event_participations"
}
