package models

import "github.com/google/uuid"

type Group struct {
	BaseModel
	Name        string            `json:"name" gorm:"type:varchar(150);not null;index"`
	Description *string           `json:"description,omitempty" gorm:"type:text"`
	OwnerID     uuid.UUID         `json:"ownerID" gorm:"type:uuid;not null;index"`
	Owner       *User             `json:"owner,omitempty" gorm:"foreignKey:OwnerID"`
	Memberships []GroupMembership `json:"memberships,omitempty" gorm:"foreignKey:GroupID"`
}
