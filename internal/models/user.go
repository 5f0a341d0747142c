package models

type User struct {
	BaseModel
	Email            string            `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Username         string            `json:"username" gorm:"type:varchar(150);uniqueIndex;not null"`
	PasswordHash     string            `json:"-" gorm:"type:text;not null;default:''"`
	FirstName        string            `json:"firstName" gorm:"type:varchar(100);not null;default:''"`
	LastName         string            `json:"lastName" gorm:"type:varchar(100);not null;default:''"`
	AuthProvider     *string           `json:"authProvider,omitempty" gorm:"type:varchar(20)"`
	GroupMemberships []GroupMembership `json:"-" gorm:"foreignKey:UserID"`
}

// DisplayName prefers the full name and falls back to the username.
func (u *User) DisplayName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Username
	}
	return name
}
