package models

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// User roles, stored as plain strings.
const (
	RoleOrganizer = "organizador"
	RoleProvider  = "proveedor"
	RoleAdmin     = "admin"
)

type User struct {
	gorm.Model
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	Email          string `json:"email" gorm:"uniqueIndex"`
	PhoneNumber    string `json:"phoneNumber"`
	Password       string `json:"-"`
	SocialLogin    bool   `json:"socialLogin"`
	SocialProvider string `json:"socialProvider"`
	Role           string `json:"role" gorm:"type:varchar(20);not null;index"` // organizador, proveedor, admin
	Active         *bool  `json:"active" gorm:"default:true"`

	// Profile
	Bio       string `json:"bio" gorm:"type:text"`
	AvatarURL string `json:"avatarURL"`
	City      string `json:"city"`
	Address   string `json:"address"`
	Document  string `json:"document"` // payer identification forwarded to the gateway

	// Notification preferences
	EmailNotifications *bool          `json:"emailNotifications" gorm:"default:true"`
	PushNotifications  *bool          `json:"pushNotifications" gorm:"default:true"`
	PushTokens         datatypes.JSON `json:"pushTokens"`

	Services []Service `json:"services,omitempty" gorm:"foreignKey:ProviderID;references:ID"`
	Events   []Event   `json:"events,omitempty" gorm:"foreignKey:OrganizerID;references:ID"`
}

func (u *User) IsOrganizer() bool { return u.Role == RoleOrganizer }
func (u *User) IsProvider() bool  { return u.Role == RoleProvider }
func (u *User) IsAdmin() bool     { return u.Role == RoleAdmin }

func (u *User) FullName() string {
	if u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.FirstName
}

// Custom JSON marshaling so the push token JSON column comes out as an array.
func (u *User) MarshalJSON() ([]byte, error) {
	type Alias User
	aux := &struct {
		PushTokens []string `json:"pushTokens,omitempty"`
		*Alias
	}{
		PushTokens: []string{},
		Alias:      (*Alias)(u),
	}

	if u.PushTokens != nil {
		var tokens []string
		if err := json.Unmarshal(u.PushTokens, &tokens); err == nil {
			aux.PushTokens = tokens
		}
	}

	return json.Marshal(aux)
}
