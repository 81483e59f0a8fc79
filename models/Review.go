package models

import "gorm.io/gorm"

type Review struct {
	gorm.Model
	ContractID  uint     `json:"contractID" gorm:"not null;uniqueIndex"`
	Contract    Contract `json:"contract" gorm:"foreignKey:ContractID"`
	ServiceID   uint     `json:"serviceID" gorm:"not null;index"`
	Service     Service  `json:"service" gorm:"foreignKey:ServiceID"`
	OrganizerID uint     `json:"organizerID" gorm:"not null;index"`
	Organizer   User     `json:"organizer" gorm:"foreignKey:OrganizerID"`
	ProviderID  uint     `json:"providerID" gorm:"not null;index"`

	Rating  int    `json:"rating" gorm:"not null;check:rating >= 1 AND rating <= 5"`
	Comment string `json:"comment" gorm:"type:text"`
}
