package models

import "time"

// Inbox states.
const (
	NotificationUnread   = "no_leida"
	NotificationRead     = "leida"
	NotificationArchived = "archivada"
)

// Notification is the persisted inbox entry; email and push deliveries of
// the same message are fire-and-forget and leave no row of their own.
type Notification struct {
	ID     uint `json:"id" gorm:"primaryKey"`
	UserID uint `json:"userID" gorm:"not null;index"`
	User   User `json:"user" gorm:"foreignKey:UserID"`

	Kind    string `json:"kind" gorm:"size:32;index"`
	Title   string `json:"title" gorm:"size:200;not null"`
	Message string `json:"message" gorm:"size:500;not null"`

	// Optional references back to the entity whose transition produced this.
	EventID    *uint `json:"eventID" gorm:"index"`
	ServiceID  *uint `json:"serviceID" gorm:"index"`
	ContractID *uint `json:"contractID" gorm:"index"`
	PaymentID  *uint `json:"paymentID" gorm:"index"`

	Status string `json:"status" gorm:"size:16;index;default:no_leida"`

	CreatedAt time.Time  `json:"createdAt"`
	ReadAt    *time.Time `json:"readAt"`
}

func (n *Notification) MarkRead() {
	if n.Status != NotificationUnread {
		return
	}
	n.Status = NotificationRead
	now := time.Now().UTC()
	n.ReadAt = &now
}

func (n *Notification) Archive() {
	n.Status = NotificationArchived
}
