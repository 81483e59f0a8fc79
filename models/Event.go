package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Event lifecycle. Status only moves forward; cancelado is reachable from
// every pre-completion state.
const (
	EventDraft      = "borrador"
	EventActive     = "activo"
	EventInProgress = "en_progreso"
	EventCompleted  = "completado"
	EventCancelled  = "cancelado"
)

// Event types offered in the creation form.
const (
	EventTypeCorporate = "corporativo"
	EventTypeSocial    = "social"
	EventTypeSports    = "deportivo"
	EventTypeCultural  = "cultural"
	EventTypeReligious = "religioso"
	EventTypeAcademic  = "academico"
	EventTypeOther     = "otro"
)

type Event struct {
	ID          uint `json:"id" gorm:"primaryKey"`
	OrganizerID uint `json:"organizerID" gorm:"not null;index"`
	Organizer   User `json:"organizer" gorm:"foreignKey:OrganizerID"`

	Title       string    `json:"title" gorm:"not null"`
	Description string    `json:"description" gorm:"type:text"`
	Type        string    `json:"type" gorm:"size:32;not null"`
	StartDate   time.Time `json:"startDate" gorm:"not null"`
	EndDate     time.Time `json:"endDate" gorm:"not null"`
	Location    string    `json:"location" gorm:"size:300;not null"`
	Address     string    `json:"address" gorm:"size:500"`
	City        string    `json:"city" gorm:"size:100;not null"`

	MaxBudget  decimal.NullDecimal `json:"maxBudget" gorm:"type:numeric(10,2)"`
	GuestCount *int                `json:"guestCount"`

	Images datatypes.JSON `json:"images"`

	Status string `json:"status" gorm:"size:20;index;default:borrador"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// eventOrder gives each forward state a rank so transitions can only advance.
var eventOrder = map[string]int{
	EventDraft:      0,
	EventActive:     1,
	EventInProgress: 2,
	EventCompleted:  3,
}

// CanTransition reports whether the event may move to the target status.
func (e *Event) CanTransition(to string) bool {
	if e.Status == EventCompleted || e.Status == EventCancelled {
		return false
	}
	if to == EventCancelled {
		return true
	}
	from, okFrom := eventOrder[e.Status]
	next, okTo := eventOrder[to]
	return okFrom && okTo && next == from+1
}

func (e *Event) Transition(to string) error {
	if !e.CanTransition(to) {
		return ErrInvalidTransition
	}
	e.Status = to
	return nil
}
