package models

import (
	"bsm/src/types"
	"time"
)

type Booking struct {
	ID              uint                `gorm:"primarykey" json:"id"`
	ClientID        uint                `json:"client_id,omitempty"`
	ProfessionalID  uint                `json:"professional_id,omitempty"`
	ServiceID       uint                `json:"service_id,omitempty"`
	ScheduledAt     time.Time           `json:"scheduled_at,omitempty"`
	Location        string              `json:"location,omitempty"`
	Notes           string              `json:"notes,omitempty"`
	Total           float64             `gorm:"type:decimal(10,2)" json:"total"`
	Currency        string              `gorm:"default:'usd'" json:"currency,omitempty"`
	Status          types.BookingStatus `gorm:"default:'pending'" json:"status,omitempty"`
	PaymentIntentId *string             `json:"payment_intent_id,omitempty"`
	PaymentStatus   string              `json:"payment_status,omitempty"`
	Metadata        *types.Metadata     `gorm:"type:jsonb" json:"metadata,omitempty"`

	Client       *User         `gorm:"foreignKey:client_id" json:"client,omitempty"`
	Professional *Professional `gorm:"foreignKey:professional_id" json:"professional,omitempty"`
	Service      *Service      `gorm:"foreignKey:service_id" json:"service,omitempty"`
	Transaction  *Transaction  `gorm:"foreignKey:booking_id" json:"transaction,omitempty"`

	types.Timestamps
}
