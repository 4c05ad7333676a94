package models

import (
	"bsm/src/types"
)

type Service struct {
	ID             uint                `gorm:"primarykey" json:"id"`
	ProfessionalID uint                `json:"professional_id,omitempty"`
	Name           string              `json:"name,omitempty"`
	Description    string              `json:"description,omitempty"`
	Price          float64             `gorm:"type:decimal(10,2)" json:"price"`
	Currency       string              `gorm:"default:'usd'" json:"currency,omitempty"`
	Duration       uint                `json:"duration,omitempty"`
	Status         types.ServiceStatus `gorm:"default:'active'" json:"status,omitempty"`

	Professional Professional `gorm:"foreignKey:professional_id" json:"-"`

	types.Timestamps
}
