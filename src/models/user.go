package models

import (
	"bsm/src/types"
	"time"
)

type User struct {
	ID               uint            `gorm:"primarykey" json:"id"`
	Name             string          `json:"name,omitempty"`
	Email            string          `gorm:"uniqueIndex" json:"email,omitempty"`
	Phone            string          `json:"phone,omitempty"`
	Role             string          `gorm:"default:'client'" json:"role,omitempty"`
	UID              string          `json:"uid,omitempty"`
	EmailVerified    bool            `json:"email_verified,omitempty"`
	PhoneVerified    bool            `json:"phone_verified,omitempty"`
	VerifiedAt       time.Time       `json:"verified_at,omitempty"`
	StripeCustomerId *string         `json:"-"`
	Metadata         *types.Metadata `gorm:"type:jsonb"`

	Bookings     []Booking     `gorm:"foreignKey:client_id" json:"bookings,omitempty"`
	Professional *Professional `gorm:"foreignKey:owner_id" json:"professional,omitempty"`

	types.Timestamps
}
