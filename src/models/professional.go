package models

import (
	"bsm/src/types"
)

type Professional struct {
	ID                uint                     `gorm:"primarykey;uniqueIndex:slugid" json:"id"`
	Name              string                   `json:"name,omitempty"`
	Bio               string                   `json:"bio,omitempty"`
	Country           string                   `json:"country,omitempty"`
	OwnerID           uint                     `json:"owner_id,omitempty"`
	ContactEmail      string                   `json:"email,omitempty"`
	Status            types.ProfessionalStatus `gorm:"default:'pending'" json:"status,omitempty"`
	Verified          bool                     `gorm:"default:false" json:"verified,omitempty"`
	IdentityVerified  bool                     `gorm:"default:false" json:"identity_verified,omitempty"`
	InsuranceVerified bool                     `gorm:"default:false" json:"insurance_verified,omitempty"`
	WebhookURL        *string                  `json:"webhook_url,omitempty"`
	Metadata          *types.Metadata          `gorm:"type:jsonb" json:"metadata,omitempty"`
	Slug              string                   `gorm:"uniqueIndex:slugid" json:"slug"`

	Services      []Service      `gorm:"foreignKey:professional_id" json:"services,omitempty"`
	Bookings      []Booking      `gorm:"foreignKey:professional_id" json:"-"`
	PayoutAccount *PayoutAccount `gorm:"foreignKey:professional_id" json:"payout_account,omitempty"`
	Owner         User           `gorm:"foreignKey:owner_id" json:"-"`

	types.Timestamps
}
