package models

import (
	"bsm/src/types"
)

// PayoutAccount holds the external payout destination for one professional.
// Status moves to active only on account.updated webhook events; the row is
// never deleted while bookings reference the professional.
type PayoutAccount struct {
	ID              uint                      `gorm:"primarykey" json:"id"`
	ProfessionalID  uint                      `gorm:"uniqueIndex" json:"professional_id"`
	StripeAccountID *string                   `json:"stripe_account_id,omitempty"`
	Status          types.PayoutAccountStatus `gorm:"default:'pending'" json:"status,omitempty"`
	OnboardingURL   *string                   `json:"onboarding_url,omitempty"`

	Professional Professional `gorm:"foreignKey:professional_id" json:"-"`

	types.Timestamps
}
