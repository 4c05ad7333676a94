package models

import (
	"bsm/src/types"

	"github.com/google/uuid"
)

// Transaction is an immutable settlement record. Created exactly once per
// successful payment event; the webhook reconciler is the sole writer. The
// unique payment intent index is the redelivery dedup key.
type Transaction struct {
	ID uuid.UUID `gorm:"primarykey;type:uuid;default:gen_random_uuid()" json:"id"`

	BookingID       uint                    `json:"booking_id"`
	ProfessionalID  uint                    `json:"professional_id"`
	ClientID        uint                    `json:"client_id"`
	Currency        string                  `json:"currency"`
	GrossAmount     int64                   `json:"gross_amount"`
	FeeAmount       int64                   `json:"fee_amount"`
	NetAmount       int64                   `json:"net_amount"`
	PaymentIntentId string                  `gorm:"uniqueIndex" json:"payment_intent_id"`
	TransferId      *string                 `json:"transfer_id,omitempty"`
	Status          types.TransactionStatus `gorm:"default:'succeeded'" json:"status"`
	Metadata        *types.JSONB            `gorm:"type:jsonb" json:"metadata,omitempty"`

	types.Timestamps

	Booking Booking `gorm:"foreignKey:booking_id" json:"-"`
}
