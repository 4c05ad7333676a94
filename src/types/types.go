package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"gorm.io/gorm"
)

type Timestamps struct {
	CreatedAt time.Time      `gorm:"autoCreateTime:nano" json:"created_at,omitempty"`
	UpdatedAt time.Time      `gorm:"autoUpdateTime:nano" json:"updated_at,omitempty"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty,omitnil"`
}

type JSONB map[string]any
type JSONBAny struct {
	Inner any
}

func (a JSONB) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *JSONB) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	return nil
}

func (a JSONBAny) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a.Inner)
	return string(valueString), err
}
func (a *JSONBAny) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	var inner any
	if err := json.Unmarshal(b, &inner); err != nil {
		return err
	}
	a.Inner = inner
	return nil
}

type Metadata map[string]any

func (a Metadata) Value() (driver.Value, error) {
	valueString, err := json.Marshal(a)
	return string(valueString), err
}
func (a *Metadata) Scan(value any) error {
	b, ok := value.([]byte)
	if !ok {
		return errors.New("type assertion to []byte failed")
	}
	return json.Unmarshal(b, &a)
}

type APIEnv string

const (
	Local      APIEnv = "local"
	Test       APIEnv = "test"
	Production APIEnv = "production"
)

type BookingStatus string

const (
	BOOKING_PENDING         BookingStatus = "pending"
	BOOKING_PENDING_PAYMENT BookingStatus = "pending_payment"
	BOOKING_CONFIRMED       BookingStatus = "confirmed"
	BOOKING_PAYMENT_FAILED  BookingStatus = "payment_failed"
	BOOKING_CANCELED        BookingStatus = "canceled"
)

// bookingTransitions is the settlement transition table. Terminal states have
// no outgoing edges; nothing transitions back into pending.
var bookingTransitions = map[BookingStatus][]BookingStatus{
	BOOKING_PENDING:         {BOOKING_CONFIRMED, BOOKING_PENDING_PAYMENT, BOOKING_CANCELED},
	BOOKING_PENDING_PAYMENT: {BOOKING_CONFIRMED, BOOKING_PAYMENT_FAILED},
}

func (s BookingStatus) CanTransition(next BookingStatus) bool {
	for _, allowed := range bookingTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (s BookingStatus) Terminal() bool {
	return len(bookingTransitions[s]) == 0
}

type TransactionStatus string

const (
	TRANSACTION_SUCCEEDED TransactionStatus = "succeeded"
)

type PayoutAccountStatus string

const (
	PAYOUT_ACCOUNT_PENDING PayoutAccountStatus = "pending"
	PAYOUT_ACCOUNT_ACTIVE  PayoutAccountStatus = "active"
)

type ProfessionalStatus string

const (
	PROFESSIONAL_PENDING  ProfessionalStatus = "pending"
	PROFESSIONAL_APPROVED ProfessionalStatus = "approved"
)

type ServiceStatus string

const (
	SERVICE_ACTIVE   ServiceStatus = "active"
	SERVICE_ARCHIVED ServiceStatus = "archived"
)

type SimpleRequestParams struct {
	ID uint `uri:"id" binding:"required"`
}

type RegisterUserRequestBody struct {
	Email string `json:"email" binding:"required"`
	Name  string `json:"name,omitempty"`
}

type CreateProfessionalRequestBody struct {
	Name         string `json:"name" binding:"required"`
	Bio          string `json:"bio,omitempty"`
	Country      string `json:"country" binding:"required"`
	ContactEmail string `json:"email" binding:"required,email"`
}

type CreateServiceRequestBody struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price" binding:"required,gte=0"`
	Duration    uint    `json:"duration,omitempty"`
	Currency    string  `json:"currency,omitempty"`
}

type UpdateServiceRequestBody struct {
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Price       *float64 `json:"price,omitempty" binding:"omitempty,gte=0"`
	Duration    *uint    `json:"duration,omitempty"`
}

type CreateBookingRequestBody struct {
	ServiceID   uint   `json:"service" binding:"required"`
	ScheduledAt string `json:"scheduled_at" binding:"required,bookabledate" time_format:"2006-01-02 15:04:05 -07:00"`
	Location    string `json:"location" binding:"required"`
	Notes       string `json:"notes,omitempty"`
}

type ChargeBookingRequestBody struct {
	PaymentMethodID string `json:"payment_method_id" binding:"required"`
}

type CancelBookingRequestBody struct {
	Reason string `json:"reason,omitempty"`
}

type CreateSettingRequestBody struct {
	Key   string `json:"key" binding:"required"`
	Value any    `json:"value" binding:"required"`
	Group string `json:"group" binding:"required"`
}

type Claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	UID      string `json:"uid"`
	jwt.RegisteredClaims
}

type Handler func(payload string)
