package utils

import (
	"bsm/src/config"
	"bsm/src/db"
	"bsm/src/lib"
	"bsm/src/models"
	"bsm/src/types"
	"errors"
	"fmt"
	"log"
	"math"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

func IsProd() bool {
	return os.Getenv("API_ENV") == string(types.Production)
}

// WithSuffix appends the env-specific queue suffix so test and production
// consumers never share a queue.
func WithSuffix(name string) string {
	suffix := os.Getenv("QUEUE_SUFFIX")
	if suffix == "" {
		return name
	}
	return fmt.Sprintf("%s_%s", name, suffix)
}

// MinorUnits converts a decimal price to minor currency units.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CommissionSplit divides a total into the platform commission and the
// professional's net. commission + net == total holds for every input.
func CommissionSplit(total int64, rate float64) (commission int64, net int64) {
	commission = int64(math.Round(float64(total) * rate))
	net = total - commission
	return commission, net
}

// GetCommissionRate resolves the platform rate: a Settings row overrides the
// configured default so an admin can adjust it without a deploy.
func GetCommissionRate() float64 {
	db := db.GetDb()
	var setting models.Setting
	err := db.
		Model(&models.Setting{}).
		Where(&models.Setting{SettingKey: config.COMMISSION_RATE_SETTING}).
		First(&setting).
		Error
	if err == nil {
		if rate, ok := setting.SettingValue.Inner.(float64); ok && rate > 0 && rate < 1 {
			return rate
		}
	}
	return config.CommissionRate()
}

// CreateNewProfessional creates the profile row and its payout account in one
// transaction. The Stripe account is provisioned inside the transaction so a
// gateway failure rolls the rows back and onboarding can be retried cleanly.
func CreateNewProfessional(ctx *gin.Context, params *types.CreateProfessionalRequestBody) (uint, error) {
	userId := ctx.GetUint("id")
	professional := models.Professional{
		Name:         params.Name,
		Bio:          params.Bio,
		Country:      params.Country,
		OwnerID:      userId,
		ContactEmail: params.ContactEmail,
		Slug:         slug.Make(params.Name),
	}

	db := db.GetDb()
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&professional).Error; err != nil {
			return err
		}
		accId, onboardingUrl, err := lib.CreatePayoutAccount(professional.ID, professional.Name, professional.ContactEmail, professional.Country)
		if err != nil {
			log.Printf("Error creating payout account for professional: %s\n", err.Error())
			return errors.New("error creating payout account for professional")
		}
		account := models.PayoutAccount{
			ProfessionalID:  professional.ID,
			StripeAccountID: &accId,
			Status:          types.PAYOUT_ACCOUNT_PENDING,
			OnboardingURL:   &onboardingUrl,
		}
		if err := tx.Create(&account).Error; err != nil {
			return err
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return professional.ID, err
}

func GetServicesForProfessional(id uint, isOwner bool) ([]*models.Service, error) {
	var services []*models.Service
	cond := models.Service{ProfessionalID: id}
	if !isOwner {
		cond.Status = types.SERVICE_ACTIVE
	}
	db := db.GetDb()
	tx := db.Session(&gorm.Session{PrepareStmt: true})
	err := tx.
		Where(&cond).
		Order("created_at desc").
		Find(&services).Error
	if err != nil {
		log.Printf("Error retrieving services for professional [%d]: %s\n", id, err.Error())
		return nil, err
	}
	return services, nil
}

func GetOwnBookings(userId uint) ([]models.Booking, error) {
	db := db.GetDb()
	var bookings []models.Booking
	err := db.
		Model(&models.Booking{}).
		Where(&models.Booking{ClientID: userId}).
		Preload("Service").
		Preload("Professional").
		Order("created_at DESC").
		Limit(20).
		Find(&bookings).
		Error
	return bookings, err
}

func GetProfessionalBookings(professionalId uint) ([]models.Booking, error) {
	db := db.GetDb()
	var bookings []models.Booking
	err := db.
		Model(&models.Booking{}).
		Where(&models.Booking{ProfessionalID: professionalId}).
		Preload("Service").
		Preload("Client").
		Order("scheduled_at DESC").
		Find(&bookings).
		Error
	return bookings, err
}

type SettlementTotals struct {
	Count       int64 `json:"count"`
	GrossAmount int64 `json:"gross_amount"`
	FeeAmount   int64 `json:"fee_amount"`
	NetAmount   int64 `json:"net_amount"`
}

// GetSettlementTotals aggregates completed transactions, optionally for one
// professional (0 means platform-wide, the admin dashboard view).
func GetSettlementTotals(professionalId uint) (*SettlementTotals, error) {
	db := db.GetDb()
	var totals SettlementTotals
	q := db.
		Model(&models.Transaction{}).
		Select("COUNT(*) as count, COALESCE(SUM(gross_amount),0) as gross_amount, COALESCE(SUM(fee_amount),0) as fee_amount, COALESCE(SUM(net_amount),0) as net_amount").
		Where("status = ?", types.TRANSACTION_SUCCEEDED)
	if professionalId != 0 {
		q = q.Where("professional_id = ?", professionalId)
	}
	if err := q.Scan(&totals).Error; err != nil {
		return nil, err
	}
	return &totals, nil
}
