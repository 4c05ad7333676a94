package common

import (
	"bsm/src/db"
	"bsm/src/lib"
	"bsm/src/models"
	"bsm/src/types"
	"errors"
	"log"
	"strconv"

	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func bookingFromIntentMetadata(pi *stripe.PaymentIntent) (*models.Booking, error) {
	raw, ok := pi.Metadata["bookingId"]
	if !ok {
		return nil, ErrBookingNotFound
	}
	bookingId, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return nil, ErrBookingNotFound
	}
	d := db.GetDb()
	var booking models.Booking
	err = d.
		Model(&models.Booking{}).
		Where(&models.Booking{ID: uint(bookingId)}).
		First(&booking).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &booking, nil
}

// ApplyPaymentIntentSucceeded records the settlement for a succeeded intent.
// The transaction insert is keyed on the payment intent id so redelivered
// events write exactly one row. Unknown bookings are logged and acked; the
// processor must not retry what we can never reconcile.
func ApplyPaymentIntentSucceeded(pi *stripe.PaymentIntent) error {
	booking, err := bookingFromIntentMetadata(pi)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			log.Printf("[Webhook] succeeded intent %s references no known booking\n", pi.ID)
			return nil
		}
		return err
	}

	gross := pi.Amount
	fee := pi.ApplicationFeeAmount
	var transferId *string
	if pi.LatestCharge != nil && pi.LatestCharge.Transfer != nil {
		transferId = stripe.String(pi.LatestCharge.Transfer.ID)
	}

	d := db.GetDb()
	transitioned := false
	err = d.Transaction(func(tx *gorm.DB) error {
		transaction := models.Transaction{
			BookingID:       booking.ID,
			ProfessionalID:  booking.ProfessionalID,
			ClientID:        booking.ClientID,
			Currency:        string(pi.Currency),
			GrossAmount:     gross,
			FeeAmount:       fee,
			NetAmount:       gross - fee,
			PaymentIntentId: pi.ID,
			TransferId:      transferId,
			Status:          types.TRANSACTION_SUCCEEDED,
		}
		if err := tx.
			Clauses(clause.OnConflict{DoNothing: true}).
			Create(&transaction).
			Error; err != nil {
			return err
		}
		if booking.Status == types.BOOKING_CONFIRMED {
			return nil
		}
		if !booking.Status.CanTransition(types.BOOKING_CONFIRMED) {
			// Money moved for a booking we closed out. Keep the transaction
			// row and flag it for ops instead of resurrecting the booking.
			log.Printf("[Webhook] succeeded intent %s but booking %d is %s\n", pi.ID, booking.ID, booking.Status)
			return nil
		}
		res := tx.
			Model(&models.Booking{}).
			Where("id = ? AND status = ?", booking.ID, booking.Status).
			Updates(map[string]any{
				"status":            types.BOOKING_CONFIRMED,
				"payment_intent_id": pi.ID,
				"payment_status":    string(pi.Status),
			})
		if res.Error != nil {
			return res.Error
		}
		transitioned = res.RowsAffected > 0
		return nil
	})
	if err != nil {
		return err
	}
	if transitioned {
		go DispatchBookingNotification(booking.ID, "booking.confirmed")
	}
	return nil
}

// ApplyPaymentIntentFailed marks an in-flight settlement as failed. Events
// arriving after the booking already reached a terminal state are acked
// without touching it.
func ApplyPaymentIntentFailed(pi *stripe.PaymentIntent) error {
	booking, err := bookingFromIntentMetadata(pi)
	if err != nil {
		if errors.Is(err, ErrBookingNotFound) {
			log.Printf("[Webhook] failed intent %s references no known booking\n", pi.ID)
			return nil
		}
		return err
	}
	// Unlike the charge path, a failure event may land while the booking is
	// still pending: the processor accepted the charge out-of-band before the
	// synchronous response was lost. Only terminal states are off-limits.
	if booking.Status.Terminal() {
		log.Printf("[Webhook] failed intent %s for booking %d in state %s, ignoring\n", pi.ID, booking.ID, booking.Status)
		return nil
	}
	d := db.GetDb()
	res := d.
		Model(&models.Booking{}).
		Where("id = ? AND status = ?", booking.ID, booking.Status).
		Updates(map[string]any{
			"status":         types.BOOKING_PAYMENT_FAILED,
			"payment_status": string(pi.Status),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		go DispatchBookingNotification(booking.ID, "booking.payment_failed")
	}
	return nil
}

// ApplyAccountUpdated syncs payout account readiness from the processor.
// Stripe is the source of truth here so the update is last write wins.
func ApplyAccountUpdated(acc *stripe.Account) error {
	d := db.GetDb()
	var account models.PayoutAccount
	err := d.
		Model(&models.PayoutAccount{}).
		Where("stripe_account_id = ?", acc.ID).
		First(&account).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			log.Printf("[Webhook] account.updated for unknown account %s\n", acc.ID)
			return nil
		}
		return err
	}

	complete := lib.PayoutAccountComplete(acc)
	status := types.PAYOUT_ACCOUNT_PENDING
	if complete {
		status = types.PAYOUT_ACCOUNT_ACTIVE
	}
	return d.Transaction(func(tx *gorm.DB) error {
		if err := tx.
			Model(&models.PayoutAccount{}).
			Where(&models.PayoutAccount{ID: account.ID}).
			Update("status", status).
			Error; err != nil {
			return err
		}
		return tx.
			Model(&models.Professional{}).
			Where(&models.Professional{ID: account.ProfessionalID}).
			Update("verified", complete).
			Error
	})
}
