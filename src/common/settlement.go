package common

import (
	"bsm/src/db"
	"bsm/src/lib"
	"bsm/src/models"
	"bsm/src/types"
	"bsm/src/utils"
	"context"
	"errors"
	"log"
	"time"

	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
)

var (
	ErrBookingNotFound        = errors.New("booking not found")
	ErrAccountNotFound        = errors.New("payout account not found")
	ErrPayoutAccountMissing   = errors.New("professional has no active payout account")
	ErrAlreadySettled         = errors.New("booking is not pending")
	ErrInvalidTransition      = errors.New("invalid booking status transition")
	ErrConcurrentModification = errors.New("booking was modified concurrently")
	ErrGatewayUnavailable     = errors.New("payment gateway unavailable")
)

// ChargeBooking settles a pending booking: splits the total into the platform
// fee and the professional's net, issues the destination charge and advances
// the booking status. The status update is guarded on the pre-read status so
// two racing charges cannot both win.
func ChargeBooking(ctx context.Context, bookingId uint, paymentMethodId string, idemKey string) (*lib.ChargeResult, error) {
	d := db.GetDb()
	var booking models.Booking
	err := d.
		Model(&models.Booking{}).
		Preload("Service").
		Preload("Professional").
		Preload("Professional.PayoutAccount").
		Where(&models.Booking{ID: bookingId}).
		First(&booking).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	if booking.Status != types.BOOKING_PENDING {
		return nil, ErrAlreadySettled
	}
	account := booking.Professional.PayoutAccount
	if account == nil || account.StripeAccountID == nil || account.Status != types.PAYOUT_ACCOUNT_ACTIVE {
		return nil, ErrPayoutAccountMissing
	}

	amount := utils.MinorUnits(booking.Total)
	rate := utils.GetCommissionRate()
	fee, net := utils.CommissionSplit(amount, rate)
	log.Printf("[Settlement] booking=%d amount=%d fee=%d net=%d rate=%f\n", booking.ID, amount, fee, net, rate)

	result, err := lib.ChargeForBooking(ctx, &lib.ChargeParams{
		BookingID:       booking.ID,
		Amount:          amount,
		FeeAmount:       fee,
		Currency:        booking.Currency,
		PaymentMethodID: paymentMethodId,
		PayoutAccountID: *account.StripeAccountID,
		IdempotencyKey:  idemKey,
	})
	if err != nil {
		var stripeErr *stripe.Error
		if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
			return nil, err
		}
		return nil, errors.Join(ErrGatewayUnavailable, err)
	}

	next := types.BOOKING_PENDING_PAYMENT
	if result.Status == stripe.PaymentIntentStatusSucceeded {
		next = types.BOOKING_CONFIRMED
	}
	tx := d.
		Model(&models.Booking{}).
		Where("id = ? AND status = ?", booking.ID, types.BOOKING_PENDING).
		Updates(map[string]any{
			"status":            next,
			"payment_intent_id": result.IntentID,
			"payment_status":    string(result.Status),
		})
	if tx.Error != nil {
		return nil, tx.Error
	}
	if tx.RowsAffected == 0 {
		// Someone else advanced the booking while the charge was in flight.
		// The webhook reconciler will still settle the intent by metadata.
		return nil, ErrConcurrentModification
	}

	if next == types.BOOKING_CONFIRMED {
		go DispatchBookingNotification(booking.ID, "booking.confirmed")
	}
	return result, nil
}

// CancelBooking cancels a pending booking. Settlement in progress cannot be
// canceled; the webhook outcome decides those.
func CancelBooking(bookingId uint, reason string) error {
	d := db.GetDb()
	var booking models.Booking
	err := d.
		Model(&models.Booking{}).
		Where(&models.Booking{ID: bookingId}).
		First(&booking).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrBookingNotFound
		}
		return err
	}
	if !booking.Status.CanTransition(types.BOOKING_CANCELED) {
		return ErrInvalidTransition
	}
	meta := types.Metadata{}
	if booking.Metadata != nil {
		meta = *booking.Metadata
	}
	if reason != "" {
		meta["cancel_reason"] = reason
	}
	tx := d.
		Model(&models.Booking{}).
		Where("id = ? AND status = ?", booking.ID, booking.Status).
		Updates(map[string]any{
			"status":   types.BOOKING_CANCELED,
			"metadata": &meta,
		})
	if tx.Error != nil {
		return tx.Error
	}
	if tx.RowsAffected == 0 {
		return ErrConcurrentModification
	}
	go DispatchBookingNotification(booking.ID, "booking.canceled")
	return nil
}

// ExpireStaleBookings cancels pending bookings older than the cutoff. Runs on
// the hourly schedule; bookings mid-settlement are untouched. Each expired
// booking gets the same cancellation notification a manual cancel sends.
func ExpireStaleBookings(olderThan time.Duration) (int64, error) {
	d := db.GetDb()
	cutoff := time.Now().Add(-olderThan)
	var ids []uint
	if err := d.
		Model(&models.Booking{}).
		Where("status = ? AND created_at < ?", types.BOOKING_PENDING, cutoff).
		Pluck("id", &ids).
		Error; err != nil {
		return 0, err
	}
	var expired int64
	for _, id := range ids {
		tx := d.
			Model(&models.Booking{}).
			Where("id = ? AND status = ?", id, types.BOOKING_PENDING).
			Update("status", types.BOOKING_CANCELED)
		if tx.Error != nil {
			return expired, tx.Error
		}
		if tx.RowsAffected == 0 {
			// Charged or canceled between the scan and the update.
			continue
		}
		expired++
		dispatchNotification(id, "booking.canceled")
	}
	if expired > 0 {
		log.Printf("[Scheduler] expired %d stale pending bookings\n", expired)
	}
	return expired, nil
}
