package main

import (
	"bsm/src/common"
	"bsm/src/config"
	"bsm/src/db"
	"bsm/src/lib"
	"bsm/src/models"
	"bsm/src/types"
	"bsm/src/utils"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
)

func bookingHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/bookings", func(ctx *gin.Context) {
			var body types.CreateBookingRequestBody
			if err := ctx.ShouldBindBodyWithJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			scheduledAt, err := time.Parse(config.TIME_PARSE_FORMAT, body.ScheduledAt)
			if err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			db := db.GetDb()
			var booking models.Booking
			err = db.Transaction(func(tx *gorm.DB) error {
				var service models.Service
				if err := tx.
					Model(&models.Service{}).
					Preload("Professional").
					Where(&models.Service{ID: body.ServiceID, Status: types.SERVICE_ACTIVE}).
					First(&service).
					Error; err != nil {
					return errors.New("service not found")
				}
				if service.Professional.Status != types.PROFESSIONAL_APPROVED {
					return errors.New("professional is not accepting bookings")
				}
				// Price is snapshotted at creation; later service edits must
				// not change what an existing booking settles for.
				booking = models.Booking{
					ClientID:       userId,
					ProfessionalID: service.ProfessionalID,
					ServiceID:      service.ID,
					ScheduledAt:    scheduledAt,
					Location:       body.Location,
					Notes:          body.Notes,
					Total:          service.Price,
					Currency:       service.Currency,
					Status:         types.BOOKING_PENDING,
				}
				return tx.Create(&booking).Error
			})
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			go common.DispatchBookingNotification(booking.ID, "booking.created")
			ctx.JSON(http.StatusCreated, gin.H{"id": booking.ID, "status": booking.Status, "total": booking.Total})
		}).
		GET("/bookings", func(ctx *gin.Context) {
			userId := ctx.GetUint("id")
			bookings, err := utils.GetOwnBookings(userId)
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": bookings, "count": len(bookings)})
		}).
		GET("/bookings/professional", func(ctx *gin.Context) {
			professionalId := ctx.GetUint("professional")
			if professionalId == 0 {
				ctx.Status(http.StatusNotFound)
				return
			}
			bookings, err := utils.GetProfessionalBookings(professionalId)
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": bookings, "count": len(bookings)})
		}).
		GET("/bookings/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			db := db.GetDb()
			var booking models.Booking
			if err := db.
				Model(&models.Booking{}).
				Preload("Service").
				Preload("Professional").
				Preload("Transaction").
				Where(&models.Booking{ID: params.ID}).
				First(&booking).
				Error; err != nil {
				ctx.Status(http.StatusNotFound)
				return
			}
			userId := ctx.GetUint("id")
			professionalId := ctx.GetUint("professional")
			role := ctx.GetString("role")
			if booking.ClientID != userId && booking.ProfessionalID != professionalId && role != "admin" {
				ctx.Status(http.StatusNotFound)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": booking})
		}).
		PUT("/bookings/:id/cancel", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.CancelBookingRequestBody
			ctx.ShouldBindBodyWithJSON(&body)

			userId := ctx.GetUint("id")
			role := ctx.GetString("role")
			db := db.GetDb()
			var booking models.Booking
			if err := db.
				Model(&models.Booking{}).
				Where(&models.Booking{ID: params.ID}).
				First(&booking).
				Error; err != nil {
				ctx.Status(http.StatusNotFound)
				return
			}
			if booking.ClientID != userId && role != "admin" {
				ctx.Status(http.StatusNotFound)
				return
			}
			if err := common.CancelBooking(params.ID, body.Reason); err != nil {
				status := cancelErrorStatus(err)
				ctx.JSON(status, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		}).
		POST("/bookings/:id/charge", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.ChargeBookingRequestBody
			if err := ctx.ShouldBindBodyWithJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			db := db.GetDb()
			var count int64
			if err := db.
				Model(&models.Booking{}).
				Where(&models.Booking{ID: params.ID, ClientID: userId}).
				Count(&count).
				Error; err != nil || count == 0 {
				ctx.Status(http.StatusNotFound)
				return
			}

			idemKey := ctx.GetHeader("Idempotency-Key")
			if idemKey != "" && !lib.ClaimIdempotencyKey(ctx.Request.Context(), idemKey) {
				ctx.JSON(http.StatusConflict, gin.H{"error": "duplicate request"})
				return
			}

			result, err := common.ChargeBooking(ctx.Request.Context(), params.ID, body.PaymentMethodID, idemKey)
			if err != nil {
				// The charge did not settle, so the key must not block a
				// retry. Stripe dedups the retried intent by the same key.
				if idemKey != "" {
					lib.ReleaseIdempotencyKey(ctx.Request.Context(), idemKey)
				}
				status, msg := chargeErrorStatus(err)
				log.Printf("[Charge] booking %d: %s\n", params.ID, err.Error())
				ctx.JSON(status, gin.H{"error": msg})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"intent_id":     result.IntentID,
				"client_secret": result.ClientSecret,
				"status":        result.Status,
			})
		})
	return g
}

func cancelErrorStatus(err error) int {
	switch {
	case errors.Is(err, common.ErrBookingNotFound):
		return http.StatusNotFound
	case errors.Is(err, common.ErrInvalidTransition), errors.Is(err, common.ErrConcurrentModification):
		return http.StatusConflict
	default:
		return http.StatusUnprocessableEntity
	}
}

func chargeErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, common.ErrBookingNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, common.ErrAlreadySettled), errors.Is(err, common.ErrConcurrentModification):
		return http.StatusConflict, err.Error()
	case errors.Is(err, common.ErrPayoutAccountMissing):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, common.ErrGatewayUnavailable):
		return http.StatusServiceUnavailable, common.ErrGatewayUnavailable.Error()
	}
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) && stripeErr.Type == stripe.ErrorTypeCard {
		return http.StatusPaymentRequired, "card was declined"
	}
	return http.StatusInternalServerError, "could not charge booking"
}
