package main

import (
	"bsm/src/common"
	"bsm/src/db"
	"bsm/src/lib"
	"bsm/src/middlewares"
	"bsm/src/models"
	"bsm/src/types"
	"bsm/src/utils"
	"context"
	"errors"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"gorm.io/gorm"
)

func professionalHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/professionals", func(ctx *gin.Context) {
			var body types.CreateProfessionalRequestBody
			if err := ctx.ShouldBindBodyWithJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			if ctx.GetUint("professional") != 0 {
				ctx.JSON(http.StatusConflict, gin.H{"error": "professional profile already exists"})
				return
			}
			id, err := utils.CreateNewProfessional(ctx, &body)
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"id": id})
		}).
		GET("/professionals/me", func(ctx *gin.Context) {
			professionalId := ctx.GetUint("professional")
			if professionalId == 0 {
				ctx.Status(http.StatusNotFound)
				return
			}
			db := db.GetDb()
			var professional models.Professional
			if err := db.
				Model(&models.Professional{}).
				Preload("PayoutAccount").
				Where(&models.Professional{ID: professionalId}).
				First(&professional).
				Error; err != nil {
				ctx.Status(http.StatusNotFound)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": professional})
		}).
		GET("/professionals/me/services", func(ctx *gin.Context) {
			professionalId := ctx.GetUint("professional")
			if professionalId == 0 {
				ctx.Status(http.StatusNotFound)
				return
			}
			services, err := utils.GetServicesForProfessional(professionalId, true)
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": services, "count": len(services)})
		}).
		GET("/professionals/me/totals", func(ctx *gin.Context) {
			professionalId := ctx.GetUint("professional")
			if professionalId == 0 {
				ctx.Status(http.StatusNotFound)
				return
			}
			totals, err := utils.GetSettlementTotals(professionalId)
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": totals})
		}).
		PUT("/professionals/:id/approve", middlewares.AdminOnly, func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			db := db.GetDb()
			res := db.
				Model(&models.Professional{}).
				Where(&models.Professional{ID: params.ID, Status: types.PROFESSIONAL_PENDING}).
				Update("status", types.PROFESSIONAL_APPROVED)
			if res.Error != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": res.Error.Error()})
				return
			}
			if res.RowsAffected == 0 {
				ctx.Status(http.StatusNotFound)
				return
			}
			ctx.Status(http.StatusNoContent)
		})

	payout := g.Group("/payout")
	payout.
		GET("/account", func(ctx *gin.Context) {
			account, err := payoutAccountForContext(ctx)
			if err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			sc := lib.GetStripeClient()
			acc, err := sc.V1Accounts.GetByID(context.Background(), *account.StripeAccountID, nil)
			if err != nil {
				log.Printf("Error retrieving account %s: %s\n", *account.StripeAccountID, err.Error())
				ctx.Status(http.StatusServiceUnavailable)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"data":     account,
				"complete": lib.PayoutAccountComplete(acc),
			})
		}).
		POST("/account_session", func(ctx *gin.Context) {
			account, err := payoutAccountForContext(ctx)
			if err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			secret, err := lib.CreateAccountSession(*account.StripeAccountID)
			if err != nil {
				ctx.Status(http.StatusServiceUnavailable)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"client_secret": secret})
		}).
		POST("/onboarding", func(ctx *gin.Context) {
			account, err := payoutAccountForContext(ctx)
			if err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			sc := lib.GetStripeClient()
			link, err := sc.V1AccountLinks.Create(context.Background(), &stripe.AccountLinkCreateParams{
				Account:    account.StripeAccountID,
				Type:       stripe.String("account_onboarding"),
				ReturnURL:  stripe.String(os.Getenv("APP_HOST") + "/dashboard"),
				RefreshURL: stripe.String(os.Getenv("APP_HOST") + "/callback/account/refresh"),
			})
			if err != nil {
				log.Printf("Error refreshing onboarding link: %s\n", err.Error())
				ctx.Status(http.StatusServiceUnavailable)
				return
			}
			db := db.GetDb()
			db.Model(&models.PayoutAccount{}).
				Where(&models.PayoutAccount{ID: account.ID}).
				Update("onboarding_url", link.URL)
			ctx.JSON(http.StatusOK, gin.H{"url": link.URL})
		})
	return g
}

func payoutAccountForContext(ctx *gin.Context) (*models.PayoutAccount, error) {
	professionalId := ctx.GetUint("professional")
	if professionalId == 0 {
		return nil, errors.New("no professional profile")
	}
	d := db.GetDb()
	var account models.PayoutAccount
	err := d.
		Model(&models.PayoutAccount{}).
		Where(&models.PayoutAccount{ProfessionalID: professionalId}).
		First(&account).
		Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, common.ErrAccountNotFound
		}
		return nil, err
	}
	if account.StripeAccountID == nil {
		return nil, common.ErrAccountNotFound
	}
	return &account, nil
}

func settingsHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	settings := g.Group("/settings")
	settings.Use(middlewares.AdminOnly)
	settings.
		PUT("", func(ctx *gin.Context) {
			var body types.CreateSettingRequestBody
			if err := ctx.ShouldBindBodyWithJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			d := db.GetDb()
			setting := models.Setting{
				SettingKey:   body.Key,
				Group:        body.Group,
				SettingValue: types.JSONBAny{Inner: body.Value},
			}
			err := d.Transaction(func(tx *gorm.DB) error {
				var existing models.Setting
				err := tx.
					Model(&models.Setting{}).
					Where(&models.Setting{SettingKey: body.Key, Group: body.Group}).
					First(&existing).
					Error
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return tx.Create(&setting).Error
				}
				if err != nil {
					return err
				}
				return tx.
					Model(&models.Setting{}).
					Where(&models.Setting{ID: existing.ID}).
					Update("setting_value", types.JSONBAny{Inner: body.Value}).
					Error
			})
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		}).
		GET("/totals", func(ctx *gin.Context) {
			totals, err := utils.GetSettlementTotals(0)
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": totals})
		})
	return settings
}
