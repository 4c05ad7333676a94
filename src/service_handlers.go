package main

import (
	"bsm/src/db"
	"bsm/src/models"
	"bsm/src/types"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func serviceHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/services", func(ctx *gin.Context) {
			var body types.CreateServiceRequestBody
			if err := ctx.ShouldBindBodyWithJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			professionalId := ctx.GetUint("professional")
			if professionalId == 0 {
				ctx.JSON(http.StatusForbidden, gin.H{"error": "no professional profile"})
				return
			}
			currency := body.Currency
			if currency == "" {
				currency = "usd"
			}
			service := models.Service{
				ProfessionalID: professionalId,
				Name:           body.Name,
				Description:    body.Description,
				Price:          body.Price,
				Duration:       body.Duration,
				Currency:       currency,
			}
			db := db.GetDb()
			if err := db.Create(&service).Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusCreated, gin.H{"id": service.ID})
		}).
		GET("/services/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			db := db.GetDb()
			var service models.Service
			if err := db.
				Model(&models.Service{}).
				Where(&models.Service{ID: params.ID}).
				First(&service).
				Error; err != nil {
				ctx.Status(http.StatusNotFound)
				return
			}
			if service.Status != types.SERVICE_ACTIVE && service.ProfessionalID != ctx.GetUint("professional") {
				ctx.Status(http.StatusNotFound)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": service})
		}).
		PATCH("/services/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			var body types.UpdateServiceRequestBody
			if err := ctx.ShouldBindBodyWithJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			professionalId := ctx.GetUint("professional")
			updates := map[string]any{}
			if body.Name != nil {
				updates["name"] = *body.Name
			}
			if body.Description != nil {
				updates["description"] = *body.Description
			}
			if body.Price != nil {
				updates["price"] = *body.Price
			}
			if body.Duration != nil {
				updates["duration"] = *body.Duration
			}
			if len(updates) == 0 {
				ctx.Status(http.StatusNoContent)
				return
			}
			db := db.GetDb()
			res := db.
				Model(&models.Service{}).
				Where(&models.Service{ID: params.ID, ProfessionalID: professionalId}).
				Updates(updates)
			if res.Error != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": res.Error.Error()})
				return
			}
			if res.RowsAffected == 0 {
				ctx.Status(http.StatusNotFound)
				return
			}
			ctx.Status(http.StatusNoContent)
		}).
		DELETE("/services/:id", func(ctx *gin.Context) {
			var params types.SimpleRequestParams
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			professionalId := ctx.GetUint("professional")
			db := db.GetDb()
			// Archive instead of delete so past bookings keep their service.
			err := db.Transaction(func(tx *gorm.DB) error {
				res := tx.
					Model(&models.Service{}).
					Where(&models.Service{ID: params.ID, ProfessionalID: professionalId}).
					Update("status", types.SERVICE_ARCHIVED)
				if res.Error != nil {
					return res.Error
				}
				if res.RowsAffected == 0 {
					return errors.New("service not found")
				}
				return nil
			})
			if err != nil {
				ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
				return
			}
			ctx.Status(http.StatusNoContent)
		})
	return g
}
