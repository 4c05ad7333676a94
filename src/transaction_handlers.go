package main

import (
	"bsm/src/db"
	"bsm/src/models"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func transactionHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		GET("/transactions", func(ctx *gin.Context) {
			professionalId := ctx.GetUint("professional")
			if professionalId == 0 {
				ctx.Status(http.StatusNotFound)
				return
			}
			db := db.GetDb()
			var transactions []models.Transaction
			if err := db.
				Model(&models.Transaction{}).
				Where(&models.Transaction{ProfessionalID: professionalId}).
				Order("created_at DESC").
				Limit(50).
				Find(&transactions).
				Error; err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": transactions, "count": len(transactions)})
		}).
		GET("/transactions/:id", func(ctx *gin.Context) {
			var params struct {
				ID string `uri:"id" binding:"required"`
			}
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			id, err := uuid.Parse(params.ID)
			if err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			db := db.GetDb()
			var transaction models.Transaction
			if err := db.
				Model(&models.Transaction{}).
				Preload("Booking").
				Where(&models.Transaction{ID: id}).
				First(&transaction).
				Error; err != nil {
				ctx.Status(http.StatusNotFound)
				return
			}
			professionalId := ctx.GetUint("professional")
			userId := ctx.GetUint("id")
			role := ctx.GetString("role")
			if transaction.ProfessionalID != professionalId && transaction.ClientID != userId && role != "admin" {
				ctx.Status(http.StatusNotFound)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"data": transaction})
		})
	return g
}
