package main

import (
	"bsm/src/db"
	"bsm/src/lib"
	"bsm/src/middlewares"
	"bsm/src/models"
	"bsm/src/types"
	"bsm/src/utils"
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func guestAuthRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	guest := apiv1.Group("/auth")
	guest.Use(middlewares.VerifyIdToken)
	guest.
		POST("/register", func(ctx *gin.Context) {
			var body types.RegisterUserRequestBody
			if err := ctx.ShouldBindBodyWithJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			uid := ctx.GetString("uid")
			db := db.GetDb()
			user := models.User{
				Email: body.Email,
				Name:  body.Name,
				UID:   uid,
			}
			err := db.Transaction(func(tx *gorm.DB) error {
				var count int64
				if err := tx.
					Model(&models.User{}).
					Where(&models.User{Email: body.Email}).
					Count(&count).
					Error; err != nil {
					return err
				}
				if count > 0 {
					return errors.New("user already exists")
				}
				return tx.Create(&user).Error
			})
			if err != nil {
				log.Printf("[AuthRegister] error: %s\n", err.Error())
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			ctx.JSON(http.StatusOK, gin.H{"uid": user.UID})
		}).
		POST("/login", func(ctx *gin.Context) {
			uid := ctx.GetString("uid")
			db := db.GetDb()
			var user models.User
			if err := db.
				Model(&models.User{}).
				Where(&models.User{UID: uid}).
				First(&user).
				Error; err != nil {
				log.Printf("[AuthLogin] error: %s\n", err.Error())
				ctx.Status(http.StatusUnauthorized)
				return
			}
			token, err := generateJWT(user.Email, user.ID, user.Role, user.UID)
			if err != nil {
				log.Printf("[AuthLogin] error signing token: %s\n", err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
			ctx.JSON(http.StatusOK, gin.H{
				"token": token,
			})
		})
	return guest
}

func deviceHandlers(g *gin.RouterGroup) *gin.RouterGroup {
	g.
		POST("/fcm", func(ctx *gin.Context) {
			var body struct {
				Token string `json:"token" binding:"required"`
			}
			if err := ctx.ShouldBindBodyWithJSON(&body); err != nil {
				ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
			userId := ctx.GetUint("id")
			rd := lib.GetRedisClient()
			if rd == nil {
				ctx.Status(http.StatusServiceUnavailable)
				return
			}
			if err := rd.Set(context.Background(), fmt.Sprintf("fcm:%d", userId), body.Token, 30*24*time.Hour).Err(); err != nil {
				log.Printf("Error storing device token: %s\n", err.Error())
				ctx.Status(http.StatusServiceUnavailable)
				return
			}
			ctx.Status(http.StatusNoContent)
		})
	return g
}

func publicRoutes(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.
		GET("/professionals/:slug", func(ctx *gin.Context) {
			var params struct {
				Slug string `uri:"slug" binding:"required"`
			}
			if err := ctx.ShouldBindUri(&params); err != nil {
				ctx.Status(http.StatusBadRequest)
				return
			}
			db := db.GetDb()
			var professional models.Professional
			if err := db.
				Model(&models.Professional{}).
				Where(&models.Professional{Slug: params.Slug, Status: types.PROFESSIONAL_APPROVED}).
				First(&professional).
				Error; err != nil {
				ctx.Status(http.StatusNotFound)
				return
			}
			services, err := utils.GetServicesForProfessional(professional.ID, false)
			if err != nil {
				ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			professional.Services = nil
			ctx.JSON(http.StatusOK, gin.H{"data": professional, "services": services})
		})
	return apiv1
}
