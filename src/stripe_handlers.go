package main

import (
	"bsm/src/common"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

// stripeWebhookRoute is the reconciliation entrypoint. The signed event body
// is the source of truth; handler errors return 500 so the processor retries,
// everything else acks with 200 even when there is nothing to apply.
func stripeWebhookRoute(g *gin.Engine) *gin.RouterGroup {
	apiv1 := apiv1Group(g)
	apiv1.POST("/webhook/stripe", func(ctx *gin.Context) {
		payload, err := io.ReadAll(ctx.Request.Body)
		if err != nil {
			log.Printf("Error reading request body: %s\n", err.Error())
			ctx.Status(http.StatusServiceUnavailable)
			return
		}
		whsecret := os.Getenv("STRIPE_WEBHOOK_SECRET")
		event, err := webhook.ConstructEvent(payload, ctx.GetHeader("Stripe-Signature"), whsecret)
		if err != nil {
			log.Printf("Error verifying webhook signature: %s\n", err.Error())
			ctx.Status(http.StatusBadRequest)
			return
		}
		log.Printf("[StripeEvent] %s\n", event.Type)
		switch event.Type {
		case "payment_intent.succeeded":
			var pi stripe.PaymentIntent
			if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
				log.Printf("[Stripe] Error parsing PaymentIntent: %s\n", err.Error())
				break
			}
			if err := common.ApplyPaymentIntentSucceeded(&pi); err != nil {
				log.Printf("Error applying succeeded intent %s: %s\n", pi.ID, err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
		case "payment_intent.payment_failed":
			var pi stripe.PaymentIntent
			if err := json.Unmarshal(event.Data.Raw, &pi); err != nil {
				log.Printf("[Stripe] Error parsing PaymentIntent: %s\n", err.Error())
				break
			}
			if err := common.ApplyPaymentIntentFailed(&pi); err != nil {
				log.Printf("Error applying failed intent %s: %s\n", pi.ID, err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
		case "account.updated":
			var acc stripe.Account
			if err := json.Unmarshal(event.Data.Raw, &acc); err != nil {
				log.Printf("[Stripe] Error parsing Account: %s\n", err.Error())
				break
			}
			if err := common.ApplyAccountUpdated(&acc); err != nil {
				log.Printf("Error applying account update %s: %s\n", acc.ID, err.Error())
				ctx.Status(http.StatusInternalServerError)
				return
			}
		default:
			log.Printf("Unhandled event type: %s\n", event.Type)
		}
		ctx.Status(http.StatusOK)
	})
	return apiv1
}
