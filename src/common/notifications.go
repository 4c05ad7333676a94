package common

import (
	"bsm/src/db"
	"bsm/src/lib"
	"bsm/src/lib/aws"
	"bsm/src/lib/mailer"
	"bsm/src/models"
	"bsm/src/types"
	"bsm/src/utils"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"firebase.google.com/go/v4/messaging"
	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	sestypes "github.com/aws/aws-sdk-go-v2/service/ses/types"
	"github.com/tidwall/gjson"
)

const BOOKING_NOTIFICATIONS_QUEUE = "BookingNotifications"

// dispatchNotification Replace the dispatcher in tests
var dispatchNotification = DispatchBookingNotification

// DispatchBookingNotification queues a booking lifecycle event for the
// notification consumers. Delivery is best effort and never blocks or fails
// settlement; every error ends at the log.
func DispatchBookingNotification(bookingId uint, event string) {
	d := db.GetDb()
	var booking models.Booking
	err := d.
		Model(&models.Booking{}).
		Preload("Client").
		Preload("Professional").
		Preload("Service").
		Where(&models.Booking{ID: bookingId}).
		First(&booking).
		Error
	if err != nil {
		log.Printf("[Notifications] could not load booking %d: %s\n", bookingId, err.Error())
		return
	}
	payload := types.JSONB{
		"event":           event,
		"booking_id":      booking.ID,
		"client_id":       booking.ClientID,
		"professional_id": booking.ProfessionalID,
		"status":          booking.Status,
		"service":         booking.Service.Name,
		"location":        booking.Location,
		"scheduled_at":    booking.ScheduledAt.Format(time.RFC3339),
		"total":           booking.Total,
	}
	apiEnv := os.Getenv("API_ENV")
	if apiEnv == string(types.Local) {
		if err := lib.KafkaProduceMessage("notifications", utils.WithSuffix(BOOKING_NOTIFICATIONS_QUEUE), payload); err != nil {
			log.Printf("[Notifications] kafka produce failed: %s\n", err.Error())
		}
		return
	}
	body, err := json.Marshal(&payload)
	if err != nil {
		log.Printf("[Notifications] could not serialize payload: %s\n", err.Error())
		return
	}
	if err := lib.SQSProduceMessage(utils.WithSuffix(BOOKING_NOTIFICATIONS_QUEUE), string(body)); err != nil {
		log.Printf("[Notifications] sqs produce failed: %s\n", err.Error())
	}
}

// BookingNotificationsConsumer fans one booking event out to email, push, the
// professional's webhook and the in-app notifications table.
func BookingNotificationsConsumer(payload string) {
	event := gjson.Get(payload, "event").String()
	bookingId := uint(gjson.Get(payload, "booking_id").Uint())
	log.Printf("[%s] processing %s for booking %d\n", BOOKING_NOTIFICATIONS_QUEUE, event, bookingId)

	d := db.GetDb()
	var booking models.Booking
	err := d.
		Model(&models.Booking{}).
		Preload("Client").
		Preload("Professional").
		Preload("Service").
		Where(&models.Booking{ID: bookingId}).
		First(&booking).
		Error
	if err != nil {
		log.Printf("[%s] could not load booking %d: %s\n", BOOKING_NOTIFICATIONS_QUEUE, bookingId, err.Error())
		return
	}

	title, body := bookingNotificationCopy(event, &booking)

	if booking.Client != nil && booking.Client.Email != "" {
		if err := mailer.NewMailerMessage(&lib.SendMailInput{
			From:     os.Getenv("EMAIL_SENDER"),
			FromName: os.Getenv("EMAIL_SENDER_NAME"),
			To:       []string{booking.Client.Email},
			Subject:  title,
			Body:     body,
		}); err != nil {
			log.Printf("[%s] could not queue client email: %s\n", BOOKING_NOTIFICATIONS_QUEUE, err.Error())
		}
		go SendPushNotification(booking.ClientID, title, body)
	}
	if booking.Professional != nil {
		if booking.Professional.ContactEmail != "" {
			if err := mailer.NewMailerMessage(&lib.SendMailInput{
				From:     os.Getenv("EMAIL_SENDER"),
				FromName: os.Getenv("EMAIL_SENDER_NAME"),
				To:       []string{booking.Professional.ContactEmail},
				Subject:  title,
				Body:     body,
			}); err != nil {
				log.Printf("[%s] could not queue professional email: %s\n", BOOKING_NOTIFICATIONS_QUEUE, err.Error())
			}
		}
		if booking.Professional.WebhookURL != nil {
			go postProfessionalWebhook(*booking.Professional.WebhookURL, payload)
		}
	}

	notification := models.Notification{
		ReferenceSource: "bookings",
		ReferenceType:   "booking",
		ReferenceValue:  fmt.Sprintf("%d", booking.ID),
		Title:           title,
		Description:     &body,
		Type:            event,
	}
	if err := d.Create(&notification).Error; err != nil {
		log.Printf("[%s] could not record notification: %s\n", BOOKING_NOTIFICATIONS_QUEUE, err.Error())
	}

	if event == "booking.confirmed" {
		duration := time.Hour
		if booking.Service != nil && booking.Service.Duration > 0 {
			duration = time.Duration(booking.Service.Duration) * time.Minute
		}
		summary := fmt.Sprintf("%s with %s", booking.Service.Name, booking.Professional.Name)
		if _, err := lib.GAPICreateAppointmentEvent(summary, booking.Location, booking.ScheduledAt, duration); err != nil {
			log.Printf("[%s] could not create calendar event: %s\n", BOOKING_NOTIFICATIONS_QUEUE, err.Error())
		}
	}
}

func bookingNotificationCopy(event string, booking *models.Booking) (string, string) {
	when := booking.ScheduledAt.Format("Mon, 02 Jan 2006 15:04")
	switch event {
	case "booking.confirmed":
		return "Booking confirmed",
			fmt.Sprintf("Your %s appointment on %s at %s is confirmed.", booking.Service.Name, when, booking.Location)
	case "booking.payment_failed":
		return "Payment failed",
			fmt.Sprintf("We could not collect payment for your %s appointment on %s. Please try another payment method.", booking.Service.Name, when)
	case "booking.canceled":
		return "Booking canceled",
			fmt.Sprintf("Your %s appointment on %s was canceled.", booking.Service.Name, when)
	default:
		return "Booking update",
			fmt.Sprintf("Your %s appointment on %s was updated.", booking.Service.Name, when)
	}
}

// SendPushNotification delivers an FCM push to the user's registered device
// token, if one was registered via the devices endpoint.
func SendPushNotification(userId uint, title string, body string) {
	rd := lib.GetRedisClient()
	if rd == nil {
		return
	}
	token, err := rd.Get(context.Background(), fmt.Sprintf("fcm:%d", userId)).Result()
	if err != nil || token == "" {
		return
	}
	msg, err := lib.GetFirebaseMessaging()
	if err != nil {
		log.Printf("[FCM] messaging unavailable: %s\n", err.Error())
		return
	}
	_, err = msg.Send(context.Background(), &messaging.Message{
		Token: token,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
	})
	if err != nil {
		log.Printf("[FCM] could not send push to user %d: %s\n", userId, err.Error())
	}
}

func postProfessionalWebhook(url string, payload string) {
	client := &http.Client{Timeout: 10 * time.Second}
	res, err := client.Post(url, "application/json", bytes.NewBufferString(payload))
	if err != nil {
		log.Printf("[Notifications] webhook POST to %s failed: %s\n", url, err.Error())
		return
	}
	defer res.Body.Close()
	if res.StatusCode >= 300 {
		log.Printf("[Notifications] webhook POST to %s returned %d\n", url, res.StatusCode)
	}
}

// EmailsConsumer delivers queued emails. Production goes through SES, every
// other env through SMTP so local stacks work against mailpit.
func EmailsConsumer(payload string) {
	input := &lib.SendMailInput{
		From:     gjson.Get(payload, "from").String(),
		FromName: gjson.Get(payload, "from-name").String(),
		ReplyTo:  gjson.Get(payload, "reply-to").String(),
		Subject:  gjson.Get(payload, "subject").String(),
		Body:     gjson.Get(payload, "body").String(),
		Html:     gjson.Get(payload, "html").Bool(),
	}
	for _, to := range gjson.Get(payload, "to").Array() {
		input.To = append(input.To, to.String())
	}
	if len(input.To) == 0 {
		log.Println("[Emails] message has no recipients, dropping")
		return
	}
	if utils.IsProd() {
		aws.SESSendMessage(&input.From, &sestypes.Destination{
			ToAddresses: input.To,
		}, &sestypes.Message{
			Subject: &sestypes.Content{Data: awssdk.String(input.Subject)},
			Body: &sestypes.Body{
				Text: &sestypes.Content{Data: awssdk.String(input.Body)},
			},
		})
		return
	}
	if err := lib.SendMail(input); err != nil {
		log.Printf("[Emails] could not deliver message: %s\n", err.Error())
	}
}
