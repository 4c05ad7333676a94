package common

import (
	"bsm/src/lib"
	"bsm/src/lib/aws"
	"bsm/src/types"
	"bsm/src/utils"
	"fmt"
	"log"
	"os"
)

func emailQueue() string {
	q := os.Getenv("EMAIL_QUEUE")
	if q == "" {
		q = "Emails"
	}
	return q
}

// SQSConsumers starts the queue listeners. One consumer per queue; handlers
// run per message in their own goroutine.
func SQSConsumers() {
	queues := map[string]types.Handler{
		utils.WithSuffix(BOOKING_NOTIFICATIONS_QUEUE): BookingNotificationsConsumer,
		utils.WithSuffix(emailQueue()):                EmailsConsumer,
	}
	for queue, handler := range queues {
		consumer := aws.NewSQSConsumer(queue, handler)
		consumer.Listen()
	}
}

// KafkaConsumers mirrors the SQS wiring for the local env.
func KafkaConsumers() {
	lib.KafkaConsume("notifications", utils.WithSuffix(BOOKING_NOTIFICATIONS_QUEUE), func(value []byte) {
		BookingNotificationsConsumer(string(value))
	})
	lib.KafkaConsume("emails", utils.WithSuffix(emailQueue()), func(value []byte) {
		EmailsConsumer(string(value))
	})
}

// SNSSubscribes points platform topics at the API's event endpoint.
func SNSSubscribes() {
	apiHost := os.Getenv("API_HOST")
	if apiHost == "" {
		return
	}
	topics := []string{"PlatformAlerts"}
	for _, topic := range topics {
		sub := aws.NewSNSSubscriber(utils.WithSuffix(topic))
		if sub == nil {
			continue
		}
		arn, err := sub.Subscribe("https", fmt.Sprintf("%s/api/v1/events", apiHost))
		if err != nil {
			log.Printf("Could not subscribe to topic %s: %s\n", topic, err.Error())
			continue
		}
		log.Printf("Subscribed to topic %s: %s\n", topic, *arn)
	}
}
