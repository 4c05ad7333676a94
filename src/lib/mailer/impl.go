package mailer

import (
	"bsm/src/lib"
	"bsm/src/types"
	"bsm/src/utils"
	"encoding/json"
	"fmt"
	"os"
)

// NewMailerMessage queues an outbound email. The local env goes through
// Kafka; everything else goes to SQS where the Emails consumer delivers it.
func NewMailerMessage(input *lib.SendMailInput) error {
	emailQueue := os.Getenv("EMAIL_QUEUE")
	if emailQueue == "" {
		emailQueue = "Emails"
	}
	apiEnv := os.Getenv("API_ENV")
	emailBody := &types.JSONB{
		"from":      input.From,
		"from-name": input.FromName,
		"to":        input.To,
		"reply-to":  input.ReplyTo,
		"body":      input.Body,
		"html":      input.Html,
		"subject":   input.Subject,
	}
	if apiEnv == string(types.Local) {
		if err := lib.KafkaProduceMessage("emails", utils.WithSuffix(emailQueue), *emailBody); err != nil {
			return fmt.Errorf("error sending message to queue: %s", err.Error())
		}
		return nil
	}
	body, err := json.Marshal(&emailBody)
	if err != nil {
		return err
	}
	if err := lib.SQSProduceMessage(utils.WithSuffix(emailQueue), string(body)); err != nil {
		return fmt.Errorf("error sending message to queue: %s", err.Error())
	}
	return nil
}
