package boot

import (
	"bsm/src/common"
	"bsm/src/db"
	"bsm/src/lib"
	"bsm/src/models"
	"bsm/src/types"
	"context"
	"errors"
	"io"
	"log"
	"os"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"gorm.io/gorm"
)

func InitDb() *gorm.DB {
	db := db.GetDb()

	err := db.AutoMigrate(
		&models.User{},
		&models.Professional{},
		&models.PayoutAccount{},
		&models.Service{},
		&models.Booking{},
		&models.Transaction{},
		&models.Notification{},
		&models.Setting{},
	)
	if err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}

	return db
}

// InitBroker wires the notification consumers for the current env.
func InitBroker() {
	apiEnv := os.Getenv("API_ENV")
	if apiEnv == string(types.Local) {
		go common.KafkaConsumers()
		return
	}
	go common.SQSConsumers()
	go common.SNSSubscribes()
}

// InitScheduler starts the background jobs. Pending bookings left unsettled
// for a day are swept back to canceled every hour.
func InitScheduler() {
	_, err := lib.CreateCronJob(func() {
		if _, err := common.ExpireStaleBookings(24 * time.Hour); err != nil {
			log.Printf("Error expiring stale bookings: %s\n", err.Error())
		}
	}, time.Hour)
	if err != nil {
		log.Printf("Error scheduling stale booking sweep: %s\n", err.Error())
		return
	}
	sched, err := lib.GetScheduler()
	if err != nil {
		return
	}
	sched.Start()
}

func StopScheduler() {
	sched, err := lib.GetScheduler()
	if err != nil {
		return
	}
	if err := sched.Shutdown(); err != nil {
		log.Printf("Error stopping Scheduler: %s\n", err.Error())
	}
}

func DownloadSDKFileFromS3() {
	filename := "admin-sdk-credentials.json"
	secretsDir := os.Getenv("SECRETS_DIR")
	if secretsDir == "" {
		secretsDir = "/secrets"
	}
	sdkFilePath := path.Join(secretsDir, filename)
	_, err := os.Stat(sdkFilePath)
	if errors.Is(err, os.ErrNotExist) {
		log.Println("File not found. Downloading...")
		client := lib.AWSGetS3Client()
		secretsBucket := os.Getenv("S3_SECRETS_BUCKET")
		object, err := client.GetObject(context.Background(), &s3.GetObjectInput{
			Bucket: aws.String(secretsBucket),
			Key:    aws.String(filename),
		})
		if err != nil {
			log.Printf("[S3] Error retrieving object: %s\n", err.Error())
			return
		}
		defer object.Body.Close()
		file, err := os.Create(sdkFilePath)
		if err != nil {
			log.Printf("Could not create file %s: %s\n", filename, err.Error())
			return
		}
		defer file.Close()
		body, err := io.ReadAll(object.Body)
		if err != nil {
			log.Printf("Couldn't read object body from %s: %s\n", filename, err.Error())
			return
		}
		if _, err := file.Write(body); err != nil {
			log.Printf("Error writing to file: %s\n", err.Error())
			return
		}
		log.Println("File has been written")
		return
	}
	log.Println("File exists!")
}
