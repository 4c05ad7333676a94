package lib

import (
	"encoding/json"
	"log"
	"os"

	"github.com/confluentinc/confluent-kafka-go/kafka"
)

// Kafka carries notification traffic in the local env where no SQS queues
// exist; production uses SQS (see common.DispatchBookingNotification).

func KafkaProduceMessage(clientId string, topic string, payload map[string]any) error {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers": os.Getenv("KAFKA_BROKER"),
		"client.id":         clientId,
		"acks":              "all",
	})
	if err != nil {
		log.Printf("Error creating producer: %s\n", err.Error())
		return err
	}
	defer p.Close()

	value, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error serializing payload: %s\n", err.Error())
		return err
	}

	err = p.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &topic, Partition: kafka.PartitionAny},
		Value:          value,
	}, nil)
	if err != nil {
		log.Printf("Error producing message to %s: %s\n", topic, err.Error())
		return err
	}
	p.Flush(5000)
	return nil
}

func KafkaConsume(groupId string, topic string, handler func(value []byte)) {
	consumer, err := kafka.NewConsumer(&kafka.ConfigMap{
		"bootstrap.servers": os.Getenv("KAFKA_BROKER"),
		"group.id":          groupId,
		"auto.offset.reset": "smallest",
		"retry.backoff.ms":  100,
	})
	if err != nil {
		log.Printf("Error creating consumer: %s\n", err.Error())
		return
	}
	if err := consumer.SubscribeTopics([]string{topic}, nil); err != nil {
		log.Printf("Error subscribing to %s: %s\n", topic, err.Error())
		return
	}
	go func() {
		log.Printf("[%s] waiting for messages...\n", topic)
		run := true
		for run {
			ev := consumer.Poll(100)
			switch e := ev.(type) {
			case *kafka.Message:
				handler(e.Value)
			case kafka.Error:
				log.Printf("[%s] consumer error: %v\n", topic, e)
				run = false
			}
		}
		consumer.Close()
	}()
}
