package main

import (
	"context"

	"github.com/tryfix/errors"
	"github.com/tryfix/kafkaavro"
	"github.com/tryfix/log"
)

const userFeedbackSchema = `{
	"type": "record",
	"name": "UserFeedback",
	"namespace": "com.example.events",
	"fields": [
		{"name": "user_id", "type": "string"},
		{"name": "text", "type": "string"}
	]
}`

const processedFeedbackSchema = `{
	"type": "record",
	"name": "ProcessedFeedback",
	"namespace": "com.example.events",
	"fields": [
		{"name": "user_id", "type": "string"},
		{"name": "sentiment", "type": "string"}
	]
}`

type UserFeedback struct {
	UserID string `avro:"user_id"`
	Text   string `avro:"text"`
}

func (u *UserFeedback) Schema() string { return userFeedbackSchema }

func (u *UserFeedback) Validate() error {
	if u.UserID == `` {
		return errors.New(`user_id is required`)
	}
	return nil
}

type ProcessedFeedback struct {
	UserID    string `avro:"user_id"`
	Sentiment string `avro:"sentiment"`
}

func (p *ProcessedFeedback) Schema() string { return processedFeedbackSchema }

func (p *ProcessedFeedback) Validate() error { return nil }

func main() {
	logger := log.NewLog().Log(log.WithLevel(log.DEBUG))

	client, err := kafkaavro.NewClient(kafkaavro.ConfigFromEnv(), kafkaavro.WithLogger(logger))
	if err != nil {
		log.Fatal(err)
	}

	// register writer schemas so outgoing events carry a schema id
	if err := client.RegisterSchemas(&ProcessedFeedback{}); err != nil {
		log.Fatal(err)
	}

	router := kafkaavro.NewRouter()
	err = router.Bind(func(ctx context.Context, value kafkaavro.Event, key string, headers map[string]string, topic string) ([]kafkaavro.Message, error) {
		feedback := value.(*UserFeedback)
		return []kafkaavro.Message{{
			Topic: `processed-feedback`,
			Key:   key,
			Value: &ProcessedFeedback{UserID: feedback.UserID, Sentiment: `neutral`},
		}}, nil
	}, func() kafkaavro.Event { return &UserFeedback{} })
	if err != nil {
		log.Fatal(err)
	}

	loop, err := client.Consume(context.Background(), router)
	if err != nil {
		log.Fatal(err)
	}

	<-loop.Done()
}
