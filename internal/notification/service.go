package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// LoginProcessedEvent is published after a user's tokens were stored and their inbox snapshot written
type LoginProcessedEvent struct {
	UserID     string    `json:"uid"`
	EmailCount int       `json:"emailCount"`
	FetchedAt  time.Time `json:"fetchedAt"`
}

// Publisher announces processed logins
type Publisher interface {
	PublishLoginProcessed(ctx context.Context, userID string, emailCount int, fetchedAt time.Time) error
	Close() error
}

type Service struct {
	pubsubClient *pubsub.Client
	topic        *pubsub.Topic
	topicName    string
}

// NewService creates a Pub/Sub publisher for topicName. Full resource names
// ("projects/p/topics/t") are accepted.
func NewService(ctx context.Context, projectID, topicName, credentialsFile string, extraOpts ...option.ClientOption) (*Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	opts = append(opts, extraOpts...)

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %v", err)
	}

	if parts := strings.Split(topicName, "/"); len(parts) > 1 {
		topicName = parts[len(parts)-1]
	}

	log.Printf("[PubSub] Publishing login events to topic: %s", topicName)
	return &Service{
		pubsubClient: client,
		topic:        client.Topic(topicName),
		topicName:    topicName,
	}, nil
}

func (s *Service) PublishLoginProcessed(ctx context.Context, userID string, emailCount int, fetchedAt time.Time) error {
	data, err := json.Marshal(LoginProcessedEvent{
		UserID:     userID,
		EmailCount: emailCount,
		FetchedAt:  fetchedAt,
	})
	if err != nil {
		return err
	}

	result := s.topic.Publish(ctx, &pubsub.Message{
		Data:       data,
		Attributes: map[string]string{"type": "login_processed"},
	})
	id, err := result.Get(ctx)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", s.topicName, err)
	}

	log.Printf("[PubSub] Published login event %s for user %s", id, userID)
	return nil
}

func (s *Service) Close() error {
	s.topic.Stop()
	return s.pubsubClient.Close()
}

type noopPublisher struct{}

// NewNoopPublisher returns a Publisher that drops every event, used when Pub/Sub is not configured
func NewNoopPublisher() Publisher {
	return noopPublisher{}
}

func (noopPublisher) PublishLoginProcessed(context.Context, string, int, time.Time) error {
	return nil
}

func (noopPublisher) Close() error {
	return nil
}
