// Package pushredis - push-канал поверх Redis pub/sub: события актора
// публикуются в канал "actor:<id>".
package pushredis

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ignatzorin/techmarket-sync/internal/domain/repository"
	"github.com/ignatzorin/techmarket-sync/internal/goroutine"
	"github.com/ignatzorin/techmarket-sync/internal/logger"
	"github.com/ignatzorin/techmarket-sync/internal/pkg/apperror"
)

const channelPrefix = "actor:"

type Source struct {
	client *redis.Client
}

// NewSource подключается к Redis по URL и проверяет соединение.
func NewSource(redisURL string) (*Source, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return &Source{client: client}, nil
}

func NewSourceWithClient(client *redis.Client) *Source {
	return &Source{client: client}
}

var _ repository.EventSource = (*Source)(nil)

func channel(actorID int64) string {
	return channelPrefix + strconv.FormatInt(actorID, 10)
}

// Subscribe возвращается только после того, как Redis подтвердил подписку:
// события, опубликованные после возврата, не потеряются.
func (s *Source) Subscribe(ctx context.Context, actorID int64) (<-chan repository.Event, error) {
	pubsub := s.client.Subscribe(ctx, channel(actorID))
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, apperror.Wrap(err, apperror.ErrCodeUpstream, "не удалось подписаться на push-канал")
	}

	events := make(chan repository.Event, 64)
	log := logger.ForActor(actorID).WithField("component", "pushredis")
	messages := pubsub.Channel()

	stop := context.AfterFunc(ctx, func() { _ = pubsub.Close() })

	goroutine.SafeGo(func() {
		defer close(events)
		defer stop()
		defer pubsub.Close()

		for msg := range messages {
			var ev repository.Event
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil || ev.Type == "" {
				log.WithField("channel", msg.Channel).Warn("Skipping malformed push message")
				continue
			}
			select {
			case events <- ev:
			case <-ctx.Done():
				return
			}
		}
	})

	return events, nil
}

// Publish отправляет событие актору.
func (s *Source) Publish(ctx context.Context, actorID int64, eventType repository.EventType, data interface{}) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event data: %w", err)
	}
	payload, err := json.Marshal(repository.Event{Type: eventType, Data: raw})
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := s.client.Publish(ctx, channel(actorID), payload).Err(); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (s *Source) Close() error {
	return s.client.Close()
}

func (s *Source) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
