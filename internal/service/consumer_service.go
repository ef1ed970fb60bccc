package service

import (
	"context"
	"encoding/json"
	"time"

	"memory-dashboard-be/internal/dto"
	"memory-dashboard-be/internal/pkg/logger"
	"memory-dashboard-be/pkg/memstore"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const persistTimeout = 15 * time.Second

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains persistence jobs from the event bus and writes them
// to the remote store. Persistence is best-effort: failures are logged and the
// job is acked regardless, because retrying against a store that reported
// itself unavailable only delays the queue. The conversation already holds
// the message locally either way.
type consumerService struct {
	pubSub *gochannel.GoChannel
	topic  string
	store  memstore.Store
	logger logger.ILogger
}

func NewConsumerService(
	pubSub *gochannel.GoChannel,
	topic string,
	store memstore.Store,
	log logger.ILogger,
) IConsumerService {
	return &consumerService{
		pubSub: pubSub,
		topic:  topic,
		store:  store,
		logger: log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topic)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			cs.processMessage(msg)
		}
	}()

	return nil
}

func (cs *consumerService) processMessage(msg *message.Message) {
	defer msg.Ack()

	var job dto.PersistMessageJob
	if err := json.Unmarshal(msg.Payload, &job); err != nil {
		cs.logger.Error("PersistConsumer", "Failed to unmarshal persist job", map[string]interface{}{"error": err.Error()})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := cs.store.AppendMessage(ctx, job.UserID, job.SessionID, job.Message); err != nil {
		cs.logger.Warn("PersistConsumer", "Best-effort persist failed", map[string]interface{}{
			"error":      err.Error(),
			"session_id": job.SessionID,
			"role":       job.Message.Role,
		})
		return
	}

	cs.logger.Debug("PersistConsumer", "Message persisted", map[string]interface{}{
		"session_id": job.SessionID,
		"role":       job.Message.Role,
	})
}
