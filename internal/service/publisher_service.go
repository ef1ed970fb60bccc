package service

import (
	"encoding/json"

	"memory-dashboard-be/internal/dto"
	"memory-dashboard-be/internal/pkg/logger"
	"memory-dashboard-be/pkg/memstore"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// IPersistPublisher enqueues best-effort persistence work. Publishing never
// blocks the interactive flow and publish failures are logged, not surfaced.
type IPersistPublisher interface {
	EnqueueAppend(userID, sessionID string, msg memstore.AppendMessageRequest)
}

type persistPublisher struct {
	pubSub *gochannel.GoChannel
	topic  string
	logger logger.ILogger
}

func NewPersistPublisher(pubSub *gochannel.GoChannel, topic string, log logger.ILogger) IPersistPublisher {
	return &persistPublisher{
		pubSub: pubSub,
		topic:  topic,
		logger: log,
	}
}

func (p *persistPublisher) EnqueueAppend(userID, sessionID string, msg memstore.AppendMessageRequest) {
	payload, err := json.Marshal(dto.PersistMessageJob{
		UserID:    userID,
		SessionID: sessionID,
		Message:   msg,
	})
	if err != nil {
		p.logger.Error("PersistPublisher", "Failed to marshal persist job", map[string]interface{}{"error": err.Error()})
		return
	}

	if err := p.pubSub.Publish(p.topic, message.NewMessage(watermill.NewUUID(), payload)); err != nil {
		p.logger.Error("PersistPublisher", "Failed to publish persist job", map[string]interface{}{
			"error":      err.Error(),
			"session_id": sessionID,
		})
	}
}
