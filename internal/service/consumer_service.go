package service

import (
	"context"
	"encoding/json"

	"doc-qa-be/internal/dto"
	"doc-qa-be/internal/pkg/logger"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

type IConsumerService interface {
	Consume(ctx context.Context) error
}

// consumerService drains the document event topic. Today it records an
// audit trail of terminal pipeline states; downstream consumers (webhooks,
// notifications) would hang off the same subscription.
type consumerService struct {
	pubSub    *gochannel.GoChannel
	topicName string
	logger    logger.ILogger
}

func NewConsumerService(pubSub *gochannel.GoChannel, topicName string, log logger.ILogger) IConsumerService {
	return &consumerService{
		pubSub:    pubSub,
		topicName: topicName,
		logger:    log,
	}
}

func (cs *consumerService) Consume(ctx context.Context) error {
	messages, err := cs.pubSub.Subscribe(ctx, cs.topicName)
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
	var payload dto.DocumentEventMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		cs.logger.Error("consumer_service", "Failed to unmarshal document event", map[string]interface{}{
			"message_id": msg.UUID,
			"error":      err.Error(),
		})
		// Ack malformed messages to prevent infinite redelivery
		msg.Ack()
		return
	}

	switch payload.Type {
	case EventDocumentCompleted:
		cs.logger.Info("consumer_service", "Document completed", map[string]interface{}{
			"document_id": payload.DocumentId,
			"file_name":   payload.FileName,
			"chunks":      payload.ChunkCount,
		})
	case EventDocumentFailed:
		cs.logger.Warn("consumer_service", "Document failed", map[string]interface{}{
			"document_id":  payload.DocumentId,
			"file_name":    payload.FileName,
			"failed_stage": payload.FailedStage,
			"error":        payload.Error,
		})
	default:
		cs.logger.Warn("consumer_service", "Unknown document event type", map[string]interface{}{
			"message_id": msg.UUID,
			"type":       payload.Type,
		})
	}

	msg.Ack()
}
