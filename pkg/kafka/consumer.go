package kafka

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/thep200/github-cataloguer/cfg"
	"github.com/thep200/github-cataloguer/pkg/log"
)

// Consumer đọc change feed của catalog từ một topic Kafka và chuyển
// message cho handler đã đăng ký theo key.
type Consumer struct {
	Config   *cfg.Config
	Logger   log.Logger
	reader   *kafka.Reader
	handlers map[string]func([]byte) error
}

func NewConsumer(config *cfg.Config, logger log.Logger, topic, groupID string) (*Consumer, error) {
	if len(config.Kafka.Brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        config.Kafka.Brokers,
		Topic:          topic,
		GroupID:        groupID,
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        time.Second,
		StartOffset:    kafka.FirstOffset,
		RetentionTime:  7 * 24 * time.Hour,
		CommitInterval: time.Second,
	})

	return &Consumer{
		Config:   config,
		Logger:   logger,
		reader:   reader,
		handlers: make(map[string]func([]byte) error),
	}, nil
}

// RegisterHandler đăng ký handler cho một message key.
func (c *Consumer) RegisterHandler(key string, handler func([]byte) error) {
	c.handlers[key] = handler
}

// Start đọc message cho tới khi context bị hủy.
// Lỗi xử lý một message không dừng consumer, chỉ ghi log.
func (c *Consumer) Start(ctx context.Context) error {
	c.Logger.Info(ctx, "Starting kafka consumer for topic: %s", c.reader.Config().Topic)

	for {
		select {
		case <-ctx.Done():
			return c.reader.Close()
		default:
			message, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
					return nil
				}
				c.Logger.Error(ctx, "Error reading message: %v", err)
				continue
			}

			key := string(message.Key)
			handler, exists := c.handlers[key]
			if !exists {
				c.Logger.Warn(ctx, "No handler registered for message with key: %s", key)
				continue
			}
			if err := handler(message.Value); err != nil {
				c.Logger.Error(ctx, "Error handling message with key %s: %v", key, err)
			}
		}
	}
}

func (c *Consumer) Close() error {
	return c.reader.Close()
}
