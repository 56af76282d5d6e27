// Consumer đọc change feed của catalog từ Kafka và ghi vào một bản
// sao MySQL. Message được gom theo lô để tận dụng batch upsert.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/thep200/github-cataloguer/cfg"
	"github.com/thep200/github-cataloguer/internal/model"
	"github.com/thep200/github-cataloguer/pkg/db"
	"github.com/thep200/github-cataloguer/pkg/kafka"
	"github.com/thep200/github-cataloguer/pkg/log"
)

func main() {
	loader, _ := cfg.NewViperLoader()
	config, err := loader.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, _ := log.NewCslLogger()

	mysql, err := db.NewMysql(config)
	if err != nil {
		logger.Error(context.Background(), "Failed to connect to database: %v", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := model.NewStore(config, logger, mysql)
	if err != nil {
		logger.Error(ctx, "Failed to create store: %v", err)
		os.Exit(1)
	}
	if err := store.Migrate(); err != nil {
		logger.Error(ctx, "Failed to migrate replica tables: %v", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	if err := startEntryConsumer(ctx, config, logger, store); err != nil {
		logger.Error(ctx, "Failed to start consumer: %v", err)
		os.Exit(1)
	}

	<-sigCh
	logger.Info(ctx, "Received shutdown signal, gracefully shutting down...")
	cancel()
}

func startEntryConsumer(ctx context.Context, config *cfg.Config, logger log.Logger, store *model.Store) error {
	consumer, err := kafka.NewConsumer(config, logger, config.Kafka.Producer.TopicEntry, "catalog-entry-consumer-group")
	if err != nil {
		return err
	}

	batchSize := 100
	batchTimeout := 5 * time.Second
	messages := make(chan model.EntryMessage, batchSize*2)

	go processBatchedEntries(ctx, messages, batchSize, batchTimeout, logger, store)

	consumer.RegisterHandler("entry", func(data []byte) error {
		var msg model.EntryMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return fmt.Errorf("failed to unmarshal entry message: %w", err)
		}
		select {
		case messages <- msg:
		case <-ctx.Done():
			return ctx.Err()
		}
		return nil
	})

	go func() {
		if err := consumer.Start(ctx); err != nil {
			logger.Error(ctx, "Entry consumer error: %v", err)
		}
	}()

	logger.Info(ctx, "Catalog entry consumer started successfully")
	return nil
}

// processBatchedEntries gom message thành lô theo kích thước hoặc
// thời gian, tùy cái nào tới trước.
func processBatchedEntries(ctx context.Context, messages <-chan model.EntryMessage, batchSize int,
	batchTimeout time.Duration, logger log.Logger, store *model.Store) {

	var batch []model.EntryMessage
	timer := time.NewTimer(batchTimeout)

	for {
		select {
		case <-ctx.Done():
			if len(batch) > 0 {
				flushBatch(context.Background(), batch, logger, store)
			}
			return

		case msg := <-messages:
			batch = append(batch, msg)
			if len(batch) >= batchSize {
				flushBatch(ctx, batch, logger, store)
				batch = nil
				timer.Reset(batchTimeout)
			}

		case <-timer.C:
			if len(batch) > 0 {
				flushBatch(ctx, batch, logger, store)
				batch = nil
			}
			timer.Reset(batchTimeout)
		}
	}
}

// flushBatch chuyển một lô message thành entry rồi ghi bằng một
// transaction. Message "delete" được áp riêng vì batch upsert không
// đụng tới cờ xoá.
func flushBatch(ctx context.Context, batch []model.EntryMessage, logger log.Logger, store *model.Store) {
	if len(batch) == 0 {
		return
	}
	logger.Info(ctx, "Processing batch of %d catalog entries", len(batch))

	var upserts []model.Entry
	var deleted []int64
	for _, msg := range batch {
		if msg.Operation == "delete" {
			deleted = append(deleted, msg.ID)
			continue
		}
		upserts = append(upserts, model.Entry{
			ID:            msg.ID,
			Owner:         msg.Owner,
			Name:          msg.Name,
			Description:   msg.Description,
			Homepage:      msg.Homepage,
			DefaultBranch: msg.DefaultBranch,
		})
	}

	if len(upserts) > 0 {
		if err := store.UpsertBatch(ctx, upserts); err != nil {
			logger.Error(ctx, "Failed to save batch of entries: %v", err)
		} else {
			logger.Info(ctx, "Successfully saved batch of %d entries", len(upserts))
		}
	}
	for _, id := range deleted {
		if err := store.UpdateFields(ctx, id, map[string]interface{}{"is_deleted": true}); err != nil {
			logger.Error(ctx, "Failed to mark entry %d as deleted: %v", id, err)
		}
	}
}
