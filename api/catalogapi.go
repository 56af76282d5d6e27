// Package api cung cấp surface có thể nhúng để điều khiển cataloguer
// từ một tiến trình khác: khởi tạo, chạy thao tác nền, dừng hợp tác
// và đọc thống kê.
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/thep200/github-cataloguer/cfg"
	"github.com/thep200/github-cataloguer/internal/indexer"
	"github.com/thep200/github-cataloguer/pkg/db"
	"github.com/thep200/github-cataloguer/pkg/kafka"
	"github.com/thep200/github-cataloguer/pkg/log"
)

// OpStats chứa thống kê về thao tác đang hoặc vừa chạy.
type OpStats struct {
	Operation string    `json:"operation"`
	IsRunning bool      `json:"isRunning"`
	StartTime time.Time `json:"startTime"`
	Duration  string    `json:"duration"`
	LastError string    `json:"lastError"`
}

// CatalogAPI điều khiển một cataloguer nhúng. Mỗi thời điểm chỉ một
// thao tác được chạy.
type CatalogAPI struct {
	ctx      context.Context
	config   *cfg.Config
	logger   log.Logger
	mysql    *db.Mysql
	indexer  *indexer.Indexer
	producer *kafka.Producer

	mu      sync.RWMutex
	running bool
	stats   *OpStats
}

func NewCatalogAPI() *CatalogAPI {
	return &CatalogAPI{ctx: context.Background()}
}

// Initialize nạp cấu hình và dựng toàn bộ dependency của cataloguer.
func (a *CatalogAPI) Initialize() error {
	var err error

	loader, _ := cfg.NewViperLoader()
	a.config, err = loader.Load()
	if err != nil {
		a.logger, _ = log.NewCslLogger()
		a.logger.Error(a.ctx, "Failed to load configuration: %v", err)
		return err
	}

	a.logger, err = log.NewCslLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}

	a.mysql, err = db.NewMysql(a.config)
	if err != nil {
		a.logger.Error(a.ctx, "Failed to connect to database: %v", err)
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	if a.config.Kafka.Enabled {
		a.producer, err = kafka.NewProducer(a.config, a.logger, a.config.Kafka.Producer.TopicEntry)
		if err != nil {
			a.logger.Error(a.ctx, "Failed to create kafka producer: %v", err)
			// Change feed là tùy chọn, cataloguer vẫn chạy được khi thiếu.
			a.producer = nil
		}
	}

	var producer indexer.Publisher
	if a.producer != nil {
		producer = a.producer
	}
	a.indexer, err = indexer.NewIndexer(a.config, a.logger, a.mysql, producer)
	if err != nil {
		a.logger.Error(a.ctx, "Failed to create indexer: %v", err)
		return fmt.Errorf("failed to create indexer: %w", err)
	}
	return nil
}

// StartOperation chạy một thao tác catalog trong nền.
func (a *CatalogAPI) StartOperation(name string, opts indexer.Options) (string, error) {
	a.mu.RLock()
	running := a.running
	a.mu.RUnlock()
	if running {
		return "An operation is already in progress", nil
	}

	op, err := indexer.ParseOp(name)
	if err != nil {
		return "", err
	}
	if a.indexer == nil {
		return "", fmt.Errorf("catalog api is not initialized")
	}

	a.mu.Lock()
	a.running = true
	a.stats = &OpStats{
		Operation: name,
		IsRunning: true,
		StartTime: time.Now(),
	}
	a.mu.Unlock()

	go func() {
		err := a.indexer.Run(a.ctx, op, opts)

		a.mu.Lock()
		a.running = false
		if a.stats != nil {
			a.stats.IsRunning = false
			if err != nil {
				a.stats.LastError = err.Error()
			}
		}
		a.mu.Unlock()
	}()

	return "Started operation " + name, nil
}

// StopOperation yêu cầu thao tác đang chạy dừng ở ranh giới item kế
// tiếp. Việc dừng có thể mất một lúc vì item hiện tại được xử lý nốt.
func (a *CatalogAPI) StopOperation() (string, error) {
	a.mu.RLock()
	running := a.running
	a.mu.RUnlock()
	if !running {
		return "No operation is in progress", nil
	}

	a.indexer.Stop()
	return "Stopping operation (the current item will be finished first)", nil
}

// GetOpStats trả về thống kê của thao tác gần nhất.
func (a *CatalogAPI) GetOpStats() (*OpStats, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.stats == nil {
		return &OpStats{}, nil
	}
	stats := *a.stats
	if stats.IsRunning {
		stats.Duration = time.Since(stats.StartTime).String()
	}
	return &stats, nil
}

// GetDatabaseStatus kiểm tra trạng thái kết nối cơ sở dữ liệu.
func (a *CatalogAPI) GetDatabaseStatus() (string, error) {
	if a.mysql == nil {
		return "Database not initialized", nil
	}

	gdb, err := a.mysql.Db()
	if err != nil {
		return "Database error: " + err.Error(), err
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return "Database error: " + err.Error(), err
	}

	if err := sqlDB.Ping(); err != nil {
		return "Database not connected: " + err.Error(), err
	}
	return "Database connected", nil
}
