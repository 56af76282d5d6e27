package log

import (
	"context"
	"log"
)

type CslLogger struct{}

func NewCslLogger() (*CslLogger, error) {
	return &CslLogger{}, nil
}

func (l *CslLogger) Info(ctx context.Context, format string, args ...interface{}) {
	log.Printf("[INFO] "+format, args...)
}

func (l *CslLogger) Alert(ctx context.Context, format string, args ...interface{}) {
	log.Printf("[ALERT] "+format, args...)
}

func (l *CslLogger) Error(ctx context.Context, format string, args ...interface{}) {
	log.Printf("[ERROR] "+format, args...)
}

func (l *CslLogger) Warn(ctx context.Context, format string, args ...interface{}) {
	log.Printf("[WARN] "+format, args...)
}

func (l *CslLogger) Debug(ctx context.Context, format string, args ...interface{}) {
	log.Printf("[DEBUG] "+format, args...)
}

func (l *CslLogger) Critical(ctx context.Context, format string, args ...interface{}) {
	log.Printf("[CRITICAL] "+format, args...)
}

func (l *CslLogger) Emergency(ctx context.Context, format string, args ...interface{}) {
	log.Printf("[EMERGENCY] "+format, args...)
}

func (l *CslLogger) Notice(ctx context.Context, format string, args ...interface{}) {
	log.Printf("[NOTICE] "+format, args...)
}
