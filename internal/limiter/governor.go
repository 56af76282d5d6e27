// Governor theo dõi quota API còn lại và thời điểm reset.
// Khác với RateLimiter (giới hạn cục bộ theo giây), Governor hỏi
// trực tiếp host về trạng thái quota thật sự.

package limiter

import (
	"context"
	"time"

	"github.com/thep200/github-cataloguer/pkg/log"
)

// QuotaSource là nguồn trạng thái quota, thường là githubapi.Caller.
type QuotaSource interface {
	RateLimit(ctx context.Context) (int, time.Time, error)
}

type Governor struct {
	Logger   log.Logger
	source   QuotaSource
	margin   time.Duration
	fallback time.Duration

	// SleepFn được tách ra để test không phải ngủ thật.
	SleepFn func(ctx context.Context, d time.Duration) error
}

// NewGovernor tạo governor với fallbackResetMin là số phút chờ khi
// không xác định được thời gian reset chính xác.
func NewGovernor(logger log.Logger, source QuotaSource, fallbackResetMin int) *Governor {
	if fallbackResetMin <= 0 {
		fallbackResetMin = 5
	}
	return &Governor{
		Logger:   logger,
		source:   source,
		margin:   time.Second,
		fallback: time.Duration(fallbackResetMin) * time.Minute,
		SleepFn:  sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Remaining trả về số call API còn lại trong quota hiện tại.
// Khi không hỏi được host thì trả về 0: thà chờ còn hơn tiêu lạm quota.
func (g *Governor) Remaining(ctx context.Context) int {
	remaining, _, err := g.source.RateLimit(ctx)
	if err != nil {
		g.Logger.Warn(ctx, "Cannot query rate limit, assuming quota exhausted: %v", err)
		return 0
	}
	return remaining
}

// ResetAt trả về thời điểm quota được cấp lại.
func (g *Governor) ResetAt(ctx context.Context) (time.Time, error) {
	_, reset, err := g.source.RateLimit(ctx)
	if err != nil {
		return time.Time{}, err
	}
	return reset, nil
}

// AwaitReset ngủ cho tới thời điểm reset cộng thêm một khoảng an toàn.
// Caller phải kiểm tra lại Remaining sau khi thức dậy: một tiến trình
// khác dùng chung tài khoản vẫn có thể đã tiêu hết quota mới.
func (g *Governor) AwaitReset(ctx context.Context) error {
	reset, err := g.ResetAt(ctx)
	if err != nil {
		// Không biết thời gian reset chính xác, dùng cấu hình mặc định.
		g.Logger.Warn(ctx, "Cannot determine reset time, waiting %v: %v", g.fallback, err)
		return g.SleepFn(ctx, g.fallback)
	}

	wait := time.Until(reset) + g.margin
	if wait < 0 {
		wait = g.margin
	}
	g.Logger.Warn(ctx, "API quota exhausted, sleeping %v until %s", wait.Round(time.Second), reset.Format(time.RFC3339))
	return g.SleepFn(ctx, wait)
}
