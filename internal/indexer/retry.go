package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/thep200/github-cataloguer/internal/githubapi"
	"github.com/thep200/github-cataloguer/internal/limiter"
	"github.com/thep200/github-cataloguer/pkg/log"
)

// ErrAborted báo hiệu sweep phải dừng vì lỗi liên tiếp vượt ngưỡng.
// Lỗi liên tiếp thường là hỏng hóc hệ thống (mạng, credential) chứ
// không phải dữ liệu xấu, chạy tiếp chỉ đốt quota vô ích.
var ErrAborted = errors.New("too many consecutive failures")

// FailurePolicy đếm số lỗi liên tiếp và xử lý rate limit.
// Bộ đếm reset về 0 mỗi khi có một item xử lý thành công, nên ngưỡng
// chỉ chạm được khi lỗi xảy ra liền mạch.
type FailurePolicy struct {
	Logger      log.Logger
	Governor    *limiter.Governor
	MaxFailures int
	failures    int
}

func NewFailurePolicy(logger log.Logger, governor *limiter.Governor, maxFailures int) *FailurePolicy {
	if maxFailures <= 0 {
		maxFailures = 10
	}
	return &FailurePolicy{
		Logger:      logger,
		Governor:    governor,
		MaxFailures: maxFailures,
	}
}

// Failures trả về số lỗi liên tiếp hiện tại.
func (p *FailurePolicy) Failures() int {
	return p.failures
}

// Do chạy fn với phân loại lỗi:
//   - thành công: reset bộ đếm.
//   - ErrRateLimited: chờ quota reset rồi chạy lại, không tính là lỗi.
//   - ErrNotFound / ErrBlocked: kết luận chính thức về item, không
//     tính là lỗi, trả nguyên sentinel cho caller xử lý.
//   - ErrTransient: tăng bộ đếm rồi chạy lại ngay trong item, chạm
//     ngưỡng thì trả ErrAborted. Item không bị bỏ qua vì lỗi thoáng
//     qua: con trỏ sweep đẩy theo item thành công, bỏ qua ở đây là
//     mất item vĩnh viễn.
//   - lỗi không nhận dạng được: tăng bộ đếm và trả về, item bị tính
//     là hỏng nhưng sweep còn tiếp tục cho tới ngưỡng.
func (p *FailurePolicy) Do(ctx context.Context, desc string, fn func() error) error {
	for {
		err := fn()
		switch {
		case err == nil:
			p.failures = 0
			return nil
		case errors.Is(err, githubapi.ErrRateLimited):
			p.Logger.Warn(ctx, "Rate limited while %s, waiting for quota reset", desc)
			if p.Governor != nil {
				if werr := p.Governor.AwaitReset(ctx); werr != nil {
					return werr
				}
				continue
			}
			return err
		case errors.Is(err, githubapi.ErrNotFound), errors.Is(err, githubapi.ErrBlocked):
			p.failures = 0
			return err
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return err
		case errors.Is(err, githubapi.ErrTransient):
			p.failures++
			p.Logger.Warn(ctx, "Transient failure %s (%d/%d consecutive failures), retrying: %v", desc, p.failures, p.MaxFailures, err)
			if p.failures >= p.MaxFailures {
				return fmt.Errorf("%w after %d failures: %v", ErrAborted, p.failures, err)
			}
			continue
		default:
			p.failures++
			p.Logger.Error(ctx, "Failed %s (%d/%d consecutive failures): %v", desc, p.failures, p.MaxFailures, err)
			if p.failures >= p.MaxFailures {
				return fmt.Errorf("%w after %d failures: %v", ErrAborted, p.failures, err)
			}
			return err
		}
	}
}
