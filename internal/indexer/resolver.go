package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/thep200/github-cataloguer/cfg"
	"github.com/thep200/github-cataloguer/internal/githubapi"
	"github.com/thep200/github-cataloguer/internal/model"
	"github.com/thep200/github-cataloguer/internal/scraper"
	"github.com/thep200/github-cataloguer/pkg/log"
)

// source là một cách lấy giá trị cho một trường. found=false nghĩa là
// nguồn không có bằng chứng nhưng cũng không kết luận được gì, chuỗi
// resolution sẽ thử nguồn kế tiếp.
type source[T any] struct {
	name  string
	fetch func(ctx context.Context) (T, bool, error)
}

// resolve thử các nguồn theo thứ tự ưu tiên và dừng ở kết quả đầu
// tiên. Kết luận terminal (404/451) từ bất kỳ nguồn nào short-circuit
// cả chuỗi: repo đã biến mất thì hỏi thêm nguồn khác vô nghĩa. Lỗi
// transient thì rơi xuống nguồn kế tiếp, nguồn cuối cùng hết thì
// trả lỗi về caller.
func resolve[T any](ctx context.Context, logger log.Logger, what string, sources []source[T]) (T, string, error) {
	var zero T
	var lastErr error
	for i, s := range sources {
		value, found, err := s.fetch(ctx)
		switch {
		case err == nil:
			if found {
				return value, s.name, nil
			}
		case terminal(err), errors.Is(err, githubapi.ErrRateLimited):
			return zero, s.name, err
		default:
			lastErr = err
			if i < len(sources)-1 {
				logger.Warn(ctx, "Cannot resolve %s via %s, trying next source: %v", what, s.name, err)
			}
		}
	}
	if lastErr != nil {
		return zero, "", lastErr
	}
	return zero, "", fmt.Errorf("%w: no source had %s", githubapi.ErrTransient, what)
}

// terminal cho biết lỗi là kết luận chính thức, không nên thử nguồn khác.
func terminal(err error) bool {
	return errors.Is(err, githubapi.ErrNotFound) || errors.Is(err, githubapi.ErrBlocked)
}

// Resolver lấy các trường chi tiết của repository qua chuỗi nguồn có
// thứ tự ưu tiên cố định: scrape trang public trước (không tốn quota),
// rồi mới rơi xuống API. Mỗi trường chỉ khác nhau ở danh sách nguồn,
// logic chuỗi nằm trọn trong resolve.
type Resolver struct {
	Logger  log.Logger
	Config  *cfg.Config
	Api     *githubapi.Caller
	Scraper *scraper.Scraper
	ApiOnly bool
}

func NewResolver(logger log.Logger, config *cfg.Config, api *githubapi.Caller, scr *scraper.Scraper) *Resolver {
	return &Resolver{
		Logger:  logger,
		Config:  config,
		Api:     api,
		Scraper: scr,
		ApiOnly: config.Crawler.ApiOnly,
	}
}

// Languages lấy danh sách ngôn ngữ của một repository.
// Danh sách rỗng với err nil nghĩa là kết luận "không có ngôn ngữ nào"
// (ví dụ repo trống), khác với lỗi không lấy được.
func (r *Resolver) Languages(ctx context.Context, entry *model.Entry) ([]string, string, error) {
	var sources []source[[]string]
	if !r.ApiOnly {
		sources = append(sources, source[[]string]{name: "scrape", fetch: func(ctx context.Context) ([]string, bool, error) {
			page, err := r.Scraper.HomePage(ctx, entry.Owner, entry.Name)
			if err != nil {
				return nil, false, err
			}
			if page.IsEmpty {
				return nil, true, nil
			}
			if len(page.Languages) > 0 {
				return page.Languages, true, nil
			}
			// Trang không có thanh ngôn ngữ không có nghĩa repo không
			// có ngôn ngữ, để API quyết định.
			return nil, false, nil
		}})
	}
	sources = append(sources, source[[]string]{name: "api", fetch: func(ctx context.Context) ([]string, bool, error) {
		langs, err := r.Api.Languages(ctx, entry.Owner, entry.Name)
		return langs, err == nil, err
	}})
	return resolve(ctx, r.Logger, "languages for "+entry.FullName(), sources)
}

// Readme lấy nội dung README. ErrNotFound từ chuỗi này nghĩa là repo
// không có README chứ không phải repo biến mất: các URL raw trả 404
// cho cả hai trường hợp nên không phân biệt được ở đây.
func (r *Resolver) Readme(ctx context.Context, entry *model.Entry) (string, string, error) {
	var sources []source[string]
	if !r.ApiOnly {
		sources = append(sources, source[string]{name: "scrape", fetch: func(ctx context.Context) (string, bool, error) {
			body, err := r.Scraper.Readme(ctx, entry.Owner, entry.Name, entry.DefaultBranch)
			if errors.Is(err, githubapi.ErrNotFound) {
				// Các URL quen thuộc không có, API vẫn có thể tìm thấy
				// README với tên khác thường.
				return "", false, nil
			}
			return body, err == nil, err
		}})
	}
	sources = append(sources, source[string]{name: "api", fetch: func(ctx context.Context) (string, bool, error) {
		body, err := r.Api.Readme(ctx, entry.Owner, entry.Name)
		return body, err == nil, err
	}})
	return resolve(ctx, r.Logger, "readme for "+entry.FullName(), sources)
}

// ForkLineage là kết quả resolution cho trường fork.
type ForkLineage struct {
	IsFork bool
	Parent string
	Root   string
}

// ForkInfo xác định repository có phải fork không và fork từ đâu.
// Trang public cho kết luận đầy đủ: fork-flag vắng mặt trên một trang
// tải thành công nghĩa là không phải fork.
func (r *Resolver) ForkInfo(ctx context.Context, entry *model.Entry) (ForkLineage, string, error) {
	var sources []source[ForkLineage]
	if !r.ApiOnly {
		sources = append(sources, source[ForkLineage]{name: "scrape", fetch: func(ctx context.Context) (ForkLineage, bool, error) {
			page, err := r.Scraper.HomePage(ctx, entry.Owner, entry.Name)
			if err != nil {
				return ForkLineage{}, false, err
			}
			return ForkLineage{IsFork: page.IsFork, Parent: page.ForkedFrom}, true, nil
		}})
	}
	sources = append(sources, source[ForkLineage]{name: "api", fetch: func(ctx context.Context) (ForkLineage, bool, error) {
		detail, err := r.Api.GetRepo(ctx, entry.Owner, entry.Name)
		if err != nil {
			return ForkLineage{}, false, err
		}
		lineage := ForkLineage{IsFork: detail.Fork}
		if detail.Parent != nil {
			lineage.Parent = detail.Parent.FullName
		}
		if detail.Source != nil {
			lineage.Root = detail.Source.FullName
		}
		return lineage, true, nil
	}})
	return resolve(ctx, r.Logger, "fork info for "+entry.FullName(), sources)
}

// Detail lấy bản ghi chi tiết qua API, với phục hồi rename: khi
// owner/name hiện tại trả 404 thì tra cứu lại theo id host cấp, vì
// id là identity bền còn owner/name thì không. Tra cứu lại đúng một
// lần để chặn chi phí. Caller so sánh FullName của kết quả với entry
// để phát hiện rename.
func (r *Resolver) Detail(ctx context.Context, entry *model.Entry) (*githubapi.RepoDetail, error) {
	detail, err := r.Api.GetRepo(ctx, entry.Owner, entry.Name)
	if err == nil {
		return detail, nil
	}
	if !errors.Is(err, githubapi.ErrNotFound) {
		return nil, err
	}

	detail, err = r.Api.GetRepoByID(ctx, entry.ID)
	if err != nil {
		if errors.Is(err, githubapi.ErrNotFound) {
			return nil, fmt.Errorf("repository %d is gone: %w", entry.ID, githubapi.ErrNotFound)
		}
		return nil, err
	}
	r.Logger.Info(ctx, "Repository %d recovered by id: %s is now %s", entry.ID, entry.FullName(), detail.FullName)
	return detail, nil
}
