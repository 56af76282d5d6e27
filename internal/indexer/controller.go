package indexer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/thep200/github-cataloguer/cfg"
	"github.com/thep200/github-cataloguer/internal/githubapi"
	"github.com/thep200/github-cataloguer/internal/limiter"
	"github.com/thep200/github-cataloguer/internal/model"
	"github.com/thep200/github-cataloguer/pkg/log"
)

// Item là một đơn vị công việc trong sweep: một repository cần xử lý.
// Entry là nil khi item đến từ enumeration và chưa có trong catalog.
type Item struct {
	ID    int64
	Owner string
	Name  string
	Entry *model.Entry
}

// ItemSource cấp item lần lượt cho sweep. Next trả về (nil, nil)
// khi nguồn cạn.
type ItemSource interface {
	Next(ctx context.Context) (*Item, error)
}

// SweepStats là kết quả tổng hợp của một lần sweep.
type SweepStats struct {
	Processed int64
	Failed    int64
}

// Controller điều phối một sweep: lấy item từ nguồn, gác quota giữa
// các item, đẩy con trỏ resume sau mỗi item thành công, và dừng hợp
// tác khi được yêu cầu. Mỗi item được xử lý trọn vẹn trước khi sang
// item kế tiếp nên ngắt giữa chừng không để lại trạng thái dở dang.
type Controller struct {
	Logger   log.Logger
	Config   *cfg.Config
	Store    *model.Store
	Governor *limiter.Governor
	Policy   *FailurePolicy

	// quotaLeft là bộ đếm quota cục bộ, trừ dần theo item để không
	// phải hỏi host trước mỗi request.
	quotaLeft int
	stopped   atomic.Bool
}

func NewController(logger log.Logger, config *cfg.Config, store *model.Store, governor *limiter.Governor, policy *FailurePolicy) *Controller {
	return &Controller{
		Logger:   logger,
		Config:   config,
		Store:    store,
		Governor: governor,
		Policy:   policy,
	}
}

// Stop yêu cầu sweep đang chạy dừng lại ở ranh giới item kế tiếp.
func (c *Controller) Stop() {
	c.stopped.Store(true)
}

// Stopped cho biết đã có yêu cầu dừng chưa.
func (c *Controller) Stopped() bool {
	return c.stopped.Load()
}

// ErrStopped báo sweep kết thúc do yêu cầu dừng, không phải do lỗi.
var ErrStopped = errors.New("sweep stopped on request")

// gateQuota đảm bảo còn quota trước khi xử lý item kế tiếp.
// Khi bộ đếm cục bộ cạn thì hỏi lại host; host báo hết thì ngủ tới
// khi reset rồi hỏi lại, vì tiến trình khác dùng chung tài khoản có
// thể đã tiêu quota mới ngay khi nó được cấp.
func (c *Controller) gateQuota(ctx context.Context) error {
	if c.Governor == nil || c.quotaLeft > 0 {
		return nil
	}
	for {
		c.quotaLeft = c.Governor.Remaining(ctx)
		if c.quotaLeft > 0 {
			return nil
		}
		if err := c.Governor.AwaitReset(ctx); err != nil {
			return err
		}
		if c.stopped.Load() {
			return ErrStopped
		}
	}
}

// Sweep chạy process trên từng item của nguồn cho tới khi nguồn cạn,
// có yêu cầu dừng, hay lỗi liên tiếp chạm ngưỡng. advanceCursor bật
// việc đẩy con trỏ resume lên id của item sau khi xử lý thành công.
func (c *Controller) Sweep(ctx context.Context, src ItemSource, process func(context.Context, *Item) error, advanceCursor bool) (SweepStats, error) {
	stats := SweepStats{}
	c.stopped.Store(false)

	for {
		if c.stopped.Load() {
			c.Logger.Info(ctx, "Sweep stopped on request after %d items", stats.Processed)
			return stats, ErrStopped
		}
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		if err := c.gateQuota(ctx); err != nil {
			return stats, err
		}

		item, err := src.Next(ctx)
		if err != nil {
			// Nguồn enumeration cũng tiêu quota API, hết quota thì chờ
			// reset rồi lấy lại item thay vì hỏng cả sweep.
			if errors.Is(err, githubapi.ErrRateLimited) && c.Governor != nil {
				if werr := c.Governor.AwaitReset(ctx); werr != nil {
					return stats, werr
				}
				c.quotaLeft = 0
				continue
			}
			return stats, fmt.Errorf("item source failed: %w", err)
		}
		if item == nil {
			return stats, nil
		}

		c.quotaLeft--
		err = c.Policy.Do(ctx, fmt.Sprintf("processing %s/%s (id %d)", item.Owner, item.Name, item.ID), func() error {
			return process(ctx, item)
		})
		switch {
		case err == nil:
			stats.Processed++
			if advanceCursor {
				if serr := c.Store.SaveLastSeen(ctx, item.ID); serr != nil {
					c.Logger.Warn(ctx, "Cannot advance cursor to %d: %v", item.ID, serr)
				}
			}
		case errors.Is(err, ErrAborted), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return stats, err
		default:
			// Lỗi một item không dừng sweep, item sẽ được xử lý lại ở
			// lần chạy sau vì con trỏ không được đẩy qua nó.
			stats.Failed++
		}
	}
}

// apiSource liệt kê toàn bộ repository public theo thứ tự id qua
// endpoint /repositories, bắt đầu từ sau con trỏ since.
type apiSource struct {
	api     *githubapi.Caller
	since   int64
	perPage int
	buffer  []githubapi.RepoSummary
	done    bool
}

func newApiSource(api *githubapi.Caller, since int64, perPage int) *apiSource {
	if perPage <= 0 {
		perPage = 100
	}
	return &apiSource{api: api, since: since, perPage: perPage}
}

func (s *apiSource) Next(ctx context.Context) (*Item, error) {
	if len(s.buffer) == 0 && !s.done {
		repos, err := s.api.ListSince(ctx, s.since, s.perPage)
		if err != nil {
			return nil, err
		}
		if len(repos) == 0 {
			s.done = true
		}
		s.buffer = repos
	}
	if len(s.buffer) == 0 {
		return nil, nil
	}

	summary := s.buffer[0]
	s.buffer = s.buffer[1:]
	s.since = summary.ID

	owner := summary.Owner.Login
	name := summary.Name
	if owner == "" || name == "" {
		// full_name là "owner/name", dùng làm dự phòng.
		if parts := strings.SplitN(summary.FullName, "/", 2); len(parts) == 2 {
			owner, name = parts[0], parts[1]
		}
	}
	return &Item{
		ID:    summary.ID,
		Owner: owner,
		Name:  name,
		Entry: summaryEntry(summary),
	}, nil
}

// summaryEntry dựng entry sơ khởi từ bản ghi liệt kê rút gọn.
func summaryEntry(summary githubapi.RepoSummary) *model.Entry {
	entry := &model.Entry{
		ID:          summary.ID,
		Owner:       summary.Owner.Login,
		Name:        summary.Name,
		Description: summary.Description,
	}
	// Cờ fork có sẵn trong bản ghi liệt kê, ghi nhận luôn dù parent
	// phải chờ backfill mới biết.
	if summary.Fork {
		entry.ForkState = model.Fork
	} else {
		entry.ForkState = model.NotFork
	}
	return entry
}

// targetSource cấp một danh sách repository chỉ định, mỗi target là
// id số hoặc "owner/name". Entry hiện có trong catalog được tra cứu
// kèm; id chưa có trong catalog được hỏi tên qua API.
type targetSource struct {
	store   *model.Store
	api     *githubapi.Caller
	targets []string
	pos     int
}

func newTargetSource(store *model.Store, api *githubapi.Caller, targets []string) *targetSource {
	return &targetSource{store: store, api: api, targets: targets}
}

func (s *targetSource) Next(ctx context.Context) (*Item, error) {
	for s.pos < len(s.targets) {
		target := strings.TrimSpace(s.targets[s.pos])
		s.pos++
		if target == "" {
			continue
		}

		if id, perr := strconv.ParseInt(target, 10, 64); perr == nil && id > 0 {
			return s.byID(ctx, id)
		}

		parts := strings.SplitN(target, "/", 2)
		if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("invalid target %q, expected an id or owner/name", target)
		}

		entry, err := s.store.Find(ctx, parts[0], parts[1])
		if err != nil {
			return nil, err
		}
		item := &Item{Owner: parts[0], Name: parts[1], Entry: entry}
		if entry != nil {
			item.ID = entry.ID
		}
		return item, nil
	}
	return nil, nil
}

// byID đổi một target dạng id thành item. Catalog trước, API sau:
// id đã có entry thì không tốn quota.
func (s *targetSource) byID(ctx context.Context, id int64) (*Item, error) {
	if s.store != nil {
		entry, err := s.store.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		if entry != nil {
			return &Item{ID: id, Owner: entry.Owner, Name: entry.Name, Entry: entry}, nil
		}
	}
	if s.api == nil {
		return &Item{ID: id}, nil
	}
	detail, err := s.api.GetRepoByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve target id %d: %w", id, err)
	}
	return &Item{ID: id, Owner: detail.Owner.Login, Name: detail.Name}, nil
}

// storeSource duyệt catalog theo filter, bơm entry qua channel để
// chuyển giao diện push của Store.Iterate thành giao diện pull.
type storeSource struct {
	entries <-chan *model.Entry
	errc    <-chan error
	cancel  context.CancelFunc
}

func newStoreSource(ctx context.Context, store *model.Store, filter model.Filter) *storeSource {
	iterCtx, cancel := context.WithCancel(ctx)
	entries := make(chan *model.Entry)
	errc := make(chan error, 1)

	go func() {
		defer close(entries)
		err := store.Iterate(iterCtx, filter, func(entry *model.Entry) error {
			copied := *entry
			select {
			case entries <- &copied:
				return nil
			case <-iterCtx.Done():
				return iterCtx.Err()
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			errc <- err
		}
		close(errc)
	}()

	return &storeSource{entries: entries, errc: errc, cancel: cancel}
}

func (s *storeSource) Next(ctx context.Context) (*Item, error) {
	select {
	case <-ctx.Done():
		s.cancel()
		return nil, ctx.Err()
	case entry, ok := <-s.entries:
		if !ok {
			if err, pending := <-s.errc; pending && err != nil {
				return nil, err
			}
			return nil, nil
		}
		return &Item{ID: entry.ID, Owner: entry.Owner, Name: entry.Name, Entry: entry}, nil
	}
}

// Close dừng goroutine duyệt phía sau khi sweep kết thúc sớm.
func (s *storeSource) Close() {
	s.cancel()
}
