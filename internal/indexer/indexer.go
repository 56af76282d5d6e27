// Gói indexer là engine reconciliation của catalog: mỗi thao tác là
// một sweep so sánh trạng thái catalog với trạng thái host và ghi
// những khác biệt tìm thấy. Thao tác nào cũng resumable: ngắt giữa
// chừng rồi chạy lại sẽ tiếp tục từ chỗ dừng, không làm lại từ đầu.

package indexer

import (
	"context"
	"errors"
	"fmt"

	"github.com/thep200/github-cataloguer/cfg"
	"github.com/thep200/github-cataloguer/internal/classify"
	"github.com/thep200/github-cataloguer/internal/githubapi"
	"github.com/thep200/github-cataloguer/internal/limiter"
	"github.com/thep200/github-cataloguer/internal/model"
	"github.com/thep200/github-cataloguer/internal/scraper"
	"github.com/thep200/github-cataloguer/pkg/db"
	"github.com/thep200/github-cataloguer/pkg/log"
)

// Publisher đẩy thay đổi catalog ra change feed. Để nil thì feed tắt.
type Publisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
}

// Options là tham số dòng lệnh cho một lần chạy thao tác.
type Options struct {
	Targets     []string
	StartID     int64
	Force       bool
	ApiOnly     bool
	MaxFailures int
}

type Indexer struct {
	Logger     log.Logger
	Config     *cfg.Config
	Store      *model.Store
	Api        *githubapi.Caller
	Scraper    *scraper.Scraper
	Resolver   *Resolver
	Governor   *limiter.Governor
	Policy     *FailurePolicy
	Controller *Controller
	Classifier *classify.Classifier
	Producer   Publisher
}

func NewIndexer(config *cfg.Config, logger log.Logger, mysql *db.Mysql, producer Publisher) (*Indexer, error) {
	store, err := model.NewStore(config, logger, mysql)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	if err := store.Migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate catalog tables: %w", err)
	}

	api := githubapi.NewCaller(logger, config)
	scr := scraper.NewScraper(logger, config)
	governor := limiter.NewGovernor(logger, api, config.GithubApi.RateLimitResetMin)
	policy := NewFailurePolicy(logger, governor, config.Crawler.MaxFailures)

	return &Indexer{
		Logger:     logger,
		Config:     config,
		Store:      store,
		Api:        api,
		Scraper:    scr,
		Resolver:   NewResolver(logger, config, api, scr),
		Governor:   governor,
		Policy:     policy,
		Controller: NewController(logger, config, store, governor, policy),
		Classifier: classify.Default(),
		Producer:   producer,
	}, nil
}

// Stop yêu cầu thao tác đang chạy dừng lại một cách hợp tác.
func (ix *Indexer) Stop() {
	ix.Controller.Stop()
}

// Run thực thi một thao tác với các tham số đã cho.
func (ix *Indexer) Run(ctx context.Context, op Op, opts Options) error {
	if opts.MaxFailures > 0 {
		ix.Policy.MaxFailures = opts.MaxFailures
	}
	if opts.ApiOnly {
		ix.Resolver.ApiOnly = true
	}

	handlers := map[Op]func(context.Context, Options) error{
		OpBuildIndex:        ix.buildIndex,
		OpRebuildIndex:      ix.rebuildIndex,
		OpBackfillLanguages: ix.backfillLanguages,
		OpBackfillReadmes:   ix.backfillReadmes,
		OpBackfillForks:     ix.backfillForks,
		OpInferType:         ix.inferType,
		OpVerifyIndex:       ix.verifyIndex,
		OpRebuildMeta:       ix.rebuildMeta,
	}
	handler, ok := handlers[op]
	if !ok {
		return fmt.Errorf("unknown operation %v", op)
	}

	ix.Logger.Info(ctx, "Starting operation %s", op)
	err := handler(ctx, opts)
	if errors.Is(err, ErrStopped) {
		ix.Logger.Info(ctx, "Operation %s stopped on request", op)
		return nil
	}
	if err != nil {
		ix.Logger.Error(ctx, "Operation %s failed: %v", op, err)
		return err
	}
	ix.Logger.Info(ctx, "Operation %s finished", op)
	return nil
}

// publish đẩy một thay đổi entry ra change feed nếu feed đang bật.
// Lỗi publish không làm hỏng thao tác: feed chỉ là bản sao phái sinh.
func (ix *Indexer) publish(ctx context.Context, entry *model.Entry, operation string) {
	if ix.Producer == nil {
		return
	}
	msg := model.EntryMessage{
		ID:            entry.ID,
		Owner:         entry.Owner,
		Name:          entry.Name,
		Description:   entry.Description,
		Homepage:      entry.Homepage,
		DefaultBranch: entry.DefaultBranch,
		Operation:     operation,
	}
	if err := ix.Producer.Publish(ctx, "entry", msg); err != nil {
		ix.Logger.Warn(ctx, "Cannot publish change for %s: %v", entry.FullName(), err)
	}
}

// markDeleted đánh dấu một entry đã biến mất khỏi host. Bản ghi ở lại
// catalog vĩnh viễn: đã thấy là đã thấy, xoá hàng là mất lịch sử.
func (ix *Indexer) markDeleted(ctx context.Context, entry *model.Entry) error {
	ix.Logger.Info(ctx, "Marking %s (id %d) as deleted", entry.FullName(), entry.ID)
	if err := ix.Store.UpdateFields(ctx, entry.ID, map[string]interface{}{"is_deleted": true}); err != nil {
		return err
	}
	ix.publish(ctx, entry, "delete")
	return nil
}

// markBlocked đánh dấu entry bị chặn vì lý do pháp lý (HTTP 451).
func (ix *Indexer) markBlocked(ctx context.Context, entry *model.Entry) error {
	ix.Logger.Info(ctx, "Marking %s (id %d) as not visible", entry.FullName(), entry.ID)
	return ix.Store.UpdateFields(ctx, entry.ID, map[string]interface{}{"is_visible": false})
}

// handleTerminal xử lý hai kết luận terminal của một item. Trả về true
// nếu lỗi đã được xử lý xong và sweep nên coi item là hoàn tất.
func (ix *Indexer) handleTerminal(ctx context.Context, entry *model.Entry, err error) (bool, error) {
	switch {
	case errors.Is(err, githubapi.ErrNotFound):
		return true, ix.markDeleted(ctx, entry)
	case errors.Is(err, githubapi.ErrBlocked):
		return true, ix.markBlocked(ctx, entry)
	default:
		return false, err
	}
}

// buildIndex mở rộng catalog bằng enumeration từ con trỏ resume, hoặc
// bằng danh sách target chỉ định. Entry đã có được giữ nguyên trừ khi
// Force yêu cầu refresh.
func (ix *Indexer) buildIndex(ctx context.Context, opts Options) error {
	if len(opts.Targets) > 0 {
		return ix.indexTargets(ctx, opts.Targets, opts.Force)
	}

	since := opts.StartID
	if since == 0 {
		meta, err := ix.Store.Meta(ctx)
		if err != nil {
			return err
		}
		since = meta.LastSeenID
	}
	ix.Logger.Info(ctx, "Enumerating repositories from id %d", since)

	src := newApiSource(ix.Api, since, ix.Config.Crawler.PerPage)
	stats, err := ix.Controller.Sweep(ctx, src, func(ctx context.Context, item *Item) error {
		if !opts.Force {
			existing, err := ix.Store.Get(ctx, item.ID)
			if err != nil {
				return err
			}
			if existing != nil {
				return nil
			}
		}
		created, err := ix.Store.Upsert(ctx, item.Entry)
		if err != nil {
			return err
		}
		if created {
			ix.publish(ctx, item.Entry, "upsert")
		}
		return nil
	}, true)

	ix.Logger.Info(ctx, "Enumeration finished: %d processed, %d failed", stats.Processed, stats.Failed)
	return err
}

// rebuildIndex chạy lại enumeration từ đầu keyspace (hay từ --start-id)
// và refresh cả những entry đã có. Con trỏ resume bị bỏ qua nhưng vẫn
// được đẩy tiếp, nên ngắt giữa chừng rồi build-index lại không gây hại.
func (ix *Indexer) rebuildIndex(ctx context.Context, opts Options) error {
	if len(opts.Targets) > 0 {
		return ix.indexTargets(ctx, opts.Targets, true)
	}

	ix.Logger.Info(ctx, "Rebuilding index from id %d", opts.StartID)
	src := newApiSource(ix.Api, opts.StartID, ix.Config.Crawler.PerPage)
	stats, err := ix.Controller.Sweep(ctx, src, func(ctx context.Context, item *Item) error {
		created, uerr := ix.Store.Upsert(ctx, item.Entry)
		if uerr != nil {
			return uerr
		}
		if created {
			ix.publish(ctx, item.Entry, "upsert")
		}
		return nil
	}, true)
	ix.Logger.Info(ctx, "Rebuild finished: %d processed, %d failed", stats.Processed, stats.Failed)
	return err
}

// indexTargets thêm hoặc refresh các repository chỉ định theo tên.
// Tên chưa có trong catalog được tra cứu chi tiết qua API để lấy id.
func (ix *Indexer) indexTargets(ctx context.Context, targets []string, force bool) error {
	src := newTargetSource(ix.Store, ix.Api, targets)
	stats, err := ix.Controller.Sweep(ctx, src, func(ctx context.Context, item *Item) error {
		if item.Entry != nil && !force {
			return nil
		}
		detail, derr := ix.Api.GetRepo(ctx, item.Owner, item.Name)
		if derr != nil {
			if item.Entry != nil {
				if handled, herr := ix.handleTerminal(ctx, item.Entry, derr); handled {
					return herr
				}
			}
			return derr
		}
		entry := entryFromDetail(detail)
		created, uerr := ix.Store.Upsert(ctx, entry)
		if uerr != nil {
			return uerr
		}
		if created {
			ix.Logger.Info(ctx, "Added %s (id %d) to catalog", entry.FullName(), entry.ID)
		}
		ix.publish(ctx, entry, "upsert")
		return nil
	}, false)

	ix.Logger.Info(ctx, "Target indexing finished: %d processed, %d failed", stats.Processed, stats.Failed)
	return err
}

// backfillSource chọn nguồn item cho một thao tác backfill: danh sách
// target nếu có, không thì duyệt catalog theo filter.
func (ix *Indexer) backfillSource(ctx context.Context, opts Options, filter model.Filter) ItemSource {
	if len(opts.Targets) > 0 {
		return newTargetSource(ix.Store, ix.Api, opts.Targets)
	}
	if opts.Force {
		// Force bỏ điều kiện "chưa từng thử", duyệt lại tất cả.
		filter.LangUnattempted = false
		filter.ReadmeUnattempted = false
		filter.ForkUnknown = false
		filter.ContentUnknown = false
	}
	filter.MinID = opts.StartID
	return newStoreSource(ctx, ix.Store, filter)
}

func (ix *Indexer) backfillLanguages(ctx context.Context, opts Options) error {
	src := ix.backfillSource(ctx, opts, model.Filter{LangUnattempted: true, NotDeleted: true, Visible: true})
	defer closeSource(src)
	var filled int64
	stats, err := ix.Controller.Sweep(ctx, src, func(ctx context.Context, item *Item) error {
		entry := item.Entry
		if entry == nil {
			ix.Logger.Warn(ctx, "Skipping %s/%s: not in catalog", item.Owner, item.Name)
			return nil
		}
		if entry.LangState != model.FieldUnattempted && !opts.Force {
			return nil
		}

		langs, source, lerr := ix.Resolver.Languages(ctx, entry)
		if lerr != nil {
			if handled, herr := ix.handleTerminal(ctx, entry, lerr); handled {
				return herr
			}
			return lerr
		}

		state := model.FieldAbsent
		if len(langs) > 0 {
			state = model.FieldPresent
		}
		uerr := ix.Store.UpdateFields(ctx, entry.ID, map[string]interface{}{
			"lang_state":  state,
			"languages":   model.EncodeLanguages(langs),
			"lang_source": source,
		})
		if uerr != nil {
			return uerr
		}
		if state == model.FieldPresent && entry.LangState != model.FieldPresent {
			if berr := ix.Store.BumpLanguages(ctx, 1); berr != nil {
				ix.Logger.Warn(ctx, "Cannot bump language counter: %v", berr)
			}
			filled++
		}
		ix.Logger.Info(ctx, "Languages for %s via %s: %d found", entry.FullName(), source, len(langs))
		return nil
	}, false)

	ix.Logger.Info(ctx, "Language backfill finished: %d processed, %d newly filled, %d failed", stats.Processed, filled, stats.Failed)
	return err
}

func (ix *Indexer) backfillReadmes(ctx context.Context, opts Options) error {
	src := ix.backfillSource(ctx, opts, model.Filter{ReadmeUnattempted: true, NotDeleted: true})
	defer closeSource(src)
	var filled int64
	stats, err := ix.Controller.Sweep(ctx, src, func(ctx context.Context, item *Item) error {
		entry := item.Entry
		if entry == nil {
			ix.Logger.Warn(ctx, "Skipping %s/%s: not in catalog", item.Owner, item.Name)
			return nil
		}
		if entry.ReadmeState != model.FieldUnattempted && !opts.Force {
			return nil
		}

		body, source, rerr := ix.Resolver.Readme(ctx, entry)
		state := model.FieldPresent
		switch {
		case rerr == nil:
			// có README
		case errors.Is(rerr, githubapi.ErrNotFound):
			// Repo không có README chứ không phải repo biến mất: endpoint
			// /readme trả 404 cho cả repo sống không có README.
			state = model.FieldAbsent
			body = ""
		case errors.Is(rerr, githubapi.ErrBlocked):
			return ix.markBlocked(ctx, entry)
		default:
			return rerr
		}

		uerr := ix.Store.UpdateFields(ctx, entry.ID, map[string]interface{}{
			"readme_state":  state,
			"readme":        body,
			"readme_source": source,
		})
		if uerr != nil {
			return uerr
		}
		if state == model.FieldPresent && entry.ReadmeState != model.FieldPresent {
			if berr := ix.Store.BumpReadmes(ctx, 1); berr != nil {
				ix.Logger.Warn(ctx, "Cannot bump readme counter: %v", berr)
			}
			filled++
		}
		ix.Logger.Info(ctx, "Readme for %s via %s: %d bytes", entry.FullName(), source, len(body))
		return nil
	}, false)

	ix.Logger.Info(ctx, "Readme backfill finished: %d processed, %d newly filled, %d failed", stats.Processed, filled, stats.Failed)
	return err
}

func (ix *Indexer) backfillForks(ctx context.Context, opts Options) error {
	src := ix.backfillSource(ctx, opts, model.Filter{ForkUnknown: true, NotDeleted: true})
	defer closeSource(src)
	stats, err := ix.Controller.Sweep(ctx, src, func(ctx context.Context, item *Item) error {
		entry := item.Entry
		if entry == nil {
			ix.Logger.Warn(ctx, "Skipping %s/%s: not in catalog", item.Owner, item.Name)
			return nil
		}
		if entry.ForkState != model.ForkUnknown && !opts.Force {
			return nil
		}

		lineage, source, ferr := ix.Resolver.ForkInfo(ctx, entry)
		if ferr != nil {
			if handled, herr := ix.handleTerminal(ctx, entry, ferr); handled {
				return herr
			}
			return ferr
		}

		state := model.NotFork
		if lineage.IsFork {
			state = model.Fork
		}
		uerr := ix.Store.UpdateFields(ctx, entry.ID, map[string]interface{}{
			"fork_state":  state,
			"fork_parent": lineage.Parent,
			"fork_root":   lineage.Root,
		})
		if uerr != nil {
			return uerr
		}
		ix.Logger.Info(ctx, "Fork info for %s via %s: fork=%v parent=%q", entry.FullName(), source, lineage.IsFork, lineage.Parent)
		return nil
	}, false)

	ix.Logger.Info(ctx, "Fork backfill finished: %d processed, %d failed", stats.Processed, stats.Failed)
	return err
}

// inferType suy ra loại nội dung từ bằng chứng đã có (ngôn ngữ trong
// catalog) trước, chỉ scrape thêm khi bằng chứng chưa đủ. Kết luận
// chỉ được ghi khi có bằng chứng: không bao giờ hạ cấp một kết luận
// đã có về unknown.
func (ix *Indexer) inferType(ctx context.Context, opts Options) error {
	src := ix.backfillSource(ctx, opts, model.Filter{ContentUnknown: true, NotDeleted: true, Visible: true})
	defer closeSource(src)
	stats, err := ix.Controller.Sweep(ctx, src, func(ctx context.Context, item *Item) error {
		entry := item.Entry
		if entry == nil {
			ix.Logger.Warn(ctx, "Skipping %s/%s: not in catalog", item.Owner, item.Name)
			return nil
		}
		if entry.ContentType != model.ContentUnknown && !opts.Force {
			return nil
		}

		verdict := ix.Classifier.Classify(entry.LanguageNames(), nil)
		inferred := verdictContentType(verdict)

		if inferred == model.ContentUnknown && !ix.Resolver.ApiOnly {
			page, perr := ix.Scraper.HomePage(ctx, entry.Owner, entry.Name)
			if perr != nil {
				if handled, herr := ix.handleTerminal(ctx, entry, perr); handled {
					return herr
				}
				return perr
			}
			switch {
			case page.IsEmpty:
				inferred = model.ContentEmpty
			default:
				inferred = verdictContentType(ix.Classifier.Classify(page.Languages, page.Files))
				if inferred == model.ContentUnknown && len(page.Files) > 0 {
					inferred = model.ContentNonEmpty
				}
			}
		}

		if inferred == model.ContentUnknown {
			ix.Logger.Info(ctx, "Not enough evidence to classify %s", entry.FullName())
			return nil
		}
		uerr := ix.Store.UpdateFields(ctx, entry.ID, map[string]interface{}{"content_type": inferred})
		if uerr != nil {
			return uerr
		}
		ix.Logger.Info(ctx, "Classified %s as %s", entry.FullName(), inferred)
		return nil
	}, false)

	ix.Logger.Info(ctx, "Type inference finished: %d processed, %d failed", stats.Processed, stats.Failed)
	return err
}

// closeSource dừng goroutine phía sau của nguồn nếu nguồn có.
func closeSource(src ItemSource) {
	if closer, ok := src.(interface{ Close() }); ok {
		closer.Close()
	}
}

func verdictContentType(v classify.Verdict) model.ContentType {
	switch v {
	case classify.Code:
		return model.ContentCode
	case classify.NonCode:
		return model.ContentNonCode
	default:
		return model.ContentUnknown
	}
}

// verifyIndex đối chiếu từng entry với host: refresh metadata, phát
// hiện rename qua tra cứu id, phát hiện id drift (tên cũ nay trỏ tới
// một repository khác), và đánh dấu entry đã biến mất.
func (ix *Indexer) verifyIndex(ctx context.Context, opts Options) error {
	var src ItemSource
	if len(opts.Targets) > 0 {
		src = newTargetSource(ix.Store, ix.Api, opts.Targets)
	} else {
		src = newStoreSource(ctx, ix.Store, model.Filter{NotDeleted: true, MinID: opts.StartID})
	}
	defer closeSource(src)

	stats, err := ix.Controller.Sweep(ctx, src, func(ctx context.Context, item *Item) error {
		entry := item.Entry
		if entry == nil {
			ix.Logger.Warn(ctx, "Skipping %s/%s: not in catalog", item.Owner, item.Name)
			return nil
		}

		detail, derr := ix.Resolver.Detail(ctx, entry)
		if derr != nil {
			if handled, herr := ix.handleTerminal(ctx, entry, derr); handled {
				return herr
			}
			return derr
		}

		if detail.ID != entry.ID {
			// Tên cũ giờ thuộc về một repository khác: bản ghi cũ đã
			// chết, repository mới nhận một entry mới với id của nó.
			ix.Logger.Info(ctx, "Identity drift at %s: catalog id %d, host id %d", entry.FullName(), entry.ID, detail.ID)
			if merr := ix.markDeleted(ctx, entry); merr != nil {
				return merr
			}
		}

		fresh := entryFromDetail(detail)
		if _, uerr := ix.Store.Upsert(ctx, fresh); uerr != nil {
			return uerr
		}
		if detail.FullName != entry.FullName() {
			ix.Logger.Info(ctx, "Repository %d renamed: %s is now %s", detail.ID, entry.FullName(), detail.FullName)
		}
		ix.publish(ctx, fresh, "upsert")
		return nil
	}, false)

	ix.Logger.Info(ctx, "Verification finished: %d processed, %d failed", stats.Processed, stats.Failed)
	return err
}

func (ix *Indexer) rebuildMeta(ctx context.Context, _ Options) error {
	meta, err := ix.Store.RebuildMeta(ctx)
	if err != nil {
		return err
	}
	ix.Logger.Info(ctx, "Rebuilt meta: %d entries, %d with languages, %d with readmes, cursor at %d",
		meta.TotalEntries, meta.EntriesWithLanguages, meta.EntriesWithReadmes, meta.LastSeenID)
	return nil
}

// entryFromDetail dựng entry từ bản ghi chi tiết của API.
func entryFromDetail(detail *githubapi.RepoDetail) *model.Entry {
	entry := &model.Entry{
		ID:            detail.ID,
		Owner:         detail.Owner.Login,
		Name:          detail.Name,
		Description:   detail.Description,
		Homepage:      detail.Homepage,
		DefaultBranch: detail.DefaultBranch,
		CreatedAt:     detail.CreatedAt,
		UpdatedAt:     detail.UpdatedAt,
		PushedAt:      detail.PushedAt,
	}
	if detail.Fork {
		entry.ForkState = model.Fork
		if detail.Parent != nil {
			entry.ForkParent = detail.Parent.FullName
		}
		if detail.Source != nil {
			entry.ForkRoot = detail.Source.FullName
		}
	} else {
		entry.ForkState = model.NotFork
	}
	return entry
}
