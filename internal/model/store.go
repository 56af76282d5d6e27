package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/thep200/github-cataloguer/cfg"
	"github.com/thep200/github-cataloguer/pkg/db"
	"github.com/thep200/github-cataloguer/pkg/log"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Filter chọn một tập entry cho việc duyệt bulk.
// Zero value nghĩa là không lọc gì cả (duyệt toàn bộ).
type Filter struct {
	LangUnattempted   bool
	ReadmeUnattempted bool
	ForkUnknown       bool
	ContentUnknown    bool
	NotDeleted        bool
	Visible           bool
	OnlyDeleted       bool
	MinID             int64
}

func (f Filter) apply(tx *gorm.DB) *gorm.DB {
	if f.LangUnattempted {
		tx = tx.Where("lang_state = ?", FieldUnattempted)
	}
	if f.ReadmeUnattempted {
		tx = tx.Where("readme_state = ?", FieldUnattempted)
	}
	if f.ForkUnknown {
		tx = tx.Where("fork_state = ?", ForkUnknown)
	}
	if f.ContentUnknown {
		tx = tx.Where("content_type = ?", ContentUnknown)
	}
	if f.NotDeleted {
		tx = tx.Where("is_deleted = ?", false)
	}
	if f.Visible {
		tx = tx.Where("is_visible = ?", true)
	}
	if f.OnlyDeleted {
		tx = tx.Where("is_deleted = ?", true)
	}
	if f.MinID > 0 {
		tx = tx.Where("id >= ?", f.MinID)
	}
	return tx
}

// Store là lớp truy cập catalog trên MySQL.
// Mọi thao tác ghi đều durable khi trả về (autocommit từng statement).
type Store struct {
	Config *cfg.Config
	Logger log.Logger
	Mysql  *db.Mysql
}

func NewStore(config *cfg.Config, logger log.Logger, mysql *db.Mysql) (*Store, error) {
	return &Store{
		Config: config,
		Logger: logger,
		Mysql:  mysql,
	}, nil
}

func (s *Store) Migrate() error {
	return s.Mysql.Migrate(&Entry{}, &Meta{})
}

func (s *Store) Get(ctx context.Context, id int64) (*Entry, error) {
	gdb, err := s.Mysql.Db()
	if err != nil {
		return nil, err
	}
	var entry Entry
	result := gdb.WithContext(ctx).Where("id = ?", id).First(&entry)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &entry, nil
}

func (s *Store) Find(ctx context.Context, owner, name string) (*Entry, error) {
	gdb, err := s.Mysql.Db()
	if err != nil {
		return nil, err
	}
	var entry Entry
	result := gdb.WithContext(ctx).Where("owner = ? AND name = ?", owner, name).First(&entry)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, result.Error
	}
	return &entry, nil
}

// Upsert tạo mới hoặc cập nhật metadata cơ bản của một entry.
// Chỉ ghi đè các trường identity/metadata, không bao giờ đụng tới
// languages/readme/fork đã backfill (field update là field-scoped).
// Thấy lại entry từ host nghĩa là nó truy cập được nên is_deleted và
// is_visible được reset. Trả về true nếu entry mới được tạo.
func (s *Store) Upsert(ctx context.Context, entry *Entry) (bool, error) {
	gdb, err := s.Mysql.Db()
	if err != nil {
		return false, err
	}

	entry.Owner = TruncateString(entry.Owner, 250)
	entry.Name = TruncateString(entry.Name, 250)
	entry.DataRefreshed = time.Now()

	existing, err := s.Get(ctx, entry.ID)
	if err != nil {
		return false, err
	}
	if existing == nil {
		// Bản ghi liệt kê rút gọn không mang mốc thời gian của host,
		// điền tạm mốc refresh cho tới khi một lần tra chi tiết thay
		// nó bằng giá trị host báo về.
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = entry.DataRefreshed
		}
		if entry.UpdatedAt.IsZero() {
			entry.UpdatedAt = entry.DataRefreshed
		}
		if err := gdb.WithContext(ctx).Create(entry).Error; err != nil {
			return false, fmt.Errorf("failed to create entry: %w", err)
		}
		if err := s.bumpMeta(ctx, "total_entries", 1); err != nil {
			s.Logger.Warn(ctx, "Failed to bump total entries counter: %v", err)
		}
		return true, nil
	}

	fields := map[string]interface{}{
		"owner":          entry.Owner,
		"name":           entry.Name,
		"description":    entry.Description,
		"homepage":       entry.Homepage,
		"default_branch": entry.DefaultBranch,
		"pushed_at":      entry.PushedAt,
		"is_deleted":     false,
		"is_visible":     true,
		"data_refreshed": entry.DataRefreshed,
	}
	// Mốc thời gian host báo về chỉ đi kèm bản ghi chi tiết, bản ghi
	// rút gọn không được phép xoá giá trị đã biết.
	if !entry.CreatedAt.IsZero() {
		fields["created_at"] = entry.CreatedAt
	}
	if !entry.UpdatedAt.IsZero() {
		fields["updated_at"] = entry.UpdatedAt
	}
	if err := gdb.WithContext(ctx).Model(&Entry{}).Where("id = ?", entry.ID).Updates(fields).Error; err != nil {
		return false, fmt.Errorf("failed to update entry: %w", err)
	}
	return false, nil
}

// UpdateFields cập nhật một tập trường cụ thể của một entry.
// Luôn bump data_refreshed vì mọi thay đổi trạng thái nhìn thấy được
// đều phải cập nhật mốc refresh.
func (s *Store) UpdateFields(ctx context.Context, id int64, fields map[string]interface{}) error {
	gdb, err := s.Mysql.Db()
	if err != nil {
		return err
	}
	if _, ok := fields["data_refreshed"]; !ok {
		fields["data_refreshed"] = time.Now()
	}
	result := gdb.WithContext(ctx).Model(&Entry{}).Where("id = ?", id).Updates(fields)
	if result.Error != nil {
		return result.Error
	}
	return nil
}

// UpsertBatch ghi một loạt entry trong một transaction.
// Dùng bởi consumer của change feed.
func (s *Store) UpsertBatch(ctx context.Context, entries []Entry) error {
	gdb, err := s.Mysql.Db()
	if err != nil {
		return fmt.Errorf("failed to get database connection: %w", err)
	}

	now := time.Now()
	for i := range entries {
		entries[i].Owner = TruncateString(entries[i].Owner, 250)
		entries[i].Name = TruncateString(entries[i].Name, 250)
		entries[i].DataRefreshed = now
	}

	return gdb.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"owner", "name", "description", "homepage", "default_branch",
				"pushed_at", "data_refreshed",
			}),
		}).CreateInBatches(entries, 100)
		if result.Error != nil {
			return fmt.Errorf("failed to batch upsert entries: %w", result.Error)
		}
		return nil
	})
}

// Iterate duyệt các entry khớp filter theo thứ tự id tăng dần.
// fn trả về lỗi sẽ dừng việc duyệt và trả lỗi đó về caller.
func (s *Store) Iterate(ctx context.Context, f Filter, fn func(*Entry) error) error {
	gdb, err := s.Mysql.Db()
	if err != nil {
		return err
	}
	var batch []Entry
	result := f.apply(gdb.WithContext(ctx).Order("id asc")).FindInBatches(&batch, 200, func(tx *gorm.DB, _ int) error {
		for i := range batch {
			if err := fn(&batch[i]); err != nil {
				return err
			}
		}
		return nil
	})
	return result.Error
}

// Meta trả về bản ghi singleton, tạo mới nếu chưa tồn tại.
func (s *Store) Meta(ctx context.Context) (*Meta, error) {
	gdb, err := s.Mysql.Db()
	if err != nil {
		return nil, err
	}
	meta := Meta{ID: metaRowID}
	if err := gdb.WithContext(ctx).FirstOrCreate(&meta, Meta{ID: metaRowID}).Error; err != nil {
		return nil, err
	}
	return &meta, nil
}

// SaveLastSeen đẩy con trỏ sweep lên id mới nếu nó lớn hơn giá trị hiện tại.
// So sánh ở tầng SQL để không bao giờ kéo lùi con trỏ.
func (s *Store) SaveLastSeen(ctx context.Context, id int64) error {
	if _, err := s.Meta(ctx); err != nil {
		return err
	}
	gdb, err := s.Mysql.Db()
	if err != nil {
		return err
	}
	return gdb.WithContext(ctx).Model(&Meta{}).
		Where("id = ? AND last_seen_id < ?", metaRowID, id).
		Updates(map[string]interface{}{"last_seen_id": id, "updated_at": time.Now()}).Error
}

func (s *Store) bumpMeta(ctx context.Context, column string, delta int64) error {
	if _, err := s.Meta(ctx); err != nil {
		return err
	}
	gdb, err := s.Mysql.Db()
	if err != nil {
		return err
	}
	return gdb.WithContext(ctx).Model(&Meta{}).Where("id = ?", metaRowID).
		Update(column, gorm.Expr(column+" + ?", delta)).Error
}

func (s *Store) BumpLanguages(ctx context.Context, delta int64) error {
	return s.bumpMeta(ctx, "entries_with_languages", delta)
}

func (s *Store) BumpReadmes(ctx context.Context, delta int64) error {
	return s.bumpMeta(ctx, "entries_with_readmes", delta)
}

// RebuildMeta tính lại toàn bộ bản ghi meta từ một full scan.
// Đây là đường tự phục hồi khi meta bị mất hoặc sai lệch.
func (s *Store) RebuildMeta(ctx context.Context) (*Meta, error) {
	gdb, err := s.Mysql.Db()
	if err != nil {
		return nil, err
	}

	var total, withLangs, withReadmes int64
	var maxID *int64
	if err := gdb.WithContext(ctx).Model(&Entry{}).Count(&total).Error; err != nil {
		return nil, err
	}
	if err := gdb.WithContext(ctx).Model(&Entry{}).Where("lang_state = ?", FieldPresent).Count(&withLangs).Error; err != nil {
		return nil, err
	}
	if err := gdb.WithContext(ctx).Model(&Entry{}).Where("readme_state = ?", FieldPresent).Count(&withReadmes).Error; err != nil {
		return nil, err
	}
	if err := gdb.WithContext(ctx).Model(&Entry{}).Select("MAX(id)").Scan(&maxID).Error; err != nil {
		return nil, err
	}

	meta, err := s.Meta(ctx)
	if err != nil {
		return nil, err
	}
	meta.TotalEntries = total
	meta.EntriesWithLanguages = withLangs
	meta.EntriesWithReadmes = withReadmes
	if maxID != nil && *maxID > meta.LastSeenID {
		meta.LastSeenID = *maxID
	}
	meta.UpdatedAt = time.Now()
	if err := gdb.WithContext(ctx).Save(meta).Error; err != nil {
		return nil, err
	}
	return meta, nil
}
