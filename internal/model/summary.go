package model

import "context"

// Summary là ảnh chụp thống kê của catalog cho báo cáo.
type Summary struct {
	TotalEntries         int64
	VisibleEntries       int64
	DeletedEntries       int64
	ForkEntries          int64
	EntriesWithLanguages int64
	EntriesWithReadmes   int64
	EmptyEntries         int64
	CodeEntries          int64
	NonCodeEntries       int64
	LastSeenID           int64
}

// Summarize đếm trực tiếp trên bảng repos thay vì tin vào meta:
// báo cáo phải phản ánh sự thật hiện tại kể cả khi meta lệch.
func (s *Store) Summarize(ctx context.Context) (*Summary, error) {
	gdb, err := s.Mysql.Db()
	if err != nil {
		return nil, err
	}

	summary := &Summary{}
	counts := []struct {
		dst  *int64
		cond string
		args []interface{}
	}{
		{&summary.TotalEntries, "", nil},
		{&summary.VisibleEntries, "is_visible = ? AND is_deleted = ?", []interface{}{true, false}},
		{&summary.DeletedEntries, "is_deleted = ?", []interface{}{true}},
		{&summary.ForkEntries, "fork_state = ?", []interface{}{Fork}},
		{&summary.EntriesWithLanguages, "lang_state = ?", []interface{}{FieldPresent}},
		{&summary.EntriesWithReadmes, "readme_state = ?", []interface{}{FieldPresent}},
		{&summary.EmptyEntries, "content_type = ?", []interface{}{ContentEmpty}},
		{&summary.CodeEntries, "content_type = ?", []interface{}{ContentCode}},
		{&summary.NonCodeEntries, "content_type = ?", []interface{}{ContentNonCode}},
	}
	for _, c := range counts {
		tx := gdb.WithContext(ctx).Model(&Entry{})
		if c.cond != "" {
			tx = tx.Where(c.cond, c.args...)
		}
		if err := tx.Count(c.dst).Error; err != nil {
			return nil, err
		}
	}

	meta, err := s.Meta(ctx)
	if err != nil {
		return nil, err
	}
	summary.LastSeenID = meta.LastSeenID
	return summary, nil
}

// LanguageUsage đếm số entry dùng mỗi ngôn ngữ trên toàn catalog.
// Cột languages là JSON nên phải đếm ở tầng ứng dụng.
func (s *Store) LanguageUsage(ctx context.Context) (map[string]int64, error) {
	usage := map[string]int64{}
	err := s.Iterate(ctx, Filter{NotDeleted: true}, func(entry *Entry) error {
		if entry.LangState != FieldPresent {
			return nil
		}
		for _, name := range entry.LanguageNames() {
			usage[name]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return usage, nil
}
