package model

import "time"

// Meta là bản ghi singleton lưu con trỏ crawl và các chỉ số dẫn xuất.
// Luôn nằm ở hàng id=1, tách khỏi keyspace của bảng repos.
type Meta struct {
	ID                   uint      `json:"id" gorm:"column:id;primaryKey"`
	LastSeenID           int64     `json:"last_seen_id" gorm:"column:last_seen_id;default:0"`
	TotalEntries         int64     `json:"total_entries" gorm:"column:total_entries;default:0"`
	EntriesWithLanguages int64     `json:"entries_with_languages" gorm:"column:entries_with_languages;default:0"`
	EntriesWithReadmes   int64     `json:"entries_with_readmes" gorm:"column:entries_with_readmes;default:0"`
	UpdatedAt            time.Time `json:"updated_at" gorm:"column:updated_at"`
}

func (m *Meta) TableName() string {
	return "crawl_meta"
}

const metaRowID = 1
