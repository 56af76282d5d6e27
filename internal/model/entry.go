// Gói model định nghĩa các bản ghi catalog và store dựa trên GORM.
// Entry là một repository đã từng được nhìn thấy trên GitHub.
package model

import (
	"encoding/json"
	"time"
)

// FieldState là trạng thái ba giá trị cho các trường backfill.
// Phân biệt "chưa từng thử" với "đã thử nhưng không có" và "đã có dữ liệu".
type FieldState int8

const (
	FieldUnattempted FieldState = 0
	FieldAbsent      FieldState = 1
	FieldPresent     FieldState = 2
)

// ForkState cho biết repository có phải là fork hay không.
type ForkState int8

const (
	ForkUnknown ForkState = 0
	NotFork     ForkState = 1
	Fork        ForkState = 2
)

// ContentType được suy ra dần dần khi thu thập chi tiết.
type ContentType int8

const (
	ContentUnknown  ContentType = 0
	ContentEmpty    ContentType = 1
	ContentNonEmpty ContentType = 2
	ContentCode     ContentType = 3
	ContentNonCode  ContentType = 4
)

func (c ContentType) String() string {
	switch c {
	case ContentEmpty:
		return "empty"
	case ContentNonEmpty:
		return "nonempty"
	case ContentCode:
		return "code"
	case ContentNonCode:
		return "noncode"
	default:
		return "unknown"
	}
}

type Entry struct {
	Model
	ID            int64       `json:"id" gorm:"column:id;primaryKey;autoIncrement:false"`
	Owner         string      `json:"owner" gorm:"column:owner;type:varchar(255);not null;index:idx_owner_name"`
	Name          string      `json:"name" gorm:"column:name;type:varchar(255);not null;index:idx_owner_name"`
	Description   string      `json:"description" gorm:"column:description;type:text"`
	Homepage      string      `json:"homepage" gorm:"column:homepage;type:varchar(255)"`
	DefaultBranch string      `json:"default_branch" gorm:"column:default_branch;type:varchar(255)"`
	LangState     FieldState  `json:"lang_state" gorm:"column:lang_state;default:0"`
	Languages     string      `json:"languages" gorm:"column:languages;type:text"`
	LangSource    string      `json:"lang_source" gorm:"column:lang_source;type:varchar(16)"`
	ReadmeState   FieldState  `json:"readme_state" gorm:"column:readme_state;default:0"`
	Readme        string      `json:"readme" gorm:"column:readme;type:longtext"`
	ReadmeSource  string      `json:"readme_source" gorm:"column:readme_source;type:varchar(16)"`
	ForkState     ForkState   `json:"fork_state" gorm:"column:fork_state;default:0"`
	ForkParent    string      `json:"fork_parent" gorm:"column:fork_parent;type:varchar(511)"`
	ForkRoot      string      `json:"fork_root" gorm:"column:fork_root;type:varchar(511)"`
	ContentType   ContentType `json:"content_type" gorm:"column:content_type;default:0"`
	IsVisible     bool        `json:"is_visible" gorm:"column:is_visible;default:true"`
	IsDeleted     bool        `json:"is_deleted" gorm:"column:is_deleted;default:false"`
	// CreatedAt/UpdatedAt là mốc thời gian host báo về, không phải
	// thời gian ghi của catalog, nên tắt auto-tracking của GORM.
	// Mốc ghi của catalog là DataRefreshed.
	CreatedAt     time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime:false"`
	UpdatedAt     time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime:false"`
	PushedAt      time.Time `json:"pushed_at" gorm:"column:pushed_at"`
	DataRefreshed time.Time `json:"data_refreshed" gorm:"column:data_refreshed"`
}

func (e *Entry) TableName() string {
	return "repos"
}

func (e *Entry) FullName() string {
	return e.Owner + "/" + e.Name
}

// LanguageNames giải mã cột languages (JSON) thành danh sách tên ngôn ngữ.
func (e *Entry) LanguageNames() []string {
	if e.LangState != FieldPresent || e.Languages == "" {
		return nil
	}
	var names []string
	if err := json.Unmarshal([]byte(e.Languages), &names); err != nil {
		return nil
	}
	return names
}

// EncodeLanguages mã hóa danh sách ngôn ngữ để lưu vào cột languages.
func EncodeLanguages(names []string) string {
	if len(names) == 0 {
		return ""
	}
	raw, err := json.Marshal(names)
	if err != nil {
		return ""
	}
	return string(raw)
}
