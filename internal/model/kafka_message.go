package model

// EntryMessage là cấu trúc dữ liệu entry gửi tới Kafka change feed.
type EntryMessage struct {
	ID            int64  `json:"id"`
	Owner         string `json:"owner"`
	Name          string `json:"name"`
	Description   string `json:"description"`
	Homepage      string `json:"homepage"`
	DefaultBranch string `json:"default_branch"`
	Operation     string `json:"operation"`
}
