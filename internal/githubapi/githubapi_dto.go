// Gói githubapi cung cấp các đối tượng truyền dữ liệu cho dự án
// Chuyển đổi phản hồi api của github thành cấu trúc

package githubapi

import "time"

type Owner struct {
	Login string `json:"login"`
	ID    int64  `json:"id"`
	Type  string `json:"type"`
}

// RepoSummary là bản ghi rút gọn từ endpoint liệt kê /repositories.
type RepoSummary struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	FullName    string `json:"full_name"`
	Owner       Owner  `json:"owner"`
	Description string `json:"description"`
	Fork        bool   `json:"fork"`
}

// RepoRef tham chiếu tới một repository khác (parent/source của fork).
type RepoRef struct {
	ID       int64  `json:"id"`
	FullName string `json:"full_name"`
}

// RepoDetail là phản hồi đầy đủ từ endpoint chi tiết repository.
type RepoDetail struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	FullName      string    `json:"full_name"`
	Owner         Owner     `json:"owner"`
	Description   string    `json:"description"`
	Homepage      string    `json:"homepage"`
	DefaultBranch string    `json:"default_branch"`
	Fork          bool      `json:"fork"`
	Parent        *RepoRef  `json:"parent"`
	Source        *RepoRef  `json:"source"`
	Size          int64     `json:"size"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	PushedAt      time.Time `json:"pushed_at"`
}

type rateLimitResponse struct {
	Resources struct {
		Core struct {
			Remaining int   `json:"remaining"`
			Reset     int64 `json:"reset"`
		} `json:"core"`
	} `json:"resources"`
}
