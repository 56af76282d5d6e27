package githubapi

import "errors"

// Phân loại lỗi từ host, dùng chung cho cả đường API lẫn đường scrape.
var (
	// ErrNotFound: host xác nhận repository không tồn tại (404).
	ErrNotFound = errors.New("repository not found")

	// ErrBlocked: truy cập bị chặn vĩnh viễn, ví dụ lý do pháp lý (451).
	ErrBlocked = errors.New("repository access blocked")

	// ErrRateLimited: quota API đã cạn, cần chờ tới thời điểm reset.
	ErrRateLimited = errors.New("api rate limit exhausted")

	// ErrTransient: lỗi mạng hoặc mã trạng thái bất thường, có thể thử lại.
	ErrTransient = errors.New("transient host error")
)
