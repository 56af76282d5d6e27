// Gói githubapi cung cấp một caller cho GitHub API, để lấy dữ liệu repository.
// Caller xử lý xác thực bằng access token nếu được cung cấp và ánh xạ
// mã trạng thái HTTP sang các sentinel error dùng chung.

package githubapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/thep200/github-cataloguer/cfg"
	"github.com/thep200/github-cataloguer/pkg/log"
)

type Caller struct {
	Logger log.Logger
	Config *cfg.Config
	client *http.Client
}

func NewCaller(logger log.Logger, config *cfg.Config) *Caller {
	timeout := time.Duration(config.GithubApi.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Caller{
		Logger: logger,
		Config: config,
		client: &http.Client{Timeout: timeout},
	}
}

// doGet thực hiện một request tới API và ánh xạ mã trạng thái sang sentinel.
// accept là giá trị cho header Accept ("" thì dùng mặc định v3+json).
func (c *Caller) doGet(ctx context.Context, url string, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	if accept == "" {
		accept = "application/vnd.github.v3+json"
	}
	req.Header.Set("Accept", accept)
	if c.Config.GithubApi.AccessToken != "" {
		req.Header.Set("Authorization", fmt.Sprintf("token %s", c.Config.GithubApi.AccessToken))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransient, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrTransient, err)
		}
		return body, nil
	case resp.StatusCode == http.StatusNotFound:
		return nil, ErrNotFound
	case resp.StatusCode == http.StatusUnavailableForLegalReasons:
		return nil, ErrBlocked
	case resp.StatusCode == http.StatusForbidden:
		// 403 chỉ là rate limit khi header báo quota bằng 0.
		if resp.Header.Get("X-RateLimit-Remaining") == "0" {
			return nil, ErrRateLimited
		}
		return nil, fmt.Errorf("%w: status %s", ErrTransient, resp.Status)
	default:
		return nil, fmt.Errorf("%w: status %s", ErrTransient, resp.Status)
	}
}

// ListSince gọi endpoint liệt kê toàn bộ repository theo thứ tự id,
// tiếp tục từ sau id "since". Mỗi lần gọi tốn một đơn vị quota và
// trả về tối đa perPage bản ghi.
func (c *Caller) ListSince(ctx context.Context, since int64, perPage int) ([]RepoSummary, error) {
	url := fmt.Sprintf("%s/repositories?since=%d&per_page=%d", c.Config.GithubApi.ApiUrl, since, perPage)
	body, err := c.doGet(ctx, url, "")
	if err != nil {
		return nil, err
	}

	var repos []RepoSummary
	if err := json.Unmarshal(body, &repos); err != nil {
		return nil, fmt.Errorf("cannot decode enumeration response: %w", err)
	}
	return repos, nil
}

// GetRepo lấy chi tiết một repository theo owner/name.
func (c *Caller) GetRepo(ctx context.Context, owner, name string) (*RepoDetail, error) {
	url := fmt.Sprintf("%s/repos/%s/%s", c.Config.GithubApi.ApiUrl, owner, name)
	body, err := c.doGet(ctx, url, "")
	if err != nil {
		return nil, err
	}

	detail := &RepoDetail{}
	if err := json.Unmarshal(body, detail); err != nil {
		return nil, fmt.Errorf("cannot decode repository response: %w", err)
	}
	return detail, nil
}

// GetRepoByID lấy chi tiết một repository theo id host cấp.
// Đây là đường tra cứu identity chính tắc khi owner/name đã đổi.
func (c *Caller) GetRepoByID(ctx context.Context, id int64) (*RepoDetail, error) {
	url := fmt.Sprintf("%s/repositories/%d", c.Config.GithubApi.ApiUrl, id)
	body, err := c.doGet(ctx, url, "")
	if err != nil {
		return nil, err
	}

	detail := &RepoDetail{}
	if err := json.Unmarshal(body, detail); err != nil {
		return nil, fmt.Errorf("cannot decode repository response: %w", err)
	}
	return detail, nil
}

// Languages gọi endpoint languages của một repository.
// Trả về danh sách tên ngôn ngữ theo thứ tự của phản hồi.
func (c *Caller) Languages(ctx context.Context, owner, name string) ([]string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/languages", c.Config.GithubApi.ApiUrl, owner, name)
	body, err := c.doGet(ctx, url, "")
	if err != nil {
		return nil, err
	}

	var byteCounts map[string]int64
	if err := json.Unmarshal(body, &byteCounts); err != nil {
		return nil, fmt.Errorf("cannot decode languages response: %w", err)
	}
	names := make([]string, 0, len(byteCounts))
	for lang := range byteCounts {
		names = append(names, lang)
	}
	return names, nil
}

// Readme lấy README "ưa thích" của repository ở dạng raw.
func (c *Caller) Readme(ctx context.Context, owner, name string) (string, error) {
	url := fmt.Sprintf("%s/repos/%s/%s/readme", c.Config.GithubApi.ApiUrl, owner, name)
	body, err := c.doGet(ctx, url, "application/vnd.github.v3.raw")
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// RateLimit hỏi trạng thái quota hiện tại. Endpoint này không tốn quota.
func (c *Caller) RateLimit(ctx context.Context) (int, time.Time, error) {
	url := fmt.Sprintf("%s/rate_limit", c.Config.GithubApi.ApiUrl)
	body, err := c.doGet(ctx, url, "")
	if err != nil {
		return 0, time.Time{}, err
	}

	parsed := rateLimitResponse{}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return 0, time.Time{}, fmt.Errorf("cannot decode rate limit response: %w", err)
	}
	return parsed.Resources.Core.Remaining, time.Unix(parsed.Resources.Core.Reset, 0), nil
}
