// Gói scraper lấy trang public của repository qua HTTP thường,
// không tốn quota API, và trích xuất các trường bằng pattern matching.
// Markup của trang không có cam kết ổn định nào: mọi kết quả ở đây
// chỉ là best-effort, đường API vẫn là nguồn chính tắc.

package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/thep200/github-cataloguer/cfg"
	"github.com/thep200/github-cataloguer/internal/githubapi"
	"github.com/thep200/github-cataloguer/internal/limiter"
	"github.com/thep200/github-cataloguer/pkg/log"
)

type Scraper struct {
	Logger      log.Logger
	Config      *cfg.Config
	client      *http.Client
	rateLimiter *limiter.RateLimiter
}

// Page là kết quả đã trích xuất từ một trang repository.
type Page struct {
	Owner         string
	Name          string
	Description   string
	DefaultBranch string
	Languages     []string
	IsFork        bool
	ForkedFrom    string
	IsEmpty       bool
	Files         []string
}

func NewScraper(logger log.Logger, config *cfg.Config) *Scraper {
	timeout := time.Duration(config.GithubApi.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	rps := config.GithubApi.RequestsPerSecond
	if rps <= 0 {
		rps = 10
	}
	return &Scraper{
		Logger:      logger,
		Config:      config,
		client:      &http.Client{Timeout: timeout},
		rateLimiter: limiter.NewRateLimiter(rps),
	}
}

func (s *Scraper) pageURL(owner, name string) string {
	return fmt.Sprintf("%s/%s/%s", s.Config.GithubApi.WebUrl, owner, name)
}

// fetch tải một URL với số lần thử giới hạn.
// 202 nghĩa là host đang chuẩn bị trang, nghỉ một nhịp rồi thử lại.
func (s *Scraper) fetch(ctx context.Context, url string) (int, string, error) {
	const maxRetries = 3
	const retryPause = 500 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		s.rateLimiter.Wait(100 * time.Millisecond)

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return 0, "", err
		}
		resp, err := s.client.Do(req)
		if err != nil {
			return 0, "", fmt.Errorf("%w: %v", githubapi.ErrTransient, err)
		}

		if resp.StatusCode == http.StatusAccepted {
			resp.Body.Close()
			time.Sleep(retryPause)
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return resp.StatusCode, "", nil
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return 0, "", fmt.Errorf("%w: %v", githubapi.ErrTransient, err)
		}
		return resp.StatusCode, string(body), nil
	}
	return http.StatusAccepted, "", fmt.Errorf("%w: page not ready after %d attempts", githubapi.ErrTransient, maxRetries)
}

// HomePage tải và trích xuất trang chính của một repository.
// 404 trả về ErrNotFound, 451 trả về ErrBlocked: cả hai là
// terminal-negative và không được rơi tiếp xuống đường API.
func (s *Scraper) HomePage(ctx context.Context, owner, name string) (*Page, error) {
	if owner == "" || name == "" {
		return nil, fmt.Errorf("invalid repository identity %q/%q", owner, name)
	}

	code, html, err := s.fetch(ctx, s.pageURL(owner, name))
	if err != nil {
		return nil, err
	}
	switch code {
	case http.StatusOK:
		// tiếp tục bên dưới
	case http.StatusNotFound:
		return nil, githubapi.ErrNotFound
	case http.StatusUnavailableForLegalReasons:
		return nil, githubapi.ErrBlocked
	default:
		return nil, fmt.Errorf("%w: scrape status %d", githubapi.ErrTransient, code)
	}

	if extractIsProblem(html) {
		// Host báo repository đang có vấn đề trên đĩa, thử lại sau.
		return nil, fmt.Errorf("%w: repository flagged as problematic on host", githubapi.ErrTransient)
	}

	page := &Page{Owner: owner, Name: name}
	page.IsEmpty = extractIsEmpty(html)
	page.Description = extractDescription(html)
	page.DefaultBranch = extractDefaultBranch(html, s.pageURL(owner, name))
	page.Languages = extractLanguages(html)
	page.ForkedFrom, page.IsFork = extractFork(html)
	if !page.IsEmpty {
		files, emptyListing := extractFiles(html, owner, name, page.DefaultBranch)
		page.Files = files
		// Có bảng liệt kê nhưng không có file nào thì repo cũng là trống.
		if emptyListing {
			page.IsEmpty = true
		}
	}
	return page, nil
}

// Readme thử lần lượt các URL raw quen thuộc trước khi caller phải
// dùng tới API. Trả về ErrNotFound khi không có phương án nào tồn tại.
func (s *Scraper) Readme(ctx context.Context, owner, name, branch string) (string, error) {
	if branch == "" {
		branch = "master"
	}
	base := fmt.Sprintf("%s/%s/%s/%s", s.Config.GithubApi.RawUrl, owner, name, branch)
	alternatives := []string{
		base + "/README.md",
		base + "/README.rst",
		base + "/README",
		base + "/README.txt",
	}

	for _, url := range alternatives {
		code, body, err := s.fetch(ctx, url)
		if err != nil {
			return "", err
		}
		if code == http.StatusOK {
			return body, nil
		}
		if code == http.StatusUnavailableForLegalReasons {
			return "", githubapi.ErrBlocked
		}
		// Nghỉ một chút giữa các lần thử để không dồn request.
		time.Sleep(100 * time.Millisecond)
	}
	return "", githubapi.ErrNotFound
}
