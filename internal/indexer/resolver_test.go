package indexer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thep200/github-cataloguer/cfg"
	"github.com/thep200/github-cataloguer/internal/githubapi"
	"github.com/thep200/github-cataloguer/internal/model"
	"github.com/thep200/github-cataloguer/internal/scraper"
	"github.com/thep200/github-cataloguer/pkg/log"
)

// newTestResolver trỏ cả đường scrape lẫn đường API vào cùng một test
// server, phân biệt bằng path: API dưới /repos và /repositories, còn
// lại là trang web và raw.
func newTestResolver(t *testing.T, handler http.Handler) (*Resolver, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	loader, err := cfg.NewMockLoader()
	require.NoError(t, err)
	config, err := loader.Load()
	require.NoError(t, err)
	config.GithubApi.ApiUrl = server.URL
	config.GithubApi.WebUrl = server.URL
	config.GithubApi.RawUrl = server.URL

	logger, err := log.NewCslLogger()
	require.NoError(t, err)
	api := githubapi.NewCaller(logger, config)
	scr := scraper.NewScraper(logger, config)
	return NewResolver(logger, config, api, scr), server
}

func testEntry() *model.Entry {
	return &model.Entry{ID: 42, Owner: "someone", Name: "project", DefaultBranch: "master"}
}

func TestLanguagesPrefersScrape(t *testing.T) {
	apiCalls := 0
	r, _ := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.HasPrefix(req.URL.Path, "/repos/") {
			apiCalls++
			w.Write([]byte(`{"Go": 100}`))
			return
		}
		w.Write([]byte(`<span class="lang">Python</span><span class="lang">C</span>`))
	}))

	langs, source, err := r.Languages(context.Background(), testEntry())
	require.NoError(t, err)
	assert.Equal(t, []string{"Python", "C"}, langs)
	assert.Equal(t, "scrape", source)
	assert.Equal(t, 0, apiCalls, "a conclusive scrape must not spend api quota")
}

func TestLanguagesEmptyRepositoryIsConclusive(t *testing.T) {
	apiCalls := 0
	r, _ := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.HasPrefix(req.URL.Path, "/repos/") {
			apiCalls++
			return
		}
		w.Write([]byte(`<h3>This repository is empty.</h3>`))
	}))

	langs, source, err := r.Languages(context.Background(), testEntry())
	require.NoError(t, err)
	assert.Empty(t, langs)
	assert.Equal(t, "scrape", source)
	assert.Equal(t, 0, apiCalls)
}

func TestLanguagesFallsBackToApiWithoutEvidence(t *testing.T) {
	r, _ := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.HasPrefix(req.URL.Path, "/repos/") {
			w.Write([]byte(`{"Rust": 9000}`))
			return
		}
		// Trang tải được nhưng không có thanh ngôn ngữ.
		w.Write([]byte(`<div class="file-wrap"><table>
			<tr><td><a href="/someone/project/blob/master/x.rs">x.rs</a></td></tr>
		</table></div>`))
	}))

	langs, source, err := r.Languages(context.Background(), testEntry())
	require.NoError(t, err)
	assert.Equal(t, []string{"Rust"}, langs)
	assert.Equal(t, "api", source)
}

func TestLanguagesScrapeNotFoundShortCircuits(t *testing.T) {
	apiCalls := 0
	r, _ := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.HasPrefix(req.URL.Path, "/repos/") {
			apiCalls++
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	_, _, err := r.Languages(context.Background(), testEntry())
	assert.ErrorIs(t, err, githubapi.ErrNotFound)
	assert.Equal(t, 0, apiCalls, "a vanished repo must not be re-asked via the api")
}

func TestLanguagesApiOnlySkipsScraping(t *testing.T) {
	scrapeCalls := 0
	r, _ := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.HasPrefix(req.URL.Path, "/repos/") {
			w.Write([]byte(`{"Go": 100}`))
			return
		}
		scrapeCalls++
	}))
	r.ApiOnly = true

	langs, source, err := r.Languages(context.Background(), testEntry())
	require.NoError(t, err)
	assert.Equal(t, []string{"Go"}, langs)
	assert.Equal(t, "api", source)
	assert.Equal(t, 0, scrapeCalls)
}

func TestReadmeFallsBackToApi(t *testing.T) {
	r, _ := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.HasPrefix(req.URL.Path, "/repos/") {
			w.Write([]byte("readme via api"))
			return
		}
		// Mọi URL raw quen thuộc đều không có.
		w.WriteHeader(http.StatusNotFound)
	}))

	body, source, err := r.Readme(context.Background(), testEntry())
	require.NoError(t, err)
	assert.Equal(t, "readme via api", body)
	assert.Equal(t, "api", source)
}

func TestReadmePrefersRawUrl(t *testing.T) {
	apiCalls := 0
	r, _ := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if strings.HasPrefix(req.URL.Path, "/repos/") {
			apiCalls++
			return
		}
		if req.URL.Path == "/someone/project/master/README.md" {
			w.Write([]byte("# readme from raw"))
			return
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	body, source, err := r.Readme(context.Background(), testEntry())
	require.NoError(t, err)
	assert.Equal(t, "# readme from raw", body)
	assert.Equal(t, "scrape", source)
	assert.Equal(t, 0, apiCalls)
}

func TestForkInfoFromScrape(t *testing.T) {
	r, _ := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`<span class="fork-flag"><span class="text">forked from <a href="/upstream/project">upstream/project</a></span></span>`))
	}))

	lineage, source, err := r.ForkInfo(context.Background(), testEntry())
	require.NoError(t, err)
	assert.True(t, lineage.IsFork)
	assert.Equal(t, "upstream/project", lineage.Parent)
	assert.Equal(t, "scrape", source)
}

func TestForkInfoAbsentFlagMeansNotFork(t *testing.T) {
	r, _ := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.Write([]byte(`<div class="repohead">ordinary repository</div>`))
	}))

	lineage, source, err := r.ForkInfo(context.Background(), testEntry())
	require.NoError(t, err)
	assert.False(t, lineage.IsFork)
	assert.Equal(t, "scrape", source)
}

func TestDetailRecoversRenamedRepository(t *testing.T) {
	r, _ := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/repos/someone/project":
			w.WriteHeader(http.StatusNotFound)
		case "/repositories/42":
			w.Write([]byte(`{"id": 42, "name": "renamed", "full_name": "newhome/renamed", "owner": {"login": "newhome"}, "default_branch": "main"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	detail, err := r.Detail(context.Background(), testEntry())
	require.NoError(t, err)
	assert.Equal(t, int64(42), detail.ID)
	assert.Equal(t, "newhome/renamed", detail.FullName)
}

func TestDetailGoneRepository(t *testing.T) {
	r, _ := newTestResolver(t, http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := r.Detail(context.Background(), testEntry())
	assert.ErrorIs(t, err, githubapi.ErrNotFound)
}
