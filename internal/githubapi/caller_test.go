package githubapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thep200/github-cataloguer/cfg"
	"github.com/thep200/github-cataloguer/pkg/log"
)

func newTestCaller(t *testing.T, apiURL, token string) *Caller {
	t.Helper()
	loader, err := cfg.NewMockLoader()
	require.NoError(t, err)
	config, err := loader.Load()
	require.NoError(t, err)
	config.GithubApi.ApiUrl = apiURL
	config.GithubApi.AccessToken = token

	logger, err := log.NewCslLogger()
	require.NoError(t, err)
	return NewCaller(logger, config)
}

func TestListSince(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repositories", r.URL.Path)
		assert.Equal(t, "4096", r.URL.Query().Get("since"))
		assert.Equal(t, "token secret", r.Header.Get("Authorization"))
		w.Write([]byte(`[
			{"id": 4097, "name": "alpha", "full_name": "someone/alpha", "owner": {"login": "someone"}, "fork": false},
			{"id": 4100, "name": "beta", "full_name": "other/beta", "owner": {"login": "other"}, "fork": true}
		]`))
	}))
	defer server.Close()

	c := newTestCaller(t, server.URL, "secret")
	repos, err := c.ListSince(context.Background(), 4096, 100)
	require.NoError(t, err)
	require.Len(t, repos, 2)
	assert.Equal(t, int64(4097), repos[0].ID)
	assert.Equal(t, "someone", repos[0].Owner.Login)
	assert.True(t, repos[1].Fork)
}

func TestGetRepoStatusMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		remaining string
		wantErr   error
	}{
		{"not found", http.StatusNotFound, "", ErrNotFound},
		{"blocked", http.StatusUnavailableForLegalReasons, "", ErrBlocked},
		{"rate limited", http.StatusForbidden, "0", ErrRateLimited},
		{"forbidden but quota left", http.StatusForbidden, "37", ErrTransient},
		{"server error", http.StatusInternalServerError, "", ErrTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if tt.remaining != "" {
					w.Header().Set("X-RateLimit-Remaining", tt.remaining)
				}
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			c := newTestCaller(t, server.URL, "")
			_, err := c.GetRepo(context.Background(), "someone", "project")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGetRepoByID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repositories/12345", r.URL.Path)
		w.Write([]byte(`{
			"id": 12345, "name": "renamed", "full_name": "newowner/renamed",
			"owner": {"login": "newowner"}, "default_branch": "main", "fork": false
		}`))
	}))
	defer server.Close()

	c := newTestCaller(t, server.URL, "")
	detail, err := c.GetRepoByID(context.Background(), 12345)
	require.NoError(t, err)
	assert.Equal(t, "newowner/renamed", detail.FullName)
	assert.Equal(t, "main", detail.DefaultBranch)
}

func TestLanguages(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/someone/project/languages", r.URL.Path)
		w.Write([]byte(`{"Go": 81721, "Shell": 992}`))
	}))
	defer server.Close()

	c := newTestCaller(t, server.URL, "")
	langs, err := c.Languages(context.Background(), "someone", "project")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"Go", "Shell"}, langs)
}

func TestReadmeRawAccept(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/vnd.github.v3.raw", r.Header.Get("Accept"))
		w.Write([]byte("# project\nbody\n"))
	}))
	defer server.Close()

	c := newTestCaller(t, server.URL, "")
	body, err := c.Readme(context.Background(), "someone", "project")
	require.NoError(t, err)
	assert.Equal(t, "# project\nbody\n", body)
}

func TestRateLimit(t *testing.T) {
	reset := time.Now().Add(20 * time.Minute).Unix()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rate_limit", r.URL.Path)
		w.Write([]byte(`{"resources": {"core": {"remaining": 4312, "reset": ` +
			strconv.FormatInt(reset, 10) + `}}}`))
	}))
	defer server.Close()

	c := newTestCaller(t, server.URL, "")
	remaining, resetAt, err := c.RateLimit(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4312, remaining)
	assert.Equal(t, reset, resetAt.Unix())
}
