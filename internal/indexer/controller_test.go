package indexer

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thep200/github-cataloguer/cfg"
	"github.com/thep200/github-cataloguer/internal/githubapi"
	"github.com/thep200/github-cataloguer/internal/limiter"
	"github.com/thep200/github-cataloguer/pkg/log"
)

// sliceSource cấp một danh sách item cố định.
type sliceSource struct {
	items []*Item
	pos   int
}

func (s *sliceSource) Next(ctx context.Context) (*Item, error) {
	if s.pos >= len(s.items) {
		return nil, nil
	}
	item := s.items[s.pos]
	s.pos++
	return item, nil
}

func newTestController(t *testing.T, maxFailures int) *Controller {
	t.Helper()
	logger, err := log.NewCslLogger()
	require.NoError(t, err)
	loader, err := cfg.NewMockLoader()
	require.NoError(t, err)
	config, err := loader.Load()
	require.NoError(t, err)

	policy := NewFailurePolicy(logger, nil, maxFailures)
	return NewController(logger, config, nil, nil, policy)
}

func makeItems(ids ...int64) []*Item {
	items := make([]*Item, 0, len(ids))
	for _, id := range ids {
		items = append(items, &Item{ID: id, Owner: "someone", Name: "project"})
	}
	return items
}

func TestSweepProcessesAllItems(t *testing.T) {
	c := newTestController(t, 10)
	var seen []int64

	stats, err := c.Sweep(context.Background(), &sliceSource{items: makeItems(101, 102, 103)},
		func(ctx context.Context, item *Item) error {
			seen = append(seen, item.ID)
			return nil
		}, false)

	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Processed)
	assert.Equal(t, int64(0), stats.Failed)
	assert.Equal(t, []int64{101, 102, 103}, seen)
}

func TestSweepContinuesPastFailedItems(t *testing.T) {
	c := newTestController(t, 10)
	boom := errors.New("boom")

	stats, err := c.Sweep(context.Background(), &sliceSource{items: makeItems(101, 102, 103)},
		func(ctx context.Context, item *Item) error {
			if item.ID == 102 {
				return boom
			}
			return nil
		}, false)

	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Processed)
	assert.Equal(t, int64(1), stats.Failed)
}

func TestSweepCompletesTransientlyFailingItem(t *testing.T) {
	c := newTestController(t, 10)
	blipped := false
	var completed []int64

	// Item 102 vấp một lỗi thoáng qua: nó phải được thử lại và hoàn
	// tất ngay tại chỗ, vì con trỏ đẩy theo item thành công sẽ bỏ
	// qua nó vĩnh viễn nếu sweep nhảy sang item kế tiếp.
	stats, err := c.Sweep(context.Background(), &sliceSource{items: makeItems(101, 102, 103)},
		func(ctx context.Context, item *Item) error {
			if item.ID == 102 && !blipped {
				blipped = true
				return githubapi.ErrTransient
			}
			completed = append(completed, item.ID)
			return nil
		}, false)

	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Processed)
	assert.Equal(t, int64(0), stats.Failed)
	assert.Equal(t, []int64{101, 102, 103}, completed)
}

func TestSweepAbortsOnConsecutiveFailures(t *testing.T) {
	c := newTestController(t, 3)
	boom := errors.New("boom")

	stats, err := c.Sweep(context.Background(), &sliceSource{items: makeItems(1, 2, 3, 4, 5)},
		func(ctx context.Context, item *Item) error { return boom }, false)

	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, int64(0), stats.Processed)
	assert.Equal(t, int64(2), stats.Failed)
}

func TestSweepSuccessResetsFailureStreak(t *testing.T) {
	c := newTestController(t, 3)
	boom := errors.New("boom")

	// Hai lỗi, một thành công, rồi lại hai lỗi: không bao giờ đủ ba
	// lỗi liền mạch nên sweep chạy hết nguồn.
	outcomes := []error{boom, boom, nil, boom, boom, nil}
	pos := 0
	stats, err := c.Sweep(context.Background(), &sliceSource{items: makeItems(1, 2, 3, 4, 5, 6)},
		func(ctx context.Context, item *Item) error {
			out := outcomes[pos]
			pos++
			return out
		}, false)

	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Processed)
	assert.Equal(t, int64(4), stats.Failed)
}

func TestSweepStopsCooperatively(t *testing.T) {
	c := newTestController(t, 10)

	stats, err := c.Sweep(context.Background(), &sliceSource{items: makeItems(1, 2, 3, 4)},
		func(ctx context.Context, item *Item) error {
			if item.ID == 2 {
				c.Stop()
			}
			return nil
		}, false)

	assert.ErrorIs(t, err, ErrStopped)
	// Item đang xử lý được hoàn tất trước khi dừng.
	assert.Equal(t, int64(2), stats.Processed)
}

// scriptedQuota trả lần lượt các giá trị remaining đã định sẵn,
// giá trị cuối lặp lại mãi.
type scriptedQuota struct {
	remaining []int
	pos       int
}

func (q *scriptedQuota) RateLimit(ctx context.Context) (int, time.Time, error) {
	r := q.remaining[q.pos]
	if q.pos < len(q.remaining)-1 {
		q.pos++
	}
	return r, time.Now().Add(30 * time.Minute), nil
}

func TestSweepWaitsForQuotaResetBeforeProcessing(t *testing.T) {
	logger, err := log.NewCslLogger()
	require.NoError(t, err)
	loader, err := cfg.NewMockLoader()
	require.NoError(t, err)
	config, err := loader.Load()
	require.NoError(t, err)

	// Host báo quota cạn, sau reset mới cấp lại hai call.
	quota := &scriptedQuota{remaining: []int{0, 0, 2}}
	governor := limiter.NewGovernor(logger, quota, 5)
	var events []string
	governor.SleepFn = func(ctx context.Context, d time.Duration) error {
		events = append(events, "slept")
		return nil
	}

	policy := NewFailurePolicy(logger, governor, 10)
	c := NewController(logger, config, nil, governor, policy)

	stats, err := c.Sweep(context.Background(), &sliceSource{items: makeItems(101, 102)},
		func(ctx context.Context, item *Item) error {
			events = append(events, fmt.Sprintf("item:%d", item.ID))
			return nil
		}, false)

	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.Processed)
	// Không item nào được xử lý trước khi chờ xong reset quota.
	assert.Equal(t, []string{"slept", "item:101", "item:102"}, events)
}

func TestSweepHonorsContextCancellation(t *testing.T) {
	c := newTestController(t, 10)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Sweep(ctx, &sliceSource{items: makeItems(1)},
		func(ctx context.Context, item *Item) error { return nil }, false)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestApiSourceEnumeratesFromCursor(t *testing.T) {
	pages := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pages++
		switch r.URL.Query().Get("since") {
		case "100":
			w.Write([]byte(`[
				{"id": 101, "name": "a", "full_name": "o1/a", "owner": {"login": "o1"}, "fork": false},
				{"id": 102, "name": "b", "full_name": "o2/b", "owner": {"login": "o2"}, "fork": true}
			]`))
		case "102":
			w.Write([]byte(`[{"id": 103, "name": "c", "full_name": "o3/c", "owner": {"login": "o3"}, "fork": false}]`))
		default:
			w.Write([]byte(`[]`))
		}
	}))
	defer server.Close()

	logger, err := log.NewCslLogger()
	require.NoError(t, err)
	loader, err := cfg.NewMockLoader()
	require.NoError(t, err)
	config, err := loader.Load()
	require.NoError(t, err)
	config.GithubApi.ApiUrl = server.URL

	src := newApiSource(githubapi.NewCaller(logger, config), 100, 2)
	var ids []int64
	for {
		item, err := src.Next(context.Background())
		require.NoError(t, err)
		if item == nil {
			break
		}
		ids = append(ids, item.ID)
		require.NotNil(t, item.Entry)
	}

	assert.Equal(t, []int64{101, 102, 103}, ids)
	assert.Equal(t, 3, pages)
}

func TestTargetSourceRejectsMalformedTarget(t *testing.T) {
	src := newTargetSource(nil, nil, []string{"not-a-full-name"})
	_, err := src.Next(context.Background())
	assert.Error(t, err)
}

func TestTargetSourceResolvesNumericIdViaApi(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/repositories/7341", r.URL.Path)
		w.Write([]byte(`{"id": 7341, "name": "project", "full_name": "someone/project", "owner": {"login": "someone"}}`))
	}))
	defer server.Close()

	logger, err := log.NewCslLogger()
	require.NoError(t, err)
	loader, err := cfg.NewMockLoader()
	require.NoError(t, err)
	config, err := loader.Load()
	require.NoError(t, err)
	config.GithubApi.ApiUrl = server.URL

	src := newTargetSource(nil, githubapi.NewCaller(logger, config), []string{"7341"})
	item, err := src.Next(context.Background())
	require.NoError(t, err)
	require.NotNil(t, item)
	assert.Equal(t, int64(7341), item.ID)
	assert.Equal(t, "someone", item.Owner)
	assert.Equal(t, "project", item.Name)

	item, err = src.Next(context.Background())
	require.NoError(t, err)
	assert.Nil(t, item)
}
