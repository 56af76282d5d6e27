package indexer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/thep200/github-cataloguer/internal/githubapi"
	"github.com/thep200/github-cataloguer/pkg/log"
)

func newTestPolicy(t *testing.T, maxFailures int) *FailurePolicy {
	t.Helper()
	logger, err := log.NewCslLogger()
	require.NoError(t, err)
	return NewFailurePolicy(logger, nil, maxFailures)
}

func TestPolicyCountsConsecutiveFailures(t *testing.T) {
	p := newTestPolicy(t, 3)
	ctx := context.Background()
	boom := errors.New("boom")

	err := p.Do(ctx, "step one", func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, p.Failures())

	err = p.Do(ctx, "step two", func() error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 2, p.Failures())

	err = p.Do(ctx, "step three", func() error { return boom })
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, 3, p.Failures())
}

func TestPolicyResetsOnSuccess(t *testing.T) {
	p := newTestPolicy(t, 3)
	ctx := context.Background()
	boom := errors.New("boom")

	// Lỗi xen kẽ thành công không bao giờ chạm ngưỡng.
	for i := 0; i < 10; i++ {
		assert.NotErrorIs(t, p.Do(ctx, "failing", func() error { return boom }), ErrAborted)
		require.NoError(t, p.Do(ctx, "passing", func() error { return nil }))
		assert.Equal(t, 0, p.Failures())
	}
}

func TestPolicyTerminalOutcomesDoNotCount(t *testing.T) {
	p := newTestPolicy(t, 2)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := p.Do(ctx, "resolving a vanished repo", func() error { return githubapi.ErrNotFound })
		assert.ErrorIs(t, err, githubapi.ErrNotFound)
		err = p.Do(ctx, "resolving a blocked repo", func() error { return githubapi.ErrBlocked })
		assert.ErrorIs(t, err, githubapi.ErrBlocked)
	}
	assert.Equal(t, 0, p.Failures())
}

func TestPolicyRetriesTransientErrorsInPlace(t *testing.T) {
	p := newTestPolicy(t, 5)
	calls := 0

	// Một lỗi thoáng qua rồi thành công: item hoàn tất ngay trong
	// cùng một lần Do, không bị trả về cho sweep bỏ qua.
	err := p.Do(context.Background(), "fetching detail", func() error {
		calls++
		if calls == 1 {
			return githubapi.ErrTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, p.Failures())
}

func TestPolicyTransientRetriesStopAtCeiling(t *testing.T) {
	p := newTestPolicy(t, 3)
	calls := 0

	err := p.Do(context.Background(), "fetching detail", func() error {
		calls++
		return githubapi.ErrTransient
	})
	assert.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, 3, calls)
}

func TestPolicyRateLimitedWithoutGovernor(t *testing.T) {
	p := newTestPolicy(t, 2)
	err := p.Do(context.Background(), "listing", func() error { return githubapi.ErrRateLimited })
	assert.ErrorIs(t, err, githubapi.ErrRateLimited)
	assert.Equal(t, 0, p.Failures())
}

func TestPolicyContextCancellationPassesThrough(t *testing.T) {
	p := newTestPolicy(t, 2)
	err := p.Do(context.Background(), "fetching", func() error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, p.Failures())
}
