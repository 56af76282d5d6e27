package indexer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/thep200/github-cataloguer/internal/githubapi"
	"github.com/thep200/github-cataloguer/internal/model"
)

func TestEntryFromDetailCarriesHostTimestamps(t *testing.T) {
	created := time.Date(2015, 3, 1, 10, 0, 0, 0, time.UTC)
	updated := time.Date(2024, 11, 20, 8, 30, 0, 0, time.UTC)
	pushed := time.Date(2024, 11, 21, 9, 45, 0, 0, time.UTC)

	entry := entryFromDetail(&githubapi.RepoDetail{
		ID:            7341,
		Name:          "project",
		FullName:      "someone/project",
		Owner:         githubapi.Owner{Login: "someone"},
		DefaultBranch: "main",
		CreatedAt:     created,
		UpdatedAt:     updated,
		PushedAt:      pushed,
	})

	assert.Equal(t, int64(7341), entry.ID)
	// Mốc thời gian là của host, không phải thời gian ghi cục bộ.
	assert.Equal(t, created, entry.CreatedAt)
	assert.Equal(t, updated, entry.UpdatedAt)
	assert.Equal(t, pushed, entry.PushedAt)
}

func TestEntryFromDetailMapsForkLineage(t *testing.T) {
	entry := entryFromDetail(&githubapi.RepoDetail{
		ID:     9,
		Name:   "copy",
		Owner:  githubapi.Owner{Login: "someone"},
		Fork:   true,
		Parent: &githubapi.RepoRef{ID: 7, FullName: "upstream/copy"},
		Source: &githubapi.RepoRef{ID: 5, FullName: "origin/copy"},
	})
	assert.Equal(t, model.Fork, entry.ForkState)
	assert.Equal(t, "upstream/copy", entry.ForkParent)
	assert.Equal(t, "origin/copy", entry.ForkRoot)

	plain := entryFromDetail(&githubapi.RepoDetail{ID: 10, Name: "own", Owner: githubapi.Owner{Login: "someone"}})
	assert.Equal(t, model.NotFork, plain.ForkState)
}
