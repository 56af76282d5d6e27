package scraper

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractLanguages(t *testing.T) {
	html := `
		<ol class="repository-lang-stats-numbers">
			<li><span class="lang">Go</span> <span class="percent">82.1%</span></li>
			<li><span class="lang">Shell</span> <span class="percent">12.4%</span></li>
			<li><span class="lang">Other</span> <span class="percent">5.5%</span></li>
		</ol>`
	assert.Equal(t, []string{"Go", "Shell"}, extractLanguages(html))
}

func TestExtractLanguagesNone(t *testing.T) {
	assert.Empty(t, extractLanguages(`<div class="summary">nothing here</div>`))
}

func TestExtractFork(t *testing.T) {
	html := `
		<span class="fork-flag">
			<span class="text">forked from <a href="/upstream/project">upstream/project</a></span>
		</span>`
	parent, isFork := extractFork(html)
	assert.True(t, isFork)
	assert.Equal(t, "upstream/project", parent)
}

func TestExtractForkNotAFork(t *testing.T) {
	parent, isFork := extractFork(`<div class="repohead">plain repository</div>`)
	assert.False(t, isFork)
	assert.Empty(t, parent)
}

func TestExtractForkWithoutLineage(t *testing.T) {
	// Cờ fork có nhưng block parent bị cắt: vẫn là fork, parent trống.
	parent, isFork := extractFork(`<span class="fork-flag"><span class="text">forked</span></span>`)
	assert.True(t, isFork)
	assert.Empty(t, parent)
}

func TestExtractDescription(t *testing.T) {
	html := `<span itemprop="about">  A tiny catalog builder  </span>`
	assert.Equal(t, "A tiny catalog builder", extractDescription(html))
}

func TestExtractDefaultBranch(t *testing.T) {
	pageURL := "https://github.com/someone/project"
	html := `<link href="https://github.com/someone/project/commits/develop.atom" rel="alternate">`
	assert.Equal(t, "develop", extractDefaultBranch(html, pageURL))
	assert.Empty(t, extractDefaultBranch(`<link href="https://example.com/feed.atom">`, pageURL))
}

func TestExtractIsEmpty(t *testing.T) {
	assert.True(t, extractIsEmpty(`<div><h3>This repository is empty.</h3></div>`))
	assert.False(t, extractIsEmpty(`<div><h3>Files</h3></div>`))
}

func TestExtractIsProblem(t *testing.T) {
	assert.True(t, extractIsProblem(`<h3>There is a problem with this repository on disk.</h3>`))
}

func TestExtractFiles(t *testing.T) {
	html := `
		<div class="file-wrap">
		<table>
			<tr><td><a href="/someone/project/tree/master/cmd">cmd</a></td></tr>
			<tr><td><a href="/someone/project/blob/master/main.go">main.go</a></td></tr>
			<tr><td><a href="/someone/project/blob/master/README.md">README.md</a></td></tr>
		</table>
		</div>`
	files, emptyListing := extractFiles(html, "someone", "project", "master")
	assert.False(t, emptyListing)
	assert.ElementsMatch(t, []string{"cmd", "main.go", "README.md"}, files)
}

func TestExtractFilesSubmodulePathTruncated(t *testing.T) {
	html := `
		<div class="file-wrap"><table>
			<tr><td><a href="/someone/project/tree/master/vendor/nested/thing">vendor</a></td></tr>
		</table></div>`
	files, _ := extractFiles(html, "someone", "project", "master")
	assert.Equal(t, []string{"vendor"}, files)
}

func TestExtractFilesEmptyListing(t *testing.T) {
	html := `<div class="file-wrap"><table></table></div>`
	files, emptyListing := extractFiles(html, "someone", "project", "master")
	assert.Empty(t, files)
	assert.True(t, emptyListing)
}

func TestExtractFilesNoTable(t *testing.T) {
	files, emptyListing := extractFiles(`<div>no listing at all</div>`, "someone", "project", "master")
	assert.Empty(t, files)
	assert.False(t, emptyListing)
}
