package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLanguageNamesRoundTrip(t *testing.T) {
	entry := &Entry{
		LangState: FieldPresent,
		Languages: EncodeLanguages([]string{"Go", "Shell"}),
	}
	assert.Equal(t, []string{"Go", "Shell"}, entry.LanguageNames())
}

func TestLanguageNamesRespectsFieldState(t *testing.T) {
	// Cột languages chỉ có nghĩa khi trạng thái là "đã có dữ liệu".
	entry := &Entry{LangState: FieldUnattempted, Languages: `["Go"]`}
	assert.Nil(t, entry.LanguageNames())

	entry.LangState = FieldAbsent
	assert.Nil(t, entry.LanguageNames())
}

func TestEncodeLanguagesEmpty(t *testing.T) {
	assert.Empty(t, EncodeLanguages(nil))
}

func TestFullName(t *testing.T) {
	entry := &Entry{Owner: "someone", Name: "project"}
	assert.Equal(t, "someone/project", entry.FullName())
}

func TestContentTypeString(t *testing.T) {
	assert.Equal(t, "empty", ContentEmpty.String())
	assert.Equal(t, "code", ContentCode.String())
	assert.Equal(t, "noncode", ContentNonCode.String())
	assert.Equal(t, "unknown", ContentUnknown.String())
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", TruncateString("abc", 10))
	assert.Equal(t, "abcde", TruncateString("abcdefgh", 5))
}
