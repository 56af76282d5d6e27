// Gói classify phân loại nội dung repository thành code / noncode
// dựa trên bảng dữ liệu thuần túy: tên ngôn ngữ và đuôi file.
// Các bảng là pluggable, engine không hard-code heuristic nào.

package classify

import (
	"path"
	"strings"
)

type Verdict int8

const (
	Unknown Verdict = 0
	Code    Verdict = 1
	NonCode Verdict = 2
)

func (v Verdict) String() string {
	switch v {
	case Code:
		return "code"
	case NonCode:
		return "noncode"
	default:
		return "unknown"
	}
}

type Classifier struct {
	codeLanguages    map[string]bool
	noncodeLanguages map[string]bool
	codeExtensions   map[string]bool
	docFiles         map[string]bool
}

// Default trả về classifier với các bảng dựng sẵn cho GitHub.
func Default() *Classifier {
	return &Classifier{
		codeLanguages:    buildSet(codeLanguageTable),
		noncodeLanguages: buildSet(noncodeLanguageTable),
		codeExtensions:   buildSet(codeExtensionTable),
		docFiles:         buildSet(docFileTable),
	}
}

func buildSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[strings.ToLower(item)] = true
	}
	return set
}

// Classify phân loại từ bằng chứng ngôn ngữ và danh sách file.
// Một ngôn ngữ lập trình thật sự là đủ để kết luận code; chỉ thấy
// markup/doc thì là noncode; không có bằng chứng nào thì unknown.
func (c *Classifier) Classify(languages []string, files []string) Verdict {
	sawNonCode := false
	for _, lang := range languages {
		key := strings.ToLower(lang)
		if c.codeLanguages[key] {
			return Code
		}
		if c.noncodeLanguages[key] {
			sawNonCode = true
		}
	}

	sawDocOnly := len(files) > 0
	for _, file := range files {
		name := strings.ToLower(file)
		ext := strings.TrimPrefix(path.Ext(name), ".")
		if c.codeExtensions[ext] {
			return Code
		}
		// Mục không có đuôi (thư mục, Makefile...) không phải bằng chứng
		// "chỉ có tài liệu".
		if !c.docFiles[name] && ext != "md" && ext != "rst" && ext != "txt" {
			sawDocOnly = false
		}
	}

	if sawNonCode || sawDocOnly {
		return NonCode
	}
	return Unknown
}
