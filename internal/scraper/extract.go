// Các hàm trích xuất trường từ HTML trang repository.
// Đây là các pattern cơ học, gắn chặt với markup của host;
// markup đổi thì chỉ cần sửa ở đây.

package scraper

import "strings"

const (
	emptyRepoMarker   = "<h3>This repository is empty.</h3>"
	problemRepoMarker = "<h3>There is a problem with this repository on disk.</h3>"
	langMarker        = `class="lang">`
	forkFlagMarker    = `<span class="fork-flag">`
	forkTextMarker    = `<span class="text">forked from <a href="`
	descMarker        = `itemprop="about">`
)

func extractIsEmpty(html string) bool {
	return strings.Contains(html, emptyRepoMarker)
}

func extractIsProblem(html string) bool {
	return strings.Contains(html, problemRepoMarker)
}

func extractLanguages(html string) []string {
	var languages []string
	start := strings.Index(html, langMarker)
	for start >= 0 {
		rest := html[start+len(langMarker):]
		end := strings.Index(rest, "<")
		if end < 0 {
			break
		}
		lang := strings.TrimSpace(rest[:end])
		// "Other" là nhãn gộp của host, không phải một ngôn ngữ.
		if lang != "" && lang != "Other" {
			languages = append(languages, lang)
		}
		next := strings.Index(rest[end:], langMarker)
		if next < 0 {
			break
		}
		start = start + len(langMarker) + end + next
	}
	return languages
}

// extractFork trả về (tên parent, có phải fork không).
// Thấy fork-flag nhưng không đọc được parent thì vẫn là fork,
// lineage để trống.
func extractFork(html string) (string, bool) {
	spanStart := strings.Index(html, forkFlagMarker)
	if spanStart < 0 {
		return "", false
	}
	rest := html[spanStart:]
	start := strings.Index(rest, forkTextMarker)
	if start < 0 {
		return "", true
	}
	rest = rest[start+len(forkTextMarker):]
	end := strings.Index(rest, `"`)
	if end < 0 {
		return "", true
	}
	parent := strings.TrimPrefix(rest[:end], "/")
	return parent, true
}

func extractDescription(html string) string {
	start := strings.Index(html, descMarker)
	if start < 0 {
		return ""
	}
	rest := html[start+len(descMarker):]
	end := strings.Index(rest, "</span>")
	if end < 0 {
		return ""
	}
	return strings.TrimSpace(rest[:end])
}

// extractDefaultBranch dựa vào link atom của trang commits:
//
//	<link href="https://github.com/OWNER/NAME/commits/BRANCH.atom" ...
func extractDefaultBranch(html, pageURL string) string {
	marker := `<link href="` + pageURL + `/commits/`
	start := strings.Index(html, marker)
	if start < 0 {
		return ""
	}
	rest := html[start+len(marker):]
	end := strings.Index(rest, ".atom")
	if end < 0 {
		return ""
	}
	return rest[:end]
}

// extractFiles đọc danh sách file/thư mục cấp cao nhất từ bảng file-wrap.
// Trả về (files, true) khi bảng tồn tại nhưng không chứa mục nào:
// trường hợp đó repo thực chất là trống.
func extractFiles(html, owner, name, branch string) ([]string, bool) {
	start := strings.Index(html, `"file-wrap"`)
	if start < 0 {
		return nil, false
	}
	section := html[start:]
	if end := strings.Index(section, "</table"); end > 0 {
		section = section[:end]
	}

	if branch == "" {
		branch = "master"
	}
	base := "/" + owner + "/" + name
	filePat := base + "/blob/" + branch + "/"
	dirPat := base + "/tree/" + branch + "/"

	var files []string
	seen := make(map[string]bool)
	for _, pat := range []string{filePat, dirPat} {
		rest := section
		for {
			idx := strings.Index(rest, pat)
			if idx < 0 {
				break
			}
			rest = rest[idx+len(pat):]
			end := strings.Index(rest, `"`)
			if end < 0 {
				break
			}
			path := rest[:end]
			// Mục con của submodule vẫn tính như một thư mục cấp cao nhất.
			if slash := strings.Index(path, "/"); slash > 0 {
				path = path[:slash]
			}
			if path != "" && !seen[path] {
				seen[path] = true
				files = append(files, path)
			}
		}
	}

	if len(files) == 0 {
		return nil, true
	}
	return files, false
}
