package indexer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/thep200/github-cataloguer/internal/model"
)

// Các hàm báo cáo ghi ra writer thay vì logger: đây là output cho
// người dùng, không phải nhật ký vận hành.

// PrintSummary in thống kê tổng hợp của catalog.
func (ix *Indexer) PrintSummary(ctx context.Context, w io.Writer) error {
	summary, err := ix.Store.Summarize(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(w, "Catalog summary\n")
	fmt.Fprintf(w, "  Total entries:        %d\n", summary.TotalEntries)
	fmt.Fprintf(w, "  Visible entries:      %d\n", summary.VisibleEntries)
	fmt.Fprintf(w, "  Deleted entries:      %d\n", summary.DeletedEntries)
	fmt.Fprintf(w, "  Fork entries:         %d\n", summary.ForkEntries)
	fmt.Fprintf(w, "  With languages:       %d\n", summary.EntriesWithLanguages)
	fmt.Fprintf(w, "  With readmes:         %d\n", summary.EntriesWithReadmes)
	fmt.Fprintf(w, "  Empty repositories:   %d\n", summary.EmptyEntries)
	fmt.Fprintf(w, "  Classified code:      %d\n", summary.CodeEntries)
	fmt.Fprintf(w, "  Classified noncode:   %d\n", summary.NonCodeEntries)
	fmt.Fprintf(w, "  Enumeration cursor:   %d\n", summary.LastSeenID)

	usage, err := ix.Store.LanguageUsage(ctx)
	if err != nil {
		return err
	}
	if len(usage) == 0 {
		return nil
	}
	names := make([]string, 0, len(usage))
	for name := range usage {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if usage[names[i]] != usage[names[j]] {
			return usage[names[i]] > usage[names[j]]
		}
		return names[i] < names[j]
	})
	if len(names) > 20 {
		names = names[:20]
	}
	fmt.Fprintf(w, "Language usage\n")
	for _, name := range names {
		fmt.Fprintf(w, "  %-20s %d\n", name, usage[name])
	}
	return nil
}

// PrintDetails in toàn bộ trường đã biết của các repository chỉ định.
func (ix *Indexer) PrintDetails(ctx context.Context, w io.Writer, targets []string) error {
	if len(targets) == 0 {
		return errors.New("no repositories specified")
	}

	for _, target := range targets {
		entry, err := ix.findTarget(ctx, target)
		if err != nil {
			return err
		}
		if entry == nil {
			fmt.Fprintf(w, "%s: not in catalog\n", target)
			continue
		}
		printEntry(w, entry)
	}
	return nil
}

// findTarget tra cứu một target dạng id hoặc "owner/name" trong catalog.
func (ix *Indexer) findTarget(ctx context.Context, target string) (*model.Entry, error) {
	target = strings.TrimSpace(target)
	if id, perr := strconv.ParseInt(target, 10, 64); perr == nil && id > 0 {
		return ix.Store.Get(ctx, id)
	}
	parts := strings.SplitN(target, "/", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return nil, fmt.Errorf("invalid target %q, expected an id or owner/name", target)
	}
	return ix.Store.Find(ctx, parts[0], parts[1])
}

func printEntry(w io.Writer, entry *model.Entry) {
	fmt.Fprintf(w, "%s (id %d)\n", entry.FullName(), entry.ID)
	fmt.Fprintf(w, "  Description:    %s\n", entry.Description)
	fmt.Fprintf(w, "  Homepage:       %s\n", entry.Homepage)
	fmt.Fprintf(w, "  Default branch: %s\n", entry.DefaultBranch)
	fmt.Fprintf(w, "  Languages:      %s%s\n", fieldValue(entry.LangState, strings.Join(entry.LanguageNames(), ", ")), sourceTag(entry.LangState, entry.LangSource))
	fmt.Fprintf(w, "  Readme:         %s%s\n", fieldValue(entry.ReadmeState, fmt.Sprintf("%d bytes", len(entry.Readme))), sourceTag(entry.ReadmeState, entry.ReadmeSource))
	switch entry.ForkState {
	case model.Fork:
		fmt.Fprintf(w, "  Fork:           yes, from %s\n", entry.ForkParent)
	case model.NotFork:
		fmt.Fprintf(w, "  Fork:           no\n")
	default:
		fmt.Fprintf(w, "  Fork:           unknown\n")
	}
	fmt.Fprintf(w, "  Content type:   %s\n", entry.ContentType)
	fmt.Fprintf(w, "  Visible:        %v\n", entry.IsVisible)
	fmt.Fprintf(w, "  Deleted:        %v\n", entry.IsDeleted)
	fmt.Fprintf(w, "  Last refreshed: %s\n", entry.DataRefreshed.Format("2006-01-02 15:04:05"))
}

func sourceTag(state model.FieldState, source string) string {
	if state == model.FieldUnattempted || source == "" {
		return ""
	}
	return " (via " + source + ")"
}

func fieldValue(state model.FieldState, present string) string {
	switch state {
	case model.FieldPresent:
		return present
	case model.FieldAbsent:
		return "(none)"
	default:
		return "(not yet collected)"
	}
}

// MarkDeleted đánh dấu thủ công các repository chỉ định là đã xoá.
// Không có target nào là lỗi: thao tác này không bao giờ được phép
// áp lên toàn bộ catalog.
func (ix *Indexer) MarkDeleted(ctx context.Context, targets []string) error {
	if len(targets) == 0 {
		return errors.New("mark-deleted requires explicit targets")
	}

	for _, target := range targets {
		entry, err := ix.findTarget(ctx, target)
		if err != nil {
			return err
		}
		if entry == nil {
			return fmt.Errorf("%s is not in the catalog", target)
		}
		if err := ix.markDeleted(ctx, entry); err != nil {
			return err
		}
	}
	return nil
}

// ListDeleted in các entry đã đánh dấu xoá, theo thứ tự id.
func (ix *Indexer) ListDeleted(ctx context.Context, w io.Writer) error {
	count := 0
	err := ix.Store.Iterate(ctx, model.Filter{OnlyDeleted: true}, func(entry *model.Entry) error {
		fmt.Fprintf(w, "%d\t%s\n", entry.ID, entry.FullName())
		count++
		return nil
	})
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "%d deleted entries\n", count)
	return nil
}
