package indexer

import "fmt"

// Op là một thao tác reconciliation trên catalog. Mọi thao tác đều
// idempotent: chạy lại trên catalog đã hội tụ không thay đổi gì.
type Op int

const (
	OpBuildIndex Op = iota
	OpRebuildIndex
	OpBackfillLanguages
	OpBackfillReadmes
	OpBackfillForks
	OpInferType
	OpVerifyIndex
	OpRebuildMeta
)

var opNames = map[Op]string{
	OpBuildIndex:        "build-index",
	OpRebuildIndex:      "rebuild-index",
	OpBackfillLanguages: "backfill-languages",
	OpBackfillReadmes:   "backfill-readmes",
	OpBackfillForks:     "backfill-forks",
	OpInferType:         "infer-type",
	OpVerifyIndex:       "verify-index",
	OpRebuildMeta:       "rebuild-meta",
}

func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", int(o))
}

// ParseOp ánh xạ tên thao tác trên dòng lệnh về Op.
func ParseOp(name string) (Op, error) {
	for op, n := range opNames {
		if n == name {
			return op, nil
		}
	}
	return 0, fmt.Errorf("unknown operation %q", name)
}
