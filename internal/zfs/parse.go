package zfs

import (
	"strconv"
	"strings"
	"time"

	"github.com/transdock/transdock/internal/result"
	"go.uber.org/zap"
)

// splitTabRow splits a `-H` tab-separated row and reports whether it
// has at least minCols columns. Parsing is tolerant at row granularity
// (short rows are skipped with a warning by the caller). Cells of an
// accepted row are not rejected: a size cell that does not parse
// becomes zero, and a ratio or fragmentation cell that does not parse
// takes its default.
func splitTabRow(line string, minCols int) ([]string, bool) {
	cols := strings.Split(line, "\t")
	return cols, len(cols) >= minCols
}

func parseDatasetRow(line string, logger *zap.Logger) (Dataset, bool) {
	cols, ok := splitTabRow(line, 5)
	if !ok {
		if logger != nil {
			logger.Warn("skipping malformed dataset row", zap.String("row", line))
		}
		return Dataset{}, false
	}

	nameResult := ParseDatasetName(cols[0])
	if nameResult.IsErr() {
		if logger != nil {
			logger.Warn("skipping dataset row with invalid name", zap.String("row", line))
		}
		return Dataset{}, false
	}

	used := mustSize(cols[1])
	avail := mustSize(cols[2])
	refer := mustSize(cols[3])

	return Dataset{
		Name:        nameResult.Must(),
		Used:        used,
		Available:   avail,
		Referenced:  refer,
		Compression: colOr(cols, 4, ""),
		Checksum:    colOr(cols, 5, ""),
	}, true
}

func colOr(cols []string, i int, def string) string {
	if i < len(cols) {
		return cols[i]
	}
	return def
}

func mustSize(s string) SizeValue {
	r := ParseZFSString(s)
	if r.IsErr() {
		return SizeValue{}
	}
	return r.Must()
}

func parseSnapshotRow(line string, logger *zap.Logger) (Snapshot, bool) {
	cols, ok := splitTabRow(line, 5)
	if !ok {
		if logger != nil {
			logger.Warn("skipping malformed snapshot row", zap.String("row", line))
		}
		return Snapshot{}, false
	}

	nameParts := strings.SplitN(cols[0], "@", 2)
	if len(nameParts) != 2 {
		if logger != nil {
			logger.Warn("skipping snapshot row with no '@'", zap.String("row", line))
		}
		return Snapshot{}, false
	}
	dsResult := ParseDatasetName(nameParts[0])
	if dsResult.IsErr() {
		if logger != nil {
			logger.Warn("skipping snapshot row with invalid dataset name", zap.String("row", line))
		}
		return Snapshot{}, false
	}

	created := time.Unix(0, 0)
	if unixSeconds, err := strconv.ParseInt(cols[3], 10, 64); err == nil {
		created = time.Unix(unixSeconds, 0)
	}

	var clones []string
	if len(cols) > 4 && cols[4] != "-" && cols[4] != "" {
		clones = strings.Split(cols[4], ",")
	}

	return Snapshot{
		Dataset:    dsResult.Must(),
		ShortName:  nameParts[1],
		Used:       mustSize(cols[1]),
		Referenced: mustSize(cols[2]),
		Created:    created,
		Clones:     clones,
	}, true
}

// parsePoolListRow parses one row of
// `zpool list -H -o name,size,alloc,free,expandsz,frag,health,dedup` output:
// 8 tab-separated columns, in that column order.
func parsePoolListRow(line string, logger *zap.Logger) (Pool, bool) {
	cols, ok := splitTabRow(line, 8)
	if !ok {
		if logger != nil {
			logger.Warn("skipping malformed pool row", zap.String("row", line))
		}
		return Pool{}, false
	}

	frag := parseFragPercent(colOr(cols, 5, "0"))
	dedup := parseRatio(colOr(cols, 7, "1.00x"))

	return Pool{
		Name:          cols[0],
		Size:          mustSize(cols[1]),
		Allocated:     mustSize(cols[2]),
		Free:          mustSize(cols[3]),
		Expandsize:    mustSize(colOr(cols, 4, "-")),
		Fragmentation: frag,
		State:         PoolState(strings.ToUpper(colOr(cols, 6, ""))),
		Dedup:         dedup,
	}, true
}

func parseFragPercent(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "%")
	if s == "-" || s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}

func parseRatio(s string) float64 {
	s = strings.TrimSuffix(strings.TrimSpace(s), "x")
	if s == "-" || s == "" {
		return 1.0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 1.0
	}
	return v
}

// splitLines splits command stdout into non-empty lines.
func splitLines(stdout string) []string {
	lines := strings.Split(strings.TrimRight(stdout, "\n"), "\n")
	out := make([]string, 0, len(lines))
	for _, l := range lines {
		if strings.TrimSpace(l) != "" {
			out = append(out, l)
		}
	}
	return out
}

// expectedColumnsError builds the Parse-kind failure for the "missing
// output with expected-column count" case.
func expectedColumnsError(context string) *result.Error {
	return result.Parse("UNEXPECTED_OUTPUT_SHAPE", "expected tabular output for "+context+" but got none")
}
