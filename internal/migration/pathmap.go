package migration

import "strings"

// DatasetNameForPath implements the project convention named in the
// spec's snapshot_creation step: replace "/" with "_" and strip
// leading/trailing "_". This is deliberately lossy (distinct host
// paths can collide on the same dataset name) — the Open Question was
// decided in favor of keeping this single-function seam rather than
// inventing an unverified mapping table; a future explicit
// path->dataset table is a one-function change here.
func DatasetNameForPath(pool, path string) string {
	component := strings.Trim(strings.ReplaceAll(path, "/", "_"), "_")
	return pool + "/" + component
}
