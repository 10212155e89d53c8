package zfs

import (
	"strings"

	"github.com/transdock/transdock/internal/result"
	"github.com/transdock/transdock/internal/security"
)

// DatasetName is an immutable pool + ordered path-component value,
// rendered as "pool[/component]*".
type DatasetName struct {
	pool string
	path []string
}

// ParseDatasetName validates and parses a rendered dataset name.
func ParseDatasetName(s string) result.Result[DatasetName] {
	r := security.ValidateDatasetName(s)
	if r.IsErr() {
		return result.Fail[DatasetName](r.Err())
	}
	parts := strings.Split(s, "/")
	return result.Ok(DatasetName{pool: parts[0], path: parts[1:]})
}

// NewDatasetName builds a DatasetName from a pool and path components
// without re-parsing a rendered string.
func NewDatasetName(pool string, path ...string) DatasetName {
	return DatasetName{pool: pool, path: append([]string(nil), path...)}
}

// String renders "pool[/component]*".
func (d DatasetName) String() string {
	if len(d.path) == 0 {
		return d.pool
	}
	return d.pool + "/" + strings.Join(d.path, "/")
}

// Pool returns the pool component.
func (d DatasetName) Pool() string { return d.pool }

// Path returns the ordered path components beneath the pool.
func (d DatasetName) Path() []string { return append([]string(nil), d.path...) }

// IsPoolRoot reports whether this name has no path components.
func (d DatasetName) IsPoolRoot() bool { return len(d.path) == 0 }

// Parent returns the parent DatasetName and true, or the zero value and
// false if this is already a pool root.
func (d DatasetName) Parent() (DatasetName, bool) {
	if d.IsPoolRoot() {
		return DatasetName{}, false
	}
	return DatasetName{pool: d.pool, path: d.path[:len(d.path)-1]}, true
}

// Child returns a DatasetName one level beneath this one.
func (d DatasetName) Child(component string) DatasetName {
	return DatasetName{pool: d.pool, path: append(append([]string(nil), d.path...), component)}
}

// Equal compares two DatasetNames structurally.
func (d DatasetName) Equal(other DatasetName) bool {
	if d.pool != other.pool || len(d.path) != len(other.path) {
		return false
	}
	for i := range d.path {
		if d.path[i] != other.path[i] {
			return false
		}
	}
	return true
}
