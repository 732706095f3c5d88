package queue

import (
	"strings"
	"time"
)

// Row is one queue entry. Index is the 1-based sheet row and is only stable
// until rows are inserted or removed above it.
type Row struct {
	Index  int
	values map[Field]string
}

// NewRow builds a row directly from field values.
func NewRow(index int, values map[Field]string) Row {
	copied := make(map[Field]string, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return Row{Index: index, values: copied}
}

// Get returns the trimmed value of a field, or "" when the schema does not map it.
func (r Row) Get(f Field) string {
	return strings.TrimSpace(r.values[f])
}

// Raw returns the untrimmed cell content.
func (r Row) Raw(f Field) string {
	return r.values[f]
}

func (r Row) has(f Field) bool {
	return r.Get(f) != ""
}

// Predicate decides whether a row is eligible for an operation.
type Predicate func(Row) bool

// StageReady rows have media to upload and have not been staged, published or failed.
func StageReady(r Row) bool {
	return r.has(FieldMediaURL) &&
		!r.has(FieldPublishedAt) &&
		!r.has(FieldCreationID) &&
		!r.has(FieldError)
}

// CommitReady rows hold a creation container that has not been published or failed.
func CommitReady(r Row) bool {
	return r.has(FieldCreationID) &&
		!r.has(FieldPublishedAt) &&
		!r.has(FieldError)
}

// Reapable rows are published and still reference a hosted asset.
func Reapable(r Row) bool {
	return r.has(FieldPublishedAt) && r.has(FieldMediaURL)
}

// State names the lifecycle position of a row.
type State string

const (
	StatePending     State = "pending"
	StateStageReady  State = "stage-ready"
	StateCommitReady State = "commit-ready"
	StatePublished   State = "published"
	StateFailed      State = "failed"
)

func (r Row) State() State {
	switch {
	case r.has(FieldPublishedAt):
		return StatePublished
	case r.has(FieldError):
		return StateFailed
	case CommitReady(r):
		return StateCommitReady
	case StageReady(r):
		return StateStageReady
	default:
		return StatePending
	}
}

// FirstMatch scans rows top to bottom and returns the earliest row satisfying pred.
func FirstMatch(rows []Row, pred Predicate) (Row, bool) {
	for _, r := range rows {
		if pred(r) {
			return r, true
		}
	}
	return Row{}, false
}

// Filter returns every row satisfying pred, in sheet order.
func Filter(rows []Row, pred Predicate) []Row {
	var out []Row
	for _, r := range rows {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

// TimestampLayout is the ISO-8601 form written to timestamp and published_at cells.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}
