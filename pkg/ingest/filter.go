package ingest

import "strings"

// Filter decides whether a notification is short-form content worth queueing.
// IDLength of zero disables the id-length heuristic.
type Filter struct {
	MarkerTerm string
	IDLength   int
}

// Accept reports whether n qualifies, and why not when it does not.
func (f Filter) Accept(n Notification) (bool, string) {
	if term := strings.ToLower(strings.TrimSpace(f.MarkerTerm)); term != "" {
		if strings.Contains(strings.ToLower(n.Title), term) || strings.Contains(strings.ToLower(n.Description), term) {
			return true, ""
		}
	}
	if f.IDLength > 0 && len(n.VideoID) == f.IDLength {
		return true, ""
	}
	return false, "not a short-form video"
}
