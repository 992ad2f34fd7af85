package auth

import (
	"sort"

	apperrors "github.com/danilaloko/eco-bot/pkg/util/errorutil"
)

// AdminAllowList is the configured set of administrator platform ids.
type AdminAllowList struct {
	ids map[int64]struct{}
}

// NewAdminAllowList builds the list; duplicate ids collapse.
func NewAdminAllowList(ids []int64) *AdminAllowList {
	set := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return &AdminAllowList{ids: set}
}

// IsAdmin reports whether id may use administrator operations.
func (l *AdminAllowList) IsAdmin(id int64) bool {
	if l == nil {
		return false
	}
	_, ok := l.ids[id]
	return ok
}

// AdminIDs returns the ids in ascending order.
func (l *AdminAllowList) AdminIDs() []int64 {
	if l == nil {
		return nil
	}
	out := make([]int64, 0, len(l.ids))
	for id := range l.ids {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Authorize returns a forbidden error for ids outside the list.
func (l *AdminAllowList) Authorize(id int64) error {
	if !l.IsAdmin(id) {
		return apperrors.NewForbidden("administrator access required")
	}
	return nil
}
