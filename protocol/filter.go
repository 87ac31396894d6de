package protocol

import (
	"golang.org/x/exp/slices"
)

// Filter is a subscription filter. Nil/absent dimensions are unconstrained;
// everything present is ANDed. Matches is pure and runs per event per
// subscription, so it allocates nothing.
type Filter struct {
	IDs     []string
	Authors []string
	Kinds   []int
	Tags    map[string][]string
	Since   *int64
	Until   *int64
	Limit   int
	Search  string
}

// Matches reports whether the event satisfies every present constraint.
// Limit is a consumer-side cap and Search is advisory; neither is matched
// here.
func (f Filter) Matches(e *Event) bool {
	if e == nil {
		return false
	}
	if f.IDs != nil && !slices.Contains(f.IDs, e.ID) {
		return false
	}
	if f.Kinds != nil && !slices.Contains(f.Kinds, e.Kind) {
		return false
	}
	if f.Authors != nil && !slices.Contains(f.Authors, e.PubKey) {
		return false
	}
	for marker, allowed := range f.Tags {
		if !e.hasTagValue(marker, allowed) {
			return false
		}
	}
	if f.Since != nil && e.CreatedAt < *f.Since {
		return false
	}
	if f.Until != nil && e.CreatedAt > *f.Until {
		return false
	}
	return true
}

func (e *Event) hasTagValue(marker string, allowed []string) bool {
	for _, tag := range e.Tags {
		if tag.Key() == marker && len(tag) > 1 && slices.Contains(allowed, tag[1]) {
			return true
		}
	}
	return false
}
