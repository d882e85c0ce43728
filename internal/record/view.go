package record

import (
	"context"

	"github.com/five82/logsift/internal/query"
)

// View pairs the full store with the subset that passes the active filter.
// Records added while a filter is active only enter the visible store when
// they match it.
type View struct {
	All     *Store
	Visible *Store

	filter query.Node
	regex  query.RegexMatcher
}

// NewView returns an unfiltered view over an empty store.
func NewView(re query.RegexMatcher, parsers ...LineParser) *View {
	return &View{
		All:     NewStore(parsers...),
		Visible: NewStore(parsers...),
		regex:   re,
	}
}

// Filter returns the active filter, or nil when none is set.
func (v *View) Filter() query.Node {
	return v.filter
}

// Add appends rec to the full store and, when it passes the filter, to the
// visible store.
func (v *View) Add(rec *Record) {
	v.All.Add(rec)
	if v.filter == nil || query.Matches(v.filter, rec, v.regex) {
		v.Visible.Add(rec.clone())
	}
}

// SetFilter recomputes the visible store. A nil filter shows everything.
func (v *View) SetFilter(ctx context.Context, n query.Node) error {
	if n == nil {
		n = query.Boolean{Value: true}
	}
	visible, err := v.All.FilterParallel(ctx, n, v.regex)
	if err != nil {
		return err
	}
	v.filter = n
	if b, ok := n.(query.Boolean); ok && b.Value {
		v.filter = nil
	}
	v.Visible = visible
	return nil
}

// Reparse runs the given parsers over every record again and reapplies the
// filter.
func (v *View) Reparse(ctx context.Context, parsers []LineParser) error {
	v.All.SetParsers(parsers)
	v.Visible.SetParsers(parsers)
	if err := v.All.Reparse(ctx); err != nil {
		return err
	}
	return v.SetFilter(ctx, v.filter)
}

// Clear empties both stores.
func (v *View) Clear() {
	v.All.Clear()
	v.Visible.Clear()
}
