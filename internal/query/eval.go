package query

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"
)

// Fields is the record view the evaluator reads.
type Fields interface {
	Line() string
	Field(name string) (string, bool)
}

// RegexMatcher compiles and matches patterns, typically a shared
// *regexcache.Cache.
type RegexMatcher interface {
	Matches(pattern, text string) bool
}

// ValueKind tags a Value.
type ValueKind int

const (
	KindBool ValueKind = iota
	KindNumber
	KindString
)

// Value is the result of evaluating an expression.
type Value struct {
	Kind ValueKind
	Num  int64
	Str  string
	Bool bool
}

func NumberValue(n int64) Value  { return Value{Kind: KindNumber, Num: n} }
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }
func BoolValue(b bool) Value     { return Value{Kind: KindBool, Bool: b} }

func (v Value) String() string {
	switch v.Kind {
	case KindNumber:
		return fmt.Sprintf("Number(%d)", v.Num)
	case KindString:
		return fmt.Sprintf("String(%q)", v.Str)
	default:
		return fmt.Sprintf("Boolean(%t)", v.Bool)
	}
}

// Matches reports whether n selects the record. A bare string or variable at
// the root is a case-insensitive substring search on the raw line; anything
// else must evaluate to Boolean(true).
func Matches(n Node, rec Fields, re RegexMatcher) bool {
	switch n := n.(type) {
	case String:
		return containsFold(rec.Line(), n.Text)
	case Variable:
		return containsFold(rec.Line(), n.Name)
	}
	v := Evaluate(n, rec, re)
	return v.Kind == KindBool && v.Bool
}

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}

// Evaluate computes the value of n against rec. It never fails: missing
// fields, mismatched types and bad patterns all degrade to Boolean(false).
func Evaluate(n Node, rec Fields, re RegexMatcher) Value {
	switch n := n.(type) {
	case String:
		return StringValue(n.Text)
	case Number:
		return NumberValue(n.Value)
	case Boolean:
		return BoolValue(n.Value)
	case Empty:
		return BoolValue(true)
	case Variable:
		raw, ok := rec.Field(n.Name)
		if !ok {
			return BoolValue(false)
		}
		if num, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return NumberValue(num)
		}
		return StringValue(raw)
	case Equal:
		return BoolValue(Evaluate(n.Left, rec, re) == Evaluate(n.Right, rec, re))
	case GreaterEqual:
		return compare(n.Left, n.Right, rec, re, func(c int) bool { return c >= 0 })
	case Greater:
		return compare(n.Left, n.Right, rec, re, func(c int) bool { return c > 0 })
	case LessEqual:
		return compare(n.Left, n.Right, rec, re, func(c int) bool { return c <= 0 })
	case Less:
		return compare(n.Left, n.Right, rec, re, func(c int) bool { return c < 0 })
	case Not:
		return BoolValue(!truthy(n.Operand, rec, re))
	case And:
		l := truthy(n.Left, rec, re)
		r := truthy(n.Right, rec, re)
		return BoolValue(l && r)
	case Or:
		l := truthy(n.Left, rec, re)
		r := truthy(n.Right, rec, re)
		return BoolValue(l || r)
	case RegexMatch:
		l := Evaluate(n.Left, rec, re)
		r := Evaluate(n.Right, rec, re)
		if l.Kind != KindString || r.Kind != KindString || re == nil {
			return BoolValue(false)
		}
		return BoolValue(re.Matches(r.Str, l.Str))
	case RegexMatchUnary:
		var pattern string
		switch op := n.Operand.(type) {
		case String:
			pattern = op.Text
		case Variable:
			pattern = op.Name
		default:
			return BoolValue(false)
		}
		if re == nil {
			return BoolValue(false)
		}
		return BoolValue(re.Matches(pattern, rec.Line()))
	default:
		return BoolValue(false)
	}
}

// truthy coerces an operand of Not, And or Or. A variable is true when the
// field is present, whatever its value. Any other string counts as true only
// when a field of that name exists.
func truthy(n Node, rec Fields, re RegexMatcher) bool {
	if v, ok := n.(Variable); ok {
		_, present := rec.Field(v.Name)
		return present
	}
	v := Evaluate(n, rec, re)
	switch v.Kind {
	case KindNumber:
		return true
	case KindString:
		_, ok := rec.Field(v.Str)
		return ok
	default:
		return v.Bool
	}
}

// compare orders two operands of the same kind. Strings compare numerically
// when both parse as integers and lexically otherwise. Mixed kinds are false.
func compare(l, r Node, rec Fields, re RegexMatcher, ok func(int) bool) Value {
	lv := Evaluate(l, rec, re)
	rv := Evaluate(r, rec, re)

	switch {
	case lv.Kind == KindNumber && rv.Kind == KindNumber:
		return BoolValue(ok(cmp.Compare(lv.Num, rv.Num)))
	case lv.Kind == KindString && rv.Kind == KindString:
		ln, lerr := strconv.ParseInt(lv.Str, 10, 64)
		rn, rerr := strconv.ParseInt(rv.Str, 10, 64)
		if lerr == nil && rerr == nil {
			return BoolValue(ok(cmp.Compare(ln, rn)))
		}
		return BoolValue(ok(strings.Compare(lv.Str, rv.Str)))
	}
	return BoolValue(false)
}

