package query

import (
	"fmt"
	"strconv"
)

// Node is a parsed query expression. Trees are immutable once built.
type Node interface {
	node()
}

type (
	// Variable names a record field.
	Variable struct{ Name string }
	// String is a literal, or a bare word at the top level.
	String struct{ Text string }
	Number struct{ Value int64 }
	Boolean struct{ Value bool }
	// Empty stands for a missing operand, such as the right side of a
	// trailing operator.
	Empty struct{}

	Equal        struct{ Left, Right Node }
	GreaterEqual struct{ Left, Right Node }
	Greater      struct{ Left, Right Node }
	LessEqual    struct{ Left, Right Node }
	Less         struct{ Left, Right Node }
	And          struct{ Left, Right Node }
	Or           struct{ Left, Right Node }
	// RegexMatch tests Left against the pattern in Right.
	RegexMatch struct{ Left, Right Node }

	Not struct{ Operand Node }
	// RegexMatchUnary tests the raw line against the pattern in Operand.
	RegexMatchUnary struct{ Operand Node }
)

func (Variable) node()        {}
func (String) node()          {}
func (Number) node()          {}
func (Boolean) node()         {}
func (Empty) node()           {}
func (Equal) node()           {}
func (GreaterEqual) node()    {}
func (Greater) node()         {}
func (LessEqual) node()       {}
func (Less) node()            {}
func (And) node()             {}
func (Or) node()              {}
func (RegexMatch) node()      {}
func (Not) node()             {}
func (RegexMatchUnary) node() {}

// Format renders n as a nested constructor expression, for example
// Greater(1, Greater(2, 3)).
func Format(n Node) string {
	bin := func(name string, l, r Node) string {
		return fmt.Sprintf("%s(%s, %s)", name, Format(l), Format(r))
	}
	switch n := n.(type) {
	case nil:
		return "<nil>"
	case Variable:
		return n.Name
	case String:
		return strconv.Quote(n.Text)
	case Number:
		return strconv.FormatInt(n.Value, 10)
	case Boolean:
		return strconv.FormatBool(n.Value)
	case Empty:
		return "Empty"
	case Equal:
		return bin("Equal", n.Left, n.Right)
	case GreaterEqual:
		return bin("GreaterEqual", n.Left, n.Right)
	case Greater:
		return bin("Greater", n.Left, n.Right)
	case LessEqual:
		return bin("LessEqual", n.Left, n.Right)
	case Less:
		return bin("Less", n.Left, n.Right)
	case And:
		return bin("And", n.Left, n.Right)
	case Or:
		return bin("Or", n.Left, n.Right)
	case RegexMatch:
		return bin("RegexMatch", n.Left, n.Right)
	case Not:
		return fmt.Sprintf("Not(%s)", Format(n.Operand))
	case RegexMatchUnary:
		return fmt.Sprintf("RegexMatchUnary(%s)", Format(n.Operand))
	default:
		return fmt.Sprintf("%T", n)
	}
}
