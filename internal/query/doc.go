// Package query implements the filter and search language.
//
// # Overview
//
// The same expression language drives both the search prompt and the filter
// prompt. Text is tokenized, parsed by recursive descent into an immutable
// tree of Node values, and evaluated against one record at a time.
//
// # Syntax
//
//	level == "error"            field equals literal
//	!!user && status >= 500     field "user" present and status at least 500
//	msg ~ "timeout|refused"     field matches regular expression
//	~ "^2024-"                  raw line matches regular expression
//	!!user                      field "user" is present
//	connection                  case-insensitive full-text search
//
// Barewords may contain letters, digits and the characters _ . : - *, and
// must start with a letter or underscore. Letters and digits are Unicode, so
// "café" is a bareword. Strings are double quoted; an unterminated string
// runs to the end of the input.
//
// # Associativity
//
// Binary operators have no precedence and associate to the right:
// "a > b > c" parses as a > (b > c), and "a && b || c" as a && (b || c).
// A comparison must therefore come last in a chain: "status >= 500 && ok"
// groups as status >= (500 && ok), which compares a number with a boolean
// and is always false, while "ok && status >= 500" works as read. Saved
// queries depend on this shape.
//
// # Evaluation
//
// Evaluation never fails. Missing fields evaluate to Boolean(false), a
// comparison between values of different kinds is false, and an invalid
// regular expression simply does not match. Regular expressions are compiled
// through a RegexMatcher so that repeated evaluations share compiled
// patterns.
package query
