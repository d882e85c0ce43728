package query

import (
	"errors"
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type fakeRecord struct {
	line   string
	fields map[string]string
}

func (r fakeRecord) Line() string { return r.line }

func (r fakeRecord) Field(name string) (string, bool) {
	v, ok := r.fields[name]
	return v, ok
}

type stdRegex struct{ calls int }

func (s *stdRegex) Matches(pattern, text string) bool {
	s.calls++
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(text)
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		in   string
		want []Token
	}{
		{"1 > 2", []Token{{Kind: TokenNumber, Text: "1", Num: 1}, {Kind: TokenGreater}, {Kind: TokenNumber, Text: "2", Num: 2}}},
		{"a>=b", []Token{{Kind: TokenVariable, Text: "a"}, {Kind: TokenGreaterEqual}, {Kind: TokenVariable, Text: "b"}}},
		{"a<=b", []Token{{Kind: TokenVariable, Text: "a"}, {Kind: TokenLessEqual}, {Kind: TokenVariable, Text: "b"}}},
		{"a = b", []Token{{Kind: TokenVariable, Text: "a"}, {Kind: TokenEqual}, {Kind: TokenVariable, Text: "b"}}},
		{"a == b", []Token{{Kind: TokenVariable, Text: "a"}, {Kind: TokenEqual}, {Kind: TokenVariable, Text: "b"}}},
		{"a & b && c", []Token{{Kind: TokenVariable, Text: "a"}, {Kind: TokenAnd}, {Kind: TokenVariable, Text: "b"}, {Kind: TokenAnd}, {Kind: TokenVariable, Text: "c"}}},
		{"a | b || c", []Token{{Kind: TokenVariable, Text: "a"}, {Kind: TokenOr}, {Kind: TokenVariable, Text: "b"}, {Kind: TokenOr}, {Kind: TokenVariable, Text: "c"}}},
		{"http.status:code-x*", []Token{{Kind: TokenVariable, Text: "http.status:code-x*"}}},
		{`"open`, []Token{{Kind: TokenString, Text: "open"}}},
		{`""`, []Token{{Kind: TokenString, Text: ""}}},
		{"!~", []Token{{Kind: TokenNot}, {Kind: TokenRegex}}},
		{"  \t", nil},
		{"café naïve_2", []Token{{Kind: TokenVariable, Text: "café"}, {Kind: TokenVariable, Text: "naïve_2"}}},
		{"Ωmega", []Token{{Kind: TokenVariable, Text: "Ωmega"}}},
	}
	for _, tc := range tests {
		got, err := Tokenize(tc.in)
		if err != nil {
			t.Errorf("Tokenize(%q) returned error: %v", tc.in, err)
			continue
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("Tokenize(%q) mismatch (-want +got):\n%s", tc.in, diff)
		}
	}
}

func TestTokenize_UnexpectedCharacter(t *testing.T) {
	for _, in := range []string{"a $ b", "(a)", "a + 1", "99999999999999999999"} {
		_, err := Tokenize(in)
		var lexErr *LexError
		if !errors.As(err, &lexErr) {
			t.Fatalf("Tokenize(%q) error = %v, want *LexError", in, err)
		}
	}
}

func TestCompile(t *testing.T) {
	tests := []struct {
		in   string
		want Node
	}{
		{"", Boolean{Value: true}},
		{"   ", Boolean{Value: true}},
		{"foo", String{Text: "foo"}},
		{`"foo"`, String{Text: "foo"}},
		{"42", Number{Value: 42}},
		{"1 > 2", Greater{Number{1}, Number{2}}},
		{"1 < 2", Less{Number{1}, Number{2}}},
		{"1 == 2", Equal{Number{1}, Number{2}}},
		{"1 >= 2", GreaterEqual{Number{1}, Number{2}}},
		{"1 <= 2", LessEqual{Number{1}, Number{2}}},
		{"!1", Not{Number{1}}},
		{"!!foo", Not{Not{Variable{"foo"}}}},
		{"1 && 2", And{Number{1}, Number{2}}},
		{"1 || 2", Or{Number{1}, Number{2}}},
		{"var > 1", Greater{Variable{"var"}, Number{1}}},
		{"var1 == var2", Equal{Variable{"var1"}, Variable{"var2"}}},
		{`var1 ~ "var2"`, RegexMatch{Variable{"var1"}, String{"var2"}}},
		{`~ "2024"`, RegexMatchUnary{String{"2024"}}},
		{"1 > 2 > 3", Greater{Number{1}, Greater{Number{2}, Number{3}}}},
		{"a && b || c", And{Variable{"a"}, Or{Variable{"b"}, Variable{"c"}}}},
		{"!a && b", Not{And{Variable{"a"}, Variable{"b"}}}},
		{"a >", Greater{Variable{"a"}, Boolean{true}}},
	}
	for _, tc := range tests {
		got, err := Compile(tc.in)
		if err != nil {
			t.Errorf("Compile(%q) returned error: %v", tc.in, err)
			continue
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Errorf("Compile(%q) mismatch (-want +got):\n%s", tc.in, diff)
		}
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		in       string
		expected string
	}{
		{"1 >> 2", "term"},
		{"1 2", "term or unary"},
		{"a == && b", "term"},
	}
	for _, tc := range tests {
		_, err := Compile(tc.in)
		var parseErr *ParseError
		if !errors.As(err, &parseErr) {
			t.Fatalf("Compile(%q) error = %v, want *ParseError", tc.in, err)
		}
		if parseErr.Expected != tc.expected {
			t.Fatalf("Compile(%q) Expected = %q, want %q", tc.in, parseErr.Expected, tc.expected)
		}
	}

	if _, err := Compile("a # b"); err == nil {
		t.Fatalf("Compile with lexical error returned nil error")
	}
}

func TestCompile_Deterministic(t *testing.T) {
	for _, in := range []string{"a > 1 && b ~ \"x\"", "!!user", "x == \"y\" || ~ \"z\""} {
		first := MustCompile(in)
		second := MustCompile(in)
		if diff := cmp.Diff(first, second); diff != "" {
			t.Fatalf("Compile(%q) not deterministic:\n%s", in, diff)
		}
		if Format(first) != Format(second) {
			t.Fatalf("Format differs for %q", in)
		}
	}
}

func TestFormat(t *testing.T) {
	got := Format(MustCompile("1 > 2 > 3"))
	if want := "Greater(1, Greater(2, 3))"; got != want {
		t.Fatalf("Format = %q, want %q", got, want)
	}
}

func TestEvaluate(t *testing.T) {
	rec := fakeRecord{
		line:   "this is a test=10 Hello World",
		fields: map[string]string{"test": "10", "name": "alice", "other": "bob", "empty": ""},
	}
	re := &stdRegex{}

	tests := []struct {
		in   string
		want Value
	}{
		{"test", StringValue("test")},
		{"!!test", BoolValue(true)},
		{"!!nope", BoolValue(false)},
		{"!!this", BoolValue(false)},
		{"test >= 10", BoolValue(true)},
		{"test > 10", BoolValue(false)},
		// Groups as test > (0 && (test < 100)), a number against a boolean.
		{"test > 0 && test < 100", BoolValue(false)},
		{"name && test < 100", BoolValue(true)},
		{"name && test > 100", BoolValue(false)},
		{"nope || test >= 10", BoolValue(true)},
		{"nope || test < 5", BoolValue(false)},
		{"!!name", BoolValue(true)},
		{"!name", BoolValue(false)},
		{"!!empty", BoolValue(true)},
		{"!!test && name ~ \"^al\"", BoolValue(true)},
		{"test == 10", BoolValue(true)},
		{`name == "alice"`, BoolValue(true)},
		{`name == alice`, BoolValue(false)},
		{`"a" > 1`, BoolValue(false)},
		{`name < other`, BoolValue(true)},
		{`"10" > "9"`, BoolValue(true)},
		{`"b" > "a"`, BoolValue(true)},
		{`name ~ "^al"`, BoolValue(true)},
		{`name ~ "(["`, BoolValue(false)},
		{`test ~ "1"`, BoolValue(false)},
		{`~ "Hello"`, BoolValue(true)},
		{`~ "^nope"`, BoolValue(false)},
		{`~ 10`, BoolValue(false)},
		{"!1", BoolValue(false)},
		{"missing", StringValue("missing")},
		{"!missing", BoolValue(true)},
		{"", BoolValue(true)},
	}
	for _, tc := range tests {
		got := Evaluate(MustCompile(tc.in), rec, re)
		if got != tc.want {
			t.Errorf("Evaluate(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestMatches(t *testing.T) {
	rec := fakeRecord{line: "Hello World", fields: map[string]string{"level": "warn", "code": "42"}}
	re := &stdRegex{}

	tests := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"hello", true},
		{"WORLD", true},
		{`"lo wo"`, true},
		{"absent", false},
		{"level", false},
		{"!!level", true},
		{"!level", false},
		{"!!level && code > 40", true},
		{"café", false},
		{`level == "warn"`, true},
		{"code > 40", true},
		{"code", false},
		{"42", false},
		{`~ "^Hello"`, true},
	}
	for _, tc := range tests {
		if got := Matches(MustCompile(tc.in), rec, re); got != tc.want {
			t.Errorf("Matches(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestEvaluate_NilMatcherNeverPanics(t *testing.T) {
	rec := fakeRecord{line: "x", fields: map[string]string{"a": "b"}}
	if got := Evaluate(MustCompile(`a ~ "b"`), rec, nil); got != BoolValue(false) {
		t.Fatalf("Evaluate with nil matcher = %v, want Boolean(false)", got)
	}
}
