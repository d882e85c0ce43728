package query

import (
	"fmt"
	"strconv"
	"unicode"
)

// TokenKind classifies a lexical token.
type TokenKind int

const (
	TokenNumber TokenKind = iota
	TokenVariable
	TokenString
	TokenEqual        // = or ==
	TokenGreaterEqual // >=
	TokenGreater      // >
	TokenLessEqual    // <=
	TokenLess         // <
	TokenNot          // !
	TokenRegex        // ~
	TokenAnd          // & or &&
	TokenOr           // | or ||
)

var tokenNames = map[TokenKind]string{
	TokenNumber:       "number",
	TokenVariable:     "variable",
	TokenString:       "string",
	TokenEqual:        "==",
	TokenGreaterEqual: ">=",
	TokenGreater:      ">",
	TokenLessEqual:    "<=",
	TokenLess:         "<",
	TokenNot:          "!",
	TokenRegex:        "~",
	TokenAnd:          "&&",
	TokenOr:           "||",
}

func (k TokenKind) String() string {
	if name, ok := tokenNames[k]; ok {
		return name
	}
	return fmt.Sprintf("TokenKind(%d)", int(k))
}

// Token is one lexeme. Text holds the literal for numbers, variables and
// strings; Num is set for numbers.
type Token struct {
	Kind TokenKind
	Text string
	Num  int64
}

func (t Token) String() string {
	switch t.Kind {
	case TokenNumber:
		return fmt.Sprintf("number %d", t.Num)
	case TokenVariable:
		return fmt.Sprintf("variable %s", t.Text)
	case TokenString:
		return fmt.Sprintf("string %q", t.Text)
	default:
		return fmt.Sprintf("%q", t.Kind.String())
	}
}

// LexError reports a character the tokenizer does not understand.
type LexError struct {
	Char rune
	Msg  string
}

func (e *LexError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return fmt.Sprintf("unexpected character %q", e.Char)
}

func isDigit(c rune) bool {
	return c >= '0' && c <= '9'
}

func isVariableStart(c rune) bool {
	return c == '_' || unicode.IsLetter(c)
}

func isVariablePart(c rune) bool {
	switch c {
	case '_', '.', ':', '-', '*':
		return true
	}
	return isVariableStart(c) || unicode.IsDigit(c)
}

func isSpace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// Tokenize splits text into tokens, left to right.
func Tokenize(text string) ([]Token, error) {
	src := []rune(text)
	var tokens []Token

	// peek reports whether the rune after i is want, consuming it when it is.
	peek := func(i *int, want rune) bool {
		if *i+1 < len(src) && src[*i+1] == want {
			*i++
			return true
		}
		return false
	}

	for i := 0; i < len(src); i++ {
		c := src[i]
		switch {
		case isSpace(c):
		case isDigit(c):
			start := i
			for i+1 < len(src) && isDigit(src[i+1]) {
				i++
			}
			lit := string(src[start : i+1])
			n, err := strconv.ParseInt(lit, 10, 64)
			if err != nil {
				return nil, &LexError{Char: c, Msg: fmt.Sprintf("number out of range: %s", lit)}
			}
			tokens = append(tokens, Token{Kind: TokenNumber, Text: lit, Num: n})
		case isVariableStart(c):
			start := i
			for i+1 < len(src) && isVariablePart(src[i+1]) {
				i++
			}
			tokens = append(tokens, Token{Kind: TokenVariable, Text: string(src[start : i+1])})
		case c == '"':
			start := i + 1
			i++
			for i < len(src) && src[i] != '"' {
				i++
			}
			// An unterminated string runs to the end of the input.
			end := min(i, len(src))
			tokens = append(tokens, Token{Kind: TokenString, Text: string(src[start:end])})
		case c == '>':
			if peek(&i, '=') {
				tokens = append(tokens, Token{Kind: TokenGreaterEqual})
			} else {
				tokens = append(tokens, Token{Kind: TokenGreater})
			}
		case c == '<':
			if peek(&i, '=') {
				tokens = append(tokens, Token{Kind: TokenLessEqual})
			} else {
				tokens = append(tokens, Token{Kind: TokenLess})
			}
		case c == '=':
			peek(&i, '=')
			tokens = append(tokens, Token{Kind: TokenEqual})
		case c == '~':
			tokens = append(tokens, Token{Kind: TokenRegex})
		case c == '!':
			tokens = append(tokens, Token{Kind: TokenNot})
		case c == '&':
			peek(&i, '&')
			tokens = append(tokens, Token{Kind: TokenAnd})
		case c == '|':
			peek(&i, '|')
			tokens = append(tokens, Token{Kind: TokenOr})
		default:
			return nil, &LexError{Char: c}
		}
	}
	return tokens, nil
}
