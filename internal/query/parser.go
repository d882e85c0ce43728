package query

import "fmt"

// ParseError reports a token that does not fit the grammar.
type ParseError struct {
	Token    string // offending token, or "end of input"
	Expected string // production the parser was looking for
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unexpected %s (expected %s)", e.Token, e.Expected)
}

// Compile turns query text into an expression tree.
//
// Grammar:
//
//	expr  := unary | term [binop expr]
//	unary := ('!' | '~') expr
//	term  := number | string | bareword
//	binop := == >= > <= < && || ~
//
// Binary chains associate to the right, so "a > b > c" is a > (b > c).
// Empty input compiles to Boolean(true). A lone bareword compiles to a String
// so it acts as a full-text search; "!!name" tests field presence instead.
func Compile(text string) (Node, error) {
	tokens, err := Tokenize(text)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	n, err := p.expr()
	if err != nil {
		return nil, err
	}
	if tok, ok := p.peek(); ok {
		return nil, &ParseError{Token: tok.String(), Expected: "term or unary"}
	}
	if v, ok := n.(Variable); ok {
		return String{Text: v.Name}, nil
	}
	return n, nil
}

// MustCompile is like Compile but panics on error. Intended for tests and
// fixed expressions.
func MustCompile(text string) Node {
	n, err := Compile(text)
	if err != nil {
		panic(fmt.Sprintf("query: Compile(%q): %v", text, err))
	}
	return n
}

type parser struct {
	tokens []Token
	pos    int
}

func (p *parser) peek() (Token, bool) {
	if p.pos >= len(p.tokens) {
		return Token{}, false
	}
	return p.tokens[p.pos], true
}

func (p *parser) next() (Token, bool) {
	tok, ok := p.peek()
	if ok {
		p.pos++
	}
	return tok, ok
}

func (p *parser) expr() (Node, error) {
	tok, ok := p.peek()
	if !ok {
		return Boolean{Value: true}, nil
	}
	if tok.Kind == TokenNot || tok.Kind == TokenRegex {
		p.pos++
		operand, err := p.expr()
		if err != nil {
			return nil, err
		}
		if tok.Kind == TokenNot {
			return Not{Operand: operand}, nil
		}
		return RegexMatchUnary{Operand: operand}, nil
	}

	left, err := p.term()
	if err != nil {
		return nil, err
	}
	op, ok := p.peek()
	if !ok || !isBinary(op.Kind) {
		return left, nil
	}
	p.pos++
	right, err := p.expr()
	if err != nil {
		return nil, err
	}
	return binary(op.Kind, left, right), nil
}

func (p *parser) term() (Node, error) {
	tok, ok := p.next()
	if !ok {
		return Empty{}, nil
	}
	switch tok.Kind {
	case TokenNumber:
		return Number{Value: tok.Num}, nil
	case TokenVariable:
		return Variable{Name: tok.Text}, nil
	case TokenString:
		return String{Text: tok.Text}, nil
	default:
		return nil, &ParseError{Token: tok.String(), Expected: "term"}
	}
}

func isBinary(k TokenKind) bool {
	switch k {
	case TokenEqual, TokenGreaterEqual, TokenGreater, TokenLessEqual, TokenLess,
		TokenAnd, TokenOr, TokenRegex:
		return true
	}
	return false
}

func binary(k TokenKind, l, r Node) Node {
	switch k {
	case TokenEqual:
		return Equal{l, r}
	case TokenGreaterEqual:
		return GreaterEqual{l, r}
	case TokenGreater:
		return Greater{l, r}
	case TokenLessEqual:
		return LessEqual{l, r}
	case TokenLess:
		return Less{l, r}
	case TokenAnd:
		return And{l, r}
	case TokenOr:
		return Or{l, r}
	default:
		return RegexMatch{l, r}
	}
}
