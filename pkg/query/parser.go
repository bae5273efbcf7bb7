package query

import (
	"fmt"
)

// Parser parses selection queries using recursive descent
type Parser struct {
	lexer   *Lexer
	current Token
	peek    Token
}

// NewParser creates a new parser for the given input
func NewParser(input string) *Parser {
	p := &Parser{lexer: NewLexer(input)}
	// Read two tokens to initialize current and peek
	p.nextToken()
	p.nextToken()
	return p
}

// Parse parses the input. Every error wraps ErrSyntax.
func (p *Parser) Parse() (Expr, error) {
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.current.Type != TokenEOF {
		return nil, p.errorf("unexpected %q after expression", p.current.Literal)
	}
	return expr, nil
}

// Parse is shorthand for NewParser(input).Parse().
func Parse(input string) (Expr, error) {
	return NewParser(input).Parse()
}

func (p *Parser) nextToken() {
	p.current = p.peek
	p.peek = p.lexer.NextToken()
}

func (p *Parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w at position %d: %s", ErrSyntax, p.current.Pos, fmt.Sprintf(format, args...))
}

func (p *Parser) expect(t TokenType) error {
	if p.current.Type != t {
		if p.current.Type == TokenEOF {
			return p.errorf("expected %s, got end of input", t)
		}
		return p.errorf("expected %s, got %q", t, p.current.Literal)
	}
	p.nextToken()
	return nil
}

func (p *Parser) parseExpression() (Expr, error) {
	switch p.current.Type {
	case TokenLeftParen:
		return p.parseParenExpression()
	case TokenIdentifier:
		return p.parseSelector()
	case TokenSum, TokenAvg, TokenMin, TokenMax, TokenMixed:
		return p.parseAggregation()
	case TokenEOF:
		return nil, p.errorf("empty expression")
	default:
		return nil, p.errorf("unexpected %q", p.current.Literal)
	}
}

func (p *Parser) parseParenExpression() (Expr, error) {
	p.nextToken() // consume '('
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(TokenRightParen); err != nil {
		return nil, err
	}
	return &ParenExpr{Expr: expr}, nil
}

// parseSelector parses table_name{Dim="value", ...}
func (p *Parser) parseSelector() (Expr, error) {
	sel := &Selector{Table: p.current.Literal}
	p.nextToken()
	if p.current.Type != TokenLeftBrace {
		return sel, nil
	}
	p.nextToken() // consume '{'

	for p.current.Type != TokenRightBrace {
		m, err := p.parseMatcher()
		if err != nil {
			return nil, err
		}
		sel.Matchers = append(sel.Matchers, m)

		if p.current.Type == TokenComma {
			p.nextToken()
			continue
		}
		if p.current.Type != TokenRightBrace {
			return nil, p.errorf("expected , or } after matcher, got %q", p.current.Literal)
		}
	}
	p.nextToken() // consume '}'
	return sel, nil
}

func (p *Parser) parseMatcher() (*Matcher, error) {
	if !p.isName(p.current.Type) {
		return nil, p.errorf("expected dimension name, got %q", p.current.Literal)
	}
	m := &Matcher{Dimension: p.current.Literal}
	p.nextToken()

	if !isMatchOp(p.current.Type) {
		return nil, p.errorf("expected =, !=, =~ or !~ after %s", m.Dimension)
	}
	m.Op = p.current.Type
	p.nextToken()

	if p.current.Type != TokenString {
		return nil, p.errorf("expected quoted value for %s", m.Dimension)
	}
	m.Value = p.current.Literal
	p.nextToken()

	if m.Op == TokenMatch || m.Op == TokenNotMatch {
		if err := m.compile(); err != nil {
			return nil, fmt.Errorf("%w: invalid regular expression for %s: %v", ErrSyntax, m.Dimension, err)
		}
	}
	return m, nil
}

// parseAggregation parses op [by (Level)] (expr) [by (Level)]
func (p *Parser) parseAggregation() (Expr, error) {
	agg := &AggregateExpr{Op: canonicalOp(p.current.Type)}
	p.nextToken()

	if p.current.Type == TokenBy {
		level, err := p.parseGrouping()
		if err != nil {
			return nil, err
		}
		agg.Level = level
	}

	if err := p.expect(TokenLeftParen); err != nil {
		return nil, err
	}
	expr, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	agg.Expr = expr
	if err := p.expect(TokenRightParen); err != nil {
		return nil, err
	}

	if p.current.Type == TokenBy {
		if agg.Level != "" {
			return nil, p.errorf("duplicate by clause")
		}
		level, err := p.parseGrouping()
		if err != nil {
			return nil, err
		}
		agg.Level = level
	}
	return agg, nil
}

// parseGrouping parses by (Level). Only one level may be named.
func (p *Parser) parseGrouping() (string, error) {
	p.nextToken() // consume 'by'
	if err := p.expect(TokenLeftParen); err != nil {
		return "", err
	}
	if p.current.Type != TokenIdentifier {
		return "", p.errorf("expected time level, got %q", p.current.Literal)
	}
	level := p.current.Literal
	p.nextToken()
	if p.current.Type == TokenComma {
		return "", p.errorf("only one time level may be grouped by")
	}
	if err := p.expect(TokenRightParen); err != nil {
		return "", err
	}
	return level, nil
}

// isName accepts keywords as dimension names so a dimension called "by" or
// "max" still parses.
func (p *Parser) isName(t TokenType) bool {
	switch t {
	case TokenIdentifier, TokenBy, TokenSum, TokenAvg, TokenMin, TokenMax, TokenMixed:
		return true
	}
	return false
}

func isMatchOp(t TokenType) bool {
	return t == TokenEqual || t == TokenNotEqual || t == TokenMatch || t == TokenNotMatch
}

func canonicalOp(t TokenType) string {
	switch t {
	case TokenAvg:
		return "mean"
	case TokenMin:
		return "min"
	case TokenMax:
		return "max"
	case TokenMixed:
		return "mixed"
	default:
		return "sum"
	}
}
