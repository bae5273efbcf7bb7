package query

import (
	"errors"
	"regexp"
	"sync"

	"github.com/nicktill/energyview/pkg/results"
)

var (
	// ErrSyntax is returned for queries that do not parse.
	ErrSyntax = errors.New("query: syntax error")

	// ErrUnknownTable is returned when a selector names no table.
	ErrUnknownTable = results.ErrUnknownTable

	// ErrInvalid is returned for well-formed queries that cannot be
	// evaluated, such as a matcher on a dimension the table does not have.
	ErrInvalid = errors.New("query: invalid query")
)

// TokenType represents the type of token in a query
type TokenType int

const (
	// Literals
	TokenIdentifier TokenType = iota // table_name, Dimension
	TokenString                      // "value"

	// Matchers
	TokenEqual    // =
	TokenNotEqual // !=
	TokenMatch    // =~
	TokenNotMatch // !~

	// Aggregation functions
	TokenSum   // sum
	TokenAvg   // avg, mean
	TokenMin   // min
	TokenMax   // max
	TokenMixed // mixed

	// Delimiters
	TokenLeftParen  // (
	TokenRightParen // )
	TokenLeftBrace  // {
	TokenRightBrace // }
	TokenComma      // ,

	// Keywords
	TokenBy // by

	// Special
	TokenEOF
	TokenIllegal
)

var tokenNames = map[TokenType]string{
	TokenIdentifier: "identifier",
	TokenString:     "string",
	TokenEqual:      "=",
	TokenNotEqual:   "!=",
	TokenMatch:      "=~",
	TokenNotMatch:   "!~",
	TokenSum:        "sum",
	TokenAvg:        "avg",
	TokenMin:        "min",
	TokenMax:        "max",
	TokenMixed:      "mixed",
	TokenLeftParen:  "(",
	TokenRightParen: ")",
	TokenLeftBrace:  "{",
	TokenRightBrace: "}",
	TokenComma:      ",",
	TokenBy:         "by",
	TokenEOF:        "end of input",
	TokenIllegal:    "illegal",
}

func (t TokenType) String() string {
	if s, ok := tokenNames[t]; ok {
		return s
	}
	return "unknown"
}

// Token represents a single token in the query
type Token struct {
	Type    TokenType
	Literal string
	Pos     int // Position in input string
}

// Expr represents a query expression node
type Expr interface {
	expr()
}

// Selector picks columns of a table: energy_balance{Node="A"}
type Selector struct {
	Table    string
	Matchers []*Matcher
}

func (s *Selector) expr() {}

// Matcher represents a dimension matching condition
type Matcher struct {
	Dimension string
	Op        TokenType // =, !=, =~, !~
	Value     string

	once sync.Once
	re   *regexp.Regexp
	err  error
}

// compile builds the anchored expression for =~ and !~ on first use, so
// matchers built outside the parser work too.
func (m *Matcher) compile() error {
	m.once.Do(func() {
		m.re, m.err = regexp.Compile("^(?:" + m.Value + ")$")
	})
	return m.err
}

// Matches reports whether a label satisfies the matcher. Regular expressions
// are anchored, as in PromQL. A pattern that does not compile matches no
// label under either regex operator.
func (m *Matcher) Matches(label string) bool {
	switch m.Op {
	case TokenEqual:
		return label == m.Value
	case TokenNotEqual:
		return label != m.Value
	case TokenMatch:
		return m.compile() == nil && m.re.MatchString(label)
	case TokenNotMatch:
		return m.compile() == nil && !m.re.MatchString(label)
	default:
		return false
	}
}

// AggregateExpr reduces a selection over time: sum by (Day) (energy_balance)
type AggregateExpr struct {
	Op    string // sum, mean, min, max, mixed
	Level string // time level; empty means the whole horizon
	Expr  Expr
}

func (a *AggregateExpr) expr() {}

// ParenExpr represents a parenthesized expression
type ParenExpr struct {
	Expr Expr
}

func (p *ParenExpr) expr() {}
