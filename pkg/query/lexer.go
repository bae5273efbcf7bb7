package query

import (
	"strings"
	"unicode"
)

// Lexer tokenizes query strings
type Lexer struct {
	input   string
	pos     int  // current position
	readPos int  // next read position
	ch      byte // current character
}

// NewLexer creates a new lexer for the given input
func NewLexer(input string) *Lexer {
	l := &Lexer{input: input}
	l.readChar()
	return l
}

// readChar advances to the next character
func (l *Lexer) readChar() {
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
	} else {
		l.ch = l.input[l.readPos]
	}
	l.pos = l.readPos
	l.readPos++
}

func (l *Lexer) peekChar() byte {
	if l.readPos >= len(l.input) {
		return 0
	}
	return l.input[l.readPos]
}

// NextToken returns the next token from the input
func (l *Lexer) NextToken() Token {
	l.skipWhitespace()
	pos := l.pos

	var tok Token
	switch l.ch {
	case '(':
		tok = Token{Type: TokenLeftParen, Literal: "("}
	case ')':
		tok = Token{Type: TokenRightParen, Literal: ")"}
	case '{':
		tok = Token{Type: TokenLeftBrace, Literal: "{"}
	case '}':
		tok = Token{Type: TokenRightBrace, Literal: "}"}
	case ',':
		tok = Token{Type: TokenComma, Literal: ","}
	case '=':
		if l.peekChar() == '~' {
			l.readChar()
			tok = Token{Type: TokenMatch, Literal: "=~"}
		} else {
			tok = Token{Type: TokenEqual, Literal: "="}
		}
	case '!':
		switch l.peekChar() {
		case '=':
			l.readChar()
			tok = Token{Type: TokenNotEqual, Literal: "!="}
		case '~':
			l.readChar()
			tok = Token{Type: TokenNotMatch, Literal: "!~"}
		default:
			tok = Token{Type: TokenIllegal, Literal: "!"}
		}
	case '"', '\'':
		lit, ok := l.readString(l.ch)
		if !ok {
			return Token{Type: TokenIllegal, Literal: lit, Pos: pos}
		}
		tok = Token{Type: TokenString, Literal: lit}
	case 0:
		return Token{Type: TokenEOF, Pos: pos}
	default:
		if isLetter(l.ch) || l.ch == '_' {
			lit := l.readIdentifier()
			return Token{Type: lookupKeyword(lit), Literal: lit, Pos: pos}
		}
		tok = Token{Type: TokenIllegal, Literal: string(l.ch)}
	}

	tok.Pos = pos
	l.readChar()
	return tok
}

// skipWhitespace skips whitespace and comments
func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r' {
		l.readChar()
	}
	if l.ch == '#' {
		for l.ch != '\n' && l.ch != 0 {
			l.readChar()
		}
		l.skipWhitespace()
	}
}

// readIdentifier reads a table or dimension name
func (l *Lexer) readIdentifier() string {
	pos := l.pos
	for isLetter(l.ch) || isDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	return l.input[pos:l.pos]
}

// readString reads a quoted string and resolves backslash escapes. The
// lexer is left on the closing quote. ok is false for unterminated strings.
func (l *Lexer) readString(quote byte) (string, bool) {
	var b strings.Builder
	for {
		l.readChar()
		switch l.ch {
		case 0:
			return b.String(), false
		case quote:
			return b.String(), true
		case '\\':
			l.readChar()
			switch l.ch {
			case 0:
				return b.String(), false
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			case quote, '\\':
				b.WriteByte(l.ch)
			default:
				// keep unknown escapes for regular expressions (\d, \.)
				b.WriteByte('\\')
				b.WriteByte(l.ch)
			}
		default:
			b.WriteByte(l.ch)
		}
	}
}

func isLetter(ch byte) bool {
	return unicode.IsLetter(rune(ch))
}

func isDigit(ch byte) bool {
	return ch >= '0' && ch <= '9'
}

var keywords = map[string]TokenType{
	"by":    TokenBy,
	"sum":   TokenSum,
	"avg":   TokenAvg,
	"mean":  TokenAvg,
	"min":   TokenMin,
	"max":   TokenMax,
	"mixed": TokenMixed,
}

// lookupKeyword checks if identifier is a keyword or aggregation function
func lookupKeyword(ident string) TokenType {
	if tok, ok := keywords[strings.ToLower(ident)]; ok {
		return tok
	}
	return TokenIdentifier
}
