package parser

import (
	"fmt"
	"unicode"
)

// TokenType represents the type of a token
type TokenType int

const (
	TOKEN_ILLEGAL TokenType = iota
	TOKEN_EOF

	// Identifiers and table numbers
	TOKEN_IDENTIFIER

	// Keywords
	TOKEN_ENTITY
	TOKEN_LINK
	TOKEN_LABELS

	// Operators
	TOKEN_EQUALS
	TOKEN_AT

	// Delimiters
	TOKEN_LBRACE
	TOKEN_RBRACE
	TOKEN_SEMICOLON
)

var tokenNames = map[TokenType]string{
	TOKEN_ILLEGAL:    "ILLEGAL",
	TOKEN_EOF:        "EOF",
	TOKEN_IDENTIFIER: "IDENTIFIER",
	TOKEN_ENTITY:     "entity",
	TOKEN_LINK:       "link",
	TOKEN_LABELS:     "labels",
	TOKEN_EQUALS:     "=",
	TOKEN_AT:         "@",
	TOKEN_LBRACE:     "{",
	TOKEN_RBRACE:     "}",
	TOKEN_SEMICOLON:  ";",
}

// keywords are only reserved at block level; inside a block "labels" is also a directive
var keywords = map[string]TokenType{
	"entity": TOKEN_ENTITY,
	"link":   TOKEN_LINK,
	"labels": TOKEN_LABELS,
}

// Token represents a lexical token
type Token struct {
	Type   TokenType
	Value  string
	Line   int
	Column int
}

// String returns a string representation of the token
func (t *Token) String() string {
	typeName := tokenNames[t.Type]
	if typeName == "" {
		typeName = fmt.Sprintf("UNKNOWN(%d)", t.Type)
	}
	return fmt.Sprintf("%s(%s) at %d:%d", typeName, t.Value, t.Line, t.Column)
}

// punctuation maps single-byte delimiters and operators to their token type
var punctuation = map[byte]TokenType{
	'=': TOKEN_EQUALS,
	'@': TOKEN_AT,
	'{': TOKEN_LBRACE,
	'}': TOKEN_RBRACE,
	';': TOKEN_SEMICOLON,
}

// Lexer splits datamodel DSL source into tokens
type Lexer struct {
	src  string
	pos  int // offset of ch in src
	ch   byte
	line int
	col  int
}

// NewLexer creates a new Lexer
func NewLexer(input string) *Lexer {
	l := &Lexer{src: input, pos: -1, line: 1}
	l.advance()
	return l
}

func (l *Lexer) advance() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	l.pos++
	l.col++
	if l.pos >= len(l.src) {
		l.pos = len(l.src)
		l.ch = 0
		return
	}
	l.ch = l.src[l.pos]
}

func (l *Lexer) next() byte {
	if l.pos+1 >= len(l.src) {
		return 0
	}
	return l.src[l.pos+1]
}

// readWhile consumes bytes matching pred and returns them
func (l *Lexer) readWhile(pred func(byte) bool) string {
	begin := l.pos
	for l.ch != 0 && pred(l.ch) {
		l.advance()
	}
	return l.src[begin:l.pos]
}

// skipTrivia drops whitespace and line comments (// or #)
func (l *Lexer) skipTrivia() {
	for {
		l.readWhile(isSpace)
		if l.ch == '#' || (l.ch == '/' && l.next() == '/') {
			l.readWhile(func(c byte) bool { return c != '\n' })
			continue
		}
		return
	}
}

// NextToken returns the next token
func (l *Lexer) NextToken() (*Token, error) {
	l.skipTrivia()
	line, col := l.line, l.col

	if l.ch == 0 {
		return &Token{Type: TOKEN_EOF, Line: line, Column: col}, nil
	}
	if tt, ok := punctuation[l.ch]; ok {
		value := string(l.ch)
		l.advance()
		return &Token{Type: tt, Value: value, Line: line, Column: col}, nil
	}

	switch {
	case isIdentStart(l.ch):
		value := l.readWhile(isIdentPart)
		tt, ok := keywords[value]
		if !ok {
			tt = TOKEN_IDENTIFIER
		}
		return &Token{Type: tt, Value: value, Line: line, Column: col}, nil
	case isDigit(l.ch):
		// table numbers share the identifier token
		return &Token{Type: TOKEN_IDENTIFIER, Value: l.readWhile(isDigit), Line: line, Column: col}, nil
	}
	return nil, fmt.Errorf("illegal character '%c' at %d:%d", l.ch, line, col)
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

func isIdentStart(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c))
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || isDigit(c)
}

func isDigit(c byte) bool {
	return '0' <= c && c <= '9'
}
