package document

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// maxLiteralDepth bounds nesting of maps and lists.
const maxLiteralDepth = 10000

// operatorChars are characters which, following a complete value, can only start an expression.
const operatorChars = "()[.+-*/%@<>=!&|^~"

// literalParser is a recursive descent parser for the native literal syntax.
// It only knows about data productions: maps, lists, strings, numbers, booleans and null.
type literalParser struct {
	src   string
	pos   int
	depth int
}

func parseLiteral(data []byte) (any, error) {
	p := &literalParser{src: string(data)}

	p.skipSpace()
	if p.eof() {
		return nil, p.errorf(ErrMalformed, "empty document")
	}

	v, err := p.value()
	if err != nil {
		return nil, err
	}

	p.skipSpace()
	if !p.eof() {
		return nil, p.afterValue("end of document")
	}
	return v, nil
}

func (p *literalParser) value() (any, error) {
	p.depth++
	defer func() { p.depth-- }()
	if p.depth > maxLiteralDepth {
		return nil, p.errorf(ErrMalformed, "exceeded max depth of %d", maxLiteralDepth)
	}

	c := p.peek()
	switch {
	case c == '{':
		return p.mapping()
	case c == '[':
		return p.list()
	case c == '"' || c == '\'':
		return p.str(false)
	case c == '-' || c == '+' || c == '.' || isDigit(c):
		return p.number()
	case isNameStart(c):
		return p.name()
	case c == '(':
		return nil, p.errorf(ErrNotAPureLiteral, "parenthesized expressions and tuples are not supported")
	case c == '\\':
		return nil, p.errorf(ErrMalformed, "unexpected line continuation")
	default:
		return nil, p.errorf(ErrMalformed, "unexpected %s", p.describe())
	}
}

func (p *literalParser) mapping() (any, error) {
	p.pos++ // {
	m := make(map[string]any)

	for {
		p.skipSpace()
		if p.eof() {
			return nil, p.errorf(ErrMalformed, "unterminated map")
		}
		if p.peek() == '}' {
			p.pos++
			return m, nil
		}

		keyPos := p.pos
		k, err := p.value()
		if err != nil {
			return nil, err
		}
		key, ok := k.(string)
		if !ok {
			p.pos = keyPos
			return nil, p.errorf(ErrMalformed, "map keys must be strings, got %s", typeName(k))
		}

		p.skipSpace()
		if p.peek() != ':' || p.eof() {
			return nil, p.afterValue("':'")
		}
		p.pos++

		p.skipSpace()
		if p.eof() {
			return nil, p.errorf(ErrMalformed, "unterminated map")
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		m[key] = v

		p.skipSpace()
		switch {
		case p.eof():
			return nil, p.errorf(ErrMalformed, "unterminated map")
		case p.peek() == ',':
			p.pos++
		case p.peek() == '}':
			p.pos++
			return m, nil
		default:
			return nil, p.afterValue("',' or '}'")
		}
	}
}

func (p *literalParser) list() (any, error) {
	p.pos++ // [
	l := make([]any, 0)

	for {
		p.skipSpace()
		if p.eof() {
			return nil, p.errorf(ErrMalformed, "unterminated list")
		}
		if p.peek() == ']' {
			p.pos++
			return l, nil
		}

		v, err := p.value()
		if err != nil {
			return nil, err
		}
		l = append(l, v)

		p.skipSpace()
		switch {
		case p.eof():
			return nil, p.errorf(ErrMalformed, "unterminated list")
		case p.peek() == ',':
			p.pos++
		case p.peek() == ']':
			p.pos++
			return l, nil
		default:
			return nil, p.afterValue("',' or ']'")
		}
	}
}

// name parses keywords and prefixed strings. Any other name is a reference to something
// which would need evaluation.
func (p *literalParser) name() (any, error) {
	start := p.pos
	for !p.eof() && isNameChar(p.peek()) {
		p.pos++
	}
	word := p.src[start:p.pos]

	if !p.eof() && (p.peek() == '"' || p.peek() == '\'') {
		switch strings.ToLower(word) {
		case "u":
			return p.str(false)
		case "r", "ur":
			return p.str(true)
		case "b", "br", "rb":
			p.pos = start
			return nil, p.errorf(ErrMalformed, "bytes literals are not supported")
		}
	}

	switch word {
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	case "None", "null":
		return nil, nil
	}

	p.pos = start
	return nil, p.errorf(ErrNotAPureLiteral, "name %q is not a literal", word)
}

func (p *literalParser) str(raw bool) (any, error) {
	start := p.pos
	quote := p.src[p.pos]
	p.pos++

	var sb strings.Builder
	for {
		if p.eof() {
			p.pos = start
			return nil, p.errorf(ErrMalformed, "unterminated string")
		}
		c := p.src[p.pos]
		switch {
		case c == quote:
			p.pos++
			return sb.String(), nil
		case c == '\n':
			p.pos = start
			return nil, p.errorf(ErrMalformed, "unterminated string")
		case c == '\\' && raw:
			// Raw strings keep the backslash and never end on an escaped quote.
			sb.WriteByte(c)
			p.pos++
			if !p.eof() {
				sb.WriteByte(p.src[p.pos])
				p.pos++
			}
		case c == '\\':
			if err := p.escape(&sb); err != nil {
				return nil, err
			}
		default:
			sb.WriteByte(c)
			p.pos++
		}
	}
}

// escape decodes the escape sequence at the current position into sb.
func (p *literalParser) escape(sb *strings.Builder) error {
	p.pos++ // \
	if p.eof() {
		return p.errorf(ErrMalformed, "unterminated string")
	}

	c := p.src[p.pos]
	p.pos++
	switch c {
	case '\n':
		// Line continuation.
	case '\\', '\'', '"', '/':
		sb.WriteByte(c)
	case 'n':
		sb.WriteByte('\n')
	case 't':
		sb.WriteByte('\t')
	case 'r':
		sb.WriteByte('\r')
	case 'b':
		sb.WriteByte('\b')
	case 'f':
		sb.WriteByte('\f')
	case 'v':
		sb.WriteByte('\v')
	case 'a':
		sb.WriteByte('\a')
	case 'x':
		r, err := p.hexRune(2)
		if err != nil {
			return err
		}
		sb.WriteRune(r)
	case 'u':
		r, err := p.hexRune(4)
		if err != nil {
			return err
		}
		if utf16.IsSurrogate(r) && strings.HasPrefix(p.src[p.pos:], `\u`) {
			save := p.pos
			p.pos += 2
			r2, err := p.hexRune(4)
			if err != nil {
				return err
			}
			if dec := utf16.DecodeRune(r, r2); dec != utf8.RuneError {
				r = dec
			} else {
				p.pos = save
			}
		}
		sb.WriteRune(r)
	case 'U':
		r, err := p.hexRune(8)
		if err != nil {
			return err
		}
		if !utf8.ValidRune(r) {
			return p.errorf(ErrMalformed, "invalid unicode code point %U", r)
		}
		sb.WriteRune(r)
	case '0', '1', '2', '3', '4', '5', '6', '7':
		start := p.pos - 1
		for p.pos-start < 3 && !p.eof() && p.src[p.pos] >= '0' && p.src[p.pos] <= '7' {
			p.pos++
		}
		n, _ := strconv.ParseUint(p.src[start:p.pos], 8, 32)
		sb.WriteRune(rune(n))
	default:
		// Unknown escapes are kept verbatim.
		sb.WriteByte('\\')
		sb.WriteByte(c)
	}
	return nil
}

func (p *literalParser) hexRune(n int) (rune, error) {
	if p.pos+n > len(p.src) {
		return 0, p.errorf(ErrMalformed, "truncated escape sequence")
	}
	v, err := strconv.ParseUint(p.src[p.pos:p.pos+n], 16, 32)
	if err != nil {
		return 0, p.errorf(ErrMalformed, "invalid escape sequence %q", p.src[p.pos:p.pos+n])
	}
	p.pos += n
	return rune(v), nil
}

// number parses decimal numbers and prefixed integers, and returns them as valid JSON numbers.
func (p *literalParser) number() (any, error) {
	start := p.pos
	if c := p.peek(); c == '-' || c == '+' {
		p.pos++
	}
	digits := p.pos

	if p.pos+1 < len(p.src) && p.src[p.pos] == '0' && strings.IndexByte("xXoObB", p.src[p.pos+1]) >= 0 {
		p.pos += 2
		for !p.eof() && (isHexDigit(p.peek()) || p.peek() == '_') {
			p.pos++
		}
		tok := p.src[start:p.pos]
		// Base 0 accepts an underscore after the prefix and between digits only.
		n, ok := new(big.Int).SetString(tok, 0)
		if !ok {
			p.pos = start
			return nil, p.errorf(ErrMalformed, "invalid number %q", tok)
		}
		return json.Number(n.String()), nil
	}

	for !p.eof() && (isDigit(p.peek()) || p.peek() == '_' || p.peek() == '.') {
		p.pos++
	}
	if !p.eof() && (p.peek() == 'e' || p.peek() == 'E') {
		p.pos++
		if !p.eof() && (p.peek() == '-' || p.peek() == '+') {
			p.pos++
		}
		for !p.eof() && (isDigit(p.peek()) || p.peek() == '_') {
			p.pos++
		}
	}

	tok := p.src[start:p.pos]
	if p.pos == digits {
		// A lone sign.
		p.pos = start
		return nil, p.errorf(ErrNotAPureLiteral, "operator %q is not a literal", tok)
	}

	if !underscoresBetweenDigits(tok) {
		p.pos = start
		return nil, p.errorf(ErrMalformed, "invalid underscore in number %q", tok)
	}

	clean := strings.TrimPrefix(strings.ReplaceAll(tok, "_", ""), "+")
	f, err := strconv.ParseFloat(clean, 64)
	if err != nil {
		p.pos = start
		return nil, p.errorf(ErrMalformed, "invalid number %q", tok)
	}

	if json.Valid([]byte(clean)) {
		return json.Number(clean), nil
	}
	if !strings.ContainsAny(clean, ".eE") {
		if n, err := strconv.ParseInt(clean, 10, 64); err == nil {
			return json.Number(strconv.FormatInt(n, 10)), nil
		}
	}
	return json.Number(strconv.FormatFloat(f, 'g', -1, 64)), nil
}

// underscoresBetweenDigits reports whether every underscore of tok sits between two decimal digits.
func underscoresBetweenDigits(tok string) bool {
	for i := 0; i < len(tok); i++ {
		if tok[i] != '_' {
			continue
		}
		if i == 0 || i == len(tok)-1 || !isDigit(tok[i-1]) || !isDigit(tok[i+1]) {
			return false
		}
	}
	return true
}

// afterValue builds the error for an unexpected character following a complete value.
func (p *literalParser) afterValue(expected string) error {
	if p.eof() {
		return p.errorf(ErrMalformed, "unexpected end of document, expected %s", expected)
	}

	c := p.peek()
	if strings.IndexByte(operatorChars, c) >= 0 {
		return p.errorf(ErrNotAPureLiteral, "expression operator %q is not allowed", c)
	}
	if isNameStart(c) {
		return p.errorf(ErrNotAPureLiteral, "unexpected name after value")
	}
	return p.errorf(ErrMalformed, "unexpected %s, expected %s", p.describe(), expected)
}

// skipSpace advances past whitespace, # comments and line continuations.
func (p *literalParser) skipSpace() {
	for !p.eof() {
		switch c := p.src[p.pos]; {
		case c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f' || c == '\v':
			p.pos++
		case c == '#':
			for !p.eof() && p.src[p.pos] != '\n' {
				p.pos++
			}
		case c == '\\' && strings.HasPrefix(p.src[p.pos+1:], "\n"):
			p.pos += 2
		case c == '\\' && strings.HasPrefix(p.src[p.pos+1:], "\r\n"):
			p.pos += 3
		default:
			return
		}
	}
}

func (p *literalParser) eof() bool {
	return p.pos >= len(p.src)
}

func (p *literalParser) peek() byte {
	if p.eof() {
		return 0
	}
	return p.src[p.pos]
}

// describe returns a printable description of the rune at the current position.
func (p *literalParser) describe() string {
	if p.eof() {
		return "end of document"
	}
	r, _ := utf8.DecodeRuneInString(p.src[p.pos:])
	return fmt.Sprintf("character %q", r)
}

// errorf wraps kind with the current line and column.
func (p *literalParser) errorf(kind error, format string, args ...any) error {
	line := 1 + strings.Count(p.src[:p.pos], "\n")
	col := p.pos - strings.LastIndexByte(p.src[:p.pos], '\n')
	return fmt.Errorf("%w at line %d, column %d: %s", kind, line, col, fmt.Sprintf(format, args...))
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func isHexDigit(c byte) bool {
	return isDigit(c) || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func isNameStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c >= utf8.RuneSelf
}

func isNameChar(c byte) bool {
	return isNameStart(c) || isDigit(c)
}
