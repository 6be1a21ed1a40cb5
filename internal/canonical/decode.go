package canonical

import (
	"fmt"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"

	"ev-go/internal/vaulterr"
)

// maxDepth bounds nesting so hostile input cannot exhaust the stack.
const maxDepth = 64

// SyntaxError reports malformed input and the byte offset where parsing
// stopped. It classifies as a corrupt-vault error.
type SyntaxError struct {
	Offset int
	Msg    string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("canonical: %s at offset %d", e.Msg, e.Offset)
}

func (e *SyntaxError) Unwrap() error { return vaulterr.ErrCorruptVault }

// Decode parses text produced by Encode. It is strict: no insignificant
// whitespace, object keys in strictly ascending byte order, integers only.
// Decode(v.Encode()) always yields a value Equal to v.
func Decode(text string) (Value, error) {
	p := &parser{src: text, strict: true}
	return p.parseDocument()
}

// Parse accepts the same value grammar as Decode but tolerates whitespace
// between tokens and object fields in any order. It is used for documents
// written by people or other tools, such as license files. Duplicate keys are
// still rejected.
func Parse(text string) (Value, error) {
	p := &parser{src: text}
	return p.parseDocument()
}

type parser struct {
	src    string
	pos    int
	strict bool
	depth  int
}

func (p *parser) fail(format string, args ...any) error {
	return &SyntaxError{Offset: p.pos, Msg: fmt.Sprintf(format, args...)}
}

func (p *parser) parseDocument() (Value, error) {
	p.skipSpace()
	v, err := p.parseValue()
	if err != nil {
		return Value{}, err
	}
	p.skipSpace()
	if p.pos != len(p.src) {
		return Value{}, p.fail("trailing data")
	}
	return v, nil
}

func (p *parser) skipSpace() {
	if p.strict {
		return
	}
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\n', '\r':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) parseValue() (Value, error) {
	if p.pos >= len(p.src) {
		return Value{}, p.fail("unexpected end of input")
	}
	switch c := p.src[p.pos]; {
	case c == 'n':
		return Null(), p.literal("null")
	case c == 't':
		return Bool(true), p.literal("true")
	case c == 'f':
		return Bool(false), p.literal("false")
	case c == '"':
		s, err := p.parseString()
		if err != nil {
			return Value{}, err
		}
		return String(s), nil
	case c == '[':
		return p.parseArray()
	case c == '{':
		return p.parseObject()
	case c == '-' || (c >= '0' && c <= '9'):
		return p.parseInt()
	default:
		return Value{}, p.fail("unexpected character %q", c)
	}
}

func (p *parser) literal(word string) error {
	if len(p.src)-p.pos < len(word) || p.src[p.pos:p.pos+len(word)] != word {
		return p.fail("invalid literal")
	}
	p.pos += len(word)
	return nil
}

func (p *parser) parseInt() (Value, error) {
	start := p.pos
	if p.src[p.pos] == '-' {
		p.pos++
	}
	digits := p.pos
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		p.pos++
	}
	if p.pos == digits {
		return Value{}, p.fail("expected digit")
	}
	if p.src[digits] == '0' && p.pos-digits > 1 {
		return Value{}, &SyntaxError{Offset: start, Msg: "leading zero in integer"}
	}
	if p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '.', 'e', 'E':
			return Value{}, p.fail("only integers are supported")
		}
	}
	tok := p.src[start:p.pos]
	if tok == "-0" {
		return Value{}, &SyntaxError{Offset: start, Msg: "negative zero"}
	}
	n, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return Value{}, &SyntaxError{Offset: start, Msg: "integer out of range"}
	}
	return Int(n), nil
}

func (p *parser) parseString() (string, error) {
	p.pos++ // opening quote
	var buf []byte
	runStart := p.pos
	for {
		if p.pos >= len(p.src) {
			return "", p.fail("unterminated string")
		}
		c := p.src[p.pos]
		switch {
		case c == '"':
			buf = append(buf, p.src[runStart:p.pos]...)
			p.pos++
			return string(buf), nil
		case c == '\\':
			buf = append(buf, p.src[runStart:p.pos]...)
			var err error
			if buf, err = p.parseEscape(buf); err != nil {
				return "", err
			}
			runStart = p.pos
		case c < 0x20:
			return "", p.fail("unescaped control character in string")
		default:
			p.pos++
		}
	}
}

func (p *parser) parseEscape(buf []byte) ([]byte, error) {
	p.pos++ // backslash
	if p.pos >= len(p.src) {
		return nil, p.fail("unterminated escape")
	}
	c := p.src[p.pos]
	p.pos++
	switch c {
	case '"', '\\', '/':
		return append(buf, c), nil
	case 'n':
		return append(buf, '\n'), nil
	case 'r':
		return append(buf, '\r'), nil
	case 't':
		return append(buf, '\t'), nil
	case 'b':
		return append(buf, '\b'), nil
	case 'f':
		return append(buf, '\f'), nil
	case 'u':
		r, err := p.hex4()
		if err != nil {
			return nil, err
		}
		if utf16.IsSurrogate(r) {
			if len(p.src)-p.pos < 6 || p.src[p.pos] != '\\' || p.src[p.pos+1] != 'u' {
				return nil, p.fail("unpaired surrogate")
			}
			p.pos += 2
			r2, err := p.hex4()
			if err != nil {
				return nil, err
			}
			r = utf16.DecodeRune(r, r2)
			if r == utf8.RuneError {
				return nil, p.fail("invalid surrogate pair")
			}
		}
		return utf8.AppendRune(buf, r), nil
	default:
		p.pos--
		return nil, p.fail("invalid escape %q", c)
	}
}

func (p *parser) hex4() (rune, error) {
	if len(p.src)-p.pos < 4 {
		return 0, p.fail("truncated unicode escape")
	}
	var r rune
	for i := 0; i < 4; i++ {
		c := p.src[p.pos+i]
		var d byte
		switch {
		case c >= '0' && c <= '9':
			d = c - '0'
		case c >= 'a' && c <= 'f':
			d = c - 'a' + 10
		case c >= 'A' && c <= 'F':
			d = c - 'A' + 10
		default:
			p.pos += i
			return 0, p.fail("invalid hex digit in unicode escape")
		}
		r = r<<4 | rune(d)
	}
	p.pos += 4
	return r, nil
}

func (p *parser) enter() error {
	p.depth++
	if p.depth > maxDepth {
		return p.fail("nesting deeper than %d", maxDepth)
	}
	return nil
}

func (p *parser) parseArray() (Value, error) {
	if err := p.enter(); err != nil {
		return Value{}, err
	}
	defer func() { p.depth-- }()

	p.pos++ // [
	var items []Value
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == ']' {
		p.pos++
		return Value{kind: KindArray, items: items}, nil
	}
	for {
		p.skipSpace()
		v, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		items = append(items, v)
		p.skipSpace()
		if p.pos >= len(p.src) {
			return Value{}, p.fail("unterminated array")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case ']':
			p.pos++
			return Value{kind: KindArray, items: items}, nil
		default:
			return Value{}, p.fail("expected ',' or ']'")
		}
	}
}

func (p *parser) parseObject() (Value, error) {
	if err := p.enter(); err != nil {
		return Value{}, err
	}
	defer func() { p.depth-- }()

	p.pos++ // {
	fields := make(map[string]Value)
	p.skipSpace()
	if p.pos < len(p.src) && p.src[p.pos] == '}' {
		p.pos++
		return Value{kind: KindObject, fields: fields}, nil
	}
	prev, first := "", true
	for {
		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != '"' {
			return Value{}, p.fail("expected object key")
		}
		keyAt := p.pos
		key, err := p.parseString()
		if err != nil {
			return Value{}, err
		}
		if _, dup := fields[key]; dup {
			return Value{}, &SyntaxError{Offset: keyAt, Msg: fmt.Sprintf("duplicate key %q", key)}
		}
		if p.strict && !first && key <= prev {
			return Value{}, &SyntaxError{Offset: keyAt, Msg: fmt.Sprintf("key %q out of canonical order", key)}
		}
		prev, first = key, false

		p.skipSpace()
		if p.pos >= len(p.src) || p.src[p.pos] != ':' {
			return Value{}, p.fail("expected ':'")
		}
		p.pos++
		p.skipSpace()
		v, err := p.parseValue()
		if err != nil {
			return Value{}, err
		}
		fields[key] = v

		p.skipSpace()
		if p.pos >= len(p.src) {
			return Value{}, p.fail("unterminated object")
		}
		switch p.src[p.pos] {
		case ',':
			p.pos++
		case '}':
			p.pos++
			return Value{kind: KindObject, fields: fields}, nil
		default:
			return Value{}, p.fail("expected ',' or '}'")
		}
	}
}
