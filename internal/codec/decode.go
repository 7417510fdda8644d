package codec

import (
	"strconv"
)

// maxDepth bounds container nesting so hostile input cannot exhaust the stack.
const maxDepth = 512

type decoder struct {
	data  string
	pos   int
	depth int
}

// Decode parses a complete serialized value. Any byte after the value is an
// error.
func Decode(text string) (Value, error) {
	d := &decoder{data: text}
	v, err := d.value()
	if err != nil {
		return nil, err
	}
	if d.pos != len(d.data) {
		return nil, &Error{Offset: d.pos, Msg: "unexpected trailing bytes", Err: ErrTrailingData}
	}
	return v, nil
}

func (d *decoder) value() (Value, error) {
	if d.pos >= len(d.data) {
		return nil, errorf(d.pos, "unexpected end of input")
	}
	tag := d.data[d.pos]
	switch tag {
	case 'N':
		if err := d.expect("N;"); err != nil {
			return nil, err
		}
		return Null{}, nil
	case 'b':
		return d.boolean()
	case 'i':
		return d.integer()
	case 'd':
		return d.float()
	case 's':
		s, err := d.quoted('s')
		if err != nil {
			return nil, err
		}
		if err := d.expect(";"); err != nil {
			return nil, err
		}
		return String(s), nil
	case 'a':
		return d.array()
	case 'O':
		return d.object()
	case 'C':
		return d.custom()
	case 'E':
		s, err := d.quoted('E')
		if err != nil {
			return nil, err
		}
		if err := d.expect(";"); err != nil {
			return nil, err
		}
		return Enum(s), nil
	case 'r', 'R':
		d.pos++
		if err := d.expect(":"); err != nil {
			return nil, err
		}
		idx, err := d.until(';')
		if err != nil {
			return nil, err
		}
		if !isUint(idx) {
			return nil, errorf(d.pos, "invalid reference index %q", idx)
		}
		return Ref{Strong: tag == 'R', Index: idx}, nil
	}
	return nil, errorf(d.pos, "unknown type tag %q", tag)
}

func (d *decoder) boolean() (Value, error) {
	if err := d.expect("b:"); err != nil {
		return nil, err
	}
	if d.pos+2 > len(d.data) {
		return nil, errorf(d.pos, "truncated boolean")
	}
	c := d.data[d.pos]
	if (c != '0' && c != '1') || d.data[d.pos+1] != ';' {
		return nil, errorf(d.pos, "invalid boolean")
	}
	d.pos += 2
	return Bool(c == '1'), nil
}

func (d *decoder) integer() (Value, error) {
	if err := d.expect("i:"); err != nil {
		return nil, err
	}
	start := d.pos
	lex, err := d.until(';')
	if err != nil {
		return nil, err
	}
	if !isIntLexeme(lex) {
		return nil, errorf(start, "invalid integer %q", lex)
	}
	return Int{Lexeme: lex}, nil
}

func (d *decoder) float() (Value, error) {
	if err := d.expect("d:"); err != nil {
		return nil, err
	}
	start := d.pos
	lex, err := d.until(';')
	if err != nil {
		return nil, err
	}
	if !isFloatLexeme(lex) {
		return nil, errorf(start, "invalid float %q", lex)
	}
	return Float{Lexeme: lex}, nil
}

// quoted reads <tag>:<len>:"<len bytes>" and leaves the cursor after the
// closing quote.
func (d *decoder) quoted(tag byte) (string, error) {
	if err := d.expect(string([]byte{tag, ':'})); err != nil {
		return "", err
	}
	n, err := d.length(':')
	if err != nil {
		return "", err
	}
	if err := d.expect(`"`); err != nil {
		return "", err
	}
	if n > len(d.data)-d.pos {
		return "", errorf(d.pos, "declared length %d exceeds remaining input", n)
	}
	s := d.data[d.pos : d.pos+n]
	d.pos += n
	if err := d.expect(`"`); err != nil {
		return "", err
	}
	return s, nil
}

func (d *decoder) array() (Value, error) {
	if err := d.expect("a:"); err != nil {
		return nil, err
	}
	n, err := d.length(':')
	if err != nil {
		return nil, err
	}
	entries, err := d.entries(n)
	if err != nil {
		return nil, err
	}
	if isList(entries) {
		list := make(List, len(entries))
		for i, e := range entries {
			list[i] = e.Value
		}
		return list, nil
	}
	return Map(entries), nil
}

func (d *decoder) object() (Value, error) {
	class, err := d.quoted('O')
	if err != nil {
		return nil, err
	}
	if err := d.expect(":"); err != nil {
		return nil, err
	}
	n, err := d.length(':')
	if err != nil {
		return nil, err
	}
	fields, err := d.entries(n)
	if err != nil {
		return nil, err
	}
	return Object{Class: class, Fields: fields}, nil
}

func (d *decoder) custom() (Value, error) {
	class, err := d.quoted('C')
	if err != nil {
		return nil, err
	}
	if err := d.expect(":"); err != nil {
		return nil, err
	}
	n, err := d.length(':')
	if err != nil {
		return nil, err
	}
	if err := d.expect("{"); err != nil {
		return nil, err
	}
	if n > len(d.data)-d.pos {
		return nil, errorf(d.pos, "declared payload length %d exceeds remaining input", n)
	}
	payload := d.data[d.pos : d.pos+n]
	d.pos += n
	if err := d.expect("}"); err != nil {
		return nil, err
	}
	return Custom{Class: class, Payload: payload}, nil
}

// entries reads {<key><value>...} holding exactly n pairs.
func (d *decoder) entries(n int) ([]Entry, error) {
	if err := d.expect("{"); err != nil {
		return nil, err
	}
	d.depth++
	if d.depth > maxDepth {
		return nil, &Error{Offset: d.pos, Msg: "maximum nesting depth exceeded", Err: ErrTooDeep}
	}
	// Every entry needs at least four bytes, which caps hostile counts.
	capHint := n
	if remaining := (len(d.data) - d.pos) / 4; capHint > remaining {
		capHint = remaining
	}
	entries := make([]Entry, 0, capHint)
	for i := 0; i < n; i++ {
		if d.pos >= len(d.data) {
			return nil, errorf(d.pos, "expected %d entries, input ended after %d", n, i)
		}
		var key Value
		switch d.data[d.pos] {
		case 'i':
			k, err := d.integer()
			if err != nil {
				return nil, err
			}
			key = k
		case 's':
			s, err := d.quoted('s')
			if err != nil {
				return nil, err
			}
			if err := d.expect(";"); err != nil {
				return nil, err
			}
			key = String(s)
		default:
			return nil, errorf(d.pos, "invalid key type %q", d.data[d.pos])
		}
		v, err := d.value()
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: key, Value: v})
	}
	if err := d.expect("}"); err != nil {
		return nil, err
	}
	d.depth--
	return entries, nil
}

func (d *decoder) expect(lit string) error {
	if len(d.data)-d.pos < len(lit) || d.data[d.pos:d.pos+len(lit)] != lit {
		return errorf(d.pos, "expected %q", lit)
	}
	d.pos += len(lit)
	return nil
}

// until returns the bytes up to (not including) delim and consumes delim.
func (d *decoder) until(delim byte) (string, error) {
	for i := d.pos; i < len(d.data); i++ {
		if d.data[i] == delim {
			s := d.data[d.pos:i]
			d.pos = i + 1
			return s, nil
		}
	}
	return "", errorf(d.pos, "missing %q", delim)
}

func (d *decoder) length(delim byte) (int, error) {
	start := d.pos
	s, err := d.until(delim)
	if err != nil {
		return 0, err
	}
	if !isUint(s) || len(s) > 18 {
		return 0, errorf(start, "invalid length %q", s)
	}
	// Leading zeros would not survive re-encoding.
	if len(s) > 1 && s[0] == '0' {
		return 0, errorf(start, "non-canonical length %q", s)
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, errorf(start, "invalid length %q", s)
	}
	return n, nil
}

func isList(entries []Entry) bool {
	for i, e := range entries {
		k, ok := e.Key.(Int)
		if !ok || k.Lexeme != strconv.Itoa(i) {
			return false
		}
	}
	return true
}

func isUint(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func isIntLexeme(s string) bool {
	if s != "" && (s[0] == '-' || s[0] == '+') {
		s = s[1:]
	}
	return isUint(s)
}

func isFloatLexeme(s string) bool {
	switch s {
	case "INF", "-INF", "NAN":
		return true
	case "":
		return false
	}
	digits := false
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= '0' && c <= '9':
			digits = true
		case c == '.', c == 'e', c == 'E', c == '+', c == '-':
		default:
			return false
		}
	}
	return digits
}
