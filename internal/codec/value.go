// Package codec reads and writes the tagged, length-prefixed text format that
// PHP's serialize() produces and that WordPress stores in option, meta and
// other text columns.
//
// Decoding is lossless: numbers keep their original lexeme, map entries keep
// their order (including repeated literal keys), and object field names keep
// their visibility markers, so Encode(Decode(t)) reproduces t byte for byte.
package codec

import (
	"strconv"
	"strings"
)

// Kind identifies the variant of a decoded Value.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt
	KindFloat
	KindString
	KindList
	KindMap
	KindObject
	KindCustom
	KindEnum
	KindRef
)

var kindNames = map[Kind]string{
	KindNull:   "null",
	KindBool:   "bool",
	KindInt:    "int",
	KindFloat:  "float",
	KindString: "string",
	KindList:   "list",
	KindMap:    "map",
	KindObject: "object",
	KindCustom: "custom",
	KindEnum:   "enum",
	KindRef:    "ref",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Value is a decoded serialized value.
type Value interface {
	Kind() Kind
	encodeTo(b *strings.Builder)
}

// Null is the N; token.
type Null struct{}

// Bool is a b:0; or b:1; token.
type Bool bool

// Int is an i:<n>; token. The lexeme is kept as written.
type Int struct {
	Lexeme string
}

// NewInt builds an Int from a Go integer.
func NewInt(n int64) Int {
	return Int{Lexeme: strconv.FormatInt(n, 10)}
}

// Int64 parses the lexeme.
func (i Int) Int64() (int64, error) {
	return strconv.ParseInt(i.Lexeme, 10, 64)
}

// Float is a d:<f>; token. The lexeme is kept as written.
type Float struct {
	Lexeme string
}

// NewFloat builds a Float from a Go float using the shortest representation.
func NewFloat(f float64) Float {
	return Float{Lexeme: strconv.FormatFloat(f, 'g', -1, 64)}
}

// Float64 parses the lexeme, accepting INF, -INF and NAN.
func (f Float) Float64() (float64, error) {
	switch f.Lexeme {
	case "INF":
		return strconv.ParseFloat("+Inf", 64)
	case "-INF":
		return strconv.ParseFloat("-Inf", 64)
	case "NAN":
		return strconv.ParseFloat("NaN", 64)
	}
	return strconv.ParseFloat(f.Lexeme, 64)
}

// String is an s:<len>:"..."; token. The length is in bytes.
type String string

// List is an array whose keys are exactly the integers 0..n-1 in order.
type List []Value

// Entry is one key/value pair of a Map or Object. Key is always an Int or a
// String.
type Entry struct {
	Key   Value
	Value Value
}

// Map is an array with arbitrary keys. Entry order is preserved and a key
// may appear more than once if the input repeated it.
type Map []Entry

// Object is an O: record: a class name and its fields. Field keys may carry
// visibility markers, see ParseFieldName.
type Object struct {
	Class  string
	Fields []Entry
}

// Custom is a C: object whose payload was produced by the class itself. The
// payload is opaque and kept verbatim.
type Custom struct {
	Class   string
	Payload string
}

// Enum is an E: token holding "Class:Case".
type Enum string

// Ref is an r: or R: back reference into the value graph.
type Ref struct {
	Strong bool
	Index  string
}

func (Null) Kind() Kind   { return KindNull }
func (Bool) Kind() Kind   { return KindBool }
func (Int) Kind() Kind    { return KindInt }
func (Float) Kind() Kind  { return KindFloat }
func (String) Kind() Kind { return KindString }
func (List) Kind() Kind   { return KindList }
func (Map) Kind() Kind    { return KindMap }
func (Object) Kind() Kind { return KindObject }
func (Custom) Kind() Kind { return KindCustom }
func (Enum) Kind() Kind   { return KindEnum }
func (Ref) Kind() Kind    { return KindRef }

// Len returns the number of entries.
func (m Map) Len() int { return len(m) }

// Get returns the value of the first entry whose key is the string k.
func (m Map) Get(k string) (Value, bool) {
	return lookup(m, k)
}

// Get returns the value of the first field whose raw key is k.
func (o Object) Get(k string) (Value, bool) {
	return lookup(o.Fields, k)
}

func lookup(entries []Entry, k string) (Value, bool) {
	for _, e := range entries {
		if s, ok := e.Key.(String); ok && string(s) == k {
			return e.Value, true
		}
	}
	return nil, false
}

// KeyString returns a stable identity for an entry key that distinguishes
// integer keys from string keys with the same text.
func KeyString(k Value) string {
	switch t := k.(type) {
	case Int:
		return "i:" + t.Lexeme
	case String:
		return "s:" + string(t)
	}
	return ""
}
