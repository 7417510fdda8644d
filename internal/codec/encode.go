package codec

import (
	"strconv"
	"strings"
)

// Encode serializes v. Values produced by Decode encode back to the exact
// input bytes.
func Encode(v Value) string {
	var b strings.Builder
	encodeValue(&b, v)
	return b.String()
}

func encodeValue(b *strings.Builder, v Value) {
	if v == nil {
		Null{}.encodeTo(b)
		return
	}
	v.encodeTo(b)
}

func (Null) encodeTo(b *strings.Builder) { b.WriteString("N;") }

func (v Bool) encodeTo(b *strings.Builder) {
	if v {
		b.WriteString("b:1;")
		return
	}
	b.WriteString("b:0;")
}

func (v Int) encodeTo(b *strings.Builder) {
	b.WriteString("i:")
	b.WriteString(v.Lexeme)
	b.WriteByte(';')
}

func (v Float) encodeTo(b *strings.Builder) {
	b.WriteString("d:")
	b.WriteString(v.Lexeme)
	b.WriteByte(';')
}

func (v String) encodeTo(b *strings.Builder) {
	writeQuoted(b, 's', string(v))
	b.WriteByte(';')
}

func (v List) encodeTo(b *strings.Builder) {
	b.WriteString("a:")
	b.WriteString(strconv.Itoa(len(v)))
	b.WriteString(":{")
	for i, elem := range v {
		b.WriteString("i:")
		b.WriteString(strconv.Itoa(i))
		b.WriteByte(';')
		encodeValue(b, elem)
	}
	b.WriteByte('}')
}

func (v Map) encodeTo(b *strings.Builder) {
	b.WriteString("a:")
	b.WriteString(strconv.Itoa(len(v)))
	b.WriteByte(':')
	writeEntries(b, v)
}

func (v Object) encodeTo(b *strings.Builder) {
	writeQuoted(b, 'O', v.Class)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(len(v.Fields)))
	b.WriteByte(':')
	writeEntries(b, v.Fields)
}

func (v Custom) encodeTo(b *strings.Builder) {
	writeQuoted(b, 'C', v.Class)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(len(v.Payload)))
	b.WriteString(":{")
	b.WriteString(v.Payload)
	b.WriteByte('}')
}

func (v Enum) encodeTo(b *strings.Builder) {
	writeQuoted(b, 'E', string(v))
	b.WriteByte(';')
}

func (v Ref) encodeTo(b *strings.Builder) {
	if v.Strong {
		b.WriteString("R:")
	} else {
		b.WriteString("r:")
	}
	b.WriteString(v.Index)
	b.WriteByte(';')
}

func writeQuoted(b *strings.Builder, tag byte, s string) {
	b.WriteByte(tag)
	b.WriteByte(':')
	b.WriteString(strconv.Itoa(len(s)))
	b.WriteString(`:"`)
	b.WriteString(s)
	b.WriteByte('"')
}

func writeEntries(b *strings.Builder, entries []Entry) {
	b.WriteByte('{')
	for _, e := range entries {
		encodeValue(b, e.Key)
		encodeValue(b, e.Value)
	}
	b.WriteByte('}')
}
