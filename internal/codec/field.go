package codec

import "strings"

// Visibility of an object field as encoded in its key.
type Visibility int

const (
	Public Visibility = iota
	Protected
	Private
)

// FieldName is an object field key split into its parts. Protected fields
// are stored as "\x00*\x00name", private ones as "\x00Class\x00name".
type FieldName struct {
	Visibility Visibility
	// Class is the declaring class of a private field.
	Class string
	Name  string
}

// ParseFieldName splits a raw field key. Keys that do not follow the marker
// layout are treated as public names.
func ParseFieldName(key string) FieldName {
	if len(key) < 3 || key[0] != 0 {
		return FieldName{Name: key}
	}
	end := strings.IndexByte(key[1:], 0)
	if end < 0 {
		return FieldName{Name: key}
	}
	marker := key[1 : 1+end]
	name := key[2+end:]
	if marker == "*" {
		return FieldName{Visibility: Protected, Name: name}
	}
	return FieldName{Visibility: Private, Class: marker, Name: name}
}

// String reassembles the raw key.
func (f FieldName) String() string {
	switch f.Visibility {
	case Protected:
		return "\x00*\x00" + f.Name
	case Private:
		return "\x00" + f.Class + "\x00" + f.Name
	}
	return f.Name
}
