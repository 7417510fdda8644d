package codec

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed is matched by every decode failure.
	ErrMalformed = errors.New("malformed serialized value")

	// ErrTrailingData reports bytes left over after a complete value.
	ErrTrailingData = errors.New("trailing data after serialized value")

	// ErrTooDeep reports nesting beyond the decoder's limit.
	ErrTooDeep = errors.New("serialized value nested too deeply")
)

// Error describes where and why decoding failed.
type Error struct {
	Offset int
	Msg    string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("codec: %s at offset %d", e.Msg, e.Offset)
}

func (e *Error) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return ErrMalformed
}

// Is lets errors.Is(err, ErrMalformed) match any decode failure.
func (e *Error) Is(target error) bool {
	return target == ErrMalformed
}

func errorf(offset int, format string, args ...interface{}) *Error {
	return &Error{Offset: offset, Msg: fmt.Sprintf(format, args...)}
}
