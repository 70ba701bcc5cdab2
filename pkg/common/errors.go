package common

import (
	"errors"
	"fmt"
	"strings"
)

// Extraction failure kinds. Every decode failure returned by the source,
// iso9660 and sfo packages wraps exactly one of these, so callers can branch
// with errors.Is.
var (
	ErrSourceUnreadable       = errors.New("source unreadable")
	ErrPvdNotFound            = errors.New("primary volume descriptor not found")
	ErrUnexpectedEndOfVolume  = errors.New("unexpected end of volume")
	ErrCorruptDirectoryRecord = errors.New("corrupt directory record")
	ErrTruncatedExtent        = errors.New("truncated extent")
	ErrBadMagic               = errors.New("bad magic")
	ErrUnknownDataFormat      = errors.New("unknown data format")
	ErrBadIntegerWidth        = errors.New("bad integer width")
	ErrTruncatedField         = errors.New("truncated field")
	ErrInvalidUtf8            = errors.New("invalid utf-8")
)

// NoOffset marks a DecodeError that is not tied to a byte position.
const NoOffset int64 = -1

// DecodeError reports a failure kind together with the byte offset and, when
// known, the path inside the image where it happened.
type DecodeError struct {
	Kind   error
	Offset int64
	Path   string
	Detail string
}

// NewDecodeError builds a DecodeError of the given kind at offset.
func NewDecodeError(kind error, offset int64, detail string, args ...interface{}) *DecodeError {
	if len(args) > 0 {
		detail = fmt.Sprintf(detail, args...)
	}
	return &DecodeError{Kind: kind, Offset: offset, Detail: detail}
}

func (e *DecodeError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Path != "" {
		fmt.Fprintf(&b, " in %s", e.Path)
	}
	if e.Offset >= 0 {
		fmt.Fprintf(&b, " at offset 0x%X", e.Offset)
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *DecodeError) Unwrap() error {
	return e.Kind
}

// WithPath attaches an image path to err if it is a DecodeError without one.
// Other errors are wrapped with the path as context.
func WithPath(err error, path string) error {
	if err == nil {
		return nil
	}
	var de *DecodeError
	if errors.As(err, &de) {
		if de.Path == "" {
			cp := *de
			cp.Path = path
			return &cp
		}
		return err
	}
	return fmt.Errorf("%s: %w", path, err)
}

// KindOf returns the failure kind wrapped by err, or nil if err carries none.
func KindOf(err error) error {
	for _, kind := range []error{
		ErrSourceUnreadable,
		ErrPvdNotFound,
		ErrUnexpectedEndOfVolume,
		ErrCorruptDirectoryRecord,
		ErrTruncatedExtent,
		ErrBadMagic,
		ErrUnknownDataFormat,
		ErrBadIntegerWidth,
		ErrTruncatedField,
		ErrInvalidUtf8,
	} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
