package amf3

import (
	"fmt"
)

// ErrorKind classifies codec failures.
type ErrorKind int

const (
	// MalformedInput: unknown marker, truncated data, bad reference or
	// unexpected marker for a typed read.
	MalformedInput ErrorKind = iota + 1
	// UnsupportedFeature: externalizable objects on decoding, values the
	// encoder has no representation for.
	UnsupportedFeature
	// CapacityExceeded: the encoder buffer is full and can't grow.
	CapacityExceeded
)

func (k ErrorKind) String() string {
	switch k {
	case MalformedInput:
		return "malformed input"
	case UnsupportedFeature:
		return "unsupported feature"
	case CapacityExceeded:
		return "capacity exceeded"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Error is the only error type the codec produces. Use errors.Is with
// ErrMalformedInput, ErrUnsupportedFeature or ErrCapacityExceeded to check
// the kind.
type Error struct {
	Kind   ErrorKind
	Reason string
}

var (
	ErrMalformedInput     = &Error{Kind: MalformedInput}
	ErrUnsupportedFeature = &Error{Kind: UnsupportedFeature}
	ErrCapacityExceeded   = &Error{Kind: CapacityExceeded}
)

func (e *Error) Error() string {
	if e.Reason == "" {
		return "amf3: " + e.Kind.String()
	}
	return "amf3: " + e.Kind.String() + ": " + e.Reason
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if ok == false {
		return false
	}
	return t.Kind == e.Kind
}

func errMalformed(format string, args ...interface{}) error {
	return &Error{Kind: MalformedInput, Reason: fmt.Sprintf(format, args...)}
}

func errUnsupported(format string, args ...interface{}) error {
	return &Error{Kind: UnsupportedFeature, Reason: fmt.Sprintf(format, args...)}
}

func errCapacity(format string, args ...interface{}) error {
	return &Error{Kind: CapacityExceeded, Reason: fmt.Sprintf(format, args...)}
}
