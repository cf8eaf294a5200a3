package types

import (
	"errors"
	"fmt"
)

// Kind classifies analysis failures
type Kind string

const (
	KindDependencyMissing Kind = "dependency_missing"
	KindModelLoad         Kind = "model_load"
	KindImageDecode       Kind = "image_decode"
	KindInference         Kind = "inference"
	KindColorExtraction   Kind = "color_extraction"
	KindInvalidArguments  Kind = "invalid_arguments"
)

// Error is a failure tagged with its Kind
type Error struct {
	Kind    Kind
	Err     error
	Missing []string
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}
	return e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

// NewError tags err with kind. A nil err yields nil.
func NewError(kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Kind: kind, Err: err}
}

// Errorf formats a new error tagged with kind
func Errorf(kind Kind, format string, args ...any) error {
	return &Error{Kind: kind, Err: fmt.Errorf(format, args...)}
}

// KindOf returns the Kind of the first *Error in err's chain.
// Untagged errors are reported as inference failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInference
}
