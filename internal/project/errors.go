package project

import (
	"errors"
	"fmt"
)

// Kind classifies an exploration failure.
type Kind int

const (
	KindNotFound Kind = iota + 1
	KindRead
	KindDecompress
	KindParse
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not found"
	case KindRead:
		return "read"
	case KindDecompress:
		return "decompress"
	case KindParse:
		return "parse"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

var (
	ErrNotFound   = errors.New("project file not found")
	ErrDecompress = errors.New("project file decompression failed")
	ErrParse      = errors.New("project file parsing failed")
)

// ExploreError is returned when a project file cannot be explored.
type ExploreError struct {
	Kind Kind
	Path string
	Err  error
}

func (e *ExploreError) Error() string {
	return fmt.Sprintf("exploring %s: %s error: %v", e.Path, e.Kind, e.Err)
}

func (e *ExploreError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel of the error's kind.
func (e *ExploreError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Kind == KindNotFound
	case ErrDecompress:
		return e.Kind == KindDecompress
	case ErrParse:
		return e.Kind == KindParse
	}
	return false
}
