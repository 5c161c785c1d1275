package files

import "errors"

var (
	// ErrUnsafePath indicates a path that resolves to the project root or outside of it
	ErrUnsafePath = errors.New("unsafe path")
)
