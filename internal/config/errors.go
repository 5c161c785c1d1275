package config

import "errors"

var (
	// ErrMissingHash indicates an output name pattern without a content hash placeholder
	ErrMissingHash = errors.New("output name pattern must contain [hash]")
	// ErrInvalidEntry indicates the entry point is empty
	ErrInvalidEntry = errors.New("entry point is required")
	// ErrInvalidOutDir indicates the output directory would clobber the project or its sources
	ErrInvalidOutDir = errors.New("invalid output directory")
	// ErrInvalidCopy indicates a copy pattern writing outside the output directory
	ErrInvalidCopy = errors.New("copy target must be inside the output directory")
	// ErrInvalidPort indicates a dev server port outside 1..65535
	ErrInvalidPort = errors.New("invalid dev server port")
)
