package build

import "errors"

var (
	// ErrHookFailed indicates a before or after build command failed
	ErrHookFailed = errors.New("build hook failed")
)
