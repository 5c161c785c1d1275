package images

import "errors"

var (
	ErrDecode            = errors.New("failed to decode image")
	ErrEncode            = errors.New("failed to encode image")
	ErrUnsupportedFormat = errors.New("unsupported image format")
	// ErrVariantConflict indicates two images that would write the same WebP or AVIF file
	ErrVariantConflict = errors.New("conflicting image variants")
)
