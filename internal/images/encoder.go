package images

import (
	"fmt"
	"sync"

	"github.com/davidbyttow/govips/v2/vips"
)

// Format is an image encoding.
type Format string

const (
	JPEG Format = "jpeg"
	PNG  Format = "png"
	WebP Format = "webp"
	AVIF Format = "avif"
)

// EncodeOptions tune a single encode. Quality applies to lossy formats,
// Compression (0-9) to PNG.
type EncodeOptions struct {
	Quality     int
	Compression int
}

// Encoder re-encodes image bytes into a format.
type Encoder interface {
	Encode(data []byte, format Format, opts EncodeOptions) ([]byte, error)
}

var (
	vipsMu      sync.Mutex
	vipsStarted bool
	vipsStopped bool

	startVips = func() {
		vips.LoggingSettings(nil, vips.LogLevelWarning)
		vips.Startup(nil)
	}
	stopVips = vips.Shutdown
)

// VipsEncoder encodes through libvips.
type VipsEncoder struct{}

// NewVipsEncoder starts libvips once per process. Encoders share the
// process wide libvips instance, which Shutdown stops.
func NewVipsEncoder() *VipsEncoder {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	if !vipsStarted {
		startVips()
		vipsStarted = true
	}
	return &VipsEncoder{}
}

// Shutdown stops libvips if it was started. Call it once at process exit,
// libvips cannot be restarted afterwards.
func Shutdown() {
	vipsMu.Lock()
	defer vipsMu.Unlock()
	if vipsStarted && !vipsStopped {
		stopVips()
		vipsStopped = true
	}
}

func (e *VipsEncoder) Encode(data []byte, format Format, opts EncodeOptions) ([]byte, error) {
	image, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer image.Close()

	var out []byte
	switch format {
	case JPEG:
		out, _, err = image.ExportJpeg(&vips.JpegExportParams{
			StripMetadata:  true,
			Quality:        opts.Quality,
			OptimizeCoding: true,
		})
	case PNG:
		out, _, err = image.ExportPng(&vips.PngExportParams{
			StripMetadata: true,
			Compression:   opts.Compression,
		})
	case WebP:
		out, _, err = image.ExportWebp(&vips.WebpExportParams{
			StripMetadata: true,
			Quality:       opts.Quality,
		})
	case AVIF:
		out, _, err = image.ExportAvif(&vips.AvifExportParams{
			StripMetadata: true,
			Quality:       opts.Quality,
			Speed:         5,
		})
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s export failed: %v", ErrEncode, format, err)
	}

	return out, nil
}
