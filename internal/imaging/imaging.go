// Package imaging validates untrusted branding images and re-encodes them
// as RGBA PNG so that only decoded pixel data ever reaches disk.
package imaging

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"strings"

	_ "image/gif"
	_ "image/jpeg"

	"golang.org/x/image/draw"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const (
	// MaxBytes is the largest encoded image accepted.
	MaxBytes = 5 << 20
	// MaxPixels bounds the decoded canvas so small files cannot expand into
	// huge allocations.
	MaxPixels = 4096 * 4096
)

var (
	ErrTooLarge   = errors.New("image exceeds size limit")
	ErrDimensions = errors.New("image dimensions exceed limit")
	ErrNotImage   = errors.New("not a decodable image")
	ErrBadDataURL = errors.New("malformed image data URL")
)

// ReadLimited reads r fully, failing with ErrTooLarge as soon as more than
// limit bytes arrive.
func ReadLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}

// DecodeDataURL extracts the bytes of a "data:image/...;base64," string.
// The encoded length is checked before decoding and the decoded length
// after.
func DecodeDataURL(s string, limit int64) ([]byte, error) {
	if !strings.HasPrefix(s, "data:image/") {
		return nil, ErrBadDataURL
	}
	_, b64, ok := strings.Cut(s, ";base64,")
	if !ok {
		return nil, ErrBadDataURL
	}
	if int64(base64.StdEncoding.DecodedLen(len(b64))) > limit+2 {
		return nil, ErrTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadDataURL, err)
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}

// NormalizePNG decodes data in any registered format and returns it
// re-encoded as a non-premultiplied RGBA PNG.
func NormalizePNG(data []byte) ([]byte, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width*cfg.Height > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrDimensions, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImage, err)
	}

	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)

	var out bytes.Buffer
	if err := png.Encode(&out, alphaNRGBA{dst}); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return out.Bytes(), nil
}

// alphaNRGBA never reports itself opaque, so png.Encode always writes an
// RGBA (color type 6) image instead of dropping the alpha channel.
type alphaNRGBA struct {
	*image.NRGBA
}

func (alphaNRGBA) Opaque() bool { return false }
