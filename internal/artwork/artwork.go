// Package artwork validates and normalizes downloaded cover images before
// they are embedded in a reconciliation result.
package artwork

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG decoder
	"io"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // register WebP decoder
)

// Supported image format names.
const (
	FormatJPEG = "jpeg"
	FormatPNG  = "png"
	FormatWebP = "webp"
)

// ErrNotImage is returned when the payload is not a decodable JPEG, PNG or WebP.
var ErrNotImage = errors.New("payload is not a supported image")

// Info describes a validated image.
type Info struct {
	Format string
	Width  int
	Height int
	Bytes  int
}

// DetectFormat reads the first bytes from r to identify the image format.
// Returns "jpeg", "png", or "webp". The returned reader replays the consumed bytes.
func DetectFormat(r io.Reader) (format string, replay io.Reader, err error) {
	buf := make([]byte, 12)
	n, err := io.ReadFull(r, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", nil, fmt.Errorf("reading header: %w", err)
	}
	buf = buf[:n]

	replay = io.MultiReader(bytes.NewReader(buf), r)

	if n >= 3 && buf[0] == 0xFF && buf[1] == 0xD8 && buf[2] == 0xFF {
		return FormatJPEG, replay, nil
	}
	if n >= 8 && string(buf[:8]) == "\x89PNG\r\n\x1a\n" {
		return FormatPNG, replay, nil
	}
	if n >= 12 && string(buf[:4]) == "RIFF" && string(buf[8:12]) == "WEBP" {
		return FormatWebP, replay, nil
	}

	return "", replay, ErrNotImage
}

// Validate checks that data is a supported image and decodes its header.
func Validate(data []byte) (Info, error) {
	format, replay, err := DetectFormat(bytes.NewReader(data))
	if err != nil {
		return Info{}, err
	}
	cfg, _, err := image.DecodeConfig(replay)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	if cfg.Width == 0 || cfg.Height == 0 {
		return Info{}, fmt.Errorf("%w: empty dimensions", ErrNotImage)
	}
	return Info{Format: format, Width: cfg.Width, Height: cfg.Height, Bytes: len(data)}, nil
}

// Fit returns data unchanged when both sides are within maxDim. Larger
// images are scaled down preserving aspect ratio and re-encoded as JPEG.
// A non-positive maxDim disables scaling.
func Fit(data []byte, maxDim int) ([]byte, Info, error) {
	info, err := Validate(data)
	if err != nil {
		return nil, Info{}, err
	}
	if maxDim <= 0 || (info.Width <= maxDim && info.Height <= maxDim) {
		return data, info, nil
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, Info{}, fmt.Errorf("%w: %v", ErrNotImage, err)
	}
	w, h := fitDimensions(info.Width, info.Height, maxDim)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: 90}); err != nil {
		return nil, Info{}, fmt.Errorf("encoding jpeg: %w", err)
	}
	return buf.Bytes(), Info{Format: FormatJPEG, Width: w, Height: h, Bytes: buf.Len()}, nil
}

// Base64 encodes image bytes for JSON transport.
func Base64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

func fitDimensions(w, h, maxDim int) (int, int) {
	if w >= h {
		nh := h * maxDim / w
		if nh < 1 {
			nh = 1
		}
		return maxDim, nh
	}
	nw := w * maxDim / h
	if nw < 1 {
		nw = 1
	}
	return nw, maxDim
}
