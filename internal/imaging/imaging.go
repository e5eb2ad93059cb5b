// Package imaging probes and recompresses uploaded photos.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	MaxDimension  = 6000
	downscaleStep = 0.85
	maxDownscales = 6
)

// Qualities are tried in order until the encoded image fits.
var Qualities = []int{90, 82, 74, 66, 58, 50}

var ErrCannotFit = errors.New("image cannot be compressed to the size limit")

// Dimensions reads only the image header.
func Dimensions(r io.Reader) (width, height int, format string, err error) {
	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return 0, 0, "", fmt.Errorf("decode image header: %w", err)
	}
	return cfg.Width, cfg.Height, format, nil
}

type Result struct {
	Data        []byte
	Width       int
	Height      int
	ContentType string
}

// FitToBytes returns data unchanged when it already fits maxBytes. Otherwise it re-encodes
// as JPEG, capping the longest side at MaxDimension, stepping quality down and then
// shrinking by 15% per pass.
func FitToBytes(data []byte, maxBytes int) (Result, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return Result{}, fmt.Errorf("decode image: %w", err)
	}
	b := img.Bounds()
	if len(data) <= maxBytes && b.Dx() <= MaxDimension && b.Dy() <= MaxDimension {
		return Result{Data: data, Width: b.Dx(), Height: b.Dy(), ContentType: "image/" + format}, nil
	}

	w, h := clamp(b.Dx(), b.Dy(), MaxDimension)
	var best []byte
	for pass := 0; pass <= maxDownscales; pass++ {
		scaled := resize(img, w, h)
		for _, q := range Qualities {
			var buf bytes.Buffer
			if err := jpeg.Encode(&buf, scaled, &jpeg.Options{Quality: q}); err != nil {
				return Result{}, fmt.Errorf("encode jpeg: %w", err)
			}
			best = buf.Bytes()
			if len(best) <= maxBytes {
				return Result{Data: best, Width: w, Height: h, ContentType: "image/jpeg"}, nil
			}
		}
		w = max(1, int(float64(w)*downscaleStep))
		h = max(1, int(float64(h)*downscaleStep))
	}
	return Result{}, fmt.Errorf("%w: %d bytes over %d", ErrCannotFit, len(best), maxBytes)
}

func clamp(w, h, limit int) (int, int) {
	if w <= limit && h <= limit {
		return w, h
	}
	if w >= h {
		return limit, max(1, h*limit/w)
	}
	return max(1, w*limit/h), limit
}

func resize(src image.Image, w, h int) image.Image {
	b := src.Bounds()
	if b.Dx() == w && b.Dy() == h {
		return src
	}
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	return dst
}
