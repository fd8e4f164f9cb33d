// Package imaging produces the two stored renditions of a found-item photo:
// a dark, blurred black-and-white copy for the public feed and a compressed
// full-color original for the founder and verified claimants.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"math"

	// decoders for accepted upload formats
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
)

// ErrUnsupportedImage is returned when the upload cannot be decoded
var ErrUnsupportedImage = errors.New("unsupported or corrupt image")

const (
	publicBrightness = 0.45
	publicContrast   = 1.15
	highlightCeiling = 180
	highlightCap     = 140

	analysisMaxDim  = 1536
	analysisQuality = 90
)

// Options sizes and encodes the renditions
type Options struct {
	PublicMaxDim   int
	OriginalMaxDim int
	JPEGQuality    int
}

// DefaultOptions matches the stock configuration
func DefaultOptions() Options {
	return Options{PublicMaxDim: 500, OriginalMaxDim: 600, JPEGQuality: 60}
}

// Decode reads a JPEG, PNG or GIF image
func Decode(r io.Reader) (image.Image, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedImage, err)
	}
	return img, nil
}

// PublicRendition returns the obscured feed image as JPEG
func PublicRendition(src image.Image, opts Options) ([]byte, error) {
	scaled := fit(src, opts.PublicMaxDim)
	gray := toDarkGray(scaled)
	blurred := boxBlur(gray)
	capHighlights(blurred)
	return encode(blurred, opts.JPEGQuality)
}

// CompressOriginal returns the downscaled full-color photo as JPEG
func CompressOriginal(src image.Image, opts Options) ([]byte, error) {
	return encode(fit(src, opts.OriginalMaxDim), opts.JPEGQuality)
}

// AnalysisCopy returns a high-quality JPEG for question generation. Brand
// marks and engravings must survive, so it is sized and encoded well above
// the stored renditions.
func AnalysisCopy(src image.Image) ([]byte, error) {
	return encode(fit(src, analysisMaxDim), analysisQuality)
}

// fit scales src down so neither side exceeds maxDim, keeping the aspect ratio.
// Smaller images are copied unchanged.
func fit(src image.Image, maxDim int) *image.RGBA {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()
	if maxDim > 0 && (w > maxDim || h > maxDim) {
		ratio := math.Min(float64(maxDim)/float64(w), float64(maxDim)/float64(h))
		w = max(int(math.Round(float64(w)*ratio)), 1)
		h = max(int(math.Round(float64(h)*ratio)), 1)
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
		return dst
	}
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}

// toDarkGray applies grayscale (Rec. 709 luma), then brightness, then contrast
func toDarkGray(src *image.RGBA) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := src.RGBAAt(x, y)
			luma := 0.2126*float64(c.R) + 0.7152*float64(c.G) + 0.0722*float64(c.B)
			v := luma * publicBrightness
			v = (v-127.5)*publicContrast + 127.5
			dst.SetGray(x, y, color.Gray{Y: clamp(v)})
		}
	}
	return dst
}

// boxBlur softens fine detail such as printed names with a 3x3 kernel (about 1px)
func boxBlur(src *image.Gray) *image.Gray {
	b := src.Bounds()
	dst := image.NewGray(b)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			sum, n := 0, 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					p := image.Pt(x+dx, y+dy)
					if !p.In(b) {
						continue
					}
					sum += int(src.GrayAt(p.X, p.Y).Y)
					n++
				}
			}
			dst.SetGray(x, y, color.Gray{Y: uint8(sum / n)})
		}
	}
	return dst
}

// capHighlights darkens glare so bright text stays unreadable
func capHighlights(img *image.Gray) {
	for i, v := range img.Pix {
		if v > highlightCeiling {
			img.Pix[i] = highlightCap
		}
	}
}

func encode(img image.Image, quality int) ([]byte, error) {
	if quality <= 0 || quality > 100 {
		quality = jpeg.DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}

func clamp(v float64) uint8 {
	switch {
	case v < 0:
		return 0
	case v > 255:
		return 255
	default:
		return uint8(math.Round(v))
	}
}
