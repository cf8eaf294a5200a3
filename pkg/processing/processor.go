package processing

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"os"
	"strings"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/scene-analyzer/internal/utils"
	"github.com/menta2k/scene-analyzer/pkg/types"
)

// Processor handles image decoding and encoding
type Processor struct{}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{}
}

// LoadImage decodes the image at path and flattens it to opaque RGB.
// The returned format is the decoder name ("jpeg", "png", "webp", ...).
// Pixels are kept in stored order; EXIF orientation is not applied, so the
// size matches the file header.
func (p *Processor) LoadImage(path string) (*image.NRGBA, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open image file: %w", err)
	}

	img, format, err := p.decodeImageFromBytes(data)
	if err != nil {
		if !utils.IsImageFile(path) {
			return nil, "", fmt.Errorf("failed to decode %s: not a supported image file (jpg, png, gif, bmp, tiff, webp): %w", path, err)
		}
		return nil, "", fmt.Errorf("failed to decode image %s: %w", path, err)
	}

	rgb := ToRGB(img)
	if rgb.Bounds().Empty() {
		return nil, "", fmt.Errorf("image %s has no pixels", path)
	}
	return rgb, format, nil
}

// decodeImageFromBytes decodes an image from byte data with WebP support
func (p *Processor) decodeImageFromBytes(data []byte) (image.Image, string, error) {
	if _, format, err := image.DecodeConfig(bytes.NewReader(data)); err == nil {
		img, err := imaging.Decode(bytes.NewReader(data))
		if err == nil {
			return img, format, nil
		}
	}

	// Fallback: explicit WebP decode
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, "webp", nil
	}

	return nil, "", fmt.Errorf("image: unknown or unsupported format")
}

// ToRGB returns a copy of img with every pixel made fully opaque. Color
// channels are kept as-is, the alpha channel is dropped.
func ToRGB(img image.Image) *image.NRGBA {
	out := imaging.Clone(img)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}

// GetImageInfo returns basic information about an image
func (p *Processor) GetImageInfo(img image.Image, format string) types.ImageInfo {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	var ratio float64
	if height > 0 {
		ratio = float64(width) / float64(height)
	}
	if format == "" {
		format = "unknown"
	}

	return types.ImageInfo{
		Width:       width,
		Height:      height,
		AspectRatio: ratio,
		Format:      format,
	}
}

// PrepareImageForModel converts an image to base64 for sending to vision models
func (p *Processor) PrepareImageForModel(img image.Image, format string, maxDim int, quality int) (string, error) {
	if maxDim > 0 {
		b := img.Bounds()
		w, h := b.Dx(), b.Dy()
		if w > maxDim || h > maxDim {
			if w >= h {
				img = imaging.Resize(img, maxDim, 0, imaging.Lanczos)
			} else {
				img = imaging.Resize(img, 0, maxDim, imaging.Lanczos)
			}
		}
	}

	var buf bytes.Buffer
	switch strings.ToLower(format) {
	case "png":
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		if err := enc.Encode(&buf, img); err != nil {
			return "", err
		}
	default: // jpg
		if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
			return "", err
		}
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

// PayloadMIME returns the MIME type of a payload produced by PrepareImageForModel
func PayloadMIME(format string) string {
	if strings.ToLower(format) == "png" {
		return "image/png"
	}
	return "image/jpeg"
}
