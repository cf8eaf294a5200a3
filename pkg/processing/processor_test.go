package processing

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestImage creates a simple gradient test image
func createTestImage(width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.Set(x, y, color.NRGBA{uint8((x * 255) / width), uint8((y * 255) / height), 128, 255})
		}
	}
	return img
}

func writePNG(t *testing.T, img image.Image) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "image.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestLoadImagePNG(t *testing.T) {
	p := NewProcessor()
	path := writePNG(t, createTestImage(40, 30))

	img, format, err := p.LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 30, img.Bounds().Dy())
}

func TestLoadImageDropsAlpha(t *testing.T) {
	p := NewProcessor()
	src := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	for i := range 4 {
		src.Pix[i*4] = 200
		src.Pix[i*4+3] = 10
	}
	path := writePNG(t, src)

	img, _, err := p.LoadImage(path)
	require.NoError(t, err)
	for i := 0; i < len(img.Pix); i += 4 {
		assert.Equal(t, uint8(200), img.Pix[i])
		assert.Equal(t, uint8(255), img.Pix[i+3])
	}
}

func TestLoadImageErrors(t *testing.T) {
	p := NewProcessor()

	_, _, err := p.LoadImage(filepath.Join(t.TempDir(), "missing.jpg"))
	assert.Error(t, err)

	bogus := filepath.Join(t.TempDir(), "bogus.png")
	require.NoError(t, os.WriteFile(bogus, []byte("not an image"), 0o644))
	_, _, err = p.LoadImage(bogus)
	assert.Error(t, err)
}

func TestLoadImageNonImageExtension(t *testing.T) {
	p := NewProcessor()

	notes := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(notes, []byte("hello"), 0o644))
	_, _, err := p.LoadImage(notes)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a supported image file")

	bogus := filepath.Join(t.TempDir(), "bogus.jpg")
	require.NoError(t, os.WriteFile(bogus, []byte("hello"), 0o644))
	_, _, err = p.LoadImage(bogus)
	require.Error(t, err)
	assert.NotContains(t, err.Error(), "not a supported image file")
}

// withOrientation inserts an EXIF APP1 segment carrying the given
// orientation tag right after the JPEG SOI marker
func withOrientation(jpg []byte, orientation byte) []byte {
	tiff := []byte{
		'M', 'M', 0x00, 0x2a, 0x00, 0x00, 0x00, 0x08, // big-endian header, IFD at 8
		0x00, 0x01, // one entry
		0x01, 0x12, 0x00, 0x03, 0x00, 0x00, 0x00, 0x01, 0x00, orientation, 0x00, 0x00,
		0x00, 0x00, 0x00, 0x00, // no next IFD
	}
	payload := append([]byte("Exif\x00\x00"), tiff...)
	size := len(payload) + 2
	segment := append([]byte{0xff, 0xe1, byte(size >> 8), byte(size)}, payload...)

	out := append([]byte{}, jpg[:2]...)
	out = append(out, segment...)
	return append(out, jpg[2:]...)
}

func TestLoadImageKeepsStoredOrientation(t *testing.T) {
	p := NewProcessor()

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, createTestImage(40, 20), &jpeg.Options{Quality: 90}))
	path := filepath.Join(t.TempDir(), "rotated.jpg")
	require.NoError(t, os.WriteFile(path, withOrientation(buf.Bytes(), 6), 0o644))

	img, format, err := p.LoadImage(path)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", format)
	assert.Equal(t, 40, img.Bounds().Dx())
	assert.Equal(t, 20, img.Bounds().Dy())
}

func TestGetImageInfo(t *testing.T) {
	p := NewProcessor()
	info := p.GetImageInfo(createTestImage(400, 300), "jpeg")

	assert.Equal(t, 400, info.Width)
	assert.Equal(t, 300, info.Height)
	assert.InDelta(t, 400.0/300.0, info.AspectRatio, 1e-12)
	assert.Equal(t, "jpeg", info.Format)

	assert.Equal(t, "unknown", p.GetImageInfo(createTestImage(1, 1), "").Format)
}

func TestPrepareImageForModelResizes(t *testing.T) {
	p := NewProcessor()

	b64, err := p.PrepareImageForModel(createTestImage(800, 200), "jpg", 400, 85)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	decoded, err := jpeg.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, 400, decoded.Bounds().Dx())
	assert.Equal(t, 100, decoded.Bounds().Dy())
}

func TestPrepareImageForModelPNG(t *testing.T) {
	p := NewProcessor()

	b64, err := p.PrepareImageForModel(createTestImage(10, 10), "png", 0, 0)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(b64)
	require.NoError(t, err)
	_, err = png.Decode(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "image/png", PayloadMIME("png"))
	assert.Equal(t, "image/jpeg", PayloadMIME("jpg"))
}
