// Package palette extracts the dominant colors of an image by k-means
// clustering of its pixels.
//
// Clustering is deterministic: the seed is fixed, several k-means++
// initializations are tried and the one with the lowest inertia wins.
// Large images are clustered on a nearest-neighbour downsample, but the
// reported centroids and coverage are computed over every pixel, so the
// percentages of a palette always sum to 1.
package palette

import (
	"fmt"
	"image"
	"math"
	"sort"

	"github.com/disintegration/imaging"
	"github.com/sirupsen/logrus"

	"github.com/menta2k/scene-analyzer/pkg/types"
)

// Config holds configuration for color extraction
type Config struct {
	Clusters        int
	Inits           int
	MaxIter         int
	Tolerance       float64
	Seed            uint64
	MaxSamplePixels int
}

// DefaultConfig returns the default extraction parameters
func DefaultConfig() Config {
	return Config{
		Clusters:        5,
		Inits:           10,
		MaxIter:         300,
		Tolerance:       1e-4,
		Seed:            42,
		MaxSamplePixels: 256 * 256,
	}
}

// Extractor computes dominant color palettes
type Extractor struct {
	config Config
	log    logrus.FieldLogger
}

// New creates a new Extractor with default configuration
func New(log logrus.FieldLogger) *Extractor {
	return NewWithConfig(DefaultConfig(), log)
}

// NewWithConfig creates a new Extractor with custom configuration
func NewWithConfig(config Config, log logrus.FieldLogger) *Extractor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Extractor{config: config, log: log}
}

// Swatches returns the palette of img, or an empty palette if extraction
// fails. The failure is logged and never propagated.
func (e *Extractor) Swatches(img image.Image) []types.ColorSwatch {
	swatches, err := e.Extract(img)
	if err != nil {
		e.log.Warnf("Color analysis failed: %v", err)
		return []types.ColorSwatch{}
	}
	return swatches
}

// Extract clusters the pixels of img into at most Clusters swatches,
// ordered by coverage descending (ties by cluster index)
func (e *Extractor) Extract(img image.Image) (swatches []types.ColorSwatch, err error) {
	defer func() {
		if r := recover(); r != nil {
			swatches, err = nil, types.Errorf(types.KindColorExtraction, "color extraction panicked: %v", r)
		}
	}()

	if img == nil || img.Bounds().Empty() {
		return nil, types.Errorf(types.KindColorExtraction, "image has no pixels")
	}
	if e.config.Clusters < 1 || e.config.Inits < 1 || e.config.MaxIter < 1 {
		return nil, types.Errorf(types.KindColorExtraction, "invalid palette configuration %+v", e.config)
	}

	full := asNRGBA(img)
	var sample []point
	if limit := e.config.MaxSamplePixels; limit > 0 && pixelCount(full) > limit {
		sample = toPoints(downsample(full, limit))
	} else {
		sample = toPoints(full)
	}

	k := min(e.config.Clusters, distinctColors(sample, e.config.Clusters))
	centers := fit(sample, k, e.config.Inits, e.config.MaxIter, e.config.Tolerance, e.config.Seed)
	if len(centers) == 0 {
		return nil, types.Errorf(types.KindColorExtraction, "clustering produced no centers")
	}

	// Final assignment over the full image
	sums := make([]point, len(centers))
	counts := make([]int, len(centers))
	eachPixel(full, func(p point) {
		c, _ := nearest(p, centers)
		sums[c][0] += p[0]
		sums[c][1] += p[1]
		sums[c][2] += p[2]
		counts[c]++
	})

	total := float64(pixelCount(full))
	swatches = make([]types.ColorSwatch, 0, len(centers))
	for i := range centers {
		if counts[i] == 0 {
			continue
		}
		n := float64(counts[i])
		rgb := [3]int{
			channel(sums[i][0] / n),
			channel(sums[i][1] / n),
			channel(sums[i][2] / n),
		}
		swatches = append(swatches, types.ColorSwatch{
			Name:       ColorName(rgb[0], rgb[1], rgb[2]),
			RGB:        rgb,
			Hex:        fmt.Sprintf("#%02x%02x%02x", rgb[0], rgb[1], rgb[2]),
			Percentage: n / total,
		})
	}

	sort.SliceStable(swatches, func(a, b int) bool {
		return swatches[a].Percentage > swatches[b].Percentage
	})
	return swatches, nil
}

// asNRGBA returns img itself when it is already NRGBA, otherwise a copy
func asNRGBA(img image.Image) *image.NRGBA {
	if n, ok := img.(*image.NRGBA); ok {
		return n
	}
	return imaging.Clone(img)
}

func pixelCount(img *image.NRGBA) int {
	b := img.Bounds()
	return b.Dx() * b.Dy()
}

// eachPixel calls fn with the color of every pixel, reading Pix in place
func eachPixel(img *image.NRGBA, fn func(point)) {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		off := img.PixOffset(b.Min.X, y)
		row := img.Pix[off : off+b.Dx()*4]
		for x := 0; x < len(row); x += 4 {
			fn(point{float64(row[x]), float64(row[x+1]), float64(row[x+2])})
		}
	}
}

func toPoints(img *image.NRGBA) []point {
	pts := make([]point, 0, pixelCount(img))
	eachPixel(img, func(p point) {
		pts = append(pts, p)
	})
	return pts
}

// downsample shrinks img to roughly limit pixels without mixing colors
func downsample(img image.Image, limit int) *image.NRGBA {
	b := img.Bounds()
	scale := math.Sqrt(float64(limit) / float64(b.Dx()*b.Dy()))
	w := max(1, int(float64(b.Dx())*scale))
	h := max(1, int(float64(b.Dy())*scale))
	return imaging.Resize(img, w, h, imaging.NearestNeighbor)
}

// distinctColors counts distinct points, stopping once limit is reached
func distinctColors(pts []point, limit int) int {
	seen := make(map[point]struct{}, limit)
	for _, p := range pts {
		seen[p] = struct{}{}
		if len(seen) >= limit {
			break
		}
	}
	return len(seen)
}

func channel(v float64) int {
	return int(math.Max(0, math.Min(255, math.Round(v))))
}
