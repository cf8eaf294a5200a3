package types

import (
	"fmt"
	"strings"
)

// Device selects where the model runs
type Device string

const (
	DeviceCPU Device = "cpu"
	DeviceGPU Device = "gpu"
)

// ParseDevice parses a device name. "cuda" is accepted as an alias for gpu.
func ParseDevice(s string) (Device, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "cpu":
		return DeviceCPU, nil
	case "gpu", "cuda":
		return DeviceGPU, nil
	}
	return "", fmt.Errorf("invalid device %q (use cpu or gpu)", s)
}

// AnalysisRequest describes a single invocation
type AnalysisRequest struct {
	ModelPath   string
	ImagePath   string
	Device      Device
	MaxTokens   int
	Temperature float64
}

// Validate checks the request bounds
func (r AnalysisRequest) Validate() error {
	if r.ModelPath == "" {
		return fmt.Errorf("model path is required")
	}
	if r.ImagePath == "" {
		return fmt.Errorf("image path is required")
	}
	if r.Device != DeviceCPU && r.Device != DeviceGPU {
		return fmt.Errorf("invalid device %q", r.Device)
	}
	if r.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive, got %d", r.MaxTokens)
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %g", r.Temperature)
	}
	return nil
}

// GenerateOptions bounds a single generation call
type GenerateOptions struct {
	MaxTokens   int
	Temperature float64
}

// Generation is the raw output of a model call, before decoding to text
type Generation struct {
	Prompt           string
	Output           string
	PromptTokens     int
	CompletionTokens int
	FinishReason     string
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspectRatio"`
	Format      string  `json:"format"`
}

// ColorSwatch is one entry of the dominant color palette
type ColorSwatch struct {
	Name       string  `json:"name"`
	RGB        [3]int  `json:"rgb"`
	Hex        string  `json:"hex"`
	Percentage float64 `json:"percentage"`
}

// BoundingBox is a pixel rectangle
type BoundingBox struct {
	X      int `json:"x"`
	Y      int `json:"y"`
	Width  int `json:"width"`
	Height int `json:"height"`
}

// DetectedObject is an object named in the model description.
// BBox is a fixed placeholder and Heuristic is always true: objects come
// from keyword matching, not from a detector.
type DetectedObject struct {
	Name       string      `json:"name"`
	Confidence float64     `json:"confidence"`
	BBox       BoundingBox `json:"bbox"`
	Category   string      `json:"category"`
	Heuristic  bool        `json:"heuristic"`
}

// Analysis is the success payload of an analysis
type Analysis struct {
	ImageType    string           `json:"imageType"`
	Tags         []string         `json:"tags"`
	Description  string           `json:"description"`
	Confidence   float64          `json:"confidence"`
	Objects      []DetectedObject `json:"objects"`
	Colors       []ColorSwatch    `json:"colors"`
	SceneType    string           `json:"sceneType"`
	AnalysisTime float64          `json:"analysisTime"`
	ModelUsed    string           `json:"modelUsed"`
	ImageInfo    ImageInfo        `json:"imageInfo"`
}

// Failure is the failure payload of an analysis
type Failure struct {
	Error           string   `json:"error"`
	Kind            Kind     `json:"errorType,omitempty"`
	MissingPackages []string `json:"missingPackages,omitempty"`
}
