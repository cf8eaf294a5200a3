package analyzer

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/scene-analyzer/pkg/classify"
	"github.com/menta2k/scene-analyzer/pkg/client"
	"github.com/menta2k/scene-analyzer/pkg/palette"
	"github.com/menta2k/scene-analyzer/pkg/processing"
	"github.com/menta2k/scene-analyzer/pkg/types"
)

// Prompt is sent with every image. The keyword rules in pkg/classify
// expect a Chinese answer covering these four points.
const Prompt = "请详细分析这张图片，包括：1. 图片的主要内容描述 2. 图片中的主要对象 3. 图片的色彩特征 4. 图片的场景类型。请用中文回答。"

// Confidence is reported for every successful analysis
const Confidence = 0.85

// Analyzer runs the describe-classify-palette pipeline on one image
type Analyzer struct {
	model      client.VisionModel
	processor  *processing.Processor
	classifier *classify.Classifier
	colors     *palette.Extractor
	config     Config
	log        logrus.FieldLogger
}

// Config holds configuration for the analyzer
type Config struct {
	// PayloadFormat is the encoding of the image sent to the model (jpg or png)
	PayloadFormat string
	// MaxSide bounds the longer side of the image sent to the model. Zero sends it as is.
	MaxSide int
	Quality int
}

// DefaultConfig returns the payload settings used by New
func DefaultConfig() Config {
	return Config{
		PayloadFormat: "jpg",
		MaxSide:       1536,
		Quality:       90,
	}
}

// New creates an Analyzer for model with the built-in keyword rules and palette settings
func New(model client.VisionModel, log logrus.FieldLogger) *Analyzer {
	return NewWithConfig(model, DefaultConfig(), classify.New(), palette.New(log), log)
}

// NewWithConfig creates an Analyzer with custom components
func NewWithConfig(model client.VisionModel, config Config, classifier *classify.Classifier, colors *palette.Extractor, log logrus.FieldLogger) *Analyzer {
	return &Analyzer{
		model:      model,
		processor:  processing.NewProcessor(),
		classifier: classifier,
		colors:     colors,
		config:     config,
		log:        log.WithField("component", "analyzer"),
	}
}

// Analyze describes the image at imagePath with the model and derives tags,
// scene, objects and dominant colors from the description. Every failure,
// including a panic, is returned as a failure result.
func (a *Analyzer) Analyze(ctx context.Context, imagePath string, maxTokens int, temperature float64) (res *types.AnalysisResult) {
	defer func() {
		if r := recover(); r != nil {
			a.log.Errorf("Analysis panicked: %v", r)
			res = types.Failed(types.Errorf(types.KindInference, "Analysis failed: %v", r))
		}
	}()

	analysis, err := a.analyze(ctx, imagePath, types.GenerateOptions{MaxTokens: maxTokens, Temperature: temperature})
	if err != nil {
		a.log.Errorf("Analysis failed: %v", err)
		return types.Failed(err)
	}
	return types.Succeeded(analysis)
}

func (a *Analyzer) analyze(ctx context.Context, imagePath string, opts types.GenerateOptions) (*types.Analysis, error) {
	a.log.Infof("Analyzing image %s", imagePath)

	img, format, err := a.processor.LoadImage(imagePath)
	if err != nil {
		return nil, types.NewError(types.KindImageDecode, fmt.Errorf("Failed to load image: %w", err))
	}

	start := time.Now()
	description, err := a.describe(ctx, img, opts)
	if err != nil {
		return nil, types.NewError(types.KindInference, fmt.Errorf("Inference failed: %w", err))
	}
	elapsed := time.Since(start)
	a.log.Debugf("Model answered in %s", elapsed)

	return &types.Analysis{
		ImageType:    format,
		Tags:         a.classifier.Tags(description),
		Description:  description,
		Confidence:   Confidence,
		Objects:      a.classifier.Objects(description),
		Colors:       a.colors.Swatches(img),
		SceneType:    a.classifier.Scene(description),
		AnalysisTime: float64(elapsed.Microseconds()) / 1000,
		ModelUsed:    a.model.Name(),
		ImageInfo:    a.processor.GetImageInfo(img, format),
	}, nil
}

// describe runs one generation for img and returns the decoded answer
func (a *Analyzer) describe(ctx context.Context, img image.Image, opts types.GenerateOptions) (string, error) {
	payload, err := a.processor.PrepareImageForModel(img, a.config.PayloadFormat, a.config.MaxSide, a.config.Quality)
	if err != nil {
		return "", fmt.Errorf("failed to encode image: %w", err)
	}

	gen, err := a.model.Generate(ctx, payload, Prompt, opts)
	if err != nil {
		return "", err
	}
	a.log.Debugf("Generated %d tokens (finish reason %q)", gen.CompletionTokens, gen.FinishReason)

	return a.model.Decode(gen)
}
