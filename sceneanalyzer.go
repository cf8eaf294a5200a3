// Package sceneanalyzer describes a single image with a local
// vision-language model and derives structured metadata from the answer.
//
// Basic usage:
//
//	package main
//
//	import (
//		"context"
//		"os"
//
//		"github.com/sirupsen/logrus"
//
//		sceneanalyzer "github.com/menta2k/scene-analyzer"
//		"github.com/menta2k/scene-analyzer/pkg/output"
//		"github.com/menta2k/scene-analyzer/pkg/types"
//	)
//
//	func main() {
//		res := sceneanalyzer.Run(context.Background(), sceneanalyzer.DefaultConfig(), types.AnalysisRequest{
//			ModelPath:   "./models/Qwen2-VL-2B-Instruct",
//			ImagePath:   "photo.jpg",
//			Device:      types.DeviceCPU,
//			MaxTokens:   512,
//			Temperature: 0.7,
//		}, logrus.New())
//
//		output.Write(os.Stdout, res)
//		os.Exit(output.ExitCode(res))
//	}
//
// The package consists of these components:
//
// 1. Loader (pkg/loader): resolves GGUF files and starts an inference backend
// 2. Backends (pkg/llamacpp, pkg/ollama): run the model
// 3. Analyzer (pkg/analyzer): prompts the model and assembles the result
// 4. Classify (pkg/classify): keyword rules for tags, scene type and objects
// 5. Palette (pkg/palette): dominant colors by k-means clustering
// 6. Output (pkg/output): JSON rendering and exit status
//
// The model is loaded once per Run and released before Run returns.
package sceneanalyzer

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/scene-analyzer/internal/config"
	"github.com/menta2k/scene-analyzer/pkg/analyzer"
	"github.com/menta2k/scene-analyzer/pkg/classify"
	"github.com/menta2k/scene-analyzer/pkg/client"
	"github.com/menta2k/scene-analyzer/pkg/loader"
	"github.com/menta2k/scene-analyzer/pkg/palette"
	"github.com/menta2k/scene-analyzer/pkg/types"
)

// Version of the scene analyzer
const Version = "1.0.0"

// Config is the analyzer configuration
type Config = config.Config

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfig reads the configuration file at path, or the default
// location when path is empty, and applies environment overrides
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// LoadFunc starts the model at modelPath on device
type LoadFunc func(ctx context.Context, modelPath string, device types.Device) (*loader.LoadedModel, error)

// Runner performs one load-analyze-release cycle
type Runner struct {
	Config *Config
	Log    *logrus.Logger

	// Load overrides how the model is started. Nil uses the backend named
	// in Config.
	Load LoadFunc
	// CheckDependencies overrides the backend runtime check. Nil uses
	// loader.CheckDependencies.
	CheckDependencies func(ctx context.Context, cfg *Config) error
}

// Run analyzes req.ImagePath with the model at req.ModelPath using a Runner
// with default loading
func Run(ctx context.Context, cfg *Config, req types.AnalysisRequest, log *logrus.Logger) *types.AnalysisResult {
	r := &Runner{Config: cfg, Log: log}
	return r.Run(ctx, req)
}

// Run checks the backend runtime, validates req, loads the model once,
// analyzes the image and releases the model. Configuration, including the
// keyword rules file, is checked first. It never returns nil.
func (r *Runner) Run(ctx context.Context, req types.AnalysisRequest) *types.AnalysisResult {
	cfg := r.Config
	if cfg == nil {
		cfg = config.Default()
	}
	log := r.Log
	if log == nil {
		log = logrus.StandardLogger()
	}

	if err := cfg.Validate(); err != nil {
		return types.Failed(types.NewError(types.KindInvalidArguments, fmt.Errorf("invalid configuration: %w", err)))
	}
	classifier, colors, err := components(cfg, log)
	if err != nil {
		return types.Failed(types.NewError(types.KindInvalidArguments, fmt.Errorf("invalid configuration: %w", err)))
	}

	check := r.CheckDependencies
	if check == nil {
		check = loader.CheckDependencies
	}
	if err := check(ctx, cfg); err != nil {
		return types.Failed(err)
	}

	if err := req.Validate(); err != nil {
		return types.Failed(types.NewError(types.KindInvalidArguments, err))
	}

	load := r.Load
	if load == nil {
		l, err := loader.New(cfg, logrus.NewEntry(log))
		if err != nil {
			return types.Failed(types.NewError(types.KindModelLoad, err))
		}
		load = l.Load
	}

	loaded, err := load(ctx, req.ModelPath, req.Device)
	if err != nil {
		return types.Failed(err)
	}
	defer func() {
		if err := loaded.Close(); err != nil {
			log.Warnf("Failed to release model: %v", err)
		}
	}()

	a := analyzer.NewWithConfig(loaded.Model, analyzerConfig(cfg), classifier, colors, log)
	return a.Analyze(ctx, req.ImagePath, req.MaxTokens, req.Temperature)
}

// NewAnalyzer builds an Analyzer for model from the payload, palette and
// keyword rule settings in cfg
func NewAnalyzer(cfg *Config, model client.VisionModel, log logrus.FieldLogger) (*analyzer.Analyzer, error) {
	classifier, colors, err := components(cfg, log)
	if err != nil {
		return nil, err
	}
	return analyzer.NewWithConfig(model, analyzerConfig(cfg), classifier, colors, log), nil
}

// components builds the keyword classifier and the color extractor
func components(cfg *Config, log logrus.FieldLogger) (*classify.Classifier, *palette.Extractor, error) {
	classifier := classify.New()
	if cfg.Rules.File != "" {
		rules, err := classify.LoadRules(cfg.Rules.File)
		if err != nil {
			return nil, nil, err
		}
		classifier = classify.NewWithRules(rules)
	}

	colors := palette.NewWithConfig(palette.Config{
		Clusters:        cfg.Palette.Clusters,
		Inits:           cfg.Palette.Inits,
		MaxIter:         cfg.Palette.MaxIter,
		Tolerance:       cfg.Palette.Tolerance,
		Seed:            cfg.Palette.Seed,
		MaxSamplePixels: cfg.Palette.MaxSamplePixels,
	}, log.WithField("component", "palette"))

	return classifier, colors, nil
}

func analyzerConfig(cfg *Config) analyzer.Config {
	return analyzer.Config{
		PayloadFormat: cfg.Payload.Format,
		MaxSide:       cfg.Payload.MaxSide,
		Quality:       cfg.Payload.Quality,
	}
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
