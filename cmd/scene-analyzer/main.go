package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	sceneanalyzer "github.com/menta2k/scene-analyzer"
	"github.com/menta2k/scene-analyzer/internal/config"
	"github.com/menta2k/scene-analyzer/pkg/output"
	"github.com/menta2k/scene-analyzer/pkg/types"
)

// options are the command-line flags
type options struct {
	modelPath   string
	imagePath   string
	device      string
	maxTokens   int
	temperature float64
	backend     string
	llamaServer string
	ollamaURL   string
	configFile  string
	logLevel    string
}

// deps lets tests replace model loading and the runtime check
type deps struct {
	load              sceneanalyzer.LoadFunc
	checkDependencies func(ctx context.Context, cfg *config.Config) error
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr, deps{})
	stop()
	os.Exit(code)
}

// run executes the command and returns the process exit status. stdout
// receives exactly one JSON document unless help or version was requested.
func run(ctx context.Context, args []string, stdout, stderr io.Writer, d deps) int {
	var opts options
	var res *types.AnalysisResult

	cmd := &cobra.Command{
		Use:   "scene-analyzer --model-path DIR --image-path FILE",
		Short: "Describe an image with a local vision-language model",
		Long: `Analyze one image with a local GGUF vision-language model.

The model describes the image in Chinese; tags, a scene type, candidate
objects and the dominant colors are derived from the description and the
pixels. The result is printed to stdout as a single JSON object.`,
		Version:       sceneanalyzer.Version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res = analyze(cmd.Context(), cmd, opts, stderr, d)
			if res.Failure != nil && res.Failure.Kind == types.KindInvalidArguments {
				fmt.Fprintf(stderr, "\n%s", cmd.UsageString())
			}
			return nil
		},
	}
	cmd.SetArgs(args)
	cmd.SetOut(stderr)
	cmd.SetErr(stderr)

	flags := cmd.Flags()
	flags.StringVar(&opts.modelPath, "model-path", "", "directory containing the GGUF model and its mmproj projector (required)")
	flags.StringVar(&opts.imagePath, "image-path", "", "image to analyze, jpg/png/gif/bmp/tiff/webp (required)")
	flags.StringVar(&opts.device, "device", "cpu", "device to run on: cpu or gpu")
	flags.IntVar(&opts.maxTokens, "max-tokens", 512, "maximum number of tokens to generate")
	flags.Float64Var(&opts.temperature, "temperature", 0.7, "sampling temperature")
	flags.StringVar(&opts.backend, "backend", "", "inference backend: llamacpp or ollama (default from config)")
	flags.StringVar(&opts.llamaServer, "llama-server", "", "path to the llama-server binary")
	flags.StringVar(&opts.ollamaURL, "ollama-url", "", "Ollama server URL")
	flags.StringVar(&opts.configFile, "config", "", "configuration file (default "+config.GetConfigPath()+")")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level: debug, info, warn or error")

	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n\n%s", err, cmd.UsageString())
		res = types.Failed(types.NewError(types.KindInvalidArguments, err))
	}
	if res == nil {
		// help or version
		return output.ExitSuccess
	}

	if err := output.Write(stdout, res); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return output.ExitFailure
	}
	return output.ExitCode(res)
}

func analyze(ctx context.Context, cmd *cobra.Command, opts options, stderr io.Writer, d deps) *types.AnalysisResult {
	cfg, err := config.Load(opts.configFile)
	if err != nil {
		return types.Failed(types.NewError(types.KindInvalidArguments, err))
	}
	applyFlags(cmd, cfg, opts)

	log, err := newLogger(cfg.LogLevel, stderr)
	if err != nil {
		return types.Failed(types.NewError(types.KindInvalidArguments, err))
	}

	device, err := types.ParseDevice(opts.device)
	if err != nil {
		return types.Failed(types.NewError(types.KindInvalidArguments, err))
	}

	req := types.AnalysisRequest{
		ModelPath:   opts.modelPath,
		ImagePath:   opts.imagePath,
		Device:      device,
		MaxTokens:   opts.maxTokens,
		Temperature: opts.temperature,
	}

	runner := &sceneanalyzer.Runner{
		Config:            cfg,
		Log:               log,
		Load:              d.load,
		CheckDependencies: d.checkDependencies,
	}

	var s *spinner.Spinner
	if isTerminal(stderr) {
		s = spinner.New(spinner.CharSets[11], 100*time.Millisecond, spinner.WithWriter(stderr))
		s.Suffix = " Analyzing image..."
		s.Start()
	}
	res := runner.Run(ctx, req)
	if s != nil {
		s.Stop()
	}

	printStatus(stderr, res)
	return res
}

// applyFlags overrides configuration values with flags given explicitly
func applyFlags(cmd *cobra.Command, cfg *config.Config, opts options) {
	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Backend = opts.backend
	}
	if flags.Changed("llama-server") {
		cfg.LlamaCpp.ServerPath = opts.llamaServer
	}
	if flags.Changed("ollama-url") {
		cfg.Ollama.URL = opts.ollamaURL
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
}

func newLogger(level string, w io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.SetOutput(w)
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if level == "" {
		level = "info"
	}
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.SetLevel(lvl)
	return log, nil
}

func printStatus(w io.Writer, res *types.AnalysisResult) {
	if res.Success() {
		green := color.New(color.FgGreen)
		green.Fprintf(w, "✓ Analysis complete: %s in %.0f ms\n", res.Analysis.SceneType, res.Analysis.AnalysisTime)
		return
	}
	red := color.New(color.FgRed)
	red.Fprintf(w, "✗ %s\n", res.Failure.Error)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}
