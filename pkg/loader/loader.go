// Package loader turns a model directory into a ready-to-use vision model.
//
// Loading resolves the GGUF weights and multimodal projector, reads their
// metadata, checks the host and starts the configured inference backend.
// The returned LoadedModel owns the backend and must be closed.
package loader

import (
	"context"
	"fmt"
	"os/exec"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/scene-analyzer/internal/config"
	"github.com/menta2k/scene-analyzer/internal/utils"
	"github.com/menta2k/scene-analyzer/pkg/client"
	"github.com/menta2k/scene-analyzer/pkg/ollama"
	"github.com/menta2k/scene-analyzer/pkg/types"
)

// LoadedModel is a started model and the resources that keep it running
type LoadedModel struct {
	Model client.VisionModel
	Info  ModelInfo

	release func() error
	once    sync.Once
	err     error
}

// Close releases the backend. It is safe to call more than once.
func (m *LoadedModel) Close() error {
	m.once.Do(func() {
		if m.release != nil {
			m.err = m.release()
		}
	})
	return m.err
}

// Loader loads models with one configuration
type Loader struct {
	cfg     *config.Config
	log     *logrus.Entry
	backend Backend
	probe   HostProbe
}

// New creates a Loader for the backend named in cfg
func New(cfg *config.Config, log *logrus.Entry) (*Loader, error) {
	backend, err := NewBackend(cfg, log)
	if err != nil {
		return nil, err
	}
	return NewWithBackend(cfg, backend, systemProbe{}, log), nil
}

// NewWithBackend creates a Loader with an explicit backend and host probe
func NewWithBackend(cfg *config.Config, backend Backend, probe HostProbe, log *logrus.Entry) *Loader {
	return &Loader{
		cfg:     cfg,
		log:     log.WithField("component", "loader"),
		backend: backend,
		probe:   probe,
	}
}

// Load resolves, inspects and starts the model at modelPath on device
func (l *Loader) Load(ctx context.Context, modelPath string, device types.Device) (*LoadedModel, error) {
	l.log.Infof("Loading model from %s", modelPath)

	files, err := ResolveFiles(modelPath)
	if err != nil {
		return nil, err
	}

	info := Inspect(files)
	info.Device = device
	info.Backend = l.cfg.Backend

	fields := logrus.Fields{
		"weights": files.Weights,
		"size":    info.SizeString(),
		"device":  device,
	}
	if files.Projector != "" {
		fields["projector"] = files.Projector
	}
	if info.Architecture != "" {
		fields["arch"] = info.Architecture
	}
	if info.Quantization != "" {
		fields["quant"] = info.Quantization
	}
	if info.Parameters != "" {
		fields["params"] = info.Parameters
	}
	l.log.WithFields(fields).Infof("Model %s", info.Name)

	if files.Projector == "" {
		l.log.Warn("No multimodal projector (mmproj) found; the model may not accept images")
	}
	l.checkHost(info)

	model, release, err := l.backend.Start(ctx, info)
	if err != nil {
		return nil, types.NewError(types.KindModelLoad, fmt.Errorf("Failed to load model: %w", err))
	}

	l.log.Info("Model loaded successfully")
	return &LoadedModel{Model: model, Info: info, release: release}, nil
}

// checkHost logs the devices and memory the model will run on
func (l *Loader) checkHost(info ModelInfo) {
	if info.Device == types.DeviceGPU {
		gpus, err := l.probe.GPUs()
		switch {
		case err != nil:
			l.log.Warnf("Could not detect GPUs: %v", err)
		case len(gpus) == 0:
			l.log.Warn("GPU requested but no graphics card was detected; the backend may fall back to CPU")
		default:
			l.log.Infof("Detected GPUs: %v", gpus)
		}
	}

	total, available, err := l.probe.Memory()
	if err != nil {
		l.log.Warnf("Could not read host memory: %v", err)
		return
	}
	l.log.Debugf("Host memory: %s total, %s available",
		utils.FormatFileSize(int64(total)), utils.FormatFileSize(int64(available)))
	if info.Size > 0 && available > 0 && info.Size > available {
		l.log.Warnf("Model size %s exceeds available memory %s",
			info.SizeString(), utils.FormatFileSize(int64(available)))
	}
}

// CheckDependencies verifies that the runtime needed by cfg.Backend is
// present: the llama-server binary, or a reachable Ollama server.
func CheckDependencies(ctx context.Context, cfg *config.Config) error {
	switch cfg.Backend {
	case config.BackendOllama:
		c, err := ollama.NewClient(cfg.Ollama.URL)
		if err == nil {
			err = c.Heartbeat(ctx)
		}
		if err != nil {
			return &types.Error{
				Kind:    types.KindDependencyMissing,
				Err:     fmt.Errorf("Ollama server is not reachable at %s: %w", cfg.Ollama.URL, err),
				Missing: []string{"ollama"},
			}
		}
	default:
		if _, err := exec.LookPath(cfg.LlamaCpp.ServerPath); err != nil {
			return &types.Error{
				Kind:    types.KindDependencyMissing,
				Err:     fmt.Errorf("llama-server not found (%s): %w", cfg.LlamaCpp.ServerPath, err),
				Missing: []string{"llama-server"},
			}
		}
	}
	return nil
}
