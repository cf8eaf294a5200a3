package loader

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/menta2k/scene-analyzer/internal/config"
	"github.com/menta2k/scene-analyzer/internal/utils"
	"github.com/menta2k/scene-analyzer/pkg/client"
	"github.com/menta2k/scene-analyzer/pkg/llamacpp"
	"github.com/menta2k/scene-analyzer/pkg/ollama"
	"github.com/menta2k/scene-analyzer/pkg/processing"
)

// Backend brings a model up on an inference runtime. The returned release
// function frees whatever the runtime holds for the model.
type Backend interface {
	Start(ctx context.Context, info ModelInfo) (client.VisionModel, func() error, error)
}

// NewBackend returns the backend selected by cfg.Backend
func NewBackend(cfg *config.Config, log *logrus.Entry) (Backend, error) {
	switch cfg.Backend {
	case config.BackendLlamaCpp, "":
		return &llamaCppBackend{cfg: cfg, log: log}, nil
	case config.BackendOllama:
		return &ollamaBackend{cfg: cfg, log: log}, nil
	default:
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

type llamaCppBackend struct {
	cfg *config.Config
	log *logrus.Entry
}

func (b *llamaCppBackend) Start(ctx context.Context, info ModelInfo) (client.VisionModel, func() error, error) {
	srv, err := llamacpp.Start(ctx, llamacpp.ServerConfig{
		BinPath:        b.cfg.LlamaCpp.ServerPath,
		Host:           b.cfg.LlamaCpp.Host,
		ModelPath:      info.Files.Weights,
		ProjectorPath:  info.Files.Projector,
		Device:         info.Device,
		ContextSize:    b.cfg.LlamaCpp.ContextSize,
		ExtraArgs:      b.cfg.LlamaCpp.ExtraArgs,
		StartupTimeout: b.cfg.LlamaCpp.StartupTimeout,
	}, b.log)
	if err != nil {
		return nil, nil, err
	}

	c, err := llamacpp.NewClient(srv.URL(), info.Name, processing.PayloadMIME(b.cfg.Payload.Format))
	if err != nil {
		srv.Close()
		return nil, nil, err
	}
	return c, srv.Close, nil
}

type ollamaBackend struct {
	cfg *config.Config
	log *logrus.Entry
}

func (b *ollamaBackend) Start(ctx context.Context, info ModelInfo) (client.VisionModel, func() error, error) {
	c, err := ollama.NewClient(b.cfg.Ollama.URL)
	if err != nil {
		return nil, nil, err
	}

	name := utils.SanitizeName(info.Name)
	if b.cfg.Ollama.ModelPrefix != "" {
		name = b.cfg.Ollama.ModelPrefix + "-" + name
	}

	b.log.Infof("Importing model into Ollama as %s", name)
	err = c.Import(ctx, ollama.ImportRequest{
		Name:          name,
		ModelPath:     info.Files.Weights,
		ProjectorPath: info.Files.Projector,
	}, b.log)
	if err != nil {
		return nil, nil, err
	}

	release := func() error {
		if b.cfg.Ollama.KeepModel {
			return nil
		}
		return c.Delete(context.Background(), name)
	}
	return c.Model(name, info.Device), release, nil
}
