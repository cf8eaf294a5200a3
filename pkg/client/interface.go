package client

import (
	"context"

	"github.com/menta2k/scene-analyzer/pkg/types"
)

// VisionModel is a loaded vision-language model. Generate runs one
// inference over an image and a prompt; Decode turns its output into the
// plain description text.
type VisionModel interface {
	Name() string
	Generate(ctx context.Context, imgB64, prompt string, opts types.GenerateOptions) (*types.Generation, error)
	Decode(gen *types.Generation) (string, error)
}
