package client

import (
	"fmt"
	"strings"

	"github.com/menta2k/scene-analyzer/pkg/types"
)

// specialTokens are chat-template markers some servers leave in the output
var specialTokens = []string{
	"<|im_start|>", "<|im_end|>", "<|endoftext|>", "<|eot_id|>",
	"<|vision_start|>", "<|vision_end|>", "<|image_pad|>",
	"<s>", "</s>", "<end_of_turn>",
}

// DecodeGeneration drops an echoed prompt and special tokens from the
// generated output. Backends use it to implement VisionModel.Decode.
func DecodeGeneration(gen *types.Generation) (string, error) {
	if gen == nil {
		return "", fmt.Errorf("nil generation")
	}
	out := strings.TrimSpace(gen.Output)
	if p := strings.TrimSpace(gen.Prompt); p != "" {
		out = strings.TrimSpace(strings.TrimPrefix(out, p))
	}
	for _, tok := range specialTokens {
		out = strings.ReplaceAll(out, tok, "")
	}
	out = strings.TrimPrefix(strings.TrimSpace(out), "assistant\n")
	return strings.TrimSpace(out), nil
}
