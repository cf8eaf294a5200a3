package ollama

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"

	"github.com/menta2k/scene-analyzer/pkg/client"
	"github.com/menta2k/scene-analyzer/pkg/types"
)

// Client wraps the Ollama API client
type Client struct {
	client *api.Client
}

// NewClient creates a new Ollama client
func NewClient(ollamaURL string) (*Client, error) {
	// Parse the provided URL
	parsedURL, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %v", err)
	}
	if parsedURL.Scheme == "" || parsedURL.Host == "" {
		return nil, fmt.Errorf("invalid URL: %q", ollamaURL)
	}

	// Create base URL from the provided URL (removing path like /api/chat)
	baseURL := &url.URL{
		Scheme: parsedURL.Scheme,
		Host:   parsedURL.Host,
	}

	// Create client with the specified URL, ignoring environment
	c := api.NewClient(baseURL, http.DefaultClient)

	return &Client{client: c}, nil
}

// Heartbeat checks that the server is reachable
func (c *Client) Heartbeat(ctx context.Context) error {
	return c.client.Heartbeat(ctx)
}

// Model returns a VisionModel bound to a model already present on the server
func (c *Client) Model(name string, device types.Device) *Model {
	return &Model{client: c, name: name, device: device}
}

// Model is a vision model served by Ollama
type Model struct {
	client *Client
	name   string
	device types.Device
}

// Name implements client.VisionModel.Name.
func (m *Model) Name() string {
	return m.name
}

// Generate implements client.VisionModel.Generate.
func (m *Model) Generate(ctx context.Context, imgB64, prompt string, opts types.GenerateOptions) (*types.Generation, error) {
	msg := api.Message{
		Role:    "user",
		Content: prompt,
	}
	if imgB64 != "" {
		// Decode base64 image to raw bytes
		imgBytes, err := base64.StdEncoding.DecodeString(imgB64)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64 image: %v", err)
		}
		msg.Images = []api.ImageData{api.ImageData(imgBytes)}
	}

	streamFalse := false
	req := &api.ChatRequest{
		Model:    m.name,
		Messages: []api.Message{msg},
		Stream:   &streamFalse,
		Options:  chatOptions(opts, m.device),
	}

	gen := &types.Generation{Prompt: prompt}
	err := m.client.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		gen.Output += resp.Message.Content
		if resp.Done {
			gen.PromptTokens = resp.PromptEvalCount
			gen.CompletionTokens = resp.EvalCount
			gen.FinishReason = resp.DoneReason
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("ollama chat error: %w", err)
	}

	if gen.Output == "" {
		return nil, fmt.Errorf("empty response from ollama")
	}
	return gen, nil
}

// Decode implements client.VisionModel.Decode.
func (m *Model) Decode(gen *types.Generation) (string, error) {
	return client.DecodeGeneration(gen)
}

// chatOptions maps generation options onto Ollama runtime options.
// On CPU no layers are offloaded.
func chatOptions(opts types.GenerateOptions, device types.Device) map[string]any {
	options := map[string]any{
		"num_predict": opts.MaxTokens,
		"temperature": opts.Temperature,
	}
	if device != types.DeviceGPU {
		options["num_gpu"] = 0
	}
	return options
}
