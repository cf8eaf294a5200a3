package analyzer

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/scene-analyzer/pkg/types"
)

// fakeModel answers every request with a fixed reply
type fakeModel struct {
	reply     string
	err       error
	panicWith any

	gotPrompt string
	gotImage  string
	gotOpts   types.GenerateOptions
	calls     int
}

func (m *fakeModel) Name() string { return "fake-vl" }

func (m *fakeModel) Generate(ctx context.Context, imgB64, prompt string, opts types.GenerateOptions) (*types.Generation, error) {
	m.calls++
	m.gotPrompt, m.gotImage, m.gotOpts = prompt, imgB64, opts
	if m.panicWith != nil {
		panic(m.panicWith)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &types.Generation{Prompt: prompt, Output: prompt + m.reply + "<|im_end|>"}, nil
}

func (m *fakeModel) Decode(gen *types.Generation) (string, error) {
	if gen == nil {
		return "", errors.New("nil generation")
	}
	// strip the echoed prompt and the end token like the real backends do
	out := gen.Output[len(gen.Prompt):]
	return out[:len(out)-len("<|im_end|>")], nil
}

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func writePNG(t *testing.T, width, height int, c color.NRGBA) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	path := filepath.Join(t.TempDir(), "image.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
	return path
}

func TestAnalyzeSuccess(t *testing.T) {
	model := &fakeModel{reply: "画面中有一个人物站在山顶上，远处有树。"}
	a := New(model, quietLogger())
	path := writePNG(t, 2, 2, color.NRGBA{255, 0, 0, 255})

	res := a.Analyze(context.Background(), path, 128, 0)
	require.True(t, res.Success(), "%+v", res.Failure)
	got := res.Analysis

	assert.Equal(t, 1, model.calls)
	assert.Equal(t, Prompt, model.gotPrompt)
	assert.NotEmpty(t, model.gotImage)
	assert.Equal(t, types.GenerateOptions{MaxTokens: 128, Temperature: 0}, model.gotOpts)

	assert.Equal(t, "画面中有一个人物站在山顶上，远处有树。", got.Description)
	assert.Equal(t, "png", got.ImageType)
	assert.Equal(t, "人物", got.SceneType)
	assert.Contains(t, got.Tags, "人")
	assert.Contains(t, got.Tags, "自然")
	assert.InDelta(t, 0.85, got.Confidence, 1e-9)
	assert.GreaterOrEqual(t, got.AnalysisTime, 0.0)
	assert.Equal(t, "fake-vl", got.ModelUsed)
	assert.Equal(t, types.ImageInfo{Width: 2, Height: 2, AspectRatio: 1, Format: "png"}, got.ImageInfo)

	names := []string{}
	for _, o := range got.Objects {
		names = append(names, o.Name)
	}
	assert.Equal(t, []string{"人", "树"}, names)

	require.Len(t, got.Colors, 1)
	assert.Equal(t, "#ff0000", got.Colors[0].Hex)
	assert.InDelta(t, 1.0, got.Colors[0].Percentage, 1e-9)
}

func TestAnalyzeMissingImage(t *testing.T) {
	model := &fakeModel{reply: "x"}
	a := New(model, quietLogger())

	res := a.Analyze(context.Background(), filepath.Join(t.TempDir(), "missing.png"), 16, 0.7)
	require.False(t, res.Success())
	assert.Equal(t, types.KindImageDecode, res.Failure.Kind)
	assert.Contains(t, res.Failure.Error, "Failed to load image")
	assert.Zero(t, model.calls, "the model is not called for undecodable images")
}

func TestAnalyzeInvalidImage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-an-image.jpg")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a jpeg"), 0o644))

	res := New(&fakeModel{}, quietLogger()).Analyze(context.Background(), path, 16, 0.7)
	require.False(t, res.Success())
	assert.Equal(t, types.KindImageDecode, res.Failure.Kind)
}

func TestAnalyzeInferenceError(t *testing.T) {
	model := &fakeModel{err: errors.New("connection refused")}
	path := writePNG(t, 4, 4, color.NRGBA{0, 0, 255, 255})

	res := New(model, quietLogger()).Analyze(context.Background(), path, 16, 0.7)
	require.False(t, res.Success())
	assert.Equal(t, types.KindInference, res.Failure.Kind)
	assert.Equal(t, "Inference failed: connection refused", res.Failure.Error)
}

func TestAnalyzeRecoversPanic(t *testing.T) {
	model := &fakeModel{panicWith: "index out of range"}
	path := writePNG(t, 4, 4, color.NRGBA{0, 0, 255, 255})

	res := New(model, quietLogger()).Analyze(context.Background(), path, 16, 0.7)
	require.False(t, res.Success())
	assert.Equal(t, types.KindInference, res.Failure.Kind)
	assert.Contains(t, res.Failure.Error, "index out of range")
}

func TestAnalyzeEmptyDescription(t *testing.T) {
	model := &fakeModel{reply: ""}
	path := writePNG(t, 3, 1, color.NRGBA{10, 200, 10, 255})

	res := New(model, quietLogger()).Analyze(context.Background(), path, 16, 0.7)
	require.True(t, res.Success())
	assert.Empty(t, res.Analysis.Tags)
	assert.Empty(t, res.Analysis.Objects)
	assert.Equal(t, "其他", res.Analysis.SceneType)
	assert.InDelta(t, 3.0, res.Analysis.ImageInfo.AspectRatio, 1e-9)
}
