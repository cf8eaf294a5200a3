package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/scene-analyzer/pkg/types"
)

func sampleAnalysis() *types.Analysis {
	return &types.Analysis{
		ImageType:   "png",
		Tags:        []string{"人", "自然"},
		Description: "画面中有一个人物站在山顶上 <b>",
		Confidence:  0.85,
		Objects: []types.DetectedObject{{
			Name:       "人",
			Confidence: 0.9,
			BBox:       types.BoundingBox{X: 0, Y: 0, Width: 100, Height: 100},
			Category:   "general",
			Heuristic:  true,
		}},
		Colors: []types.ColorSwatch{{
			Name:       "鲜红色",
			RGB:        [3]int{255, 0, 0},
			Hex:        "#ff0000",
			Percentage: 1,
		}},
		SceneType:    "人物",
		AnalysisTime: 1234.5,
		ModelUsed:    "Qwen2-VL-2B-Instruct",
		ImageInfo:    types.ImageInfo{Width: 2, Height: 2, AspectRatio: 1, Format: "png"},
	}
}

func TestWriteSuccess(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, types.Succeeded(sampleAnalysis())))

	out := buf.String()
	assert.True(t, strings.HasSuffix(out, "}\n"))
	assert.Equal(t, 1, strings.Count(out, "\n"), "exactly one line")
	assert.Contains(t, out, `"description":"画面中有一个人物站在山顶上 <b>"`, "non-ASCII and HTML kept literal")

	var wire map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &wire))
	assert.Equal(t, true, wire["success"])
	assert.Equal(t, "人物", wire["sceneType"])
	assert.Equal(t, 1234.5, wire["analysisTime"])
	assert.Equal(t, "Qwen2-VL-2B-Instruct", wire["modelUsed"])
	assert.NotContains(t, wire, "error")

	objects := wire["objects"].([]any)
	require.Len(t, objects, 1)
	bbox := objects[0].(map[string]any)["bbox"].(map[string]any)
	assert.EqualValues(t, 100, bbox["width"])

	colors := wire["colors"].([]any)
	assert.Equal(t, []any{255.0, 0.0, 0.0}, colors[0].(map[string]any)["rgb"])
}

func TestRoundTrip(t *testing.T) {
	want := types.Succeeded(sampleAnalysis())

	data, err := Marshal(want)
	require.NoError(t, err)

	var got types.AnalysisResult
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, want, &got)
}

func TestFailureRoundTrip(t *testing.T) {
	want := types.Failed(types.Errorf(types.KindModelLoad, "Model path does not exist: /nope"))

	data, err := Marshal(want)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":"Model path does not exist: /nope","errorType":"model_load"}`, string(data))

	var got types.AnalysisResult
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, want, &got)
	assert.Equal(t, ExitFailure, ExitCode(&got))
}

func TestMissingPackages(t *testing.T) {
	err := &types.Error{Kind: types.KindDependencyMissing, Err: errors.New("llama-server not found"), Missing: []string{"llama-server"}}

	data, merr := Marshal(types.Failed(err))
	require.NoError(t, merr)
	assert.JSONEq(t, `{"success":false,"error":"llama-server not found","errorType":"dependency_missing","missingPackages":["llama-server"]}`, string(data))
}

func TestEmptyListsAreArrays(t *testing.T) {
	a := sampleAnalysis()
	a.Tags, a.Objects, a.Colors = nil, nil, nil

	data, err := Marshal(types.Succeeded(a))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"tags":[]`)
	assert.Contains(t, string(data), `"objects":[]`)
	assert.Contains(t, string(data), `"colors":[]`)
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, ExitCode(types.Succeeded(sampleAnalysis())))
	assert.Equal(t, ExitFailure, ExitCode(types.Failed(errors.New("boom"))))
	assert.Equal(t, ExitFailure, ExitCode(nil))
}

func TestWriteNil(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, Write(&buf, nil))
	assert.Error(t, Write(&buf, &types.AnalysisResult{}))
}
