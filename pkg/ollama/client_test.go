package ollama

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/menta2k/scene-analyzer/pkg/types"
)

// fakeServer records the requests an Ollama server would receive
type fakeServer struct {
	mu      sync.Mutex
	blobs   map[string][]byte
	create  map[string]any
	chat    map[string]any
	deleted []string
	reply   string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch {
	case r.Method == http.MethodHead && r.URL.Path == "/":
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPost && strings.HasPrefix(r.URL.Path, "/api/blobs/"):
		data, _ := io.ReadAll(r.Body)
		f.blobs[strings.TrimPrefix(r.URL.Path, "/api/blobs/")] = data
		w.WriteHeader(http.StatusCreated)
	case r.Method == http.MethodPost && r.URL.Path == "/api/create":
		_ = json.NewDecoder(r.Body).Decode(&f.create)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success"}` + "\n"))
	case r.Method == http.MethodPost && r.URL.Path == "/api/chat":
		_ = json.NewDecoder(r.Body).Decode(&f.chat)
		w.Header().Set("Content-Type", "application/json")
		resp := map[string]any{
			"model":             f.chat["model"],
			"message":           map[string]any{"role": "assistant", "content": f.reply},
			"done":              true,
			"done_reason":       "stop",
			"prompt_eval_count": 42,
			"eval_count":        7,
		}
		_ = json.NewEncoder(w).Encode(resp)
	case r.Method == http.MethodDelete && r.URL.Path == "/api/delete":
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		name, _ := body["model"].(string)
		f.deleted = append(f.deleted, name)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func newFake(t *testing.T) (*fakeServer, *Client) {
	t.Helper()
	f := &fakeServer{blobs: map[string][]byte{}, reply: "画面中有一只狗。"}
	srv := httptest.NewServer(f)
	t.Cleanup(srv.Close)

	c, err := NewClient(srv.URL + "/api/chat")
	require.NoError(t, err)
	return f, c
}

func quietLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func TestNewClientRejectsBadURL(t *testing.T) {
	_, err := NewClient("localhost")
	assert.Error(t, err)
	_, err = NewClient("://bad")
	assert.Error(t, err)
}

func TestHeartbeat(t *testing.T) {
	_, c := newFake(t)
	assert.NoError(t, c.Heartbeat(context.Background()))
}

func TestGenerateCPU(t *testing.T) {
	f, c := newFake(t)
	m := c.Model("scene-analyzer-qwen", types.DeviceCPU)
	assert.Equal(t, "scene-analyzer-qwen", m.Name())

	gen, err := m.Generate(context.Background(), "aGVsbG8=", "请描述", types.GenerateOptions{MaxTokens: 256, Temperature: 0.3})
	require.NoError(t, err)

	assert.Equal(t, "画面中有一只狗。", gen.Output)
	assert.Equal(t, 42, gen.PromptTokens)
	assert.Equal(t, 7, gen.CompletionTokens)
	assert.Equal(t, "stop", gen.FinishReason)

	assert.Equal(t, "scene-analyzer-qwen", f.chat["model"])
	assert.Equal(t, false, f.chat["stream"])
	options := f.chat["options"].(map[string]any)
	assert.EqualValues(t, 256, options["num_predict"])
	assert.InDelta(t, 0.3, options["temperature"], 1e-9)
	assert.EqualValues(t, 0, options["num_gpu"])

	messages := f.chat["messages"].([]any)
	require.Len(t, messages, 1)
	msg := messages[0].(map[string]any)
	assert.Equal(t, "请描述", msg["content"])
	assert.Equal(t, []any{"aGVsbG8="}, msg["images"])

	text, err := m.Decode(gen)
	require.NoError(t, err)
	assert.Equal(t, "画面中有一只狗。", text)
}

func TestChatOptionsGPU(t *testing.T) {
	options := chatOptions(types.GenerateOptions{MaxTokens: 10, Temperature: 1}, types.DeviceGPU)
	assert.NotContains(t, options, "num_gpu")
	assert.Equal(t, 10, options["num_predict"])
}

func TestGenerateEmptyReply(t *testing.T) {
	f, c := newFake(t)
	f.reply = ""

	_, err := c.Model("m", types.DeviceCPU).Generate(context.Background(), "", "p", types.GenerateOptions{MaxTokens: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty response")
}

func TestGenerateBadImage(t *testing.T) {
	_, c := newFake(t)
	_, err := c.Model("m", types.DeviceCPU).Generate(context.Background(), "not base64!", "p", types.GenerateOptions{MaxTokens: 1})
	assert.Error(t, err)
}

func TestImportAndDelete(t *testing.T) {
	f, c := newFake(t)
	dir := t.TempDir()
	weights := filepath.Join(dir, "model-Q4_K_M.gguf")
	projector := filepath.Join(dir, "mmproj-f16.gguf")
	require.NoError(t, os.WriteFile(weights, []byte("weights"), 0o644))
	require.NoError(t, os.WriteFile(projector, []byte("projector"), 0o644))

	err := c.Import(context.Background(), ImportRequest{
		Name:          "scene-analyzer-test",
		ModelPath:     weights,
		ProjectorPath: projector,
	}, quietLogger())
	require.NoError(t, err)

	weightsDigest, err := fileDigest(weights)
	require.NoError(t, err)
	projectorDigest, err := fileDigest(projector)
	require.NoError(t, err)
	assert.Equal(t, []byte("weights"), f.blobs[weightsDigest])
	assert.Equal(t, []byte("projector"), f.blobs[projectorDigest])

	assert.Equal(t, "scene-analyzer-test", f.create["model"])
	assert.Equal(t, map[string]any{
		"model-Q4_K_M.gguf": weightsDigest,
		"mmproj-f16.gguf":   projectorDigest,
	}, f.create["files"])

	require.NoError(t, c.Delete(context.Background(), "scene-analyzer-test"))
	assert.Equal(t, []string{"scene-analyzer-test"}, f.deleted)
}

func TestImportValidation(t *testing.T) {
	_, c := newFake(t)
	assert.Error(t, c.Import(context.Background(), ImportRequest{Name: "x"}, quietLogger()))
	assert.Error(t, c.Import(context.Background(), ImportRequest{Name: "x", ModelPath: filepath.Join(t.TempDir(), "missing.gguf")}, quietLogger()))
}

func TestFileDigest(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blob")
	require.NoError(t, os.WriteFile(path, []byte("abc"), 0o644))

	digest, err := fileDigest(path)
	require.NoError(t, err)
	assert.Equal(t, "sha256:ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", digest)
}
