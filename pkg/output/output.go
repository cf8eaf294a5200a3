// Package output renders an AnalysisResult as the single JSON document the
// command prints, and maps it to a process exit status.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/menta2k/scene-analyzer/pkg/types"
)

// Exit statuses
const (
	ExitSuccess = 0
	ExitFailure = 1
)

// Marshal encodes res as compact JSON. Non-ASCII text is kept literal.
func Marshal(res *types.AnalysisResult) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(&buf, res); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Write encodes res to w as one JSON object followed by a newline
func Write(w io.Writer, res *types.AnalysisResult) error {
	if res == nil {
		return fmt.Errorf("nil result")
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(res); err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	return nil
}

// ExitCode returns ExitSuccess for a successful result and ExitFailure otherwise
func ExitCode(res *types.AnalysisResult) int {
	if res.Success() {
		return ExitSuccess
	}
	return ExitFailure
}
