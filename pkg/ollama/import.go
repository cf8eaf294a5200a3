package ollama

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/ollama/ollama/api"
	"github.com/sirupsen/logrus"
)

// ImportRequest names the local GGUF files to register as one model
type ImportRequest struct {
	Name          string
	ModelPath     string
	ProjectorPath string
}

// Import uploads the GGUF files as blobs and creates a model from them
func (c *Client) Import(ctx context.Context, req ImportRequest, log logrus.FieldLogger) error {
	if req.Name == "" || req.ModelPath == "" {
		return fmt.Errorf("import requires a model name and weights file")
	}

	paths := []string{req.ModelPath}
	if req.ProjectorPath != "" {
		paths = append(paths, req.ProjectorPath)
	}

	files := make(map[string]string, len(paths))
	for _, path := range paths {
		digest, err := c.uploadBlob(ctx, path)
		if err != nil {
			return err
		}
		log.Debugf("Uploaded %s as %s", filepath.Base(path), digest)
		files[filepath.Base(path)] = digest
	}

	streamFalse := false
	create := &api.CreateRequest{
		Model:  req.Name,
		Files:  files,
		Stream: &streamFalse,
	}
	err := c.client.Create(ctx, create, func(p api.ProgressResponse) error {
		if p.Status != "" {
			log.Debugf("ollama create: %s", p.Status)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create model %s: %w", req.Name, err)
	}
	return nil
}

// Delete removes a model from the server
func (c *Client) Delete(ctx context.Context, name string) error {
	if err := c.client.Delete(ctx, &api.DeleteRequest{Model: name}); err != nil {
		return fmt.Errorf("failed to delete model %s: %w", name, err)
	}
	return nil
}

func (c *Client) uploadBlob(ctx context.Context, path string) (string, error) {
	digest, err := fileDigest(path)
	if err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	if err := c.client.CreateBlob(ctx, digest, f); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", filepath.Base(path), err)
	}
	return digest, nil
}

// fileDigest returns the "sha256:<hex>" digest Ollama uses to address blobs
func fileDigest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("failed to hash %s: %w", path, err)
	}
	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}
