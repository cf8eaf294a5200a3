package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	parser "github.com/gpustack/gguf-parser-go"

	"github.com/menta2k/scene-analyzer/internal/utils"
	"github.com/menta2k/scene-analyzer/pkg/types"
)

var shardPattern = regexp.MustCompile(`-(\d{5})-of-(\d{5})\.gguf$`)

// ModelFiles are the GGUF files that make up one vision model
type ModelFiles struct {
	Dir       string
	Weights   string
	Projector string
}

// ModelInfo describes a loaded model
type ModelInfo struct {
	Name         string
	Architecture string
	Quantization string
	Parameters   string
	Size         uint64
	Files        ModelFiles
	Device       types.Device
	Backend      string
}

// SizeString returns Size in human-readable form
func (i ModelInfo) SizeString() string {
	return utils.FormatFileSize(int64(i.Size))
}

// ResolveFiles locates the weights and projector inside modelPath. A path
// to a single .gguf file is taken as the weights, with the projector looked
// up next to it.
func ResolveFiles(modelPath string) (ModelFiles, error) {
	if !utils.PathExists(modelPath) {
		return ModelFiles{}, types.Errorf(types.KindModelLoad, "Model path does not exist: %s", modelPath)
	}

	if !utils.DirExists(modelPath) {
		if !utils.IsGGUFFile(modelPath) {
			return ModelFiles{}, types.Errorf(types.KindModelLoad, "Model file is not a GGUF file: %s", modelPath)
		}
		files, err := scanDir(filepath.Dir(modelPath))
		if err != nil {
			return ModelFiles{}, err
		}
		files.Weights = modelPath
		return files, nil
	}

	names, err := utils.ListDir(modelPath)
	if err != nil {
		return ModelFiles{}, types.NewError(types.KindModelLoad, fmt.Errorf("failed to read model directory: %w", err))
	}
	if len(names) == 0 {
		return ModelFiles{}, types.Errorf(types.KindModelLoad, "Model directory is empty: %s", modelPath)
	}

	files, err := scanDir(modelPath)
	if err != nil {
		return ModelFiles{}, err
	}
	if files.Weights == "" {
		return ModelFiles{}, types.Errorf(types.KindModelLoad, "No GGUF model weights found in %s", modelPath)
	}
	return files, nil
}

// scanDir picks the projector (a file whose name contains "mmproj") and
// the weights: the first shard of a split model, otherwise the largest
// remaining .gguf file.
func scanDir(dir string) (ModelFiles, error) {
	names, err := utils.ListDir(dir)
	if err != nil {
		return ModelFiles{}, types.NewError(types.KindModelLoad, fmt.Errorf("failed to read model directory: %w", err))
	}

	files := ModelFiles{Dir: dir}
	var largest int64 = -1
	for _, name := range names {
		path := filepath.Join(dir, name)
		if !utils.IsGGUFFile(name) || !utils.FileExists(path) {
			continue
		}
		if strings.Contains(strings.ToLower(name), "mmproj") {
			if files.Projector == "" {
				files.Projector = path
			}
			continue
		}

		if m := shardPattern.FindStringSubmatch(name); m != nil {
			if m[1] == "00001" {
				files.Weights = path
				largest = 1 << 62
			}
			continue
		}

		st, err := os.Stat(path)
		if err != nil {
			continue
		}
		if st.Size() > largest {
			largest = st.Size()
			files.Weights = path
		}
	}
	return files, nil
}

// Inspect reads the GGUF header of the weights. Unparseable files are not
// an error; the model is then named after its directory.
func Inspect(files ModelFiles) ModelInfo {
	info := ModelInfo{
		Name:  filepath.Base(files.Dir),
		Files: files,
	}
	if st, err := os.Stat(files.Weights); err == nil {
		info.Size = uint64(st.Size())
	}

	gguf, err := parser.ParseGGUFFile(files.Weights)
	if err != nil {
		return info
	}
	md := gguf.Metadata()
	if name := strings.TrimSpace(md.Name); name != "" {
		info.Name = name
	}
	info.Architecture = strings.TrimSpace(md.Architecture)
	info.Quantization = strings.TrimSpace(md.FileType.String())
	info.Parameters = strings.TrimSpace(md.Parameters.String())
	if md.Size > 0 {
		info.Size = uint64(md.Size)
	}
	return info
}
