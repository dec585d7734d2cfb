package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/protograph/protograph/internal/graph"
	"github.com/protograph/protograph/internal/serialize"
)

// LoadError reports a document loading failure with a stable code.
type LoadError struct {
	Code    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadDocument reads a graph document from path. The format follows the
// extension: .json, .yaml/.yml, .cue, or .pg for the binary store envelope
// (msgpack, zstd).
func LoadDocument(path string) (*graph.NodeNetwork, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("document not found: %s", path)}
		}
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("reading %s: %v", path, err)}
	}

	nw := graph.New()
	switch ext := filepath.Ext(path); ext {
	case ".json":
		if err := json.Unmarshal(data, nw); err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("parsing %s: %v", path, err)}
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, nw); err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("parsing %s: %v", path, err)}
		}
	case ".cue":
		// CUE documents export to JSON and reuse the JSON document form, so
		// constraints and references evaluate before the graph is built.
		v := cuecontext.New().CompileBytes(data, cue.Filename(path))
		if err := v.Err(); err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("evaluating %s: %v", path, err)}
		}
		raw, err := v.MarshalJSON()
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("exporting %s: %v", path, err)}
		}
		if err := json.Unmarshal(raw, nw); err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("parsing %s: %v", path, err)}
		}
	case ".pg":
		nw, err = serialize.Default().UnmarshalNetwork(data)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("decoding %s: %v", path, err)}
		}
	default:
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("unsupported document extension %q", ext)}
	}
	return nw, nil
}
