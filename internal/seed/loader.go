// Package seed loads model documents from a directory and submits them to the
// manager at startup.
package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"modelsync/internal/common/fsutil"
	"modelsync/internal/document"
	"modelsync/internal/manager"
	"modelsync/pkg/types"
)

// Extensions lists the file types LoadDir picks up.
var Extensions = []string{".json", ".yaml", ".yml"}

// Updater is the part of the manager seeding needs.
type Updater interface {
	Update(ctx context.Context, root manager.Node, opaque any) *manager.Op
}

// LoadDir reads every seed file in dir, in file name order.
func LoadDir(dir string) ([]types.Model, error) {
	files, err := fsutil.FilesWithExt(dir, Extensions...)
	if err != nil {
		return nil, err
	}
	var out []types.Model
	for _, f := range files {
		ms, err := LoadFile(f)
		if err != nil {
			return nil, err
		}
		out = append(out, ms...)
	}
	return out, nil
}

// LoadFile decodes one document, or a list of documents, from path.
func LoadFile(path string) ([]types.Model, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
	case ".yaml", ".yml":
		// Documents carry raw JSON payloads; route YAML through JSON.
		var v any
		if err := yaml.Unmarshal(b, &v); err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
		if b, err = json.Marshal(v); err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	default:
		return nil, fmt.Errorf("unsupported seed extension: %s", ext)
	}
	ms, err := decode(b)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return ms, nil
}

func decode(b []byte) ([]types.Model, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, nil
	}
	if b[0] == '[' {
		var ms []types.Model
		if err := json.Unmarshal(b, &ms); err != nil {
			return nil, err
		}
		return ms, nil
	}
	var m types.Model
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return []types.Model{m}, nil
}

// Apply submits each model as an update and waits for all of them. Merge
// conflicts do not stop the remaining models; they are returned joined.
func Apply(ctx context.Context, u Updater, models []types.Model) (int, error) {
	ops := make([]*manager.Op, 0, len(models))
	for _, m := range models {
		ops = append(ops, u.Update(ctx, document.New(m), "seed"))
	}
	var (
		applied int
		errs    []error
	)
	for i, op := range ops {
		if err := op.Wait(ctx); err != nil {
			if ctx.Err() != nil {
				return applied, ctx.Err()
			}
			errs = append(errs, fmt.Errorf("seed %q: %w", models[i].ID, err))
			continue
		}
		applied++
	}
	return applied, errors.Join(errs...)
}
