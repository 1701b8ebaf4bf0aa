package registry

import (
	"context"
	stderrors "errors"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/matzehuels/loadorder/pkg/errors"
)

// maxParallel bounds how many declaration files are parsed at once.
const maxParallel = 8

// LoadFile reads a single declaration file.
func LoadFile(path string) (*Registry, error) {
	format, ok := FormatOf(path)
	if !ok {
		return nil, errors.New(errors.ErrCodeInvalidFormat,
			"unsupported declaration file %s (want .toml, .yaml, .yml, .json or .hcl)", path)
	}

	data, err := os.ReadFile(path)
	if stderrors.Is(err, fs.ErrNotExist) {
		return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "read %s", path)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "read %s", path)
	}
	return Parse(format, path, data)
}

// Parse decodes a declaration document. name is used in error messages and
// recorded as the Source of every component.
func Parse(format Format, name string, data []byte) (*Registry, error) {
	doc, err := decode(format, name, data)
	if err != nil {
		if errors.GetCode(err) != "" {
			return nil, err
		}
		return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "parse %s", name)
	}
	return doc.build(name)
}

// Load reads every path and merges the results. Directories are expanded to
// the declaration files they contain, recursively and in lexical order.
// Files are parsed concurrently; the merge happens in argument order, so the
// DUPLICATE_COMPONENT error for an id declared twice is deterministic.
func Load(ctx context.Context, paths ...string) (*Registry, error) {
	files, err := expand(paths)
	if err != nil {
		return nil, err
	}

	parsed := make([]*Registry, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			reg, err := LoadFile(path)
			if err != nil {
				return err
			}
			parsed[i] = reg
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	logger := log.FromContext(ctx)
	out := New()
	for i, reg := range parsed {
		if err := out.Merge(reg); err != nil {
			return nil, err
		}
		logger.Debug("loaded declaration file",
			"path", files[i],
			"libraries", len(reg.Libraries),
			"plugins", len(reg.Plugins))
	}
	return out, nil
}

// expand replaces directories by the declaration files below them. A file
// reached more than once, through overlapping arguments or a directory and a
// file inside it, is kept at its first occurrence only.
func expand(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]bool)
	add := func(path string) error {
		abs, err := filepath.Abs(path)
		if err != nil {
			return errors.Wrap(errors.ErrCodeInvalidInput, err, "resolve %s", path)
		}
		if abs = filepath.Clean(abs); !seen[abs] {
			seen[abs] = true
			files = append(files, path)
		}
		return nil
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if stderrors.Is(err, fs.ErrNotExist) {
			return nil, errors.Wrap(errors.ErrCodeFileNotFound, err, "stat %s", p)
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "stat %s", p)
		}
		if !info.IsDir() {
			if err := add(p); err != nil {
				return nil, err
			}
			continue
		}

		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() {
				if _, ok := FormatOf(path); ok {
					found = append(found, path)
				}
			}
			return nil
		})
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidInput, err, "walk %s", p)
		}
		slices.Sort(found)
		for _, f := range found {
			if err := add(f); err != nil {
				return nil, err
			}
		}
	}
	return files, nil
}
