package registry

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"gopkg.in/yaml.v3"

	"github.com/matzehuels/loadorder/pkg/errors"
)

// Format identifies a declaration file syntax.
type Format string

const (
	FormatTOML Format = "toml"
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatHCL  Format = "hcl"
)

// Formats lists the supported declaration file formats.
var Formats = []Format{FormatTOML, FormatYAML, FormatJSON, FormatHCL}

// FormatOf returns the format for a file name, judged by its extension.
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return FormatTOML, true
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".json":
		return FormatJSON, true
	case ".hcl":
		return FormatHCL, true
	}
	return "", false
}

// document is the decoded form shared by the table-based formats.
type document struct {
	Library map[string]entry `toml:"library" yaml:"library" json:"library"`
	Plugin  map[string]entry `toml:"plugin" yaml:"plugin" json:"plugin"`
}

type entry struct {
	Type         string            `toml:"type" yaml:"type" json:"type"`
	Files        []string          `toml:"files" yaml:"files" json:"files"`
	Dependencies []string          `toml:"dependencies" yaml:"dependencies" json:"dependencies"`
	Versions     map[string]string `toml:"versions" yaml:"versions" json:"versions"`
	Enabled      *bool             `toml:"enabled" yaml:"enabled" json:"enabled"`
}

// hclDocument mirrors document with labelled blocks.
type hclDocument struct {
	Libraries []hclEntry `hcl:"library,block"`
	Plugins   []hclEntry `hcl:"plugin,block"`
}

type hclEntry struct {
	ID           string            `hcl:"id,label"`
	Type         string            `hcl:"type,optional"`
	Files        []string          `hcl:"files,optional"`
	Dependencies []string          `hcl:"dependencies,optional"`
	Versions     map[string]string `hcl:"versions,optional"`
	Enabled      *bool             `hcl:"enabled,optional"`
}

// decode parses data according to format. Unknown keys are rejected in
// every format so that typos do not silently drop dependencies.
func decode(format Format, path string, data []byte) (*document, error) {
	var doc document
	switch format {
	case FormatTOML:
		md, err := toml.Decode(string(data), &doc)
		if err != nil {
			return nil, err
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			return nil, fmt.Errorf("unknown key %q", undecoded[0].String())
		}
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && !stderrors.Is(err, io.EOF) {
			return nil, err
		}
	case FormatJSON:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, err
		}
	case FormatHCL:
		return decodeHCL(path, data)
	default:
		return nil, errors.New(errors.ErrCodeInvalidFormat, "unsupported format %q", format)
	}
	return &doc, nil
}

func decodeHCL(path string, data []byte) (*document, error) {
	file, diags := hclparse.NewParser().ParseHCL(data, path)
	if diags.HasErrors() {
		return nil, diags
	}
	var parsed hclDocument
	if diags := gohcl.DecodeBody(file.Body, nil, &parsed); diags.HasErrors() {
		return nil, diags
	}

	doc := &document{
		Library: make(map[string]entry, len(parsed.Libraries)),
		Plugin:  make(map[string]entry, len(parsed.Plugins)),
	}
	for _, blocks := range []struct {
		kind string
		in   []hclEntry
		out  map[string]entry
	}{
		{"library", parsed.Libraries, doc.Library},
		{"plugin", parsed.Plugins, doc.Plugin},
	} {
		for _, b := range blocks.in {
			if _, dup := blocks.out[b.ID]; dup {
				return nil, fmt.Errorf("%s %q declared twice", blocks.kind, b.ID)
			}
			blocks.out[b.ID] = entry{
				Type:         b.Type,
				Files:        b.Files,
				Dependencies: b.Dependencies,
				Versions:     b.Versions,
				Enabled:      b.Enabled,
			}
		}
	}
	return doc, nil
}

// build validates doc and converts it into a registry.
func (doc *document) build(source string) (*Registry, error) {
	reg := New()
	for id, e := range doc.Plugin {
		if _, clash := doc.Library[id]; clash {
			return nil, errors.New(errors.ErrCodeDuplicateComponent,
				"component %q declared as library and plugin in %s", id, source)
		}
		if e.Type != "" || len(e.Files) > 0 {
			return nil, errors.New(errors.ErrCodeInvalidManifest,
				"plugin %q in %s cannot declare type or files", id, source)
		}
		if err := validateEntry(id, e); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "plugin %q in %s", id, source)
		}
		enabled := e.Enabled == nil || *e.Enabled
		reg.Plugins[id] = &Plugin{
			ID:           id,
			Enabled:      enabled,
			Dependencies: normalize(e.Dependencies),
			Versions:     e.Versions,
			Source:       source,
		}
	}
	for id, e := range doc.Library {
		if e.Enabled != nil {
			return nil, errors.New(errors.ErrCodeInvalidManifest,
				"library %q in %s cannot be enabled or disabled", id, source)
		}
		if err := validateEntry(id, e); err != nil {
			return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "library %q in %s", id, source)
		}
		for _, f := range e.Files {
			if err := errors.ValidateAssetPath(f); err != nil {
				return nil, errors.Wrap(errors.ErrCodeInvalidManifest, err, "library %q in %s", id, source)
			}
		}
		reg.Libraries[id] = &Library{
			ID:           id,
			Type:         e.Type,
			Files:        e.Files,
			Dependencies: normalize(e.Dependencies),
			Versions:     e.Versions,
			Source:       source,
		}
	}
	return reg, nil
}

func validateEntry(id string, e entry) error {
	if err := errors.ValidateComponentID(id); err != nil {
		return err
	}
	for _, d := range e.Dependencies {
		if err := errors.ValidateComponentID(d); err != nil {
			return err
		}
	}
	for d := range e.Versions {
		if !slices.Contains(e.Dependencies, d) {
			return fmt.Errorf("version constraint for undeclared dependency %q", d)
		}
	}
	return nil
}

// normalize sorts and de-duplicates dependency ids.
func normalize(deps []string) []string {
	if len(deps) == 0 {
		return nil
	}
	out := slices.Clone(deps)
	slices.Sort(out)
	return slices.Compact(out)
}
