package userdata

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"bootkit/internal/scriptbuilder"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is the encoding of a script document.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ErrUnsupportedFormat is returned for files that are neither YAML nor TOML.
var ErrUnsupportedFormat = errors.New("unsupported script document format")

// Ext returns the file extension used when storing f.
func (f Format) Ext() string {
	return "." + string(f)
}

// FormatFromPath picks the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML, nil
	case ".toml":
		return FormatTOML, nil
	default:
		return "", fmt.Errorf("%w: %q (want .yaml, .yml or .toml)", ErrUnsupportedFormat, filepath.Ext(path))
	}
}

// Document is the on-disk description of an init script.
//
//	name: mkebsboot
//	workdir: /mnt/tmp
//	logdir: /mnt/tmp
//	os_family: unix
//	variables:
//	  tmpDir: /mnt/tmp
//	statements:
//	  - find /
type Document struct {
	Name       string            `yaml:"name" toml:"name"`
	WorkDir    string            `yaml:"workdir" toml:"workdir"`
	LogDir     string            `yaml:"logdir" toml:"logdir"`
	OsFamily   string            `yaml:"os_family,omitempty" toml:"os_family,omitempty"`
	Variables  map[string]string `yaml:"variables,omitempty" toml:"variables,omitempty"`
	Statements []string          `yaml:"statements" toml:"statements"`
}

// Decode parses data in the given format. Unknown keys are rejected.
func Decode(data []byte, format Format) (*Document, error) {
	var doc Document
	switch format {
	case FormatYAML:
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse yaml script document: %w", err)
		}
	case FormatTOML:
		dec := toml.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to parse toml script document: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}
	return &doc, nil
}

// LoadFile reads and decodes a document from path. A document without a
// name takes the file's base name.
func LoadFile(path string) (*Document, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read script document: %w", err)
	}
	doc, err := Decode(data, format)
	if err != nil {
		return nil, err
	}
	if doc.Name == "" {
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		if !scriptbuilder.ValidName(base) {
			return nil, fmt.Errorf("script document %s has no name field and %q is not a valid script name; add a name to the document", path, base)
		}
		doc.Name = base
	}
	return doc, nil
}

// ToSpec converts the document into a renderable spec.
func (d Document) ToSpec() scriptbuilder.Spec {
	return scriptbuilder.NewSpec(d.Name, d.WorkDir, d.LogDir, d.Variables, d.Statements...)
}

// Family returns the document's target OS, or fallback when it names none.
func (d Document) Family(fallback scriptbuilder.OsFamily) (scriptbuilder.OsFamily, error) {
	if d.OsFamily == "" {
		return fallback, nil
	}
	return scriptbuilder.ParseOsFamily(d.OsFamily)
}

// Validate checks that the document renders for its own OS family, or
// for UNIX when it names none.
func (d Document) Validate() error {
	family, err := d.Family(scriptbuilder.Unix)
	if err != nil {
		return err
	}
	_, err = scriptbuilder.Render(d.ToSpec(), family)
	return err
}
