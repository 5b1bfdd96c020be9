// SPDX-License-Identifier: MPL-2.0

package archive

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/pelletier/go-toml/v2"

	"github.com/scriptvault/scriptvault/pkg/cueutil"
)

const (
	// SpecFormatCUE reads and writes moduleSpec.cue files.
	SpecFormatCUE SpecFormat = "cue"
	// SpecFormatTOML reads and writes moduleSpec.toml files.
	SpecFormatTOML SpecFormat = "toml"
	// SpecFormatYAML reads and writes moduleSpec.yaml files.
	SpecFormatYAML SpecFormat = "yaml"

	// SpecFileBaseName is the file name, without extension, of a spec file at the
	// root of an archive.
	SpecFileBaseName = "moduleSpec"
)

var (
	//go:embed module_spec_schema.cue
	moduleSpecSchema []byte

	// ErrInvalidSpecFormat is the sentinel error wrapped by InvalidSpecFormatError.
	ErrInvalidSpecFormat = errors.New("invalid spec format")

	// ErrSpecFileNotFound is returned when a directory contains no spec file.
	ErrSpecFileNotFound = errors.New("module spec file not found")
)

type (
	// SpecFormat names a spec file encoding.
	SpecFormat string

	// InvalidSpecFormatError is returned when a SpecFormat value is not recognized.
	// It wraps ErrInvalidSpecFormat for errors.Is() compatibility.
	InvalidSpecFormatError struct {
		Value SpecFormat
	}

	// SpecSerializer converts module specs to and from a file encoding.
	SpecSerializer interface {
		Format() SpecFormat
		// FileName is the spec file name used at the root of an archive.
		FileName() string
		Serialize(spec *ModuleSpec) ([]byte, error)
		Deserialize(data []byte) (*ModuleSpec, error)
	}

	cueSerializer  struct{}
	tomlSerializer struct{}
	yamlSerializer struct{}
)

// SpecFormats lists the supported formats in lookup order.
func SpecFormats() []SpecFormat {
	return []SpecFormat{SpecFormatCUE, SpecFormatTOML, SpecFormatYAML}
}

// String returns the string representation of the SpecFormat.
func (f SpecFormat) String() string { return string(f) }

// Validate returns nil if the format is supported, or an *InvalidSpecFormatError.
func (f SpecFormat) Validate() error {
	switch f {
	case SpecFormatCUE, SpecFormatTOML, SpecFormatYAML:
		return nil
	default:
		return &InvalidSpecFormatError{Value: f}
	}
}

// Error implements the error interface.
func (e *InvalidSpecFormatError) Error() string {
	return fmt.Sprintf("invalid spec format %q (valid: cue, toml, yaml)", e.Value)
}

// Unwrap returns ErrInvalidSpecFormat for errors.Is() compatibility.
func (e *InvalidSpecFormatError) Unwrap() error { return ErrInvalidSpecFormat }

// SerializerFor returns the serializer for format.
func SerializerFor(format SpecFormat) (SpecSerializer, error) {
	switch format {
	case SpecFormatCUE:
		return cueSerializer{}, nil
	case SpecFormatTOML:
		return tomlSerializer{}, nil
	case SpecFormatYAML:
		return yamlSerializer{}, nil
	default:
		return nil, &InvalidSpecFormatError{Value: format}
	}
}

// FindSpecFile returns the path and serializer of the first spec file found in dir,
// checking formats in SpecFormats order. It returns ErrSpecFileNotFound when there
// is none.
func FindSpecFile(dir string) (string, SpecSerializer, error) {
	for _, format := range SpecFormats() {
		s, _ := SerializerFor(format)
		path := filepath.Join(dir, s.FileName())
		info, err := os.Stat(path)
		if err == nil && !info.IsDir() {
			return path, s, nil
		}
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return "", nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}
	}
	return "", nil, ErrSpecFileNotFound
}

// serializerForFileName returns the serializer whose FileName matches name.
func serializerForFileName(name string) (SpecSerializer, bool) {
	for _, format := range SpecFormats() {
		s, _ := SerializerFor(format)
		if s.FileName() == name {
			return s, true
		}
	}
	return nil, false
}

func (cueSerializer) Format() SpecFormat { return SpecFormatCUE }

func (cueSerializer) FileName() string { return SpecFileBaseName + ".cue" }

func (cueSerializer) Serialize(spec *ModuleSpec) ([]byte, error) {
	return cueutil.Encode(ToDocument(spec))
}

func (s cueSerializer) Deserialize(data []byte) (*ModuleSpec, error) {
	result, err := cueutil.ParseAndDecode[SpecDocument](moduleSpecSchema, data, "#ModuleSpec", cueutil.WithFilename(s.FileName()))
	if err != nil {
		return nil, err
	}
	return result.Value.ToSpec()
}

func (tomlSerializer) Format() SpecFormat { return SpecFormatTOML }

func (tomlSerializer) FileName() string { return SpecFileBaseName + ".toml" }

func (tomlSerializer) Serialize(spec *ModuleSpec) ([]byte, error) {
	data, err := toml.Marshal(ToDocument(spec))
	if err != nil {
		return nil, fmt.Errorf("failed to encode spec as TOML: %w", err)
	}
	return data, nil
}

func (s tomlSerializer) Deserialize(data []byte) (*ModuleSpec, error) {
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, s.FileName()); err != nil {
		return nil, err
	}
	var doc SpecDocument
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", s.FileName(), err)
	}
	return doc.ToSpec()
}

func (yamlSerializer) Format() SpecFormat { return SpecFormatYAML }

func (yamlSerializer) FileName() string { return SpecFileBaseName + ".yaml" }

func (yamlSerializer) Serialize(spec *ModuleSpec) ([]byte, error) {
	data, err := yaml.Marshal(ToDocument(spec))
	if err != nil {
		return nil, fmt.Errorf("failed to encode spec as YAML: %w", err)
	}
	return data, nil
}

func (s yamlSerializer) Deserialize(data []byte) (*ModuleSpec, error) {
	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, s.FileName()); err != nil {
		return nil, err
	}
	var doc SpecDocument
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%s: %w", s.FileName(), err)
	}
	return doc.ToSpec()
}
