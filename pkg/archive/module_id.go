// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

// ModuleIDSeparator separates the module name from its version in the canonical form.
const ModuleIDSeparator = ":"

// ErrInvalidModuleID is the sentinel error wrapped by InvalidModuleIDError.
var ErrInvalidModuleID = errors.New("invalid module id")

type (
	// ModuleID identifies a module in a dependency graph and keys archives in a repository.
	// The zero value is not a valid id. Two ids are equal iff name and version match,
	// so ModuleID can be compared with == and used as a map key.
	ModuleID struct {
		name    string
		version string
	}

	// InvalidModuleIDError is returned when a module id string or its parts are malformed.
	// It wraps ErrInvalidModuleID for errors.Is() compatibility.
	InvalidModuleIDError struct {
		Value  string
		Reason string
	}
)

// NewModuleID validates name and version and returns the resulting id.
// An empty version yields an unversioned id.
func NewModuleID(name, version string) (ModuleID, error) {
	id := ModuleID{name: name, version: version}
	if err := id.Validate(); err != nil {
		return ModuleID{}, err
	}
	return id, nil
}

// ParseModuleID parses the canonical form "name" or "name:version".
// The version is the segment after the last separator, so "acme:base:1.0" has the
// name "acme:base" and the version "1.0".
func ParseModuleID(s string) (ModuleID, error) {
	if s == "" {
		return ModuleID{}, &InvalidModuleIDError{Value: s, Reason: "must not be empty"}
	}

	idx := strings.LastIndex(s, ModuleIDSeparator)
	if idx < 0 {
		return NewModuleID(s, "")
	}

	name, version := s[:idx], s[idx+len(ModuleIDSeparator):]
	if version == "" {
		return ModuleID{}, &InvalidModuleIDError{Value: s, Reason: "version after separator must not be empty"}
	}
	if name == "" {
		return ModuleID{}, &InvalidModuleIDError{Value: s, Reason: "name must not be empty"}
	}
	return NewModuleID(name, version)
}

// MustParseModuleID is like ParseModuleID but panics on malformed input.
// It is intended for constants and tests.
func MustParseModuleID(s string) ModuleID {
	id, err := ParseModuleID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// Name returns the module name.
func (id ModuleID) Name() string { return id.name }

// Version returns the module version, or "" when the id is unversioned.
func (id ModuleID) Version() string { return id.version }

// HasVersion reports whether the id carries a version.
func (id ModuleID) HasVersion() bool { return id.version != "" }

// IsZero reports whether id is the zero value.
func (id ModuleID) IsZero() bool { return id == ModuleID{} }

// String returns the canonical form of the id.
func (id ModuleID) String() string {
	if id.version == "" {
		return id.name
	}
	return id.name + ModuleIDSeparator + id.version
}

// Validate returns nil if the id is well formed, or an *InvalidModuleIDError.
func (id ModuleID) Validate() error {
	value := id.String()
	if id.name == "" {
		return &InvalidModuleIDError{Value: value, Reason: "name must not be empty"}
	}
	if strings.HasPrefix(id.name, ModuleIDSeparator) || strings.HasSuffix(id.name, ModuleIDSeparator) {
		return &InvalidModuleIDError{Value: value, Reason: "name must not start or end with a separator"}
	}
	if strings.Contains(id.name, ModuleIDSeparator+ModuleIDSeparator) {
		return &InvalidModuleIDError{Value: value, Reason: "name must not contain consecutive separators"}
	}
	if strings.Contains(id.version, ModuleIDSeparator) {
		return &InvalidModuleIDError{Value: value, Reason: "version must not contain a separator"}
	}
	if strings.IndexFunc(value, invalidIDRune) >= 0 {
		return &InvalidModuleIDError{Value: value, Reason: "must not contain whitespace or control characters"}
	}
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (id ModuleID) MarshalText() ([]byte, error) {
	if id.IsZero() {
		return nil, &InvalidModuleIDError{Reason: "must not be empty"}
	}
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ModuleID) UnmarshalText(text []byte) error {
	parsed, err := ParseModuleID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// Error implements the error interface for InvalidModuleIDError.
func (e *InvalidModuleIDError) Error() string {
	return fmt.Sprintf("invalid module id %q: %s", e.Value, e.Reason)
}

// Unwrap returns ErrInvalidModuleID for errors.Is() compatibility.
func (e *InvalidModuleIDError) Unwrap() error { return ErrInvalidModuleID }

func invalidIDRune(r rune) bool {
	return unicode.IsSpace(r) || unicode.IsControl(r)
}
