// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"bytes"
	"errors"
	"maps"
	"slices"
	"time"
)

// ErrInvalidArchive is returned when an archive cannot be assembled from its parts.
var ErrInvalidArchive = errors.New("invalid script archive")

type (
	// ScriptArchive is one deployable unit of source: a module spec plus named
	// entries holding raw source bytes. Entry names are slash-separated paths
	// relative to the archive root. A ScriptArchive is immutable.
	ScriptArchive struct {
		spec       *ModuleSpec
		createTime time.Time
		entries    map[string][]byte
	}

	// LoadOption configures how archives are loaded from disk.
	LoadOption func(*loadOptions)

	loadOptions struct {
		moduleID   ModuleID
		fallbackID ModuleID
		spec       *ModuleSpec
		createTime time.Time
	}
)

// NewScriptArchive assembles an archive. Entries are copied; later changes to the
// given map or byte slices are not visible through the archive.
func NewScriptArchive(spec *ModuleSpec, createTime time.Time, entries map[string][]byte) (*ScriptArchive, error) {
	if spec == nil {
		return nil, errors.Join(ErrInvalidArchive, errors.New("module spec is required"))
	}
	if spec.moduleID.IsZero() {
		return nil, errors.Join(ErrInvalidArchive, errors.New("module spec has no module id"))
	}

	copied := make(map[string][]byte, len(entries))
	for name, data := range entries {
		if err := validateEntryName(name); err != nil {
			return nil, errors.Join(ErrInvalidArchive, err)
		}
		copied[name] = slices.Clone(data)
	}

	return &ScriptArchive{
		spec:       spec,
		createTime: createTime,
		entries:    copied,
	}, nil
}

// WithModuleID overrides the module id of loaded archives.
func WithModuleID(id ModuleID) LoadOption {
	return func(o *loadOptions) { o.moduleID = id }
}

// WithSpec uses spec instead of any spec file found in the archive.
func WithSpec(spec *ModuleSpec) LoadOption {
	return func(o *loadOptions) { o.spec = spec }
}

// WithCreateTime sets the create time of loaded archives.
func WithCreateTime(t time.Time) LoadOption {
	return func(o *loadOptions) { o.createTime = t }
}

// ModuleID returns the id of the archive's module.
func (a *ScriptArchive) ModuleID() ModuleID { return a.spec.moduleID }

// Spec returns the archive's module spec.
func (a *ScriptArchive) Spec() *ModuleSpec { return a.spec }

// CreateTime returns when the archive was created.
func (a *ScriptArchive) CreateTime() time.Time { return a.createTime }

// EntryNames returns the names of all entries in sorted order.
func (a *ScriptArchive) EntryNames() []string {
	return slices.Sorted(maps.Keys(a.entries))
}

// Entry returns a copy of the named entry's content.
func (a *ScriptArchive) Entry(name string) ([]byte, bool) {
	data, ok := a.entries[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(data), true
}

// Size returns the total number of entry bytes.
func (a *ScriptArchive) Size() int64 {
	var n int64
	for _, data := range a.entries {
		n += int64(len(data))
	}
	return n
}

// WithSpec returns a copy of the archive that carries spec instead of its current spec.
func (a *ScriptArchive) WithSpec(spec *ModuleSpec) (*ScriptArchive, error) {
	return NewScriptArchive(spec, a.createTime, a.entries)
}

// Equal reports whether both archives have equal specs, the same create time and
// identical entries.
func (a *ScriptArchive) Equal(o *ScriptArchive) bool {
	if a == o {
		return true
	}
	if a == nil || o == nil {
		return false
	}
	if !a.spec.Equal(o.spec) || !a.createTime.Equal(o.createTime) || len(a.entries) != len(o.entries) {
		return false
	}
	for name, data := range a.entries {
		other, ok := o.entries[name]
		if !ok || !bytes.Equal(data, other) {
			return false
		}
	}
	return true
}
