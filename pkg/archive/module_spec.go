// SPDX-License-Identifier: MPL-2.0

package archive

import (
	"fmt"
	"hash/fnv"
	"maps"
	"reflect"
	"slices"
	"strings"
)

// ModuleSpec describes how a script archive is turned into a module: its identity,
// the modules it depends on, the compiler plugins that process it, opaque metadata
// handed to the created module, and the import/export path filters.
//
// A ModuleSpec is immutable and safe for concurrent use. It can only be obtained
// from a ModuleSpecBuilder (directly or by decoding a spec document). Accessors
// return copies.
type ModuleSpec struct {
	moduleID          ModuleID
	metadata          map[string]any
	dependencies      orderedSet[ModuleID]
	compilerPluginIDs orderedSet[string]
	importFilters     orderedSet[string]
	exportFilters     orderedSet[string]
}

// ModuleID returns the id of the archive and of the module created from it.
func (s *ModuleSpec) ModuleID() ModuleID { return s.moduleID }

// Metadata returns a copy of the application specific metadata.
func (s *ModuleSpec) Metadata() map[string]any { return cloneMetadata(s.metadata) }

// MetadataValue returns the metadata value stored under key.
func (s *ModuleSpec) MetadataValue(key string) (any, bool) {
	v, ok := s.metadata[key]
	if !ok {
		return nil, false
	}
	return canonicalValue(v), true
}

// ModuleDependencies returns the ids of the modules this archive depends on, in
// insertion order.
func (s *ModuleSpec) ModuleDependencies() []ModuleID { return s.dependencies.values() }

// DependsOn reports whether id is one of the declared module dependencies.
func (s *ModuleSpec) DependsOn(id ModuleID) bool { return s.dependencies.contains(id) }

// CompilerPluginIDs returns the ids of the compiler plugins that process this archive.
func (s *ModuleSpec) CompilerPluginIDs() []string { return s.compilerPluginIDs.values() }

// ImportFilterPaths returns the filters applied to paths imported from dependencies.
func (s *ModuleSpec) ImportFilterPaths() FilterPaths { return FilterPaths(s.importFilters.values()) }

// ExportFilterPaths returns the filters applied to paths exported to dependents.
func (s *ModuleSpec) ExportFilterPaths() FilterPaths { return FilterPaths(s.exportFilters.values()) }

// Equal compares module id, metadata, compiler plugin ids and module dependencies.
// Import and export filters do not take part in equality.
func (s *ModuleSpec) Equal(o *ModuleSpec) bool {
	if s == o {
		return true
	}
	if s == nil || o == nil {
		return false
	}
	return s.moduleID == o.moduleID &&
		reflect.DeepEqual(s.metadata, o.metadata) &&
		s.compilerPluginIDs.sameElements(&o.compilerPluginIDs) &&
		s.dependencies.sameElements(&o.dependencies)
}

// Hash returns a hash over the same fields as Equal; equal specs hash equally.
func (s *ModuleSpec) Hash() uint64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%s\x00", s.moduleID)

	for _, p := range sortedStrings(s.compilerPluginIDs.items) {
		fmt.Fprintf(h, "p:%s\x00", p)
	}

	deps := make([]string, 0, s.dependencies.len())
	for _, d := range s.dependencies.items {
		deps = append(deps, d.String())
	}
	for _, d := range sortedStrings(deps) {
		fmt.Fprintf(h, "d:%s\x00", d)
	}

	for _, k := range slices.Sorted(maps.Keys(s.metadata)) {
		fmt.Fprintf(h, "m:%s=%v\x00", k, s.metadata[k])
	}
	return h.Sum64()
}

// String returns a short human readable form of the spec.
func (s *ModuleSpec) String() string {
	var sb strings.Builder
	sb.WriteString("ModuleSpec[moduleId=")
	sb.WriteString(s.moduleID.String())
	fmt.Fprintf(&sb, ",archiveMetadata=%v", s.metadata)
	fmt.Fprintf(&sb, ",compilerPlugins=%v", s.compilerPluginIDs.items)
	fmt.Fprintf(&sb, ",dependencies=%v]", s.dependencies.items)
	return sb.String()
}

func sortedStrings(in []string) []string {
	out := slices.Clone(in)
	slices.Sort(out)
	return out
}
