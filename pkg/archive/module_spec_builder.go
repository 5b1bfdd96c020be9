// SPDX-License-Identifier: MPL-2.0

package archive

// ModuleSpecBuilder accumulates the parts of a ModuleSpec.
//
// A builder is owned by a single goroutine. Adders ignore empty input (empty
// strings, nil maps, zero ids) instead of failing, and return the builder for
// chaining. Only the string dependency adders can fail; when they do the builder
// is left untouched.
type ModuleSpecBuilder struct {
	moduleID          ModuleID
	metadata          map[string]any
	dependencies      orderedSet[ModuleID]
	compilerPluginIDs orderedSet[string]
	importFilters     orderedSet[string]
	exportFilters     orderedSet[string]
}

// NewModuleSpecBuilder returns a builder for the spec of the given module.
// It panics if id is the zero ModuleID; every spec has an identity.
func NewModuleSpecBuilder(id ModuleID) *ModuleSpecBuilder {
	if id.IsZero() {
		panic("archive: NewModuleSpecBuilder called with zero ModuleID")
	}
	return &ModuleSpecBuilder{
		moduleID: id,
		metadata: make(map[string]any),
	}
}

// NewModuleSpecBuilderFromString parses id with ParseModuleID and returns a builder for it.
func NewModuleSpecBuilderFromString(id string) (*ModuleSpecBuilder, error) {
	parsed, err := ParseModuleID(id)
	if err != nil {
		return nil, err
	}
	return NewModuleSpecBuilder(parsed), nil
}

// AddCompilerPluginID adds a dependency on the named compiler plugin.
func (b *ModuleSpecBuilder) AddCompilerPluginID(pluginID string) *ModuleSpecBuilder {
	if pluginID != "" {
		b.compilerPluginIDs.add(pluginID)
	}
	return b
}

// AddCompilerPluginIDs adds dependencies on all of the named compiler plugins.
func (b *ModuleSpecBuilder) AddCompilerPluginIDs(pluginIDs ...string) *ModuleSpecBuilder {
	for _, id := range pluginIDs {
		b.AddCompilerPluginID(id)
	}
	return b
}

// AddMetadata stores a canonical copy of value under key (see canonicalValue).
// Empty keys and nil values are ignored.
func (b *ModuleSpecBuilder) AddMetadata(key string, value any) *ModuleSpecBuilder {
	if key == "" {
		return b
	}
	if v := canonicalValue(value); v != nil {
		b.metadata[key] = v
	}
	return b
}

// AddMetadataMap merges all entries of metadata; later writes to a key win.
func (b *ModuleSpecBuilder) AddMetadataMap(metadata map[string]any) *ModuleSpecBuilder {
	for k, v := range metadata {
		b.AddMetadata(k, v)
	}
	return b
}

// AddModuleDependency adds a dependency on the given module.
func (b *ModuleSpecBuilder) AddModuleDependency(dependency ModuleID) *ModuleSpecBuilder {
	if !dependency.IsZero() {
		b.dependencies.add(dependency)
	}
	return b
}

// AddModuleDependencies adds dependencies on all of the given modules.
func (b *ModuleSpecBuilder) AddModuleDependencies(dependencies ...ModuleID) *ModuleSpecBuilder {
	for _, d := range dependencies {
		b.AddModuleDependency(d)
	}
	return b
}

// AddModuleDependencyString parses dependency and adds it. An empty string is ignored.
func (b *ModuleSpecBuilder) AddModuleDependencyString(dependency string) error {
	return b.AddModuleDependencyStrings(dependency)
}

// AddModuleDependencyStrings parses every dependency before adding any of them,
// so a malformed entry leaves the builder unchanged.
func (b *ModuleSpecBuilder) AddModuleDependencyStrings(dependencies ...string) error {
	parsed := make([]ModuleID, 0, len(dependencies))
	for _, d := range dependencies {
		if d == "" {
			continue
		}
		id, err := ParseModuleID(d)
		if err != nil {
			return err
		}
		parsed = append(parsed, id)
	}
	b.AddModuleDependencies(parsed...)
	return nil
}

// AddModuleImportFilter adds an import filter path.
func (b *ModuleSpecBuilder) AddModuleImportFilter(filterPath string) *ModuleSpecBuilder {
	if filterPath != "" {
		b.importFilters.add(filterPath)
	}
	return b
}

// AddModuleImportFilters adds all of the given import filter paths.
func (b *ModuleSpecBuilder) AddModuleImportFilters(filterPaths ...string) *ModuleSpecBuilder {
	for _, p := range filterPaths {
		b.AddModuleImportFilter(p)
	}
	return b
}

// AddModuleExportFilter adds an export filter path.
func (b *ModuleSpecBuilder) AddModuleExportFilter(filterPath string) *ModuleSpecBuilder {
	if filterPath != "" {
		b.exportFilters.add(filterPath)
	}
	return b
}

// AddModuleExportFilters adds all of the given export filter paths.
func (b *ModuleSpecBuilder) AddModuleExportFilters(filterPaths ...string) *ModuleSpecBuilder {
	for _, p := range filterPaths {
		b.AddModuleExportFilter(p)
	}
	return b
}

// Build returns a snapshot of the builder's current state. The builder stays usable
// and later changes to it are not visible in specs already built.
func (b *ModuleSpecBuilder) Build() *ModuleSpec {
	return &ModuleSpec{
		moduleID:          b.moduleID,
		metadata:          cloneMetadata(b.metadata),
		dependencies:      b.dependencies.clone(),
		compilerPluginIDs: b.compilerPluginIDs.clone(),
		importFilters:     b.importFilters.clone(),
		exportFilters:     b.exportFilters.clone(),
	}
}

// ToBuilder returns a new builder primed with a copy of the spec's state, for
// deriving a modified spec.
func (s *ModuleSpec) ToBuilder() *ModuleSpecBuilder {
	return &ModuleSpecBuilder{
		moduleID:          s.moduleID,
		metadata:          cloneMetadata(s.metadata),
		dependencies:      s.dependencies.clone(),
		compilerPluginIDs: s.compilerPluginIDs.clone(),
		importFilters:     s.importFilters.clone(),
		exportFilters:     s.exportFilters.clone(),
	}
}
