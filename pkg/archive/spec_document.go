// SPDX-License-Identifier: MPL-2.0

package archive

import "fmt"

// SpecDocument is the serialized form of a ModuleSpec shared by spec files and
// repository records. Field names follow the snake_case keys of the spec file schema.
type SpecDocument struct {
	ModuleID        string         `json:"module_id" toml:"module_id" yaml:"module_id" msgpack:"module_id"`
	Dependencies    []string       `json:"dependencies,omitempty" toml:"dependencies,omitempty" yaml:"dependencies,omitempty" msgpack:"dependencies,omitempty"`
	CompilerPlugins []string       `json:"compiler_plugins,omitempty" toml:"compiler_plugins,omitempty" yaml:"compiler_plugins,omitempty" msgpack:"compiler_plugins,omitempty"`
	ImportFilters   []string       `json:"import_filters,omitempty" toml:"import_filters,omitempty" yaml:"import_filters,omitempty" msgpack:"import_filters,omitempty"`
	ExportFilters   []string       `json:"export_filters,omitempty" toml:"export_filters,omitempty" yaml:"export_filters,omitempty" msgpack:"export_filters,omitempty"`
	Metadata        map[string]any `json:"metadata,omitempty" toml:"metadata,omitempty" yaml:"metadata,omitempty" msgpack:"metadata,omitempty"`
}

// ToDocument converts spec into its serialized form.
func ToDocument(spec *ModuleSpec) *SpecDocument {
	doc := &SpecDocument{
		ModuleID:        spec.moduleID.String(),
		CompilerPlugins: spec.CompilerPluginIDs(),
		ImportFilters:   spec.importFilters.values(),
		ExportFilters:   spec.exportFilters.values(),
	}
	for _, d := range spec.dependencies.items {
		doc.Dependencies = append(doc.Dependencies, d.String())
	}
	if len(spec.metadata) > 0 {
		doc.Metadata = cloneMetadata(spec.metadata)
	}
	return doc
}

// ToSpec builds the ModuleSpec described by the document. Module ids are parsed
// with ParseModuleID, so malformed ids fail with an *InvalidModuleIDError.
func (d *SpecDocument) ToSpec() (*ModuleSpec, error) {
	b, err := NewModuleSpecBuilderFromString(d.ModuleID)
	if err != nil {
		return nil, fmt.Errorf("module_id: %w", err)
	}
	if err := b.AddModuleDependencyStrings(d.Dependencies...); err != nil {
		return nil, fmt.Errorf("dependencies: %w", err)
	}
	b.AddCompilerPluginIDs(d.CompilerPlugins...).
		AddModuleImportFilters(d.ImportFilters...).
		AddModuleExportFilters(d.ExportFilters...).
		AddMetadataMap(d.Metadata)
	return b.Build(), nil
}
