// SPDX-License-Identifier: MPL-2.0

// Package archive defines script archives: deployable units of source together with
// the module specification that describes how they are turned into a module.
//
// # Module Identity
//
// A [ModuleID] is a comparable value type made of a name and an optional version.
// Its canonical text form is "name" or "name:version" and it can be used directly
// as a map key:
//   - [ParseModuleID]: parse the canonical form
//   - [NewModuleID]: validate and assemble from parts
//   - [ModuleID.String]: render the canonical form
//
// # Module Specifications
//
// A [ModuleSpec] is immutable. It is produced by a [ModuleSpecBuilder], a mutable
// staging object that accumulates dependencies, compiler plugin ids, metadata and
// import/export path filters. Every call to [ModuleSpecBuilder.Build] returns an
// independent snapshot that shares no storage with the builder or with any
// collection passed to it.
//
// Path filters ([FilterPaths]) are opaque pattern strings; an empty set accepts all
// paths. Matching them against resource paths is left to the module linking layer.
//
// # Archives and Spec Files
//
//   - [ScriptArchive]: an immutable spec plus named entries (raw source bytes)
//   - [LoadDirectory], [LoadZip], [ReadZip]: build archives from disk
//   - [WriteZip]: pack an archive into a ZIP stream
//   - [SpecSerializer]: read and write spec files in CUE, TOML or YAML
package archive
