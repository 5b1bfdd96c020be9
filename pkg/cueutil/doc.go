// SPDX-License-Identifier: MPL-2.0

// Package cueutil holds the CUE plumbing shared by spec files and the configuration file.
//
// Decoding always follows the same three steps:
//
//  1. Compile the embedded schema
//  2. Compile user data and unify it with the schema definition
//  3. Validate and decode into a Go struct
//
// # Usage
//
//	//go:embed module_spec_schema.cue
//	var schema []byte
//
//	result, err := cueutil.ParseAndDecode[SpecDocument](
//	    schema,
//	    data,
//	    "#ModuleSpec",
//	    cueutil.WithFilename("moduleSpec.cue"),
//	)
//
// [Encode] goes the other way and renders a Go value as formatted CUE source.
package cueutil
