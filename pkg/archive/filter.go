// SPDX-License-Identifier: MPL-2.0

package archive

import "slices"

// FilterPaths is an allow-list of opaque path patterns controlling cross-module
// visibility of slash-delimited resource paths. Import filters bound what a module
// may pull from its dependencies; export filters bound what it exposes to dependents.
// An empty list accepts all paths. The pattern grammar belongs to the linking layer.
type FilterPaths []string

// AcceptsAll reports whether the filter set is empty and therefore accepts every path.
func (f FilterPaths) AcceptsAll() bool { return len(f) == 0 }

// Contains reports whether pattern is one of the filter paths.
func (f FilterPaths) Contains(pattern string) bool { return slices.Contains(f, pattern) }
