// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"fmt"
	"strings"

	"github.com/scriptvault/scriptvault/pkg/archive"
)

// ViewFilter selects the archives visible through a named view.
type ViewFilter func(id archive.ModuleID, spec *archive.ModuleSpec) bool

// MetadataViewFilter accepts archives whose spec metadata holds key with a value
// that formats as value. An empty value accepts any archive that has the key.
func MetadataViewFilter(key, value string) ViewFilter {
	return func(_ archive.ModuleID, spec *archive.ModuleSpec) bool {
		v, ok := spec.MetadataValue(key)
		if !ok {
			return false
		}
		return value == "" || fmt.Sprint(v) == value
	}
}

// NamePrefixViewFilter accepts archives whose module name starts with prefix.
func NamePrefixViewFilter(prefix string) ViewFilter {
	return func(id archive.ModuleID, _ *archive.ModuleSpec) bool {
		return strings.HasPrefix(id.Name(), prefix)
	}
}

// AllOf accepts archives accepted by every filter. With no filters it accepts all.
func AllOf(filters ...ViewFilter) ViewFilter {
	return func(id archive.ModuleID, spec *archive.ModuleSpec) bool {
		for _, f := range filters {
			if !f(id, spec) {
				return false
			}
		}
		return true
	}
}
