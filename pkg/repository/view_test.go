// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"testing"

	"github.com/scriptvault/scriptvault/pkg/archive"
)

func TestViewFilters(t *testing.T) {
	t.Parallel()

	id := archive.MustParseModuleID("acme-tools:2")
	spec := archive.NewModuleSpecBuilder(id).
		AddMetadata("owner", "team-a").
		AddMetadata("tier", 2).
		Build()

	tests := []struct {
		name   string
		filter ViewFilter
		want   bool
	}{
		{"metadata match", MetadataViewFilter("owner", "team-a"), true},
		{"metadata mismatch", MetadataViewFilter("owner", "team-b"), false},
		{"metadata formatted value", MetadataViewFilter("tier", "2"), true},
		{"metadata key only", MetadataViewFilter("owner", ""), true},
		{"metadata missing key", MetadataViewFilter("region", ""), false},
		{"prefix match", NamePrefixViewFilter("acme"), true},
		{"prefix excludes version", NamePrefixViewFilter("acme-tools:2"), false},
		{"prefix mismatch", NamePrefixViewFilter("billing"), false},
		{"all of", AllOf(NamePrefixViewFilter("acme"), MetadataViewFilter("owner", "team-a")), true},
		{"all of one fails", AllOf(NamePrefixViewFilter("acme"), MetadataViewFilter("owner", "x")), false},
		{"all of empty", AllOf(), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.filter(id, spec); got != tt.want {
				t.Errorf("filter() = %v, want %v", got, tt.want)
			}
		})
	}
}
