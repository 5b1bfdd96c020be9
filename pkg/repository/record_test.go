// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"errors"
	"testing"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/scriptvault/scriptvault/pkg/archive"
)

func testArchive(t *testing.T, id string) *archive.ScriptArchive {
	t.Helper()
	spec := archive.NewModuleSpecBuilder(archive.MustParseModuleID(id)).
		AddMetadata("owner", "team-a").
		AddModuleExportFilter("com/acme/*").
		Build()
	a, err := archive.NewScriptArchive(spec, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), map[string][]byte{
		"Main.groovy": []byte("println 1"),
	})
	if err != nil {
		t.Fatal(err)
	}
	return a
}

func TestRecord_RoundTrip(t *testing.T) {
	t.Parallel()

	a := testArchive(t, "acme:1")
	updated := time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	data, err := encodeRecord(a, map[string]any{"env": "prod", "replicas": 3}, updated)
	if err != nil {
		t.Fatalf("encodeRecord() error = %v", err)
	}

	rec, spec, err := decodeRecord(a.ModuleID(), data)
	if err != nil {
		t.Fatalf("decodeRecord() error = %v", err)
	}
	got, err := rec.toArchive(spec)
	if err != nil {
		t.Fatalf("toArchive() error = %v", err)
	}
	if !got.Equal(a) {
		t.Errorf("decoded archive differs: %v", got.Spec())
	}
	if !rec.UpdateTime.Equal(updated) {
		t.Errorf("UpdateTime = %v, want %v", rec.UpdateTime, updated)
	}
	if rec.DeploySpecs["env"] != "prod" || rec.DeploySpecs["replicas"] != int64(3) {
		t.Errorf("DeploySpecs = %#v", rec.DeploySpecs)
	}
	if rec.size() != a.Size() {
		t.Errorf("size() = %d, want %d", rec.size(), a.Size())
	}
}

func TestRecord_MetadataTypes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		value any
	}{
		{"int", 3},
		{"negative int32", int32(-70000)},
		{"uint8", uint8(200)},
		{"float32", float32(1.5)},
		{"strings", []string{"a", "b"}},
		{"ints", []int{1, 300, -2}},
		{"typed map", map[string]int{"cpu": 2}},
		{"nested", map[string]any{"zones": []string{"eu"}, "weight": 0.25}},
		{"time", time.Date(2024, 3, 1, 8, 30, 0, 5, time.FixedZone("X", 3600))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			spec := archive.NewModuleSpecBuilder(archive.MustParseModuleID("acme")).
				AddMetadata("value", tt.value).
				Build()
			a, err := archive.NewScriptArchive(spec, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), nil)
			if err != nil {
				t.Fatal(err)
			}
			data, err := encodeRecord(a, nil, time.Now())
			if err != nil {
				t.Fatalf("encodeRecord() error = %v", err)
			}
			rec, decoded, err := decodeRecord(a.ModuleID(), data)
			if err != nil {
				t.Fatalf("decodeRecord() error = %v", err)
			}
			if !decoded.Equal(spec) {
				t.Errorf("decoded spec differs:\nwant %v\ngot  %v", spec, decoded)
			}
			got, err := rec.toArchive(decoded)
			if err != nil {
				t.Fatalf("toArchive() error = %v", err)
			}
			if !got.Equal(a) {
				t.Error("decoded archive differs from the encoded one")
			}
		})
	}
}

func TestDecodeRecord_Corrupt(t *testing.T) {
	t.Parallel()

	a := testArchive(t, "acme:1")
	valid, err := encodeRecord(a, nil, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	future, err := msgpack.Marshal(&record{Version: 99, Spec: archive.ToDocument(a.Spec())})
	if err != nil {
		t.Fatal(err)
	}
	noSpec, err := msgpack.Marshal(&record{Version: recordFormatVersion})
	if err != nil {
		t.Fatal(err)
	}
	badID, err := msgpack.Marshal(&record{Version: recordFormatVersion, Spec: &archive.SpecDocument{ModuleID: "bad:"}})
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		id   archive.ModuleID
		data []byte
	}{
		{"garbage", a.ModuleID(), []byte{0xc1}},
		{"truncated", a.ModuleID(), valid[:len(valid)/2]},
		{"unknown version", a.ModuleID(), future},
		{"missing spec", a.ModuleID(), noSpec},
		{"malformed module id", a.ModuleID(), badID},
		{"stored under other id", archive.MustParseModuleID("other"), valid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if _, _, err := decodeRecord(tt.id, tt.data); !errors.Is(err, errCorruptRecord) {
				t.Errorf("decodeRecord() error = %v, want errCorruptRecord", err)
			}
		})
	}
}
