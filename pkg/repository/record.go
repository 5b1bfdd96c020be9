// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/scriptvault/scriptvault/pkg/archive"
)

const recordFormatVersion = 1

var errCorruptRecord = errors.New("corrupt archive record")

// record is the stored form of an archive. Numbers inside metadata and deploy
// specs come back as int64, uint64 or float64 regardless of their original Go type.
type record struct {
	Version     int                   `msgpack:"v"`
	Spec        *archive.SpecDocument `msgpack:"spec"`
	CreateTime  time.Time             `msgpack:"create_time"`
	UpdateTime  time.Time             `msgpack:"update_time"`
	Entries     map[string][]byte     `msgpack:"entries"`
	DeploySpecs map[string]any        `msgpack:"deploy_specs,omitempty"`
}

func encodeRecord(a *archive.ScriptArchive, deploySpecs map[string]any, updated time.Time) ([]byte, error) {
	r := record{
		Version:     recordFormatVersion,
		Spec:        archive.ToDocument(a.Spec()),
		CreateTime:  a.CreateTime(),
		UpdateTime:  updated,
		Entries:     make(map[string][]byte),
		DeploySpecs: deploySpecs,
	}
	for _, name := range a.EntryNames() {
		r.Entries[name], _ = a.Entry(name)
	}

	data, err := msgpack.Marshal(&r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode archive record: %w", err)
	}
	return data, nil
}

// decodeRecord decodes data stored under id and checks that it describes id.
func decodeRecord(id archive.ModuleID, data []byte) (*record, *archive.ModuleSpec, error) {
	dec := msgpack.NewDecoder(bytes.NewReader(data))
	dec.UseLooseInterfaceDecoding(true)

	var r record
	if err := dec.Decode(&r); err != nil {
		return nil, nil, fmt.Errorf("%w: %w", errCorruptRecord, err)
	}
	if r.Version != recordFormatVersion {
		return nil, nil, fmt.Errorf("%w: unsupported format version %d", errCorruptRecord, r.Version)
	}
	if r.Spec == nil {
		return nil, nil, fmt.Errorf("%w: missing module spec", errCorruptRecord)
	}

	spec, err := r.Spec.ToSpec()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", errCorruptRecord, err)
	}
	if spec.ModuleID() != id {
		return nil, nil, fmt.Errorf("%w: record for %s stored under %s", errCorruptRecord, spec.ModuleID(), id)
	}
	return &r, spec, nil
}

func (r *record) toArchive(spec *archive.ModuleSpec) (*archive.ScriptArchive, error) {
	a, err := archive.NewScriptArchive(spec, r.CreateTime, r.Entries)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errCorruptRecord, err)
	}
	return a, nil
}

func (r *record) size() int64 {
	var n int64
	for _, data := range r.Entries {
		n += int64(len(data))
	}
	return n
}
