// SPDX-License-Identifier: MPL-2.0

package memstore

import (
	"context"
	"errors"
	"testing"

	"github.com/scriptvault/scriptvault/pkg/archive"
	"github.com/scriptvault/scriptvault/pkg/repository"
	"github.com/scriptvault/scriptvault/pkg/repository/repotest"
)

func TestStore_Contract(t *testing.T) {
	t.Parallel()

	repotest.Run(t, func(*testing.T) repository.Store { return New() })
}

func TestStore_CopiesData(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := New()
	id := archive.MustParseModuleID("acme")
	data := []byte("abc")
	if err := s.Put(ctx, id, data); err != nil {
		t.Fatal(err)
	}
	data[0] = 'X'

	got, err := s.GetMany(ctx, []archive.ModuleID{id})
	if err != nil {
		t.Fatal(err)
	}
	if string(got[id]) != "abc" {
		t.Errorf("stored record = %q, want abc", got[id])
	}
}

func TestStore_CanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	repo, err := repository.New("mem", New())
	if err != nil {
		t.Fatal(err)
	}
	err = repo.InsertArchive(ctx, repotest.Archive(t, "acme", "r1"))
	if !errors.Is(err, repository.ErrRepositoryIO) || !errors.Is(err, context.Canceled) {
		t.Errorf("InsertArchive() error = %v, want IO failure wrapping context.Canceled", err)
	}
}
