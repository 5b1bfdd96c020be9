// SPDX-License-Identifier: MPL-2.0

package redisstore

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/scriptvault/scriptvault/pkg/archive"
	"github.com/scriptvault/scriptvault/pkg/repository"
	"github.com/scriptvault/scriptvault/pkg/repository/repotest"
)

func setupMiniredis(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run() error = %v", err)
	}
	t.Cleanup(mr.Close)

	s := NewWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:")
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStore_Contract(t *testing.T) {
	t.Parallel()

	repotest.Run(t, func(t *testing.T) repository.Store {
		s, _ := setupMiniredis(t)
		return s
	})
}

func TestStore_KeyLayout(t *testing.T) {
	t.Parallel()

	s, mr := setupMiniredis(t)
	id := archive.MustParseModuleID("acme:base:1.0")
	if err := s.Put(context.Background(), id, []byte("data")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := mr.Get("test:archive:acme:base:1.0")
	if err != nil || got != "data" {
		t.Errorf("record key = %q, %v", got, err)
	}
	members, err := mr.Members("test:index")
	if err != nil || len(members) != 1 || members[0] != "acme:base:1.0" {
		t.Errorf("index members = %v, %v", members, err)
	}

	if err := s.Delete(context.Background(), id); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if mr.Exists("test:archive:acme:base:1.0") {
		t.Error("record key should be removed")
	}
}

func TestStore_ServerFailureIsIOFailure(t *testing.T) {
	t.Parallel()

	s, mr := setupMiniredis(t)
	repo, err := repository.New("redis", s)
	if err != nil {
		t.Fatal(err)
	}
	mr.SetError("READONLY simulated failure")

	_, err = repo.GetScriptArchives(context.Background(), []archive.ModuleID{archive.MustParseModuleID("acme")})
	if !errors.Is(err, repository.ErrRepositoryIO) {
		t.Errorf("GetScriptArchives() error = %v, want ErrRepositoryIO", err)
	}
	if err := repo.DeleteArchive(context.Background(), archive.MustParseModuleID("acme")); !errors.Is(err, repository.ErrRepositoryIO) {
		t.Errorf("DeleteArchive() error = %v, want ErrRepositoryIO", err)
	}
}

func TestStore_CorruptIndex(t *testing.T) {
	t.Parallel()

	s, mr := setupMiniredis(t)
	if _, err := mr.SAdd("test:index", "bad:"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Keys(context.Background()); err == nil {
		t.Error("Keys() should reject a malformed index entry")
	}
}

func TestOpen(t *testing.T) {
	t.Parallel()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatal(err)
	}
	defer mr.Close()

	s, err := Open(context.Background(), Config{Addr: mr.Addr()})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = s.Close() }()
	if s.prefix != DefaultPrefix {
		t.Errorf("prefix = %q, want %q", s.prefix, DefaultPrefix)
	}

	if _, err := Open(context.Background(), Config{Addr: "localhost:99999"}); err == nil {
		t.Error("Open() with an invalid address should fail")
	}
}
