// SPDX-License-Identifier: MPL-2.0

// Package repotest provides a conformance suite for repository.Store
// implementations. Every backend runs the same suite so that they behave
// identically behind a StoreRepository.
package repotest

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/scriptvault/scriptvault/internal/testutil"
	"github.com/scriptvault/scriptvault/pkg/archive"
	"github.com/scriptvault/scriptvault/pkg/repository"
)

// StoreFactory returns a new, empty store. It is called once per subtest and is
// responsible for registering any cleanup with t.
type StoreFactory func(t *testing.T) repository.Store

// Archive builds a test archive for id whose entries and metadata carry rev.
func Archive(t testing.TB, id string, rev string) *archive.ScriptArchive {
	t.Helper()

	b, err := archive.NewModuleSpecBuilderFromString(id)
	if err != nil {
		t.Fatalf("invalid test module id %q: %v", id, err)
	}
	spec := b.AddMetadata("rev", rev).
		AddMetadata("replicas", 3).
		AddMetadata("owners", []string{"team-a", "team-b"}).
		AddCompilerPluginID("groovy-plugin").
		AddModuleImportFilter("com/acme/*").
		Build()

	a, err := archive.NewScriptArchive(spec, time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC), map[string][]byte{
		"Main.groovy":     fmt.Appendf(nil, "println '%s'", rev),
		"lib/util.groovy": fmt.Appendf(nil, "def rev() { '%s' }", rev),
	})
	if err != nil {
		t.Fatalf("NewScriptArchive() error = %v", err)
	}
	return a
}

// Run executes the conformance suite against the stores created by newStore.
func Run(t *testing.T, newStore StoreFactory) {
	t.Helper()

	t.Run("StoreBasics", func(t *testing.T) { testStoreBasics(t, newStore(t)) })
	t.Run("RoundTrip", func(t *testing.T) { testRoundTrip(t, newRepo(t, newStore)) })
	t.Run("Replace", func(t *testing.T) { testReplace(t, newRepo(t, newStore)) })
	t.Run("Delete", func(t *testing.T) { testDelete(t, newRepo(t, newStore)) })
	t.Run("PartialFetch", func(t *testing.T) { testPartialFetch(t, newRepo(t, newStore)) })
	t.Run("UnsupportedView", func(t *testing.T) { testUnsupportedView(t, newRepo(t, newStore)) })
	t.Run("NamedViews", func(t *testing.T) { testNamedViews(t, newStore(t)) })
	t.Run("DeploySpecs", func(t *testing.T) { testDeploySpecs(t, newStore(t)) })
	t.Run("UpdateTimes", func(t *testing.T) { testUpdateTimes(t, newStore(t)) })
	t.Run("SpecialCharacterIDs", func(t *testing.T) { testSpecialCharacterIDs(t, newRepo(t, newStore)) })
	t.Run("ConcurrentReplace", func(t *testing.T) { testConcurrentReplace(t, newRepo(t, newStore)) })
}

func newRepo(t *testing.T, newStore StoreFactory, opts ...repository.Option) *repository.StoreRepository {
	t.Helper()
	repo, err := repository.New("contract", newStore(t), opts...)
	if err != nil {
		t.Fatalf("repository.New() error = %v", err)
	}
	return repo
}

func getOne(t *testing.T, repo repository.ArchiveRepository, id archive.ModuleID) *archive.ScriptArchive {
	t.Helper()
	got, err := repo.GetScriptArchives(context.Background(), []archive.ModuleID{id})
	if err != nil {
		t.Fatalf("GetScriptArchives(%s) error = %v", id, err)
	}
	switch len(got) {
	case 0:
		return nil
	case 1:
		return got[0]
	default:
		t.Fatalf("GetScriptArchives(%s) returned %d archives", id, len(got))
		return nil
	}
}

func testStoreBasics(t *testing.T, store repository.Store) {
	ctx := context.Background()
	a := archive.MustParseModuleID("acme:1.0")
	b := archive.MustParseModuleID("acme:base:2")

	if keys, err := store.Keys(ctx); err != nil || len(keys) != 0 {
		t.Fatalf("Keys() on empty store = %v, %v", keys, err)
	}
	if err := store.Put(ctx, a, []byte("first")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	if err := store.Put(ctx, a, []byte("second")); err != nil {
		t.Fatalf("Put() replace error = %v", err)
	}
	if err := store.Put(ctx, b, []byte("other")); err != nil {
		t.Fatalf("Put() error = %v", err)
	}

	got, err := store.GetMany(ctx, []archive.ModuleID{a, archive.MustParseModuleID("missing"), b})
	if err != nil {
		t.Fatalf("GetMany() error = %v", err)
	}
	if len(got) != 2 || string(got[a]) != "second" || string(got[b]) != "other" {
		t.Errorf("GetMany() = %q", got)
	}

	keys, err := store.Keys(ctx)
	if err != nil {
		t.Fatalf("Keys() error = %v", err)
	}
	slices.SortFunc(keys, func(x, y archive.ModuleID) int {
		return cmp.Compare(x.String(), y.String())
	})
	if !slices.Equal(keys, []archive.ModuleID{a, b}) {
		t.Errorf("Keys() = %v, want [%s %s]", keys, a, b)
	}

	if err := store.Delete(ctx, a); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if err := store.Delete(ctx, a); err != nil {
		t.Fatalf("Delete() of absent id error = %v", err)
	}
	if got, err := store.GetMany(ctx, []archive.ModuleID{a}); err != nil || len(got) != 0 {
		t.Errorf("GetMany() after Delete = %q, %v", got, err)
	}
}

func testRoundTrip(t *testing.T, repo *repository.StoreRepository) {
	ctx := context.Background()
	a := Archive(t, "acme:util", "r1")

	if err := repo.InsertArchive(ctx, a); err != nil {
		t.Fatalf("InsertArchive() error = %v", err)
	}
	got := getOne(t, repo, a.ModuleID())
	if got == nil {
		t.Fatal("inserted archive not found")
	}
	if !got.Equal(a) {
		t.Errorf("fetched archive differs:\nwant %v %v\ngot  %v %v", a.Spec(), a.EntryNames(), got.Spec(), got.EntryNames())
	}
	if !slices.Equal(got.Spec().ImportFilterPaths(), a.Spec().ImportFilterPaths()) {
		t.Errorf("import filters = %v, want %v", got.Spec().ImportFilterPaths(), a.Spec().ImportFilterPaths())
	}
}

func testReplace(t *testing.T, repo *repository.StoreRepository) {
	ctx := context.Background()
	first := Archive(t, "acme", "r1")
	second := Archive(t, "acme", "r2")

	if err := repo.InsertArchive(ctx, first); err != nil {
		t.Fatalf("InsertArchive() error = %v", err)
	}
	if err := repo.InsertArchive(ctx, second); err != nil {
		t.Fatalf("InsertArchive() replace error = %v", err)
	}
	if got := getOne(t, repo, second.ModuleID()); got == nil || !got.Equal(second) {
		t.Errorf("replaced archive = %v, want r2", got)
	}

	summaries, err := repo.DefaultView().ArchiveSummaries(ctx)
	if err != nil {
		t.Fatalf("ArchiveSummaries() error = %v", err)
	}
	if len(summaries) != 1 {
		t.Errorf("ArchiveSummaries() returned %d archives, want 1", len(summaries))
	}
}

func testDelete(t *testing.T, repo *repository.StoreRepository) {
	ctx := context.Background()
	a := Archive(t, "acme:1", "r1")

	if err := repo.InsertArchive(ctx, a); err != nil {
		t.Fatalf("InsertArchive() error = %v", err)
	}
	if err := repo.DeleteArchive(ctx, a.ModuleID()); err != nil {
		t.Fatalf("DeleteArchive() error = %v", err)
	}
	if got := getOne(t, repo, a.ModuleID()); got != nil {
		t.Errorf("deleted archive still returned: %v", got.Spec())
	}
	if err := repo.DeleteArchive(ctx, a.ModuleID()); err != nil {
		t.Errorf("DeleteArchive() of absent id error = %v", err)
	}

	summary, err := repo.DefaultView().RepositorySummary(ctx)
	if err != nil {
		t.Fatalf("RepositorySummary() error = %v", err)
	}
	if summary.ArchiveCount != 0 || !summary.LastUpdated.IsZero() {
		t.Errorf("RepositorySummary() = %+v, want empty", summary)
	}

	// Re-inserting after a delete makes the id present again.
	if err := repo.InsertArchive(ctx, a); err != nil {
		t.Fatalf("InsertArchive() after delete error = %v", err)
	}
	if getOne(t, repo, a.ModuleID()) == nil {
		t.Error("re-inserted archive not found")
	}
}

func testPartialFetch(t *testing.T, repo *repository.StoreRepository) {
	ctx := context.Background()
	a := Archive(t, "alpha", "r1")
	b := Archive(t, "beta:2", "r1")
	for _, arc := range []*archive.ScriptArchive{a, b} {
		if err := repo.InsertArchive(ctx, arc); err != nil {
			t.Fatalf("InsertArchive() error = %v", err)
		}
	}

	ids := []archive.ModuleID{
		b.ModuleID(),
		archive.MustParseModuleID("missing:1"),
		a.ModuleID(),
		b.ModuleID(),
	}
	got, err := repo.GetScriptArchives(ctx, ids)
	if err != nil {
		t.Fatalf("GetScriptArchives() error = %v", err)
	}
	if len(got) != 2 || got[0].ModuleID() != b.ModuleID() || got[1].ModuleID() != a.ModuleID() {
		names := make([]string, 0, len(got))
		for _, g := range got {
			names = append(names, g.ModuleID().String())
		}
		t.Errorf("GetScriptArchives() = %v, want [beta:2 alpha]", names)
	}

	if got, err := repo.GetScriptArchives(ctx, nil); err != nil || len(got) != 0 {
		t.Errorf("GetScriptArchives(nil) = %v, %v", got, err)
	}
	if _, err := repo.GetScriptArchives(ctx, []archive.ModuleID{{}}); !errors.Is(err, archive.ErrInvalidModuleID) {
		t.Errorf("GetScriptArchives(zero id) error = %v, want ErrInvalidModuleID", err)
	}
}

func testUnsupportedView(t *testing.T, repo *repository.StoreRepository) {
	for _, name := range []string{"", repository.DefaultViewName} {
		v, err := repo.View(name)
		if err != nil || v == nil {
			t.Fatalf("View(%q) = %v, %v", name, v, err)
		}
		if v.Name() != repository.DefaultViewName {
			t.Errorf("View(%q).Name() = %q", name, v.Name())
		}
	}

	v, err := repo.View("staging")
	if !errors.Is(err, repository.ErrUnsupportedView) {
		t.Fatalf("View(staging) error = %v, want ErrUnsupportedView", err)
	}
	if v != nil {
		t.Errorf("View(staging) returned a view alongside the error: %v", v)
	}
	var viewErr *repository.UnsupportedViewError
	if !errors.As(err, &viewErr) || viewErr.ViewName != "staging" {
		t.Errorf("error = %#v, want *UnsupportedViewError for staging", err)
	}
}

func testNamedViews(t *testing.T, store repository.Store) {
	ctx := context.Background()
	repo, err := repository.New("views", store,
		repository.WithViews("r2", repository.MetadataViewFilter("rev", "r2")),
		repository.WithViews("acme", repository.NamePrefixViewFilter("acme")),
	)
	if err != nil {
		t.Fatalf("repository.New() error = %v", err)
	}

	for _, arc := range []*archive.ScriptArchive{
		Archive(t, "acme:util", "r1"),
		Archive(t, "acme-tools", "r2"),
		Archive(t, "billing", "r2"),
	} {
		if err := repo.InsertArchive(ctx, arc); err != nil {
			t.Fatalf("InsertArchive() error = %v", err)
		}
	}

	tests := []struct {
		view string
		want []string
	}{
		{repository.DefaultViewName, []string{"acme:util", "acme-tools", "billing"}},
		{"r2", []string{"acme-tools", "billing"}},
		{"acme", []string{"acme:util", "acme-tools"}},
	}
	for _, tt := range tests {
		v, err := repo.View(tt.view)
		if err != nil {
			t.Fatalf("View(%q) error = %v", tt.view, err)
		}
		summaries, err := v.ArchiveSummaries(ctx)
		if err != nil {
			t.Fatalf("%s: ArchiveSummaries() error = %v", tt.view, err)
		}
		got := make([]string, 0, len(summaries))
		for _, s := range summaries {
			got = append(got, s.ModuleID.String())
		}
		if !slices.Equal(got, tt.want) {
			t.Errorf("%s: ArchiveSummaries() = %v, want %v", tt.view, got, tt.want)
		}

		summary, err := v.RepositorySummary(ctx)
		if err != nil {
			t.Fatalf("%s: RepositorySummary() error = %v", tt.view, err)
		}
		if summary.ArchiveCount != len(tt.want) || summary.ViewName != tt.view {
			t.Errorf("%s: RepositorySummary() = %+v", tt.view, summary)
		}
	}
}

func testDeploySpecs(t *testing.T, store repository.Store) {
	ctx := context.Background()

	plain, err := repository.New("plain", store)
	if err != nil {
		t.Fatalf("repository.New() error = %v", err)
	}
	a := Archive(t, "deployable:1", "r1")
	err = plain.InsertArchiveWithDeploySpecs(ctx, a, map[string]any{"env": "prod"})
	if !errors.Is(err, repository.ErrUnsupportedFeature) {
		t.Fatalf("InsertArchiveWithDeploySpecs() error = %v, want ErrUnsupportedFeature", err)
	}
	if got := getOne(t, plain, a.ModuleID()); got != nil {
		t.Fatal("unsupported deploy-spec insert must not store the archive")
	}

	capable, err := repository.New("capable", store, repository.WithDeploySpecs())
	if err != nil {
		t.Fatalf("repository.New() error = %v", err)
	}
	deploySpecs := map[string]any{"env": "prod", "replicas": "3"}
	if err := capable.InsertArchiveWithDeploySpecs(ctx, a, deploySpecs); err != nil {
		t.Fatalf("InsertArchiveWithDeploySpecs() error = %v", err)
	}
	deploySpecs["env"] = "mutated"

	summaries, err := capable.DefaultView().ArchiveSummaries(ctx)
	if err != nil {
		t.Fatalf("ArchiveSummaries() error = %v", err)
	}
	if len(summaries) != 1 {
		t.Fatalf("ArchiveSummaries() returned %d archives, want 1", len(summaries))
	}
	if env := summaries[0].DeploySpecs["env"]; env != "prod" {
		t.Errorf("deploy spec env = %v, want prod", env)
	}
	if summaries[0].EntryCount != 2 || summaries[0].Size != a.Size() {
		t.Errorf("summary entries = %d, size = %d", summaries[0].EntryCount, summaries[0].Size)
	}

	// A plain insert replaces the record, deploy specs included.
	if err := capable.InsertArchive(ctx, a); err != nil {
		t.Fatalf("InsertArchive() error = %v", err)
	}
	summaries, err = capable.DefaultView().ArchiveSummaries(ctx)
	if err != nil {
		t.Fatalf("ArchiveSummaries() error = %v", err)
	}
	if len(summaries) != 1 || len(summaries[0].DeploySpecs) != 0 {
		t.Errorf("deploy specs after plain insert = %v", summaries[0].DeploySpecs)
	}
}

func testUpdateTimes(t *testing.T, store repository.Store) {
	ctx := context.Background()
	clock := testutil.NewFakeClock(time.Date(2025, 1, 1, 0, 1, 0, 0, time.UTC), time.Minute)

	repo, err := repository.New("clocked", store, repository.WithClock(clock.Now), repository.WithDescription("clocked repo"))
	if err != nil {
		t.Fatalf("repository.New() error = %v", err)
	}
	a := Archive(t, "first", "r1")
	b := Archive(t, "second", "r1")
	for _, arc := range []*archive.ScriptArchive{a, b} {
		if err := repo.InsertArchive(ctx, arc); err != nil {
			t.Fatalf("InsertArchive() error = %v", err)
		}
	}

	times, err := repo.DefaultView().ArchiveUpdateTimes(ctx)
	if err != nil {
		t.Fatalf("ArchiveUpdateTimes() error = %v", err)
	}
	wantA := time.Date(2025, 1, 1, 0, 1, 0, 0, time.UTC)
	wantB := time.Date(2025, 1, 1, 0, 2, 0, 0, time.UTC)
	if len(times) != 2 || !times[a.ModuleID()].Equal(wantA) || !times[b.ModuleID()].Equal(wantB) {
		t.Errorf("ArchiveUpdateTimes() = %v", times)
	}

	summary, err := repo.DefaultView().RepositorySummary(ctx)
	if err != nil {
		t.Fatalf("RepositorySummary() error = %v", err)
	}
	if summary.RepositoryID != "clocked" || summary.Description != "clocked repo" ||
		summary.ArchiveCount != 2 || !summary.LastUpdated.Equal(wantB) {
		t.Errorf("RepositorySummary() = %+v", summary)
	}
}

func testSpecialCharacterIDs(t *testing.T, repo *repository.StoreRepository) {
	ctx := context.Background()
	for _, id := range []string{"com.acme/tools:1.0", "a%2Fb:2", "ünïcode:3", "acme:base:1.0"} {
		a := Archive(t, id, "r1")
		if err := repo.InsertArchive(ctx, a); err != nil {
			t.Fatalf("InsertArchive(%s) error = %v", id, err)
		}
		if got := getOne(t, repo, a.ModuleID()); got == nil || !got.Equal(a) {
			t.Errorf("round trip of %s failed", id)
		}
	}

	times, err := repo.DefaultView().ArchiveUpdateTimes(ctx)
	if err != nil {
		t.Fatalf("ArchiveUpdateTimes() error = %v", err)
	}
	if len(times) != 4 {
		t.Errorf("ArchiveUpdateTimes() returned %d ids, want 4: %v", len(times), times)
	}
}

func testConcurrentReplace(t *testing.T, repo *repository.StoreRepository) {
	ctx := context.Background()
	revisions := []*archive.ScriptArchive{
		Archive(t, "contended", "r1"),
		Archive(t, "contended", "r2"),
	}
	if err := repo.InsertArchive(ctx, revisions[0]); err != nil {
		t.Fatalf("InsertArchive() error = %v", err)
	}

	const workers, rounds = 4, 10
	var wg sync.WaitGroup
	for w := range workers {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for i := range rounds {
				if err := repo.InsertArchive(ctx, revisions[(w+i)%2]); err != nil {
					t.Errorf("InsertArchive() error = %v", err)
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for range rounds {
				got, err := repo.GetScriptArchives(ctx, []archive.ModuleID{revisions[0].ModuleID()})
				if err != nil {
					t.Errorf("GetScriptArchives() error = %v", err)
					return
				}
				if len(got) != 1 || (!got[0].Equal(revisions[0]) && !got[0].Equal(revisions[1])) {
					t.Errorf("observed a record that is neither revision")
					return
				}
			}
		}()
	}
	wg.Wait()
}
