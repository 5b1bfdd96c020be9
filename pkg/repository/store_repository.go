// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/charmbracelet/log"

	"github.com/scriptvault/scriptvault/pkg/archive"
)

// FeatureDeploySpecs names the deploy-spec capability in UnsupportedFeatureError.
const FeatureDeploySpecs = "deploy specs"

var (
	// ErrInvalidRepository is returned by New for an unusable configuration.
	ErrInvalidRepository = errors.New("invalid repository configuration")

	_ ArchiveRepository = (*StoreRepository)(nil)
	_ RepositoryView    = (*storeView)(nil)
)

type (
	// StoreRepository implements ArchiveRepository over a Store. Archives are
	// encoded as single records so every write is one atomic Store.Put.
	StoreRepository struct {
		id          string
		description string
		store       Store
		deploySpecs bool
		logger      *log.Logger
		now         func() time.Time

		defaultView *storeView
		views       map[string]*storeView
	}

	// Option configures a StoreRepository.
	Option func(*StoreRepository)

	storeView struct {
		repo   *StoreRepository
		name   string
		filter ViewFilter
	}

	// entry is a decoded record together with its spec.
	entry struct {
		id     archive.ModuleID
		spec   *archive.ModuleSpec
		record *record
	}
)

// New returns a repository named id that stores archives in store.
func New(id string, store Store, opts ...Option) (*StoreRepository, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: repository id must not be empty", ErrInvalidRepository)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidRepository)
	}

	r := &StoreRepository{
		id:     id,
		store:  store,
		logger: log.New(io.Discard),
		now:    time.Now,
		views:  make(map[string]*storeView),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.defaultView = &storeView{repo: r, name: DefaultViewName}

	for name, v := range r.views {
		if name == "" || name == DefaultViewName {
			return nil, fmt.Errorf("%w: view name %q is reserved", ErrInvalidRepository, name)
		}
		if v.filter == nil {
			return nil, fmt.Errorf("%w: view %q has no filter", ErrInvalidRepository, name)
		}
		v.repo = r
	}
	return r, nil
}

// WithViews adds a named view that shows the archives accepted by filter.
func WithViews(name string, filter ViewFilter) Option {
	return func(r *StoreRepository) {
		r.views[name] = &storeView{name: name, filter: filter}
	}
}

// WithDeploySpecs enables InsertArchiveWithDeploySpecs.
func WithDeploySpecs() Option {
	return func(r *StoreRepository) { r.deploySpecs = true }
}

// WithDescription sets the description reported in repository summaries.
func WithDescription(description string) Option {
	return func(r *StoreRepository) { r.description = description }
}

// WithLogger sets the logger for insert and delete events. The default discards.
func WithLogger(logger *log.Logger) Option {
	return func(r *StoreRepository) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithClock sets the source of archive update times.
func WithClock(now func() time.Time) Option {
	return func(r *StoreRepository) {
		if now != nil {
			r.now = now
		}
	}
}

// RepositoryID returns the identifier of this repository.
func (r *StoreRepository) RepositoryID() string { return r.id }

// DefaultView returns the unfiltered view.
func (r *StoreRepository) DefaultView() RepositoryView { return r.defaultView }

// View returns the named view, or an *UnsupportedViewError.
func (r *StoreRepository) View(name string) (RepositoryView, error) {
	if name == "" || name == DefaultViewName {
		return r.defaultView, nil
	}
	if v, ok := r.views[name]; ok {
		return v, nil
	}
	return nil, &UnsupportedViewError{RepositoryID: r.id, ViewName: name}
}

// ViewNames returns the names of all views, default view first.
func (r *StoreRepository) ViewNames() []string {
	return append([]string{DefaultViewName}, slices.Sorted(maps.Keys(r.views))...)
}

// SupportsDeploySpecs reports whether InsertArchiveWithDeploySpecs is available.
func (r *StoreRepository) SupportsDeploySpecs() bool { return r.deploySpecs }

// InsertArchive stores a, replacing any archive with the same module id. Deploy
// specs previously stored for the id are dropped.
func (r *StoreRepository) InsertArchive(ctx context.Context, a *archive.ScriptArchive) error {
	return r.insert(ctx, a, nil)
}

// InsertArchiveWithDeploySpecs stores a and deploySpecs in one record.
func (r *StoreRepository) InsertArchiveWithDeploySpecs(ctx context.Context, a *archive.ScriptArchive, deploySpecs map[string]any) error {
	if !r.deploySpecs {
		return &UnsupportedFeatureError{RepositoryID: r.id, Feature: FeatureDeploySpecs}
	}
	return r.insert(ctx, a, deploySpecs)
}

func (r *StoreRepository) insert(ctx context.Context, a *archive.ScriptArchive, deploySpecs map[string]any) error {
	if a == nil {
		return fmt.Errorf("%w: archive is required", archive.ErrInvalidArchive)
	}
	id := a.ModuleID()

	data, err := encodeRecord(a, deploySpecs, r.now())
	if err != nil {
		return err
	}
	if err := r.store.Put(ctx, id, data); err != nil {
		return NewIOError(OpInsert, r.id, id, err)
	}

	r.logger.Debug("archive inserted", "repository", r.id, "module", id.String(), "entries", len(a.EntryNames()), "deploy_specs", deploySpecs != nil)
	return nil
}

// GetScriptArchives returns the stored archives for ids in request order,
// omitting ids that have no archive. A malformed id fails the whole call.
func (r *StoreRepository) GetScriptArchives(ctx context.Context, ids []archive.ModuleID) ([]*archive.ScriptArchive, error) {
	unique := make([]archive.ModuleID, 0, len(ids))
	seen := make(map[archive.ModuleID]struct{}, len(ids))
	for _, id := range ids {
		if err := id.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	if len(unique) == 0 {
		return []*archive.ScriptArchive{}, nil
	}

	entries, err := r.load(ctx, OpGet, unique)
	if err != nil {
		return nil, err
	}

	result := make([]*archive.ScriptArchive, 0, len(entries))
	for _, e := range entries {
		a, err := e.record.toArchive(e.spec)
		if err != nil {
			return nil, NewIOError(OpGet, r.id, e.id, err)
		}
		result = append(result, a)
	}
	return result, nil
}

// DeleteArchive removes the archive stored under id.
func (r *StoreRepository) DeleteArchive(ctx context.Context, id archive.ModuleID) error {
	if err := id.Validate(); err != nil {
		return err
	}
	if err := r.store.Delete(ctx, id); err != nil {
		return NewIOError(OpDelete, r.id, id, err)
	}

	r.logger.Debug("archive deleted", "repository", r.id, "module", id.String())
	return nil
}

// Close closes the underlying store.
func (r *StoreRepository) Close() error {
	return NewIOError(OpClose, r.id, archive.ModuleID{}, r.store.Close())
}

// load fetches and decodes the records for ids, keeping the order of ids.
func (r *StoreRepository) load(ctx context.Context, op string, ids []archive.ModuleID) ([]entry, error) {
	raw, err := r.store.GetMany(ctx, ids)
	if err != nil {
		return nil, NewIOError(op, r.id, archive.ModuleID{}, err)
	}

	entries := make([]entry, 0, len(raw))
	for _, id := range ids {
		data, ok := raw[id]
		if !ok {
			continue
		}
		rec, spec, err := decodeRecord(id, data)
		if err != nil {
			return nil, NewIOError(op, r.id, id, err)
		}
		entries = append(entries, entry{id: id, spec: spec, record: rec})
	}
	return entries, nil
}

// loadAll decodes every stored record, ordered by module id.
func (r *StoreRepository) loadAll(ctx context.Context) ([]entry, error) {
	keys, err := r.store.Keys(ctx)
	if err != nil {
		return nil, NewIOError(OpList, r.id, archive.ModuleID{}, err)
	}
	if len(keys) == 0 {
		return nil, nil
	}
	slices.SortFunc(keys, compareModuleIDs)
	// Records deleted between Keys and GetMany are omitted by the store.
	return r.load(ctx, OpList, keys)
}

func compareModuleIDs(a, b archive.ModuleID) int {
	return cmp.Or(cmp.Compare(a.Name(), b.Name()), cmp.Compare(a.Version(), b.Version()))
}

// Name returns the view name.
func (v *storeView) Name() string { return v.name }

// ArchiveUpdateTimes returns the last update time of every archive in the view.
func (v *storeView) ArchiveUpdateTimes(ctx context.Context) (map[archive.ModuleID]time.Time, error) {
	entries, err := v.entries(ctx)
	if err != nil {
		return nil, err
	}
	times := make(map[archive.ModuleID]time.Time, len(entries))
	for _, e := range entries {
		times[e.id] = e.record.UpdateTime
	}
	return times, nil
}

// RepositorySummary returns aggregate information about the view.
func (v *storeView) RepositorySummary(ctx context.Context) (*RepositorySummary, error) {
	entries, err := v.entries(ctx)
	if err != nil {
		return nil, err
	}
	summary := &RepositorySummary{
		RepositoryID: v.repo.id,
		ViewName:     v.name,
		Description:  v.repo.description,
		ArchiveCount: len(entries),
	}
	for _, e := range entries {
		if e.record.UpdateTime.After(summary.LastUpdated) {
			summary.LastUpdated = e.record.UpdateTime
		}
	}
	return summary, nil
}

// ArchiveSummaries returns one summary per archive in the view, ordered by module id.
func (v *storeView) ArchiveSummaries(ctx context.Context) ([]ArchiveSummary, error) {
	entries, err := v.entries(ctx)
	if err != nil {
		return nil, err
	}
	summaries := make([]ArchiveSummary, 0, len(entries))
	for _, e := range entries {
		summaries = append(summaries, ArchiveSummary{
			ModuleID:       e.id,
			Spec:           e.spec,
			LastUpdateTime: e.record.UpdateTime,
			EntryCount:     len(e.record.Entries),
			Size:           e.record.size(),
			DeploySpecs:    e.record.DeploySpecs,
		})
	}
	return summaries, nil
}

func (v *storeView) entries(ctx context.Context) ([]entry, error) {
	all, err := v.repo.loadAll(ctx)
	if err != nil || v.filter == nil {
		return all, err
	}
	return slices.DeleteFunc(all, func(e entry) bool { return !v.filter(e.id, e.spec) }), nil
}
