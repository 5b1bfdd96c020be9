// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"context"
	"time"

	"github.com/scriptvault/scriptvault/pkg/archive"
)

// DefaultViewName names the unfiltered view every repository exposes.
const DefaultViewName = "default"

type (
	// ArchiveRepository stores script archives keyed by module id.
	//
	// Implementations are safe for concurrent use. Each insert or delete is
	// atomic with respect to concurrent readers of the same id; no ordering is
	// defined across different ids.
	ArchiveRepository interface {
		// RepositoryID returns the identifier of this repository.
		RepositoryID() string

		// DefaultView returns the unfiltered view. It is never nil.
		DefaultView() RepositoryView

		// View returns the named view. The empty name and DefaultViewName select
		// the default view; any other unknown name yields an *UnsupportedViewError.
		View(name string) (RepositoryView, error)

		// InsertArchive stores a, replacing any archive with the same module id.
		InsertArchive(ctx context.Context, a *archive.ScriptArchive) error

		// InsertArchiveWithDeploySpecs stores a together with its deploy specs in a
		// single atomic write. Repositories without the capability return an
		// *UnsupportedFeatureError and store nothing.
		InsertArchiveWithDeploySpecs(ctx context.Context, a *archive.ScriptArchive, deploySpecs map[string]any) error

		// GetScriptArchives returns the stored archives for ids in request order.
		// Ids with no stored archive are omitted; duplicates are returned once.
		GetScriptArchives(ctx context.Context, ids []archive.ModuleID) ([]*archive.ScriptArchive, error)

		// DeleteArchive removes the archive stored under id. Deleting an absent
		// id is a no-op.
		DeleteArchive(ctx context.Context, id archive.ModuleID) error
	}

	// RepositoryView is a read-only, possibly filtered, projection of a repository.
	RepositoryView interface {
		// Name returns the view name; the default view is named DefaultViewName.
		Name() string

		// ArchiveUpdateTimes returns the last update time of every archive in the view.
		ArchiveUpdateTimes(ctx context.Context) (map[archive.ModuleID]time.Time, error)

		// RepositorySummary returns aggregate information about the view.
		RepositorySummary(ctx context.Context) (*RepositorySummary, error)

		// ArchiveSummaries returns one summary per archive, ordered by module id.
		ArchiveSummaries(ctx context.Context) ([]ArchiveSummary, error)
	}

	// ArchiveSummary describes a stored archive without its entries.
	ArchiveSummary struct {
		ModuleID       archive.ModuleID
		Spec           *archive.ModuleSpec
		LastUpdateTime time.Time
		// EntryCount is the number of entries in the archive.
		EntryCount int
		// Size is the total size of the archive's entries in bytes.
		Size        int64
		DeploySpecs map[string]any
	}

	// RepositorySummary aggregates the archives visible through a view.
	RepositorySummary struct {
		RepositoryID string
		ViewName     string
		Description  string
		ArchiveCount int
		// LastUpdated is the newest archive update time, zero for an empty view.
		LastUpdated time.Time
	}
)
