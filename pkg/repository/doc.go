// SPDX-License-Identifier: MPL-2.0

// Package repository defines durable storage for script archives.
//
// An ArchiveRepository stores archives keyed by module id and exposes one or
// more RepositoryViews over the same backing data: the unfiltered default view
// and optional named views selected by a ViewFilter. Inserting an archive
// atomically replaces any archive stored under the same id; readers observe
// either the complete old record or the complete new one.
//
// StoreRepository implements the contract over any Store, a minimal byte-record
// backend. The subpackages provide stores for memory, the local filesystem,
// BadgerDB, Redis, SQL databases and S3-compatible object storage.
//
// Errors are typed: a backend fault surfaces as an *IOError (matching
// ErrRepositoryIO), an unknown view as an *UnsupportedViewError and a missing
// capability as an *UnsupportedFeatureError. Faults are never retried.
package repository
