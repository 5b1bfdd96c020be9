// SPDX-License-Identifier: MPL-2.0

package repository

import (
	"errors"
	"fmt"

	"github.com/scriptvault/scriptvault/pkg/archive"
)

// Operation names carried by IOError.
const (
	OpInsert = "insert"
	OpGet    = "get"
	OpDelete = "delete"
	OpList   = "list"
	OpClose  = "close"
)

var (
	// ErrRepositoryIO is the sentinel error matched by every IOError.
	ErrRepositoryIO = errors.New("repository I/O failure")

	// ErrUnsupportedView is the sentinel error wrapped by UnsupportedViewError.
	ErrUnsupportedView = errors.New("unsupported repository view")

	// ErrUnsupportedFeature is the sentinel error wrapped by UnsupportedFeatureError.
	ErrUnsupportedFeature = errors.New("unsupported repository feature")
)

type (
	// IOError reports a failure of the underlying storage. It matches
	// ErrRepositoryIO and also unwraps to the backend error, so callers can
	// inspect driver-specific causes.
	IOError struct {
		Op           string
		RepositoryID string
		// ModuleID is zero for operations that span the whole repository.
		ModuleID archive.ModuleID
		Err      error
	}

	// UnsupportedViewError is returned by View for names the repository does not expose.
	UnsupportedViewError struct {
		RepositoryID string
		ViewName     string
	}

	// UnsupportedFeatureError is returned when an optional capability is not
	// available on the repository.
	UnsupportedFeatureError struct {
		RepositoryID string
		Feature      string
	}
)

// NewIOError wraps err as an IOError. It returns nil when err is nil and returns
// err unchanged when it already is an IOError.
func NewIOError(op, repositoryID string, id archive.ModuleID, err error) error {
	if err == nil {
		return nil
	}
	var ioErr *IOError
	if errors.As(err, &ioErr) {
		return err
	}
	return &IOError{Op: op, RepositoryID: repositoryID, ModuleID: id, Err: err}
}

// Error implements the error interface.
func (e *IOError) Error() string {
	if e.ModuleID.IsZero() {
		return fmt.Sprintf("repository %q: %s failed: %v", e.RepositoryID, e.Op, e.Err)
	}
	return fmt.Sprintf("repository %q: %s %s failed: %v", e.RepositoryID, e.Op, e.ModuleID, e.Err)
}

// Unwrap returns both ErrRepositoryIO and the backend error.
func (e *IOError) Unwrap() []error { return []error{ErrRepositoryIO, e.Err} }

// Error implements the error interface.
func (e *UnsupportedViewError) Error() string {
	return fmt.Sprintf("repository %q has no view named %q", e.RepositoryID, e.ViewName)
}

// Unwrap returns ErrUnsupportedView for errors.Is() compatibility.
func (e *UnsupportedViewError) Unwrap() error { return ErrUnsupportedView }

// Error implements the error interface.
func (e *UnsupportedFeatureError) Error() string {
	return fmt.Sprintf("repository %q does not support %s", e.RepositoryID, e.Feature)
}

// Unwrap returns ErrUnsupportedFeature for errors.Is() compatibility.
func (e *UnsupportedFeatureError) Unwrap() error { return ErrUnsupportedFeature }
