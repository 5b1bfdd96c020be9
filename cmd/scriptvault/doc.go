// SPDX-License-Identifier: MPL-2.0

// Package cmd contains all CLI commands for scriptvault.
//
// The App type is the composition root: command handlers receive an App and
// reach configuration, the repository and output streams through it, so tests
// can substitute any of them.
package cmd
