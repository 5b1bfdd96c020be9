// SPDX-License-Identifier: MPL-2.0

// Package backend opens the storage engine selected in the configuration and
// wraps it in a repository.StoreRepository carrying the configured views,
// description and deploy-spec support.
package backend
