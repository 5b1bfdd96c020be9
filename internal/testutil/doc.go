// SPDX-License-Identifier: MPL-2.0

// Package testutil provides helper functions for tests that handle errors
// appropriately, reducing boilerplate and ensuring consistent error handling.
//
// Common helpers include file setup (MustMkdirAll, MustWriteFile), resource
// cleanup (MustClose, CloseOnCleanup), a deterministic clock (FakeClock),
// home directory redirection (SetHomeDir) and gating of container-backed
// integration tests (RequireContainers, ContainerSemaphore).
package testutil
