// SPDX-License-Identifier: MPL-2.0

// Package config loads the scriptvault configuration using Viper with CUE as the
// file format.
//
// The configuration file lives at ~/.config/scriptvault/config.cue (or the XDG
// equivalent on Linux, ~/Library/Application Support/scriptvault/config.cue on
// macOS, %APPDATA%\scriptvault\config.cue on Windows). A config.cue in the current
// directory is used when the user-level file is absent. Values are validated against
// the embedded #Config schema, merged over built-in defaults and finally overridden
// by SCRIPTVAULT_* environment variables.
package config
