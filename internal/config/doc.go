// SPDX-License-Identifier: MPL-2.0

// Package config loads the driver configuration from defaults, an optional
// YAML file, and PVEXEC_-prefixed environment variables, in ascending
// precedence.
package config
