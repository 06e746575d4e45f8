// SPDX-License-Identifier: MPL-2.0

// Package pct wraps the Proxmox VE container control plane behind a narrow
// Engine interface. All operations shell out to the pct and pveam binaries;
// the package holds no state between calls — container existence and status
// live entirely on the host.
package pct
