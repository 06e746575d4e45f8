// SPDX-License-Identifier: MPL-2.0

// Package provision pushes a provisioning payload into a freshly started
// container and runs it. The payload owns all OS detection and package
// installation; the invoker never branches on the guest OS.
package provision
