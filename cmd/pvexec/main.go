// SPDX-License-Identifier: MPL-2.0

// pvexec is a GitLab Runner custom-executor driver that runs CI jobs inside
// ephemeral LXC containers on a Proxmox VE host.
package main

func main() {
	Execute()
}
