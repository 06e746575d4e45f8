// SPDX-License-Identifier: MPL-2.0

package jobctx

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// maxNameLen bounds the derived container name to a valid hostname label
// length.
const maxNameLen = 63

// Handle identifies a container on the host: a numeric VMID for the control
// plane and a hostname-safe name for humans and tags. Both are derived
// deterministically from the job context, so run and cleanup relocate the
// container prepare made without any shared state.
type Handle struct {
	// VMID is the Proxmox container identifier.
	VMID int
	// Name is the container hostname, unique per concurrently live job.
	Name string
}

// String returns "name (vmid)" for log output.
func (h Handle) String() string {
	return fmt.Sprintf("%s (%d)", h.Name, h.VMID)
}

// Handle derives the container handle for this job.
//
// The VMID is base + (jobID mod span). Job IDs are globally unique and
// monotonic, so two concurrently live jobs collide only if their IDs are
// exactly span apart; the base keeps driver VMIDs inside a range reserved
// away from operator-managed guests.
//
// The name embeds the project and job IDs plus a short digest over the full
// identity tuple, lowercased and restricted to [a-z0-9-].
func (jc *JobContext) Handle(base, span int) Handle {
	vmid := base + jc.JobID%span

	digest := sha256.Sum256([]byte(jc.ProjectID + "/" + jc.PipelineID + "/" + fmt.Sprint(jc.JobID)))
	short := hex.EncodeToString(digest[:])[:8]

	// The job ID and digest are what keeps names distinct; only the project
	// label gives way when the name would exceed a hostname label.
	suffix := fmt.Sprintf("-%d-%s", jc.JobID, short)
	label := sanitizeLabel(jc.ProjectID)
	if limit := maxNameLen - len("ci-") - len(suffix); len(label) > limit {
		label = strings.TrimRight(label[:limit], "-")
	}

	return Handle{VMID: vmid, Name: "ci-" + label + suffix}
}

// sanitizeLabel maps s onto the hostname-safe alphabet, collapsing runs of
// invalid characters into a single dash.
func sanitizeLabel(s string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
