// SPDX-License-Identifier: MPL-2.0

package jobctx_test

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvexec/internal/jobctx"
)

func TestHandleDeterminism(t *testing.T) {
	jc := &jobctx.JobContext{ProjectID: "1", JobID: 100, PipelineID: "9"}

	first := jc.Handle(200_000, 100_000)
	second := jc.Handle(200_000, 100_000)
	assert.Equal(t, first, second)
}

func TestHandleDistinctJobs(t *testing.T) {
	a := (&jobctx.JobContext{ProjectID: "1", JobID: 100, PipelineID: "9"}).Handle(200_000, 100_000)
	b := (&jobctx.JobContext{ProjectID: "1", JobID: 101, PipelineID: "9"}).Handle(200_000, 100_000)

	assert.NotEqual(t, a.Name, b.Name)
	assert.NotEqual(t, a.VMID, b.VMID)
}

func TestHandleVMIDWindow(t *testing.T) {
	h := (&jobctx.JobContext{ProjectID: "1", JobID: 123_456, PipelineID: "9"}).Handle(200_000, 100_000)
	assert.Equal(t, 200_000+123_456%100_000, h.VMID)
	assert.GreaterOrEqual(t, h.VMID, 200_000)
	assert.Less(t, h.VMID, 300_000)
}

func TestHandleNameIsHostnameSafe(t *testing.T) {
	// Project IDs are numeric in practice, but project paths can leak in
	// through configuration; the name must stay a valid hostname label.
	jc := &jobctx.JobContext{ProjectID: "My_Group/Repo", JobID: 42, PipelineID: "9"}
	h := jc.Handle(200_000, 100_000)

	require.LessOrEqual(t, len(h.Name), 63)
	assert.Regexp(t, regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$`), h.Name)
	assert.Contains(t, h.Name, "my-group-repo")
	assert.Contains(t, h.Name, "42")
}

func TestHandleNameBounded(t *testing.T) {
	long := "an-extremely-long-project-identifier-that-keeps-going-and-going-and-going"
	a := (&jobctx.JobContext{ProjectID: long, JobID: 123456788, PipelineID: "9"}).Handle(200_000, 100_000)
	b := (&jobctx.JobContext{ProjectID: long, JobID: 123456789, PipelineID: "9"}).Handle(200_000, 100_000)

	require.LessOrEqual(t, len(a.Name), 63)
	require.LessOrEqual(t, len(b.Name), 63)
	// Truncation may only eat into the project label, never the job ID or
	// digest that keep concurrent jobs apart.
	assert.NotEqual(t, a.Name, b.Name)
	assert.Contains(t, a.Name, "-123456788-")
	assert.Regexp(t, regexp.MustCompile(`^[a-z0-9][a-z0-9-]*[a-z0-9]$`), a.Name)
}

func TestHandleString(t *testing.T) {
	h := jobctx.Handle{VMID: 200_100, Name: "ci-7-100-deadbeef"}
	assert.Equal(t, "ci-7-100-deadbeef (200100)", h.String())
}
