// SPDX-License-Identifier: MPL-2.0

package provision_test

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvexec/internal/pct"
	"pvexec/internal/provision"
)

// fakeEngine records the push and exec the provisioner issues and replays
// canned results.
type fakeEngine struct {
	pct.Engine

	pushedContent string
	pushedRemote  string
	pushedPerms   fs.FileMode
	pushErr       error

	execCommand []string
	execTimeout time.Duration
	execResult  *pct.CommandResult
	execErr     error
}

func (f *fakeEngine) Push(_ context.Context, _ int, local, remote string, perms fs.FileMode) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	data, err := os.ReadFile(local)
	if err != nil {
		return err
	}
	f.pushedContent = string(data)
	f.pushedRemote = remote
	f.pushedPerms = perms
	return nil
}

func (f *fakeEngine) Exec(_ context.Context, _ int, command []string, opts pct.ExecOptions) (*pct.CommandResult, error) {
	f.execCommand = command
	f.execTimeout = opts.Timeout
	if f.execErr != nil {
		return nil, f.execErr
	}
	if f.execResult != nil {
		return f.execResult, nil
	}
	return &pct.CommandResult{}, nil
}

func TestProvisionPushesEmbeddedPayload(t *testing.T) {
	eng := &fakeEngine{}
	p := provision.NewProvisioner(eng)

	require.NoError(t, p.Provision(context.Background(), 200100))

	assert.Equal(t, provision.RemotePath, eng.pushedRemote)
	assert.Equal(t, fs.FileMode(0o755), eng.pushedPerms)
	// The pushed script is the embedded payload, not an empty temp file.
	assert.Contains(t, eng.pushedContent, "#!/bin/sh")
	assert.Contains(t, eng.pushedContent, "git")

	assert.Equal(t, []string{provision.RemotePath}, eng.execCommand)
}

func TestProvisionPayloadOverride(t *testing.T) {
	override := filepath.Join(t.TempDir(), "payload.sh")
	require.NoError(t, os.WriteFile(override, []byte("#!/bin/sh\necho custom\n"), 0o755))

	eng := &fakeEngine{}
	p := provision.NewProvisioner(eng, provision.WithPayloadPath(override))

	require.NoError(t, p.Provision(context.Background(), 200100))
	assert.Equal(t, "#!/bin/sh\necho custom\n", eng.pushedContent)
}

func TestProvisionMissingOverrideFile(t *testing.T) {
	eng := &fakeEngine{}
	p := provision.NewProvisioner(eng, provision.WithPayloadPath("/no/such/payload.sh"))

	err := p.Provision(context.Background(), 200100)
	require.Error(t, err)
	assert.ErrorIs(t, err, provision.ErrProvisionFailed)
}

func TestProvisionTimeoutForwarded(t *testing.T) {
	eng := &fakeEngine{}
	p := provision.NewProvisioner(eng, provision.WithTimeout(3*time.Minute))

	require.NoError(t, p.Provision(context.Background(), 200100))
	assert.Equal(t, 3*time.Minute, eng.execTimeout)
}

func TestProvisionPayloadFailure(t *testing.T) {
	eng := &fakeEngine{execResult: &pct.CommandResult{
		ExitCode: 4,
		Stderr:   "unsupported distribution: gentoo\n",
	}}
	p := provision.NewProvisioner(eng)

	err := p.Provision(context.Background(), 200100)
	require.Error(t, err)
	assert.ErrorIs(t, err, provision.ErrProvisionFailed)

	var provErr *provision.ProvisionError
	require.ErrorAs(t, err, &provErr)
	assert.Equal(t, 200100, provErr.VMID)
	assert.Equal(t, 4, provErr.ExitCode)
	assert.Contains(t, provErr.Error(), "unsupported distribution")
}

func TestProvisionPushFailure(t *testing.T) {
	eng := &fakeEngine{pushErr: errors.New("pct push: connection reset")}
	p := provision.NewProvisioner(eng)

	err := p.Provision(context.Background(), 200100)
	require.Error(t, err)
	assert.ErrorIs(t, err, provision.ErrProvisionFailed)
	assert.Empty(t, eng.execCommand)
}

func TestProvisionExecFailure(t *testing.T) {
	eng := &fakeEngine{execErr: errors.New("pct exec: container not running")}
	p := provision.NewProvisioner(eng)

	err := p.Provision(context.Background(), 200100)
	require.Error(t, err)
	assert.ErrorIs(t, err, provision.ErrProvisionFailed)
}

func TestProvisionExecTimeoutKeepsCause(t *testing.T) {
	eng := &fakeEngine{execErr: &pct.ExecTimeoutError{VMID: 200100, Timeout: time.Minute}}
	p := provision.NewProvisioner(eng)

	err := p.Provision(context.Background(), 200100)
	require.Error(t, err)
	assert.ErrorIs(t, err, provision.ErrProvisionFailed)
	// The timeout classification survives the provisioning wrap.
	assert.ErrorIs(t, err, pct.ErrExecTimeout)

	var timeoutErr *pct.ExecTimeoutError
	assert.ErrorAs(t, err, &timeoutErr)
}
