// SPDX-License-Identifier: MPL-2.0

package pct

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

type (
	// TemplateStoreOption configures a TemplateStore.
	TemplateStoreOption func(*TemplateStore)

	// TemplateStore wraps the pveam binary for listing and downloading
	// container templates from Proxmox storage.
	TemplateStore struct {
		binaryPath  string
		execCommand ExecCommandFunc
	}
)

// WithTemplateBinaryPath sets the pveam binary path, bypassing PATH lookup.
func WithTemplateBinaryPath(path string) TemplateStoreOption {
	return func(s *TemplateStore) {
		s.binaryPath = path
	}
}

// WithTemplateExecCommand sets a custom exec command function for testing.
func WithTemplateExecCommand(fn ExecCommandFunc) TemplateStoreOption {
	return func(s *TemplateStore) {
		s.execCommand = fn
	}
}

// NewTemplateStore creates a TemplateStore, resolving the pveam binary on
// PATH unless WithTemplateBinaryPath overrides it.
func NewTemplateStore(opts ...TemplateStoreOption) (*TemplateStore, error) {
	s := &TemplateStore{execCommand: exec.CommandContext}
	for _, opt := range opts {
		opt(s)
	}
	if s.binaryPath == "" {
		path, err := exec.LookPath("pveam")
		if err != nil {
			return nil, fmt.Errorf("%w: pveam: %v", ErrBinaryNotFound, err)
		}
		s.binaryPath = path
	}
	return s, nil
}

// VolumeID returns the storage volume identifier for a template file.
func VolumeID(storage, template string) string {
	return storage + ":vztmpl/" + template
}

// ListLocal returns the template volume IDs already present on a storage.
// pveam prints a header line followed by one volume ID per line.
func (s *TemplateStore) ListLocal(ctx context.Context, storage string) ([]string, error) {
	out, err := s.runCombined(ctx, "list", storage)
	if err != nil {
		return nil, fmt.Errorf("list templates on %s: %w: %s", storage, err, strings.TrimSpace(out))
	}
	return firstColumns(out, 0), nil
}

// ListAvailable returns the template names downloadable from the Proxmox
// template repository for a section (e.g. "system").
func (s *TemplateStore) ListAvailable(ctx context.Context, section string) ([]string, error) {
	out, err := s.runCombined(ctx, "available", "--section", section)
	if err != nil {
		return nil, fmt.Errorf("list available templates: %w: %s", err, strings.TrimSpace(out))
	}
	return firstColumns(out, 1), nil
}

// Download fetches a template into a storage and returns its volume ID.
func (s *TemplateStore) Download(ctx context.Context, storage, template string) (string, error) {
	out, err := s.runCombined(ctx, "download", storage, template)
	if err != nil {
		return "", fmt.Errorf("download template %s to %s: %w: %s", template, storage, err, strings.TrimSpace(out))
	}
	return VolumeID(storage, template), nil
}

// Ensure returns the volume ID for a template, downloading it first when it
// is not yet present on the storage. Downloads are idempotent on the host
// side, so a concurrent prepare racing on the same template is harmless.
func (s *TemplateStore) Ensure(ctx context.Context, storage, template string) (string, error) {
	volid := VolumeID(storage, template)

	local, err := s.ListLocal(ctx, storage)
	if err != nil {
		return "", err
	}
	for _, v := range local {
		if v == volid {
			return volid, nil
		}
	}

	return s.Download(ctx, storage, template)
}

func (s *TemplateStore) runCombined(ctx context.Context, args ...string) (string, error) {
	cmd := s.execCommand(ctx, s.binaryPath, args...)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// firstColumns skips the pveam header line and extracts one whitespace
// column per remaining line.
func firstColumns(out string, col int) []string {
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) <= 1 {
		return nil
	}
	var values []string
	for _, line := range lines[1:] {
		fields := strings.Fields(line)
		if len(fields) > col {
			values = append(values, fields[col])
		}
	}
	return values
}
