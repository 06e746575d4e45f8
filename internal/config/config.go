// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name, used for the config directory.
	AppName = "pvexec"
	// EnvPrefix is the prefix for environment variable overrides.
	EnvPrefix = "PVEXEC"

	// maxVMID is the largest container identifier Proxmox accepts.
	maxVMID = 999_999_999
	// minVMID is the smallest user-assignable container identifier.
	minVMID = 100
)

var (
	// ErrInvalidVMIDRange is returned when the VMID base/span configuration
	// falls outside the host's valid identifier range.
	ErrInvalidVMIDRange = errors.New("invalid vmid range")
	// ErrInvalidResources is returned when a resource limit is not positive.
	ErrInvalidResources = errors.New("invalid container resources")
	// ErrMissingTemplate is returned when neither the config nor the job
	// names a storage or container template.
	ErrMissingTemplate = errors.New("missing storage or template")
)

// Config holds everything the driver needs to talk to the host and size the
// containers it creates. All fields can be overridden per-host via the config
// file or PVEXEC_* environment variables.
type Config struct {
	// PCTBinary is the pct binary path; empty means PATH lookup.
	PCTBinary string `mapstructure:"pct_binary"`
	// PveamBinary is the pveam binary path; empty means PATH lookup.
	PveamBinary string `mapstructure:"pveam_binary"`

	// Storage is the Proxmox storage holding container templates.
	Storage string `mapstructure:"storage"`
	// DefaultTemplate is the template used when the job requests no image.
	DefaultTemplate string `mapstructure:"default_template"`

	// VMIDBase and VMIDSpan define the identifier window the driver owns:
	// vmid = base + (job id mod span).
	VMIDBase int `mapstructure:"vmid_base"`
	VMIDSpan int `mapstructure:"vmid_span"`

	// RootFS is the rootfs volume spec for new containers.
	RootFS string `mapstructure:"rootfs"`
	// MemoryMB is the container memory limit in megabytes.
	MemoryMB int `mapstructure:"memory_mb"`
	// Cores is the CPU core limit. Zero means host default.
	Cores int `mapstructure:"cores"`
	// Bridge is the network bridge for the container's eth0.
	Bridge string `mapstructure:"bridge"`
	// Unprivileged creates unprivileged containers.
	Unprivileged bool `mapstructure:"unprivileged"`
	// Nesting enables the nesting feature on new containers.
	Nesting bool `mapstructure:"nesting"`

	// BootTimeout bounds the wait for the guest to reach multi-user.target.
	BootTimeout time.Duration `mapstructure:"boot_timeout"`
	// ProvisionTimeout bounds the provisioning payload execution.
	ProvisionTimeout time.Duration `mapstructure:"provision_timeout"`
	// ExecTimeout bounds the job script execution. Zero leaves the bound to
	// the runner's own job timeout.
	ExecTimeout time.Duration `mapstructure:"exec_timeout"`
	// StopTimeout is the graceful shutdown window before a hard stop.
	StopTimeout time.Duration `mapstructure:"stop_timeout"`

	// PayloadPath overrides the embedded provisioning payload with a script
	// on the host filesystem.
	PayloadPath string `mapstructure:"payload_path"`

	// Verbose enables debug logging.
	Verbose bool `mapstructure:"verbose"`
}

// DefaultConfig returns the built-in defaults, sized like a typical small CI
// guest.
func DefaultConfig() *Config {
	return &Config{
		Storage:          "local",
		DefaultTemplate:  "ubuntu-22.04-standard_22.04-1_amd64.tar.zst",
		VMIDBase:         200_000,
		VMIDSpan:         100_000,
		RootFS:           "local-zfs:10",
		MemoryMB:         4096,
		Cores:            2,
		Bridge:           "vmbr0",
		Unprivileged:     true,
		Nesting:          true,
		BootTimeout:      60 * time.Second,
		ProvisionTimeout: 10 * time.Minute,
		ExecTimeout:      0,
		StopTimeout:      30 * time.Second,
	}
}

// ConfigDir returns the driver configuration directory,
// $XDG_CONFIG_HOME/pvexec (defaulting to ~/.config/pvexec).
//
//nolint:revive // ConfigDir is more descriptive than Dir for external callers
func ConfigDir() (string, error) {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(home, ".config")
	}
	return filepath.Join(dir, AppName), nil
}

// Load reads the configuration. cfgFile, when non-empty, names an explicit
// config file and must exist; otherwise an optional config.yaml in ConfigDir
// is used. Environment variables such as PVEXEC_STORAGE override file values.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("pct_binary", defaults.PCTBinary)
	v.SetDefault("pveam_binary", defaults.PveamBinary)
	v.SetDefault("storage", defaults.Storage)
	v.SetDefault("default_template", defaults.DefaultTemplate)
	v.SetDefault("vmid_base", defaults.VMIDBase)
	v.SetDefault("vmid_span", defaults.VMIDSpan)
	v.SetDefault("rootfs", defaults.RootFS)
	v.SetDefault("memory_mb", defaults.MemoryMB)
	v.SetDefault("cores", defaults.Cores)
	v.SetDefault("bridge", defaults.Bridge)
	v.SetDefault("unprivileged", defaults.Unprivileged)
	v.SetDefault("nesting", defaults.Nesting)
	v.SetDefault("boot_timeout", defaults.BootTimeout)
	v.SetDefault("provision_timeout", defaults.ProvisionTimeout)
	v.SetDefault("exec_timeout", defaults.ExecTimeout)
	v.SetDefault("stop_timeout", defaults.StopTimeout)
	v.SetDefault("payload_path", defaults.PayloadPath)
	v.SetDefault("verbose", defaults.Verbose)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else if dir, err := ConfigDir(); err == nil {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(dir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects values the control plane would otherwise refuse much
// later with a worse diagnostic.
func (c *Config) Validate() error {
	var errs []error

	if c.VMIDBase < minVMID || c.VMIDSpan < 1 || c.VMIDBase+c.VMIDSpan-1 > maxVMID {
		errs = append(errs, fmt.Errorf("%w: base %d span %d (valid ids are %d..%d)",
			ErrInvalidVMIDRange, c.VMIDBase, c.VMIDSpan, minVMID, maxVMID))
	}
	if c.MemoryMB <= 0 {
		errs = append(errs, fmt.Errorf("%w: memory_mb %d", ErrInvalidResources, c.MemoryMB))
	}
	if c.Cores < 0 {
		errs = append(errs, fmt.Errorf("%w: cores %d", ErrInvalidResources, c.Cores))
	}
	if c.Storage == "" || c.DefaultTemplate == "" {
		errs = append(errs, fmt.Errorf("%w: storage %q, default_template %q",
			ErrMissingTemplate, c.Storage, c.DefaultTemplate))
	}
	if c.BootTimeout <= 0 || c.ProvisionTimeout <= 0 || c.StopTimeout <= 0 || c.ExecTimeout < 0 {
		errs = append(errs, fmt.Errorf("%w: timeouts must be positive (exec_timeout may be zero)",
			ErrInvalidResources))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
