// SPDX-License-Identifier: MPL-2.0

package executor

import (
	"fmt"
	"sort"
	"strings"

	"mvdan.cc/sh/v3/syntax"
)

// remoteScriptPath returns the in-container destination for a job script.
// The stage name comes from the runner and is sanitized into the same
// alphabet as container hostnames.
func remoteScriptPath(stage string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(stage) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_', r == '-':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	name := strings.Trim(b.String(), "-")
	if name == "" {
		name = "step-script"
	}
	return "/usr/local/bin/pvexec-job-" + name
}

// buildJobCommand assembles the sh -c line that runs the pushed script with
// the job's working directory and environment. Every interpolated word is
// POSIX-quoted; the environment is applied with env(1) so nothing leaks into
// the guest's login environment.
func buildJobCommand(buildDir string, env map[string]string, remoteScript string) ([]string, error) {
	qdir, err := quoteWord(buildDir)
	if err != nil {
		return nil, fmt.Errorf("quote build dir: %w", err)
	}
	qscript, err := quoteWord(remoteScript)
	if err != nil {
		return nil, fmt.Errorf("quote script path: %w", err)
	}

	var line strings.Builder
	line.WriteString("mkdir -p " + qdir + " && cd " + qdir + " && exec env")

	for _, k := range sortedEnvNames(env) {
		kv, err := quoteWord(k + "=" + env[k])
		if err != nil {
			return nil, fmt.Errorf("quote job variable %s: %w", k, err)
		}
		line.WriteString(" " + kv)
	}

	line.WriteString(" " + qscript)
	return []string{"/bin/sh", "-c", line.String()}, nil
}

// quoteWord quotes s for a POSIX shell command line.
func quoteWord(s string) (string, error) {
	return syntax.Quote(s, syntax.LangPOSIX)
}

// sortedEnvNames returns the valid shell variable names from env in a stable
// order, dropping keys env(1) would reject.
func sortedEnvNames(env map[string]string) []string {
	names := make([]string, 0, len(env))
	for k := range env {
		if validEnvName(k) {
			names = append(names, k)
		}
	}
	sort.Strings(names)
	return names
}

// validEnvName reports whether k is a portable shell variable name.
func validEnvName(k string) bool {
	if k == "" {
		return false
	}
	for i, r := range k {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9':
			if i == 0 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
