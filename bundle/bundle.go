// Package bundle loads runtime profile bundles: YAML documents, optionally
// xz-compressed, that describe the extra syscalls interpreter runtimes
// need under the interpreted execution profile.
//
// A bundle file looks like:
//
//	runtimes:
//	  - name: python3
//	    min_version: "0.1.0"
//	    syscalls:
//	      - getpid
//	      - gettid
//	      - ioctl
//
// Bundles ship as plain .yaml or as .yaml.xz / .yml.xz archives; the
// compression is selected by file extension.
package bundle

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"
	"gopkg.in/yaml.v3"

	"judgecell.dev/warden/policy"
	"judgecell.dev/warden/version"
)

// Runtime is one interpreter's rule-set contribution.
type Runtime struct {
	// Name identifies the runtime (e.g. "python3"). Unique within a bundle.
	Name string `yaml:"name"`

	// Syscalls are allowed unconditionally in addition to the interpreted
	// profile's exec, file-open, and toggle rules. A missing or mistyped
	// name fails filter construction, never silently widens it.
	Syscalls []string `yaml:"syscalls"`

	// MinVersion is the lowest engine version this runtime's rule set was
	// audited against. Empty means no constraint.
	MinVersion string `yaml:"min_version"`
}

// Bundle is a set of runtime profiles.
type Bundle struct {
	Runtimes []Runtime `yaml:"runtimes"`
}

// Load reads and validates a bundle file. Files ending in .xz are
// xz-decompressed before parsing.
func Load(path string) (*Bundle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bundle: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".xz") {
		xzr, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("xz reader: %w", err)
		}
		r = xzr
	}
	return Parse(r)
}

// Parse decodes and validates a bundle document.
func Parse(r io.Reader) (*Bundle, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read bundle: %w", err)
	}
	var bun Bundle
	if err := yaml.Unmarshal(b, &bun); err != nil {
		return nil, fmt.Errorf("parse bundle yaml: %w", err)
	}
	if err := bun.validate(); err != nil {
		return nil, err
	}
	return &bun, nil
}

// Lookup returns the runtime with the given name.
func (b *Bundle) Lookup(name string) (Runtime, bool) {
	for _, rt := range b.Runtimes {
		if rt.Name == name {
			return rt, true
		}
	}
	return Runtime{}, false
}

func (b *Bundle) validate() error {
	if len(b.Runtimes) == 0 {
		return errors.New("bundle has no runtimes")
	}
	seen := make(map[string]struct{}, len(b.Runtimes))
	for _, rt := range b.Runtimes {
		if rt.Name == "" {
			return errors.New("runtime with empty name")
		}
		if _, dup := seen[rt.Name]; dup {
			return fmt.Errorf("duplicate runtime %q", rt.Name)
		}
		seen[rt.Name] = struct{}{}

		if len(rt.Syscalls) == 0 {
			return fmt.Errorf("runtime %q lists no syscalls", rt.Name)
		}
		for _, name := range rt.Syscalls {
			if !policy.ValidSyscallName(name) {
				return fmt.Errorf("runtime %q: malformed syscall name %q", rt.Name, name)
			}
		}

		if rt.MinVersion != "" && version.Compare(version.Version, rt.MinVersion) < 0 {
			return fmt.Errorf("runtime %q requires engine >= %s (this is %s)",
				rt.Name, rt.MinVersion, version.Version)
		}
	}
	return nil
}
