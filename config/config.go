// Package config holds the warden's YAML configuration.
package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"judgecell.dev/warden/policy"
)

// BundleConfig points at an optional runtime profile bundle.
type BundleConfig struct {
	// Path is a .yaml or .yaml.xz bundle file. Empty disables bundle
	// loading; the interpreted profile then installs nothing.
	Path string `yaml:"path"`
}

// ProfileConfig tunes one execution profile.
type ProfileConfig struct {
	// Runtime selects a runtime from the bundle by name. Only meaningful
	// for the interpreted profile.
	Runtime string `yaml:"runtime"`

	// ExtraSyscalls are allowed in addition to the profile's catalog.
	// Unresolvable names fail policy construction at install time.
	// Not accepted for the general profile, which allows everything not
	// explicitly killed.
	ExtraSyscalls []string `yaml:"extra_syscalls"`
}

type Config struct {
	Bundle   BundleConfig             `yaml:"bundle"`
	Profiles map[string]ProfileConfig `yaml:"profiles"`
}

// Default returns the built-in configuration: no bundle, no extras.
func Default() Config {
	return Config{
		Profiles: map[string]ProfileConfig{},
	}
}

// LoadFile reads, env-expands, parses, and validates a config file.
func LoadFile(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	// Expand ${ENV_VAR} references before parsing YAML,
	// enabling containerized deployments to inject paths.
	expanded := os.ExpandEnv(string(b))
	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config yaml: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	for name, pc := range c.Profiles {
		profile := policy.Profile(name)
		if !profile.Known() {
			return fmt.Errorf("profiles.%s: unknown profile", name)
		}
		for _, sc := range pc.ExtraSyscalls {
			if !policy.ValidSyscallName(sc) {
				return fmt.Errorf("profiles.%s: malformed syscall name %q", name, sc)
			}
		}
		switch profile {
		case policy.ProfileGeneral:
			if len(pc.ExtraSyscalls) > 0 {
				return fmt.Errorf("profiles.%s: extra_syscalls has no effect on an allow-by-default profile", name)
			}
			if pc.Runtime != "" {
				return fmt.Errorf("profiles.%s: runtime is only valid for the interpreted profile", name)
			}
		case policy.ProfileNative:
			if pc.Runtime != "" {
				return fmt.Errorf("profiles.%s: runtime is only valid for the interpreted profile", name)
			}
		case policy.ProfileInterpreted:
			if pc.Runtime != "" && c.Bundle.Path == "" {
				return errors.New("profiles.interpreted: runtime requires bundle.path")
			}
		}
	}
	return nil
}
