//go:build !linux

package policy

import "fmt"

// Available always returns false: seccomp is Linux-only.
func Available() bool {
	return false
}

// Install fails on non-Linux platforms. It still validates the request so
// misconfiguration surfaces identically everywhere, but no filter can be
// constructed and the caller must not run the untrusted program here.
func Install(req Request) error {
	if err := req.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	if req.Profile == ProfileInterpreted && len(req.ExtraAllow) == 0 {
		return nil // nothing to install on any platform
	}
	return fmt.Errorf("%w: seccomp not available on this platform", ErrLoadFailed)
}
