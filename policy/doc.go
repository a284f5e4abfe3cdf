// Package policy builds and installs seccomp syscall filters that confine
// the calling process before it execs an untrusted program.
//
// A filter is described by a per-profile rule table (syscall name, optional
// argument predicates, action) plus a default action for anything unmatched.
// The native and interpreted profiles are allow-lists over a kill-by-default
// baseline; the general profile is a kill-list over an allow-by-default
// baseline. One generic compiler serves both polarities.
//
// Usage:
//
//	target, err := policy.NewTarget("/box/main")
//	if err != nil {
//	    // bad path
//	}
//	err = policy.Install(policy.Request{
//	    Profile: policy.ProfileNative,
//	    Target:  target,
//	    Toggles: policy.Toggles{AllowWriteFile: false, AllowNetwork: false},
//	})
//	if err != nil {
//	    // abort: do NOT exec the untrusted program unconfined
//	}
//	// exec into target via target.Argv0(); the filter is now active
//	// and inherited across exec
//
// Once loaded, the filter is kernel state for the remaining lifetime of the
// process and cannot be relaxed. Install must be called exactly once, on the
// final thread of execution, immediately before exec. Any error from Install
// means no usable filter is in effect and the caller must not proceed.
//
// Requirements:
//   - Linux with seccomp filter support (kernel >= 3.5)
//   - libseccomp at build time (cgo)
//
// On non-Linux platforms Install always fails and Available reports false.
package policy
