package policy

import (
	"errors"
	"fmt"
	"path/filepath"
	"unsafe"
)

// Profile selects which rule table applies to a sandboxed run.
type Profile string

const (
	// ProfileNative confines a compiled binary: kill-by-default with a
	// fixed allow-list covering loader, I/O, memory, and thread setup.
	ProfileNative Profile = "native"

	// ProfileInterpreted confines interpreted/scripted programs. Its
	// baseline rule set is empty; runtime syscalls are supplied per
	// interpreter (see Request.ExtraAllow). With no runtime syscalls
	// configured, Install is a no-op success and no filter is loaded.
	ProfileInterpreted Profile = "interpreted"

	// ProfileGeneral confines an already-trusted launcher: allow-by-default
	// with kill rules for exec escape, process creation, signal delivery,
	// and write-capable opens.
	ProfileGeneral Profile = "general"
)

// Known reports whether p names a profile this package can compile.
func (p Profile) Known() bool {
	switch p {
	case ProfileNative, ProfileInterpreted, ProfileGeneral:
		return true
	}
	return false
}

// Toggles are the caller-supplied permissions for one sandboxed run.
// They are consulted once at construction time; the loaded filter does
// not change afterward.
type Toggles struct {
	AllowWriteFile bool
	AllowNetwork   bool
}

// ErrLoadFailed is the single failure kind reported by Install. It covers
// builder initialization, rule addition, and the final kernel load: all
// three leave the process without a usable filter, and the caller must not
// exec the untrusted program.
var ErrLoadFailed = errors.New("policy: seccomp filter load failed")

// Target pins the absolute path of the program the process will exec into.
//
// The exec rules compare execve's first argument against the address of
// this buffer, exactly as the kernel sees it: the supervisor must perform
// the exec through Argv0 so that the pointer the kernel receives is the
// pointer the filter was built against. The Go runtime does not move heap
// objects, so the address is stable as long as the Target stays reachable;
// callers keep the Target alive until exec.
//
// The path is never opened, resolved, or dereferenced by this package.
// Callers own canonicalization (symlinks, relative segments).
type Target struct {
	path string
	buf  []byte // path bytes + NUL, address used in exec predicates
}

// NewTarget validates and pins an exec path. The path must be non-empty
// and absolute.
func NewTarget(path string) (*Target, error) {
	if path == "" {
		return nil, errors.New("policy: target path is empty")
	}
	if !filepath.IsAbs(path) {
		return nil, fmt.Errorf("policy: target path %q is not absolute", path)
	}
	buf := make([]byte, len(path)+1)
	copy(buf, path)
	return &Target{path: path, buf: buf}, nil
}

// Path returns the pinned exec path.
func (t *Target) Path() string { return t.path }

// Argv0 returns a pointer to the NUL-terminated path buffer the exec
// predicates were built against. Pass this exact pointer as the first
// argument of the raw execve; exec-ing through any other buffer will not
// match the filter's equality rule.
func (t *Target) Argv0() *byte { return &t.buf[0] }

// addr is the predicate operand for exec rules.
func (t *Target) addr() uint64 {
	return uint64(uintptr(unsafe.Pointer(&t.buf[0])))
}

// Request fully specifies one policy construction.
type Request struct {
	Profile Profile
	Target  *Target
	Toggles Toggles

	// ExtraAllow is an additional set of unconditionally allowed syscall
	// names. For the interpreted profile this is the interpreter's runtime
	// set; for the native profile it covers per-deployment additions. The
	// general profile ignores it (everything unmatched is allowed anyway).
	ExtraAllow []string
}

func (r Request) validate() error {
	if !r.Profile.Known() {
		return fmt.Errorf("unknown profile %q", r.Profile)
	}
	if r.Target == nil {
		return errors.New("nil target")
	}
	return nil
}
