package policy

import "fmt"

// open(2) flag bits, Linux ABI (<fcntl.h>). Defined locally: the predicate
// operands must be the exact kernel values regardless of build platform.
const (
	oWRONLY = 0x1
	oRDWR   = 0x2
	// Mask covering both write-capable access modes. O_RDONLY is 0, so a
	// masked compare against zero admits read-only opens no matter which
	// unrelated flag bits (O_CLOEXEC, O_NONBLOCK, ...) are set.
	writeAccessMask = oWRONLY | oRDWR
)

// Flags-argument index differs between the two open entry points.
const (
	openFlagsArg   = 1 // open(path, flags, ...)
	openatFlagsArg = 2 // openat(dirfd, path, flags, ...)
)

// nativeBaseline is the fixed allow-list a loaded native binary needs:
// dynamic loader, basic I/O, memory mapping, thread/futex setup, timing,
// randomness. Reviewed whenever a new runtime profile is added.
var nativeBaseline = []string{
	"read", "fstat",
	"mmap", "mprotect",
	"munmap", "uname",
	"arch_prctl", "brk",
	"access", "exit_group",
	"close", "readlink",
	"sysinfo", "write",
	"writev", "lseek",
	"clock_gettime", "fcntl",
	"pread64", "faccessat",
	"newfstatat", "set_tid_address",
	"set_robust_list", "rseq",
	"prlimit64",
	"futex",
	"getrandom",
}

// networkSyscalls is the socket family enabled by the network toggle in
// fail-closed profiles.
var networkSyscalls = []string{
	"socket", "connect",
	"bind", "listen",
	"accept", "sendto",
	"recvfrom", "setsockopt",
	"getsockopt", "getpeername",
	"getsockname",
}

// processControlSyscalls are denied unconditionally in the general
// profile: process creation and signal delivery.
var processControlSyscalls = []string{
	"clone", "fork", "vfork", "kill",
}

// tableFor assembles the filter program for one request. Pure data
// transformation: nothing here touches the kernel.
func tableFor(req Request) (Table, error) {
	if err := req.validate(); err != nil {
		return Table{}, err
	}
	var t Table
	switch req.Profile {
	case ProfileNative, ProfileInterpreted:
		t = allowScopedTable(req)
	case ProfileGeneral:
		t = denyScopedTable(req)
	}
	if err := t.validate(); err != nil {
		return Table{}, err
	}
	return t, nil
}

// allowScopedTable builds the fail-closed program shared by the native and
// interpreted profiles: kill by default, allow the exec into Target, the
// profile baseline, and the toggle-selected rule variants.
func allowScopedTable(req Request) Table {
	t := Table{Default: ActionKill}

	// Exec is allowed into exactly one program. Always first, always
	// present: a table without this rule cannot exec at all, never more.
	t.Rules = append(t.Rules, Rule{
		Syscall:    "execve",
		Action:     ActionAllow,
		Predicates: []Predicate{argEquals(0, req.Target.addr())},
	})

	if req.Profile == ProfileNative {
		for _, name := range nativeBaseline {
			t.Rules = append(t.Rules, Rule{Syscall: name, Action: ActionAllow, Optional: true})
		}
	}
	// Caller-supplied names are never optional: a typo in a configured
	// runtime set must surface as a load failure, not a silent drop.
	for _, name := range req.ExtraAllow {
		t.Rules = append(t.Rules, Rule{Syscall: name, Action: ActionAllow})
	}

	if req.Toggles.AllowNetwork {
		for _, name := range networkSyscalls {
			t.Rules = append(t.Rules, Rule{Syscall: name, Action: ActionAllow, Optional: true})
		}
	}

	if req.Toggles.AllowWriteFile {
		for _, name := range []string{"open", "dup", "dup2", "dup3"} {
			t.Rules = append(t.Rules, Rule{Syscall: name, Action: ActionAllow, Optional: true})
		}
	} else {
		// Write-capable access modes absent: flags&(O_WRONLY|O_RDWR) == 0.
		t.Rules = append(t.Rules,
			Rule{
				Syscall:    "open",
				Action:     ActionAllow,
				Predicates: []Predicate{argMaskedEquals(openFlagsArg, writeAccessMask, 0)},
			},
			Rule{
				Syscall:    "openat",
				Action:     ActionAllow,
				Predicates: []Predicate{argMaskedEquals(openatFlagsArg, writeAccessMask, 0)},
			},
		)
	}
	return t
}

// denyScopedTable builds the fail-open program for the general profile:
// allow by default, kill exec escape, process creation, signal delivery,
// and write-capable opens.
//
// The network toggle contributes no rules here. That asymmetry is
// preserved from the rule surface this table was audited against; whether
// general-profile network access should be restricted is an open policy
// decision, not an implemented one. The warden layer logs it on every
// general-profile install so the gap stays visible.
func denyScopedTable(req Request) Table {
	t := Table{Default: ActionAllow}

	// The one permitted exec: kill on anything other than Target.
	t.Rules = append(t.Rules, Rule{
		Syscall:    "execve",
		Action:     ActionKill,
		Predicates: []Predicate{argNotEquals(0, req.Target.addr())},
	})

	for _, name := range processControlSyscalls {
		t.Rules = append(t.Rules, Rule{Syscall: name, Action: ActionKill})
	}

	// Write-capable opens are killed bit by bit: one rule per access mode
	// per entry point, each masking only the bit it tests.
	for _, bit := range []uint64{oWRONLY, oRDWR} {
		t.Rules = append(t.Rules,
			Rule{
				Syscall:    "open",
				Action:     ActionKill,
				Predicates: []Predicate{argMaskedEquals(openFlagsArg, bit, bit)},
			},
			Rule{
				Syscall:    "openat",
				Action:     ActionKill,
				Predicates: []Predicate{argMaskedEquals(openatFlagsArg, bit, bit)},
			},
		)
	}
	return t
}

// ValidSyscallName reports whether s is a plausible syscall name:
// non-empty, lowercase letters, digits, and underscores only. Used to
// vet caller-supplied names before they reach filter construction.
func ValidSyscallName(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'a' && c <= 'z' || c >= '0' && c <= '9' || c == '_' {
			continue
		}
		return false
	}
	return true
}

// RuleCount reports how many rules the request would compile, without
// touching the kernel. Used by the warden layer for metrics.
func RuleCount(req Request) (int, error) {
	if req.Profile == ProfileInterpreted && len(req.ExtraAllow) == 0 {
		return 0, nil
	}
	t, err := tableFor(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}
	return len(t.Rules), nil
}
