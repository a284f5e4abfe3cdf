package policy

import (
	"errors"
	"runtime"
	"testing"
)

func TestNewTarget(t *testing.T) {
	t.Parallel()

	target, err := NewTarget("/box/main")
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}
	if target.Path() != "/box/main" {
		t.Errorf("Path() = %q", target.Path())
	}
	argv0 := target.Argv0()
	if argv0 == nil {
		t.Fatal("Argv0() = nil")
	}
	// Buffer is the path followed by a NUL, as execve expects.
	if got := string(target.buf); got != "/box/main\x00" {
		t.Errorf("pinned buffer = %q", got)
	}
	if target.addr() == 0 {
		t.Error("addr() = 0")
	}
}

func TestNewTargetRejectsBadPaths(t *testing.T) {
	t.Parallel()

	for _, path := range []string{"", "main", "./main", "box/main"} {
		if _, err := NewTarget(path); err == nil {
			t.Errorf("NewTarget(%q) succeeded, want error", path)
		}
	}
}

func TestTargetAddrStable(t *testing.T) {
	t.Parallel()

	target, err := NewTarget("/box/main")
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}
	first := target.addr()
	runtime.GC()
	runtime.GC()
	if got := target.addr(); got != first {
		t.Errorf("target address moved: %#x -> %#x", first, got)
	}
}

func TestProfileKnown(t *testing.T) {
	t.Parallel()

	for _, p := range []Profile{ProfileNative, ProfileInterpreted, ProfileGeneral} {
		if !p.Known() {
			t.Errorf("%s not known", p)
		}
	}
	if Profile("php").Known() {
		t.Error("unknown profile reported as known")
	}
}

func TestInstallRejectsBadRequests(t *testing.T) {
	t.Parallel()

	target, err := NewTarget("/box/main")
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}

	tests := []struct {
		name string
		req  Request
	}{
		{"unknown_profile", Request{Profile: "php", Target: target}},
		{"nil_target", Request{Profile: ProfileNative}},
		{"nil_target_interpreted", Request{Profile: ProfileInterpreted}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := Install(tt.req)
			if err == nil {
				t.Fatal("Install accepted a bad request")
			}
			if !errors.Is(err, ErrLoadFailed) {
				t.Errorf("error %v is not ErrLoadFailed", err)
			}
		})
	}
}

func TestInstallInterpretedNoop(t *testing.T) {
	t.Parallel()

	// The interpreted profile with no runtime syscalls installs nothing
	// and succeeds on every platform. Safe to run in-process: no filter
	// is loaded.
	target, err := NewTarget("/usr/bin/python3")
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}
	for _, write := range []bool{false, true} {
		for _, network := range []bool{false, true} {
			err := Install(Request{
				Profile: ProfileInterpreted,
				Target:  target,
				Toggles: Toggles{AllowWriteFile: write, AllowNetwork: network},
			})
			if err != nil {
				t.Errorf("write=%v net=%v: %v", write, network, err)
			}
		}
	}
}

func TestAvailable(t *testing.T) {
	t.Parallel()

	result := Available()
	if runtime.GOOS != "linux" && result {
		t.Error("Available() should return false on non-Linux")
	}
	// On Linux the result depends on the kernel, so accept either.
	t.Logf("Available() = %v (GOOS=%s)", result, runtime.GOOS)
}
