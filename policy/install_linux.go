//go:build linux

package policy

import (
	"fmt"
	"runtime"

	seccomp "github.com/seccomp/libseccomp-golang"
	"golang.org/x/sys/unix"
)

// Available reports whether the running kernel supports seccomp filtering.
// This does NOT modify the process state.
func Available() bool {
	// PR_GET_SECCOMP fails with EINVAL on kernels built without seccomp.
	_, err := unix.PrctlRetInt(unix.PR_GET_SECCOMP, 0, 0, 0, 0)
	return err == nil
}

// Install compiles the request's rule table and loads it into the kernel.
// On success the filter is active immediately, enforced for the remaining
// lifetime of the process, and inherited across the upcoming exec. There
// is no uninstall.
//
// Every failure (builder init, rule addition, final load) is reported as
// ErrLoadFailed (wrapped with detail) and leaves no filter in effect: the
// kernel only activates the program at the final load step, and the
// builder context is released on every path. A caller seeing an error
// must abort the run rather than exec unconfined.
func Install(req Request) error {
	// The interpreted profile with no runtime rules configured installs
	// nothing. Recorded no-op, not an error: the profile is an extension
	// point whose table starts empty.
	if req.Profile == ProfileInterpreted && len(req.ExtraAllow) == 0 {
		if err := req.validate(); err != nil {
			return fmt.Errorf("%w: %v", ErrLoadFailed, err)
		}
		return nil
	}

	table, err := tableFor(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoadFailed, err)
	}

	filter, err := seccomp.NewFilter(scmpAction(table.Default))
	if err != nil {
		return fmt.Errorf("%w: init: %v", ErrLoadFailed, err)
	}
	defer filter.Release()

	for _, rule := range table.Rules {
		if err := addRule(filter, rule); err != nil {
			return fmt.Errorf("%w: %v", ErrLoadFailed, err)
		}
	}

	if err := filter.SetNoNewPrivsBit(true); err != nil {
		return fmt.Errorf("%w: no_new_privs: %v", ErrLoadFailed, err)
	}
	if err := filter.Load(); err != nil {
		return fmt.Errorf("%w: load: %v", ErrLoadFailed, err)
	}
	// The exec predicates hold the address of the target buffer; keep the
	// Target alive past the load so the operand can never dangle.
	runtime.KeepAlive(req.Target)
	return nil
}

func addRule(filter *seccomp.ScmpFilter, rule Rule) error {
	call, err := seccomp.GetSyscallFromName(rule.Syscall)
	if err != nil {
		// Dropping an optional allow under kill-by-default only makes the
		// filter stricter. Everything else fails the construction.
		if rule.Optional && rule.Action == ActionAllow && len(rule.Predicates) == 0 {
			return nil
		}
		return fmt.Errorf("resolve %s: %v", rule.Syscall, err)
	}

	if len(rule.Predicates) == 0 {
		if err := filter.AddRule(call, scmpAction(rule.Action)); err != nil {
			return fmt.Errorf("add %s: %v", rule.Syscall, err)
		}
		return nil
	}

	conds := make([]seccomp.ScmpCondition, 0, len(rule.Predicates))
	for _, p := range rule.Predicates {
		cond, err := scmpCondition(p)
		if err != nil {
			return fmt.Errorf("condition on %s: %v", rule.Syscall, err)
		}
		conds = append(conds, cond)
	}
	if err := filter.AddRuleConditional(call, scmpAction(rule.Action), conds); err != nil {
		return fmt.Errorf("add conditional %s: %v", rule.Syscall, err)
	}
	return nil
}

func scmpAction(a Action) seccomp.ScmpAction {
	if a == ActionAllow {
		return seccomp.ActAllow
	}
	return seccomp.ActKillThread
}

// scmpCondition translates a predicate into libseccomp's condition form.
// For masked equality libseccomp takes (mask, datum) in that order.
func scmpCondition(p Predicate) (seccomp.ScmpCondition, error) {
	if err := p.validate(); err != nil {
		return seccomp.ScmpCondition{}, err
	}
	switch p.Op {
	case CmpEqual:
		return seccomp.MakeCondition(p.Arg, seccomp.CompareEqual, p.Value)
	case CmpNotEqual:
		return seccomp.MakeCondition(p.Arg, seccomp.CompareNotEqual, p.Value)
	case CmpMaskedEqual:
		return seccomp.MakeCondition(p.Arg, seccomp.CompareMaskedEqual, p.Mask, p.Value)
	}
	return seccomp.ScmpCondition{}, fmt.Errorf("unknown comparator %d", int(p.Op))
}
