package policy

import (
	"errors"
	"fmt"
)

// Action is what the kernel does when a rule matches, or, as a table's
// default, when nothing matches.
type Action int

const (
	// ActionKill terminates the offending thread.
	ActionKill Action = iota
	// ActionAllow lets the syscall proceed.
	ActionAllow
)

func (a Action) String() string {
	switch a {
	case ActionKill:
		return "kill"
	case ActionAllow:
		return "allow"
	}
	return fmt.Sprintf("action(%d)", int(a))
}

// Comparator is a kernel-native argument comparison. The set deliberately
// mirrors the filter primitives one-to-one; no higher-level abstraction is
// layered on top because bit-level semantics are the security boundary.
type Comparator int

const (
	// CmpEqual matches when the argument equals Value.
	CmpEqual Comparator = iota
	// CmpNotEqual matches when the argument differs from Value.
	CmpNotEqual
	// CmpMaskedEqual matches when argument&Mask == Value. Value must be a
	// subset of Mask; bits outside the mask never influence the match, so
	// unrelated flags (e.g. O_CLOEXEC on an O_RDONLY open) cannot change
	// the outcome.
	CmpMaskedEqual
)

func (c Comparator) String() string {
	switch c {
	case CmpEqual:
		return "eq"
	case CmpNotEqual:
		return "ne"
	case CmpMaskedEqual:
		return "masked-eq"
	}
	return fmt.Sprintf("cmp(%d)", int(c))
}

// Predicate scopes a rule to specific values of one syscall argument.
type Predicate struct {
	Arg   uint // argument index, 0-5
	Op    Comparator
	Value uint64
	Mask  uint64 // CmpMaskedEqual only
}

// validate rejects malformed predicates. A malformed predicate fails the
// whole construction; it is never silently dropped, because a dropped
// predicate widens the rule it was scoping.
func (p Predicate) validate() error {
	if p.Arg > 5 {
		return fmt.Errorf("predicate arg index %d out of range", p.Arg)
	}
	switch p.Op {
	case CmpEqual, CmpNotEqual:
		if p.Mask != 0 {
			return fmt.Errorf("predicate %s carries a mask", p.Op)
		}
	case CmpMaskedEqual:
		if p.Mask == 0 {
			return errors.New("masked-eq predicate with zero mask matches everything")
		}
		if p.Value&^p.Mask != 0 {
			return fmt.Errorf("masked-eq value %#x not covered by mask %#x", p.Value, p.Mask)
		}
	default:
		return fmt.Errorf("unknown comparator %d", int(p.Op))
	}
	return nil
}

// argEquals builds an equality predicate on argument arg.
func argEquals(arg uint, value uint64) Predicate {
	return Predicate{Arg: arg, Op: CmpEqual, Value: value}
}

// argNotEquals builds an inequality predicate on argument arg.
func argNotEquals(arg uint, value uint64) Predicate {
	return Predicate{Arg: arg, Op: CmpNotEqual, Value: value}
}

// argMaskedEquals builds a masked-equality predicate: matches when
// argument&mask == value.
func argMaskedEquals(arg uint, mask, value uint64) Predicate {
	return Predicate{Arg: arg, Op: CmpMaskedEqual, Value: value, Mask: mask}
}

// Rule binds one syscall to an action, optionally scoped by predicates.
// A rule with no predicates applies to every invocation of the syscall.
//
// Optional marks catalog-authored unconditional allows whose syscall may
// not exist on every architecture or libseccomp version (rseq, rarely the
// socket family). An unresolvable optional allow is dropped, which under a
// kill-by-default table only makes the filter stricter. Kill rules and
// predicated rules are never optional: dropping one would weaken the
// program, so an unresolvable name there fails the construction.
type Rule struct {
	Syscall    string
	Action     Action
	Predicates []Predicate
	Optional   bool
}

func (r Rule) validate() error {
	if r.Syscall == "" {
		return errors.New("rule with empty syscall name")
	}
	for _, p := range r.Predicates {
		if err := p.validate(); err != nil {
			return fmt.Errorf("rule %s: %w", r.Syscall, err)
		}
	}
	return nil
}

// Table is one profile's complete filter program: an ordered rule list
// plus the default action for anything unmatched. ActionKill as default
// is the fail-closed polarity (native, interpreted); ActionAllow is the
// fail-open polarity (general).
type Table struct {
	Default Action
	Rules   []Rule
}

func (t Table) validate() error {
	for _, r := range t.Rules {
		if err := r.validate(); err != nil {
			return err
		}
	}
	return nil
}
