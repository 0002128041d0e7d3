// Package permission implements the four-mode permission enforcer and the
// tool wrapper that adapts an arbitrary agent tool into a
// permission-checked one, deferring to the approval coordinator when a
// decision must be made interactively.
//
// Grounded on the teacher's internal/security/policy.go IsAllowed
// autonomy-level gate, generalized from evoclaw's three autonomy levels to
// the four permission modes and rewired to consult a sandbox path guard
// and an approval coordinator instead of a static forbidden-paths list.
package permission

import (
	"path/filepath"
	"strings"
)

// Mode is one of the four permission modes. The zero value is Unset, which
// behaves identically to Auto.
type Mode string

const (
	ModeUnset           Mode = ""
	ModePlan            Mode = "plan"
	ModeAsk             Mode = "ask"
	ModeAuto            Mode = "auto"
	ModeDangerouslySkip Mode = "dangerously-skip"
)

// Operation is the kind of filesystem/exec action being checked.
type Operation string

const (
	OpRead  Operation = "read"
	OpWrite Operation = "write"
	OpExec  Operation = "exec"
)

// ModeFunc is a late-bound mode getter: user toggles take effect on the
// next call without re-wrapping tools.
type ModeFunc func() Mode

// Context carries the caller identity the enforcer needs to evaluate a
// check: the current mode, an optional home directory that is always
// user-owned territory, and the session/run identifiers needed to open an
// approval request.
type Context struct {
	Mode       ModeFunc
	HomeDir    string
	SessionKey string
	RunID      string
}

func (c Context) resolveMode() Mode {
	if c.Mode == nil {
		return ModeAuto
	}
	return c.Mode()
}

// Decision is the result of a permission check.
type Decision struct {
	Allowed     bool
	Reason      string
	Provisional bool // denial that must be escalated to the approval coordinator
}

func allowed() Decision { return Decision{Allowed: true} }

func denied(reason string) Decision { return Decision{Allowed: false, Reason: reason} }

func deferredToApproval(reason string) Decision {
	return Decision{Allowed: false, Reason: reason, Provisional: true}
}

// Check evaluates a permission request against the rules in order: unset/
// auto/dangerously-skip always allow; a path inside the caller's home
// directory always allows; plan mode allows reads and denies writes/execs
// outright; ask mode allows reads and denies writes/execs provisionally,
// signalling that the caller must consult the approval coordinator.
func Check(op Operation, filePath string, ctx Context) Decision {
	mode := ctx.resolveMode()

	if mode == ModeUnset || mode == ModeAuto || mode == ModeDangerouslySkip {
		return allowed()
	}

	if filePath != "" && ctx.HomeDir != "" && isWithinHome(filePath, ctx.HomeDir) {
		return allowed()
	}

	switch mode {
	case ModePlan:
		if op == OpRead {
			return allowed()
		}
		return denied("Plan mode only permits reads; switch to ask or auto mode to make changes")
	case ModeAsk:
		if op == OpRead {
			return allowed()
		}
		return deferredToApproval("ask mode requires interactive approval for " + string(op) + " operations")
	default:
		return allowed()
	}
}

// isWithinHome reports whether path resolves inside homeDir.
func isWithinHome(path, homeDir string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absHome, err := filepath.Abs(homeDir)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(absHome, absPath)
	if err != nil {
		return false
	}
	return rel == "." || (!strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel))
}
