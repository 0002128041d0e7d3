package sandbox

import "errors"

// Errors returned by ResolveSandboxPath, per the taxonomy in spec §7.
var (
	// ErrPathEscapesSandbox is returned when the resolved path falls outside root.
	ErrPathEscapesSandbox = errors.New("sandbox: path escapes sandbox root")
	// ErrSensitivePath is returned when the resolved path matches the sensitive-pattern set.
	ErrSensitivePath = errors.New("sandbox: path matches a sensitive location")
	// ErrSymlinkForbidden is returned when an ancestor of the resolved path is a symlink.
	ErrSymlinkForbidden = errors.New("sandbox: symlink not permitted in resolved path")
)
