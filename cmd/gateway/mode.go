package main

import (
	"sync/atomic"

	"github.com/clawinfra/trustcore/internal/permission"
)

// atomicMode is the "shared atomic cell" spec.md §9 suggests as an
// alternative to a bare getter closure: a UI-driven mode change takes
// effect on the very next Get(), with no re-wrapping of tools required.
type atomicMode struct {
	v atomic.Value
}

func (m *atomicMode) Set(mode permission.Mode) {
	m.v.Store(mode)
}

// Get satisfies permission.ModeFunc.
func (m *atomicMode) Get() permission.Mode {
	v, _ := m.v.Load().(permission.Mode)
	return v
}
