// Package packagemgr defines the capability set backing the DSL's
// packages(manager, names, opts) function: a {probe, install, remove}
// adapter selected by manager name string. New managers are added by
// registering an adapter, not by modifying the planner or applier.
package packagemgr

import (
	"context"
	"fmt"
	"sync"
)

// Manager is a package-manager adapter.
type Manager interface {
	// Name is the manager identifier used in manifests, e.g. "brew".
	Name() string
	// Available reports whether the manager's binary is present on PATH (or
	// at its configured override path).
	Available() bool
	// Installed reports whether name is currently installed.
	Installed(ctx context.Context, name string) (bool, error)
	// Install installs name, failing on non-zero exit.
	Install(ctx context.Context, name string) error
	// Remove uninstalls name, failing on non-zero exit.
	Remove(ctx context.Context, name string) error
}

var (
	mu       sync.RWMutex
	managers = map[string]Manager{}
)

// Register makes a Manager available under its Name(). Typically called
// from an init() function in the adapter's own file.
func Register(m Manager) {
	mu.Lock()
	defer mu.Unlock()
	managers[m.Name()] = m
}

// Get returns the Manager registered under name.
func Get(name string) (Manager, error) {
	mu.RLock()
	defer mu.RUnlock()
	m, ok := managers[name]
	if !ok {
		return nil, fmt.Errorf("unknown package manager %q (available: %v)", name, names())
	}
	return m, nil
}

func names() []string {
	out := make([]string, 0, len(managers))
	for name := range managers {
		out = append(out, name)
	}
	return out
}
