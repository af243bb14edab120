package packagemgr

import (
	"context"
	"fmt"

	"github.com/icepuma/keron/internal/procexec"
)

// brewManager implements Manager for Homebrew.
type brewManager struct {
	binaryPath func() string
}

func init() {
	Register(&brewManager{binaryPath: func() string { return "brew" }})
}

func (b *brewManager) Name() string { return "brew" }

func (b *brewManager) Available() bool {
	return procexec.CommandExists(b.binaryPath())
}

func (b *brewManager) Installed(ctx context.Context, name string) (bool, error) {
	if !b.Available() {
		return false, fmt.Errorf("brew: binary not found on PATH")
	}
	_, err := procexec.Capture(ctx, b.binaryPath(), "list", "--versions", name)
	if err != nil {
		return false, nil
	}
	return true, nil
}

func (b *brewManager) Install(ctx context.Context, name string) error {
	if !b.Available() {
		return fmt.Errorf("brew: binary not found on PATH")
	}
	return procexec.Run(ctx, b.binaryPath(), "install", name)
}

func (b *brewManager) Remove(ctx context.Context, name string) error {
	if !b.Available() {
		return fmt.Errorf("brew: binary not found on PATH")
	}
	return procexec.Run(ctx, b.binaryPath(), "uninstall", name)
}

// SetBrewPath overrides the brew binary path. Intended for wiring
// config.PackageManagerPath("brew") at startup and for tests.
func SetBrewPath(path string) {
	if m, err := Get("brew"); err == nil {
		if bm, ok := m.(*brewManager); ok {
			bm.binaryPath = func() string { return path }
		}
	}
}
