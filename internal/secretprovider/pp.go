package secretprovider

import (
	"context"
	"fmt"
	"strings"

	"github.com/icepuma/keron/internal/procexec"
)

// ppProvider implements Provider for the Proton Pass secret scheme (pp://).
// It shells out to the pass-cli binary, which is expected to print a
// single-line secret on stdout and exit non-zero on failure.
type ppProvider struct {
	binaryPath func() string
}

func init() {
	Register(&ppProvider{binaryPath: func() string { return "pass-cli" }})
}

func (p *ppProvider) Scheme() string { return "pp" }

func (p *ppProvider) Fetch(path string) (string, error) {
	bin := p.binaryPath()
	if !procexec.CommandExists(bin) {
		return "", fmt.Errorf("pp secret provider: %s not found on PATH", bin)
	}
	out, err := procexec.Capture(context.Background(), bin, "get", path)
	if err != nil {
		return "", fmt.Errorf("pp secret provider: lookup failed for %q: %w", path, err)
	}
	line := strings.SplitN(out, "\n", 2)[0]
	if line == "" {
		return "", fmt.Errorf("pp secret provider: empty secret for %q", path)
	}
	return line, nil
}

// SetPassCLIPath overrides the pass-cli binary path used by the registered
// pp provider. Intended for wiring config.PassCLIPath() at startup and for
// tests.
func SetPassCLIPath(path string) {
	if p, err := Get("pp"); err == nil {
		if pp, ok := p.(*ppProvider); ok {
			pp.binaryPath = func() string { return path }
		}
	}
}
