// Package evaluator hosts the sandboxed scripting environment that turns a
// single .lua manifest into a Manifest: its depends_on edges and the
// resource intents it declared, in source order. Each manifest gets a
// fresh Lua state — globals and side effects never leak between manifests.
package evaluator

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/icepuma/keron/internal/keronerr"
	"github.com/icepuma/keron/internal/manifest"
)

// Options configures host-facing behavior that must be injectable for
// deterministic tests: environment lookup, OS family, and the set of
// manifests discovery already found (depends_on targets are validated
// against it).
type Options struct {
	// LookupEnv resolves a host environment variable. Defaults to
	// os.LookupEnv when nil.
	LookupEnv func(name string) (string, bool)
	// GOOS overrides runtime.GOOS for is_macos/is_linux/is_windows.
	// Defaults to runtime.GOOS when empty.
	GOOS string
	// Discovered is the full set of manifest IDs discovery produced for
	// this run. depends_on fails with UnknownDependency if its target
	// isn't in this set.
	Discovered map[manifest.ID]bool
}

func (o Options) lookupEnv() func(string) (string, bool) {
	if o.LookupEnv != nil {
		return o.LookupEnv
	}
	return os.LookupEnv
}

func (o Options) goos() string {
	if o.GOOS != "" {
		return o.GOOS
	}
	return runtime.GOOS
}

// state accumulates everything a single manifest evaluation produces, plus
// the first fatal error raised by a bound function. It is never shared
// across manifests.
type state struct {
	id        manifest.ID
	dir       string
	opts      Options
	intents   []manifest.ResourceIntent
	dependsOn []manifest.ID
	fatal     error
}

// fail records err as the manifest's fatal error and raises a Lua error to
// unwind the running chunk. Bound functions call this and then `return 0`;
// RaiseError never returns, but the call site still needs a value for Go's
// control flow to type-check.
func (st *state) fail(L *lua.LState, err error) {
	st.fatal = err
	L.RaiseError("%s", err.Error())
}

// Evaluate runs the manifest at id (an absolute .lua path) in a fresh,
// restricted Lua VM and returns the resulting Manifest. Only the functions
// in the DSL table (depends_on, link, template, packages, cmd, env, secret,
// is_macos, is_linux, is_windows), plus an always-erroring legacy package
// stub, are bound; no io/os/package Lua stdlib is
// opened, so manifests have no filesystem or process access beyond those
// functions.
func Evaluate(id manifest.ID, opts Options) (*manifest.Manifest, error) {
	sourceText, err := os.ReadFile(string(id))
	if err != nil {
		return nil, keronerr.Wrap(keronerr.RuntimeError, string(id), err)
	}

	st := &state{id: id, dir: filepath.Dir(string(id)), opts: opts}

	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	defer L.Close()

	// Only base, string, table, and math: enough for ordinary expressions
	// and literals in a manifest. No io, os, package, or debug library is
	// opened, so manifests have no filesystem/process access beyond the
	// functions bind() registers below.
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.StringLibName, lua.OpenString},
		{lua.TabLibName, lua.OpenTable},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		if err := L.PCall(1, 0, nil); err != nil {
			return nil, keronerr.Wrap(keronerr.RuntimeError, "stdlib init", err)
		}
	}
	// The base library also defines dofile and loadfile, which read files
	// from disk; they are removed so the sandbox holds.
	L.SetGlobal("dofile", lua.LNil)
	L.SetGlobal("loadfile", lua.LNil)

	bind(L, st)

	if err := L.DoFile(string(id)); err != nil {
		if st.fatal != nil {
			return nil, st.fatal
		}
		if strings.Contains(err.Error(), "syntax error") {
			return nil, keronerr.Wrap(keronerr.SyntaxError, string(id), err)
		}
		return nil, keronerr.Wrap(keronerr.RuntimeError, string(id), err)
	}

	return &manifest.Manifest{
		ID:         id,
		SourceText: sourceText,
		DependsOn:  st.dependsOn,
		Intents:    st.intents,
	}, nil
}
