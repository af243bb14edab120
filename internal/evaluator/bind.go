package evaluator

import (
	"path/filepath"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/icepuma/keron/internal/keronerr"
	"github.com/icepuma/keron/internal/manifest"
	"github.com/icepuma/keron/internal/secretprovider"
)

// bind registers every DSL function from spec §4.3 as a Lua global closing
// over st, plus the legacy package(...) stub, which always raises an error.
// No other global is touched, so a manifest's only way to affect the
// outside world or read host state is through these functions.
func bind(L *lua.LState, st *state) {
	L.SetGlobal("depends_on", L.NewFunction(st.dslDependsOn))
	L.SetGlobal("link", L.NewFunction(st.dslLink))
	L.SetGlobal("template", L.NewFunction(st.dslTemplate))
	L.SetGlobal("packages", L.NewFunction(st.dslPackages))
	L.SetGlobal("package", L.NewFunction(st.dslLegacyPackage))
	L.SetGlobal("cmd", L.NewFunction(st.dslCmd))
	L.SetGlobal("env", L.NewFunction(st.dslEnv))
	L.SetGlobal("secret", L.NewFunction(st.dslSecret))
	L.SetGlobal("is_macos", L.NewFunction(st.dslIsMacOS))
	L.SetGlobal("is_linux", L.NewFunction(st.dslIsLinux))
	L.SetGlobal("is_windows", L.NewFunction(st.dslIsWindows))
}

// renderedValue is the userdata payload returned by env(...) and
// secret(...): a RenderedValue that keeps its sensitive bit alive across
// the Lua boundary when it's later read back out of a vars table.
type renderedValue = manifest.RenderedValue

func pushRendered(L *lua.LState, v renderedValue) {
	ud := L.NewUserData()
	ud.Value = v
	L.Push(ud)
}

// coerceRendered turns a Lua value found in a vars table into a
// RenderedValue: literal strings/numbers/booleans become non-sensitive
// values, and a *lua.LUserData produced by env/secret passes its taint bit
// through unchanged.
func coerceRendered(v lua.LValue) (renderedValue, bool) {
	if ud, ok := v.(*lua.LUserData); ok {
		if rv, ok := ud.Value.(renderedValue); ok {
			return rv, true
		}
		return renderedValue{}, false
	}
	switch v.(type) {
	case lua.LString, lua.LNumber, lua.LBool:
		return renderedValue{Value: v.String()}, true
	default:
		return renderedValue{}, false
	}
}

func (st *state) dslDependsOn(L *lua.LState) int {
	relPath := L.CheckString(1)
	target, err := manifest.Canon(filepath.Join(st.dir, relPath))
	if err != nil {
		st.fail(L, keronerr.Wrap(keronerr.InvalidArgument, "depends_on: "+relPath, err))
		return 0
	}
	if !st.opts.Discovered[target] {
		st.fail(L, keronerr.New(keronerr.UnknownDependency, string(st.id)+" -> "+string(target)))
		return 0
	}
	st.dependsOn = append(st.dependsOn, target)
	return 0
}

func (st *state) dslLink(L *lua.LState) int {
	src := L.CheckString(1)
	dest := L.CheckString(2)
	opts := L.OptTable(3, L.NewTable())

	if !filepath.IsAbs(dest) {
		st.fail(L, keronerr.New(keronerr.InvalidArgument, "link: dest must be absolute, got "+dest))
		return 0
	}

	st.intents = append(st.intents, manifest.Link{
		Src:      src,
		Dest:     dest,
		MkDirs:   lua.LVAsBool(opts.RawGetString("mkdirs")),
		Force:    lua.LVAsBool(opts.RawGetString("force")),
		Manifest: st.id,
	})
	return 0
}

func (st *state) dslTemplate(L *lua.LState) int {
	src := L.CheckString(1)
	dest := L.CheckString(2)
	opts := L.OptTable(3, L.NewTable())

	if !filepath.IsAbs(dest) {
		st.fail(L, keronerr.New(keronerr.InvalidArgument, "template: dest must be absolute, got "+dest))
		return 0
	}

	vars := map[string]manifest.RenderedValue{}
	if varsTable, ok := opts.RawGetString("vars").(*lua.LTable); ok {
		var convErr error
		varsTable.ForEach(func(k, v lua.LValue) {
			if convErr != nil {
				return
			}
			rv, ok := coerceRendered(v)
			if !ok {
				convErr = keronerr.New(keronerr.InvalidArgument, "template: unsupported vars value for key "+k.String())
				return
			}
			vars[k.String()] = rv
		})
		if convErr != nil {
			st.fail(L, convErr)
			return 0
		}
	}

	st.intents = append(st.intents, manifest.Template{
		Src:      src,
		Dest:     dest,
		MkDirs:   lua.LVAsBool(opts.RawGetString("mkdirs")),
		Force:    lua.LVAsBool(opts.RawGetString("force")),
		Vars:     vars,
		Manifest: st.id,
	})
	return 0
}

func (st *state) dslPackages(L *lua.LState) int {
	manager := L.CheckString(1)
	namesTable := L.CheckTable(2)
	opts := L.OptTable(3, L.NewTable())

	names := make([]string, 0, namesTable.Len())
	for i := 1; i <= namesTable.Len(); i++ {
		names = append(names, lua.LVAsString(namesTable.RawGetInt(i)))
	}

	state := manifest.PackageState("present")
	if raw := opts.RawGetString("state"); raw != lua.LNil {
		state = manifest.PackageState(lua.LVAsString(raw))
	}
	if state != manifest.PackagePresent && state != manifest.PackageAbsent {
		st.fail(L, keronerr.New(keronerr.InvalidArgument, "packages: state must be present or absent, got "+string(state)))
		return 0
	}

	st.intents = append(st.intents, manifest.Packages{
		Manager:  manager,
		Names:    names,
		State:    state,
		Manifest: st.id,
	})
	return 0
}

func (st *state) dslLegacyPackage(L *lua.LState) int {
	st.fail(L, keronerr.New(keronerr.InvalidArgument, "package(...) is no longer supported; use packages(manager, names, opts)"))
	return 0
}

func (st *state) dslCmd(L *lua.LState) int {
	program := L.CheckString(1)
	var args []string
	if L.GetTop() >= 2 {
		argsTable := L.CheckTable(2)
		args = make([]string, 0, argsTable.Len())
		for i := 1; i <= argsTable.Len(); i++ {
			args = append(args, lua.LVAsString(argsTable.RawGetInt(i)))
		}
	}

	st.intents = append(st.intents, manifest.Cmd{
		Program:  program,
		Args:     args,
		Manifest: st.id,
	})
	return 0
}

func (st *state) dslEnv(L *lua.LState) int {
	name := L.CheckString(1)
	value, ok := st.opts.lookupEnv()(name)
	if !ok {
		st.fail(L, keronerr.New(keronerr.MissingEnv, name))
		return 0
	}
	pushRendered(L, manifest.RenderedValue{Value: value, Sensitive: false})
	return 1
}

func (st *state) dslSecret(L *lua.LState) int {
	uri := L.CheckString(1)
	scheme, path, found := strings.Cut(uri, "://")
	if !found {
		st.fail(L, keronerr.New(keronerr.InvalidArgument, "secret: malformed URI "+uri))
		return 0
	}

	provider, err := secretprovider.Get(scheme)
	if err != nil {
		st.fail(L, keronerr.Wrap(keronerr.SecretError, uri, err))
		return 0
	}
	value, err := provider.Fetch(path)
	if err != nil {
		st.fail(L, keronerr.Wrap(keronerr.SecretError, uri, err))
		return 0
	}

	pushRendered(L, manifest.RenderedValue{Value: value, Sensitive: true})
	return 1
}

func (st *state) dslIsMacOS(L *lua.LState) int {
	L.Push(lua.LBool(st.opts.goos() == "darwin"))
	return 1
}

func (st *state) dslIsLinux(L *lua.LState) int {
	L.Push(lua.LBool(st.opts.goos() == "linux"))
	return 1
}

func (st *state) dslIsWindows(L *lua.LState) int {
	L.Push(lua.LBool(st.opts.goos() == "windows"))
	return 1
}
