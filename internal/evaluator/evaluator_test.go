package evaluator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/icepuma/keron/internal/keronerr"
	"github.com/icepuma/keron/internal/manifest"
)

func writeManifest(t *testing.T, dir, name, body string) manifest.ID {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	id, err := manifest.Canon(path)
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func TestEvaluateLinkIntent(t *testing.T) {
	dir := t.TempDir()
	id := writeManifest(t, dir, "a.lua", `link("files/zshrc", "/tmp/ex/.zshrc", { mkdirs = true })`)

	m, err := Evaluate(id, Options{Discovered: map[manifest.ID]bool{id: true}})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Intents) != 1 {
		t.Fatalf("expected 1 intent, got %d", len(m.Intents))
	}
	link, ok := m.Intents[0].(manifest.Link)
	if !ok {
		t.Fatalf("expected Link, got %T", m.Intents[0])
	}
	if link.Src != "files/zshrc" || link.Dest != "/tmp/ex/.zshrc" || !link.MkDirs || link.Force {
		t.Errorf("unexpected link: %+v", link)
	}
}

func TestEvaluateLinkRequiresAbsoluteDest(t *testing.T) {
	dir := t.TempDir()
	id := writeManifest(t, dir, "a.lua", `link("src", "relative/dest", {})`)

	_, err := Evaluate(id, Options{})
	var kerr *keronerr.Error
	if !assertKind(t, err, &kerr, keronerr.InvalidArgument) {
		return
	}
}

func TestEvaluateIntentOrderMatchesDeclaration(t *testing.T) {
	dir := t.TempDir()
	id := writeManifest(t, dir, "a.lua", `
cmd("echo", {"one"})
cmd("echo", {"two"})
cmd("echo", {"three"})
`)

	m, err := Evaluate(id, Options{})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"one", "two", "three"}
	for i, intent := range m.Intents {
		c, ok := intent.(manifest.Cmd)
		if !ok {
			t.Fatalf("intent %d: expected Cmd, got %T", i, intent)
		}
		if c.Args[0] != want[i] {
			t.Errorf("intent %d: got arg %q, want %q", i, c.Args[0], want[i])
		}
	}
}

func TestEvaluateIsolationBetweenManifests(t *testing.T) {
	dir := t.TempDir()
	idA := writeManifest(t, dir, "a.lua", `
x = 1
cmd("echo", {"a"})
`)
	idB := writeManifest(t, dir, "b.lua", `
cmd("echo", x == nil and {"b-clean"} or {"b-leaked"})
`)

	discovered := map[manifest.ID]bool{idA: true, idB: true}
	if _, err := Evaluate(idA, Options{Discovered: discovered}); err != nil {
		t.Fatal(err)
	}
	mb, err := Evaluate(idB, Options{Discovered: discovered})
	if err != nil {
		t.Fatal(err)
	}
	c := mb.Intents[0].(manifest.Cmd)
	if c.Args[0] != "b-clean" {
		t.Errorf("global x leaked across manifest evaluations: got arg %q", c.Args[0])
	}
}

func TestEvaluateEnvMissing(t *testing.T) {
	dir := t.TempDir()
	id := writeManifest(t, dir, "a.lua", `
v = env("KERON_TEST_DOES_NOT_EXIST_12345")
`)

	_, err := Evaluate(id, Options{LookupEnv: func(string) (string, bool) { return "", false }})
	var kerr *keronerr.Error
	assertKind(t, err, &kerr, keronerr.MissingEnv)
}

func TestEvaluateEnvPresentFeedsTemplateVars(t *testing.T) {
	dir := t.TempDir()
	id := writeManifest(t, dir, "a.lua", `
template("files/tpl", "/tmp/ex/out", { vars = { user = env("USER") } })
`)

	m, err := Evaluate(id, Options{LookupEnv: func(name string) (string, bool) {
		if name == "USER" {
			return "keron", true
		}
		return "", false
	}})
	if err != nil {
		t.Fatal(err)
	}
	tpl := m.Intents[0].(manifest.Template)
	rv := tpl.Vars["user"]
	if rv.Value != "keron" || rv.Sensitive {
		t.Errorf("got %+v, want {keron false}", rv)
	}
}

func TestEvaluateDependsOnUnknown(t *testing.T) {
	dir := t.TempDir()
	id := writeManifest(t, dir, "a.lua", `depends_on("missing.lua")`)

	_, err := Evaluate(id, Options{Discovered: map[manifest.ID]bool{id: true}})
	var kerr *keronerr.Error
	assertKind(t, err, &kerr, keronerr.UnknownDependency)
}

func TestEvaluateDependsOnKnown(t *testing.T) {
	dir := t.TempDir()
	idB := writeManifest(t, dir, "b.lua", ``)
	idA := writeManifest(t, dir, "a.lua", `depends_on("b.lua")`)

	discovered := map[manifest.ID]bool{idA: true, idB: true}
	m, err := Evaluate(idA, Options{Discovered: discovered})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.DependsOn) != 1 || m.DependsOn[0] != idB {
		t.Errorf("got DependsOn %v, want [%v]", m.DependsOn, idB)
	}
}

func TestEvaluatePackagesDefaultState(t *testing.T) {
	dir := t.TempDir()
	id := writeManifest(t, dir, "a.lua", `packages("brew", {"git", "jq"})`)

	m, err := Evaluate(id, Options{})
	if err != nil {
		t.Fatal(err)
	}
	p := m.Intents[0].(manifest.Packages)
	if p.State != manifest.PackagePresent {
		t.Errorf("got state %q, want present", p.State)
	}
	if len(p.Names) != 2 || p.Names[0] != "git" || p.Names[1] != "jq" {
		t.Errorf("got names %v", p.Names)
	}
}

func TestEvaluatePackagesInvalidState(t *testing.T) {
	dir := t.TempDir()
	id := writeManifest(t, dir, "a.lua", `packages("brew", {"git"}, { state = "purged" })`)

	_, err := Evaluate(id, Options{})
	var kerr *keronerr.Error
	assertKind(t, err, &kerr, keronerr.InvalidArgument)
}

func TestEvaluateLegacyPackageRejected(t *testing.T) {
	dir := t.TempDir()
	id := writeManifest(t, dir, "a.lua", `package("brew", "git")`)

	_, err := Evaluate(id, Options{})
	var kerr *keronerr.Error
	assertKind(t, err, &kerr, keronerr.InvalidArgument)
}

func TestEvaluateOSGuards(t *testing.T) {
	dir := t.TempDir()
	id := writeManifest(t, dir, "a.lua", `
if is_linux() then
  cmd("echo", {"linux"})
end
if is_macos() then
  cmd("echo", {"macos"})
end
`)

	m, err := Evaluate(id, Options{GOOS: "linux"})
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Intents) != 1 {
		t.Fatalf("expected 1 intent, got %d", len(m.Intents))
	}
	c := m.Intents[0].(manifest.Cmd)
	if c.Args[0] != "linux" {
		t.Errorf("got %q, want linux", c.Args[0])
	}
}

func TestEvaluateSyntaxError(t *testing.T) {
	dir := t.TempDir()
	id := writeManifest(t, dir, "a.lua", `link(`)

	_, err := Evaluate(id, Options{})
	var kerr *keronerr.Error
	assertKind(t, err, &kerr, keronerr.SyntaxError)
}

func assertKind(t *testing.T, err error, target **keronerr.Error, want keronerr.Kind) bool {
	t.Helper()
	if err == nil {
		t.Fatal("expected an error, got nil")
		return false
	}
	kerr, ok := err.(*keronerr.Error)
	if !ok {
		t.Fatalf("expected *keronerr.Error, got %T: %v", err, err)
		return false
	}
	*target = kerr
	if kerr.Kind != want {
		t.Errorf("got kind %q, want %q", kerr.Kind, want)
		return false
	}
	return true
}
