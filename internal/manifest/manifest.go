// Package manifest holds the shared value types produced by evaluation and
// consumed by the graph builder, planner, and applier: manifests, resource
// intents, rendered values, plan operations, and apply outcomes.
package manifest

import "path/filepath"

// ID is the canonical absolute path of a .lua manifest file. Equality is
// byte-exact path comparison after canonicalization.
type ID string

// Canon resolves p to its canonical absolute form for use as an ID.
func Canon(p string) (ID, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	return ID(filepath.Clean(abs)), nil
}

func (id ID) String() string { return string(id) }

// Manifest is the immutable result of evaluating one .lua file: its
// dependency edges and the resource intents it declared, in source order.
type Manifest struct {
	ID         ID
	SourceText []byte
	DependsOn  []ID
	Intents    []ResourceIntent
}

// RenderedValue pairs a string with a taint bit. The bit is set whenever the
// value (or any value it was derived from) came from secret(...); it is
// transitive — any template variable built from a sensitive RenderedValue is
// itself sensitive, and reporters must redact it.
type RenderedValue struct {
	Value     string
	Sensitive bool
}

// ResourceIntent is the tagged-variant contract every concrete intent type
// satisfies. It carries no behavior beyond self-identification: the planner
// type-switches on the concrete type.
type ResourceIntent interface {
	Origin() ID
	isResourceIntent()
}

// Link declares a symlink from src (resolved relative to the owning
// manifest) to an absolute dest.
type Link struct {
	Src     string
	Dest    string
	MkDirs  bool
	Force   bool
	Manifest ID
}

func (l Link) Origin() ID    { return l.Manifest }
func (Link) isResourceIntent() {}

// Template declares a rendered file written to dest.
type Template struct {
	Src      string
	Dest     string
	MkDirs   bool
	Force    bool
	Vars     map[string]RenderedValue
	Manifest ID
}

func (t Template) Origin() ID    { return t.Manifest }
func (Template) isResourceIntent() {}

// PackageState is the desired presence state for a Packages intent.
type PackageState string

const (
	PackagePresent PackageState = "present"
	PackageAbsent  PackageState = "absent"
)

// Packages declares a batch of packages for one manager. The planner expands
// it into one PlanOp per name, in the given order.
type Packages struct {
	Manager  string
	Names    []string
	State    PackageState
	Manifest ID
}

func (p Packages) Origin() ID    { return p.Manifest }
func (Packages) isResourceIntent() {}

// Cmd declares an ad-hoc command to run during apply. Idempotence is the
// manifest author's responsibility; Cmd is always classified Change.
type Cmd struct {
	Program  string
	Args     []string
	Manifest ID
}

func (c Cmd) Origin() ID    { return c.Manifest }
func (Cmd) isResourceIntent() {}
