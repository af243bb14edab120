package graph

import (
	"strings"
	"testing"

	"github.com/icepuma/keron/internal/keronerr"
	"github.com/icepuma/keron/internal/manifest"
)

func mustID(t *testing.T, s string) manifest.ID {
	t.Helper()
	return manifest.ID(s)
}

func TestBuildTopologicalOrder(t *testing.T) {
	base := mustID(t, "/src/base.lua")
	workstation := mustID(t, "/src/workstation.lua")

	manifests := []*manifest.Manifest{
		{ID: workstation, DependsOn: []manifest.ID{base}},
		{ID: base},
	}

	order, err := Build(manifests)
	if err != nil {
		t.Fatal(err)
	}
	if len(order) != 2 || order[0].ID != base || order[1].ID != workstation {
		t.Fatalf("got order %v, want [base workstation]", ids(order))
	}
}

func TestBuildLexicographicTieBreak(t *testing.T) {
	a := mustID(t, "/src/a.lua")
	b := mustID(t, "/src/b.lua")
	c := mustID(t, "/src/c.lua")

	// No edges at all: three independent roots, order must be purely
	// lexicographic regardless of input order.
	manifests := []*manifest.Manifest{
		{ID: c}, {ID: a}, {ID: b},
	}

	order, err := Build(manifests)
	if err != nil {
		t.Fatal(err)
	}
	got := ids(order)
	want := []manifest.ID{a, b, c}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}

func TestBuildCycleDetected(t *testing.T) {
	a := mustID(t, "/src/a.lua")
	b := mustID(t, "/src/b.lua")

	manifests := []*manifest.Manifest{
		{ID: a, DependsOn: []manifest.ID{b}},
		{ID: b, DependsOn: []manifest.ID{a}},
	}

	_, err := Build(manifests)
	kerr, ok := err.(*keronerr.Error)
	if !ok {
		t.Fatalf("expected *keronerr.Error, got %T: %v", err, err)
	}
	if kerr.Kind != keronerr.CycleDetected {
		t.Fatalf("got kind %q, want cycle_detected", kerr.Kind)
	}
	if !strings.Contains(kerr.Detail, string(a)) || !strings.Contains(kerr.Detail, string(b)) {
		t.Errorf("cycle detail %q should name both a.lua and b.lua", kerr.Detail)
	}
}

func TestBuildUnknownDependency(t *testing.T) {
	a := mustID(t, "/src/a.lua")
	missing := mustID(t, "/src/missing.lua")

	manifests := []*manifest.Manifest{
		{ID: a, DependsOn: []manifest.ID{missing}},
	}

	_, err := Build(manifests)
	kerr, ok := err.(*keronerr.Error)
	if !ok {
		t.Fatalf("expected *keronerr.Error, got %T: %v", err, err)
	}
	if kerr.Kind != keronerr.UnknownDependency {
		t.Fatalf("got kind %q, want unknown_dependency", kerr.Kind)
	}
}

func ids(ms []*manifest.Manifest) []manifest.ID {
	out := make([]manifest.ID, len(ms))
	for i, m := range ms {
		out[i] = m.ID
	}
	return out
}
