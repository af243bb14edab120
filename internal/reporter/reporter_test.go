package reporter

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/icepuma/keron/internal/manifest"
)

func samplePlan() manifest.Plan {
	return manifest.Plan{Ops: []manifest.PlanOp{
		{Seq: 1, Kind: manifest.OpCreateFile, Classification: manifest.Change, Dest: "/tmp/out",
			Vars: map[string]manifest.RenderedValue{"token": {Value: "super-secret", Sensitive: true}}},
		{Seq: 2, Kind: manifest.OpCreateLink, Classification: manifest.Unchanged, Src: "a", Dest: "/tmp/b"},
	}}
}

func TestReportTextRedactsSensitiveVars(t *testing.T) {
	var buf bytes.Buffer
	err := Report(samplePlan(), nil, 0, Options{Format: FormatText, Color: ColorNever, Out: &buf})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "super-secret") {
		t.Errorf("sensitive value leaked into text output: %s", buf.String())
	}
}

func TestReportJSONRedactsSensitiveVars(t *testing.T) {
	var buf bytes.Buffer
	err := Report(samplePlan(), nil, 0, Options{Format: FormatJSON, Color: ColorNever, Out: &buf})
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(buf.String(), "super-secret") {
		t.Fatalf("sensitive value leaked into JSON output: %s", buf.String())
	}

	var parsed jsonReport
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatal(err)
	}
	if parsed.Ops[0].Vars["token"] != redacted {
		t.Errorf("got %q, want %q", parsed.Ops[0].Vars["token"], redacted)
	}
}

func TestExitCodeDryRun(t *testing.T) {
	clean := manifest.Plan{Ops: []manifest.PlanOp{{Classification: manifest.Unchanged}}}
	if got := ExitCode(clean, nil); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
	drifted := manifest.Plan{Ops: []manifest.PlanOp{{Classification: manifest.Change}}}
	if got := ExitCode(drifted, nil); got != 2 {
		t.Errorf("got %d, want 2", got)
	}
}

func TestExitCodeExecute(t *testing.T) {
	plan := manifest.Plan{Ops: []manifest.PlanOp{{Seq: 1, Classification: manifest.Change}}}
	ok := &manifest.ApplyResult{Outcomes: []manifest.ApplyOutcome{{Seq: 1, Kind: manifest.Ok}}}
	if got := ExitCode(plan, ok); got != 0 {
		t.Errorf("got %d, want 0", got)
	}
	failed := &manifest.ApplyResult{Outcomes: []manifest.ApplyOutcome{{Seq: 1, Kind: manifest.Failed}}}
	if got := ExitCode(plan, failed); got != 1 {
		t.Errorf("got %d, want 1", got)
	}
}
