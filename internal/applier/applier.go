// Package applier executes a Plan against the host. It is the only
// component that mutates the filesystem or spawns a non-probe child
// process, and it does so strictly in seq order, stopping at the first
// Failed op. Already-performed ops are never rolled back.
package applier

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/icepuma/keron/internal/keronerr"
	"github.com/icepuma/keron/internal/logging"
	"github.com/icepuma/keron/internal/manifest"
	"github.com/icepuma/keron/internal/packagemgr"
	"github.com/icepuma/keron/internal/procexec"
	"github.com/icepuma/keron/internal/template"
)

// Services are the external collaborators Apply needs. All default to the
// real implementations when left nil.
type Services struct {
	Render func(templateText string, vars map[string]string) (string, error)
	Lookup func(manager string) (packagemgr.Manager, error)
	Log    logging.Logger
}

func (s Services) render() func(string, map[string]string) (string, error) {
	if s.Render != nil {
		return s.Render
	}
	return template.Render
}

func (s Services) lookup() func(string) (packagemgr.Manager, error) {
	if s.Lookup != nil {
		return s.Lookup
	}
	return packagemgr.Get
}

// Apply executes plan.Ops in seq order. It stops at the first op that
// reaches Failed; ops after the halt point are not recorded at all (they
// were never attempted).
func Apply(ctx context.Context, plan manifest.Plan, svc Services) manifest.ApplyResult {
	result := manifest.ApplyResult{Outcomes: make([]manifest.ApplyOutcome, 0, len(plan.Ops))}

	for _, op := range plan.Ops {
		if err := ctx.Err(); err != nil {
			result.Outcomes = append(result.Outcomes, manifest.ApplyOutcome{
				Seq: op.Seq, Kind: manifest.Failed, Reason: "cancelled: " + err.Error(),
			})
			result.Halted = true
			break
		}

		outcome := applyOne(ctx, op, svc)
		result.Outcomes = append(result.Outcomes, outcome)
		if outcome.Kind == manifest.Failed {
			result.Halted = true
			break
		}
	}
	return result
}

func applyOne(ctx context.Context, op manifest.PlanOp, svc Services) manifest.ApplyOutcome {
	switch op.Classification {
	case manifest.Unchanged:
		return manifest.ApplyOutcome{Seq: op.Seq, Kind: manifest.Skipped}
	case manifest.Conflict:
		return manifest.ApplyOutcome{Seq: op.Seq, Kind: manifest.Skipped, Reason: string(op.Reason) + ": " + op.Detail}
	case manifest.Error:
		return manifest.ApplyOutcome{Seq: op.Seq, Kind: manifest.Skipped, Reason: string(op.Reason) + ": " + op.Detail}
	}

	switch op.Kind {
	case manifest.OpCreateLink, manifest.OpCreateDirsAndLink, manifest.OpReplaceWithLink:
		return applyLink(op)
	case manifest.OpCreateFile, manifest.OpRewriteFile:
		return applyTemplate(op, svc)
	case manifest.OpInstallPackage, manifest.OpRemovePackage:
		return applyPackage(ctx, op, svc)
	case manifest.OpRunCommand:
		return applyCmd(ctx, op, svc)
	default:
		return manifest.ApplyOutcome{Seq: op.Seq, Kind: manifest.Failed, Reason: "unknown op kind " + string(op.Kind)}
	}
}

func applyLink(op manifest.PlanOp) manifest.ApplyOutcome {
	if op.Kind == manifest.OpCreateDirsAndLink {
		if err := os.MkdirAll(filepath.Dir(op.Dest), 0o755); err != nil {
			return manifest.ApplyOutcome{Seq: op.Seq, Kind: manifest.Failed, Reason: fmt.Sprintf("%s: mkdir: %v", keronerr.FilesystemError, err)}
		}
	}
	if op.Kind == manifest.OpReplaceWithLink {
		if err := os.RemoveAll(op.Dest); err != nil {
			return manifest.ApplyOutcome{Seq: op.Seq, Kind: manifest.Failed, Reason: fmt.Sprintf("%s: remove existing dest: %v", keronerr.FilesystemError, err)}
		}
	}

	srcAbs := filepath.Join(filepath.Dir(string(op.Origin)), op.Src)
	if err := os.Symlink(srcAbs, op.Dest); err != nil {
		return manifest.ApplyOutcome{Seq: op.Seq, Kind: manifest.Failed, Reason: fmt.Sprintf("%s: symlink: %v", keronerr.FilesystemError, err)}
	}
	return manifest.ApplyOutcome{Seq: op.Seq, Kind: manifest.Ok}
}

func applyTemplate(op manifest.PlanOp, svc Services) manifest.ApplyOutcome {
	if op.MkDirs {
		if err := os.MkdirAll(filepath.Dir(op.Dest), 0o755); err != nil {
			return manifest.ApplyOutcome{Seq: op.Seq, Kind: manifest.Failed, Reason: fmt.Sprintf("%s: mkdir: %v", keronerr.FilesystemError, err)}
		}
	}

	srcAbs := filepath.Join(filepath.Dir(string(op.Origin)), op.Src)
	srcBytes, err := os.ReadFile(srcAbs)
	if err != nil {
		return manifest.ApplyOutcome{Seq: op.Seq, Kind: manifest.Failed, Reason: fmt.Sprintf("%s: read template source: %v", keronerr.FilesystemError, err)}
	}
	vars := make(map[string]string, len(op.Vars))
	for k, v := range op.Vars {
		vars[k] = v.Value
	}
	rendered, err := svc.render()(string(srcBytes), vars)
	if err != nil {
		return manifest.ApplyOutcome{Seq: op.Seq, Kind: manifest.Failed, Reason: fmt.Sprintf("render: %v", err)}
	}

	if err := writeAtomic(op.Dest, []byte(rendered)); err != nil {
		return manifest.ApplyOutcome{Seq: op.Seq, Kind: manifest.Failed, Reason: fmt.Sprintf("%s: write: %v", keronerr.FilesystemError, err)}
	}
	return manifest.ApplyOutcome{Seq: op.Seq, Kind: manifest.Ok}
}

// writeAtomic writes data to dest via a temp file in the same directory
// followed by rename, so a crash mid-write never leaves a half-written
// dest behind.
func writeAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	tmp, err := os.CreateTemp(dir, ".keron-tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, dest)
}

func applyPackage(ctx context.Context, op manifest.PlanOp, svc Services) manifest.ApplyOutcome {
	mgr, err := svc.lookup()(op.Manager)
	if err != nil {
		return manifest.ApplyOutcome{Seq: op.Seq, Kind: manifest.Failed, Reason: fmt.Sprintf("%s: %v", keronerr.PackageManagerFailure, err)}
	}

	switch op.Kind {
	case manifest.OpInstallPackage:
		err = mgr.Install(ctx, op.Package)
	case manifest.OpRemovePackage:
		err = mgr.Remove(ctx, op.Package)
	}
	if err != nil {
		return manifest.ApplyOutcome{Seq: op.Seq, Kind: manifest.Failed, Reason: fmt.Sprintf("%s: %s %s: %v", keronerr.PackageManagerFailure, op.Manager, op.Package, err)}
	}
	return manifest.ApplyOutcome{Seq: op.Seq, Kind: manifest.Ok}
}

func applyCmd(ctx context.Context, op manifest.PlanOp, svc Services) manifest.ApplyOutcome {
	err := procexec.Run(ctx, op.Program, op.Args...)
	if err != nil {
		code := procexec.ExitCode(err)
		return manifest.ApplyOutcome{Seq: op.Seq, Kind: manifest.Failed, Reason: fmt.Sprintf("%s(%d): %v", keronerr.CommandExit, code, err)}
	}
	return manifest.ApplyOutcome{Seq: op.Seq, Kind: manifest.Ok}
}
