// Package planner walks manifests in topological order and, for each
// resource intent, computes current vs. target state and assigns a drift
// classification. It never mutates the filesystem; package-manager probing
// is the only host interaction, and it's read-only.
package planner

import (
	"context"
	"os"
	"path/filepath"

	"github.com/icepuma/keron/internal/manifest"
	"github.com/icepuma/keron/internal/packagemgr"
	"github.com/icepuma/keron/internal/template"
)

// Services are the external collaborators the planner needs: template
// rendering and package-manager lookup. Both default to the real
// implementations when left nil, so callers in production code can pass a
// zero Services{}; tests inject fakes for determinism.
type Services struct {
	Render func(templateText string, vars map[string]string) (string, error)
	Lookup func(manager string) (packagemgr.Manager, error)
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

// planner carries the running seq counter across the whole walk.
type planner struct {
	seq uint64
	svc Services
	ctx context.Context
}

// Plan walks manifests (already in topological order — see
// internal/graph) and, within each manifest, its intents in declaration
// order, producing one ordered PlanOp per resource. manifests is never
// mutated and no file on disk is written.
func Plan(ctx context.Context, manifests []*manifest.Manifest, svc Services) manifest.Plan {
	p := &planner{svc: svc, ctx: ctx}
	var ops []manifest.PlanOp
	for _, m := range manifests {
		for _, intent := range m.Intents {
			switch v := intent.(type) {
			case manifest.Link:
				ops = append(ops, p.planLink(v))
			case manifest.Template:
				ops = append(ops, p.planTemplate(v))
			case manifest.Packages:
				ops = append(ops, p.planPackages(v)...)
			case manifest.Cmd:
				ops = append(ops, p.planCmd(v))
			}
		}
	}
	return manifest.Plan{Ops: ops}
}

func (p *planner) nextSeq() uint64 {
	p.seq++
	return p.seq
}

func baseOp(seq uint64, origin manifest.ID, kind manifest.OpKind) manifest.PlanOp {
	return manifest.PlanOp{Seq: seq, Origin: origin, Kind: kind}
}

func (p *planner) planLink(l manifest.Link) manifest.PlanOp {
	seq := p.nextSeq()
	op := baseOp(seq, l.Manifest, manifest.OpCreateLink)
	op.Src, op.Dest, op.MkDirs, op.Force = l.Src, l.Dest, l.MkDirs, l.Force

	srcAbs := filepath.Join(filepath.Dir(string(l.Manifest)), l.Src)
	if _, err := os.Lstat(srcAbs); err != nil {
		op.Classification = manifest.Conflict
		op.Reason = manifest.ReasonSourceMissing
		op.Detail = srcAbs
		return op
	}

	destInfo, err := os.Lstat(l.Dest)
	if err != nil {
		if !os.IsNotExist(err) {
			op.Classification = manifest.Error
			op.Detail = err.Error()
			return op
		}
		parent := filepath.Dir(l.Dest)
		if parentInfo, perr := os.Stat(parent); perr == nil && parentInfo.IsDir() {
			op.Classification = manifest.Change
			op.Kind = manifest.OpCreateLink
		} else if l.MkDirs {
			op.Classification = manifest.Change
			op.Kind = manifest.OpCreateDirsAndLink
		} else {
			op.Classification = manifest.Conflict
			op.Reason = manifest.ReasonParentMissing
			op.Detail = parent
		}
		return op
	}

	if destInfo.Mode()&os.ModeSymlink != 0 {
		target, err := os.Readlink(l.Dest)
		if err == nil {
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(l.Dest), target)
			}
			if filepath.Clean(target) == filepath.Clean(srcAbs) {
				op.Classification = manifest.Unchanged
				return op
			}
		}
	}

	if l.Force {
		op.Classification = manifest.Change
		op.Kind = manifest.OpReplaceWithLink
	} else {
		op.Classification = manifest.Conflict
		op.Reason = manifest.ReasonDestOccupied
		op.Detail = l.Dest
	}
	return op
}

func (p *planner) planTemplate(t manifest.Template) manifest.PlanOp {
	seq := p.nextSeq()
	op := baseOp(seq, t.Manifest, manifest.OpCreateFile)
	op.Src, op.Dest, op.MkDirs, op.Force = t.Src, t.Dest, t.MkDirs, t.Force
	op.Vars = t.Vars

	srcAbs := filepath.Join(filepath.Dir(string(t.Manifest)), t.Src)
	srcBytes, err := os.ReadFile(srcAbs)
	if err != nil {
		op.Classification = manifest.Error
		op.Reason = manifest.ReasonTemplateRenderFailed
		op.Detail = err.Error()
		return op
	}

	vars := make(map[string]string, len(t.Vars))
	for k, v := range t.Vars {
		vars[k] = v.Value
	}
	rendered, err := p.svc.render()(string(srcBytes), vars)
	if err != nil {
		op.Classification = manifest.Error
		op.Reason = manifest.ReasonTemplateRenderFailed
		op.Detail = err.Error()
		return op
	}

	existing, err := os.ReadFile(t.Dest)
	if err != nil {
		if !os.IsNotExist(err) {
			op.Classification = manifest.Error
			op.Detail = err.Error()
			return op
		}
		parent := filepath.Dir(t.Dest)
		if parentInfo, perr := os.Stat(parent); perr == nil && parentInfo.IsDir() {
			op.Classification = manifest.Change
		} else if t.MkDirs {
			op.Classification = manifest.Change
		} else {
			op.Classification = manifest.Conflict
			op.Reason = manifest.ReasonParentMissing
			op.Detail = parent
		}
		return op
	}

	if string(existing) == rendered {
		op.Classification = manifest.Unchanged
		return op
	}
	if t.Force {
		op.Classification = manifest.Change
		op.Kind = manifest.OpRewriteFile
	} else {
		op.Classification = manifest.Conflict
		op.Reason = manifest.ReasonDestOccupied
		op.Detail = t.Dest
	}
	return op
}

func (p *planner) planPackages(pk manifest.Packages) []manifest.PlanOp {
	ops := make([]manifest.PlanOp, 0, len(pk.Names))
	mgr, lookupErr := p.svc.lookup()(pk.Manager)
	for _, name := range pk.Names {
		seq := p.nextSeq()
		op := baseOp(seq, pk.Manifest, manifest.OpInstallPackage)
		op.Manager, op.Package = pk.Manager, name

		if lookupErr != nil || !mgr.Available() {
			op.Classification = manifest.Error
			op.Reason = manifest.ReasonPackageManagerUnavailable
			if lookupErr != nil {
				op.Detail = lookupErr.Error()
			} else {
				op.Detail = pk.Manager + ": binary not available"
			}
			ops = append(ops, op)
			continue
		}

		installed, err := mgr.Installed(p.ctx, name)
		if err != nil {
			op.Classification = manifest.Error
			op.Reason = manifest.ReasonPackageManagerUnavailable
			op.Detail = err.Error()
			ops = append(ops, op)
			continue
		}

		switch pk.State {
		case manifest.PackageAbsent:
			op.Kind = manifest.OpRemovePackage
			if !installed {
				op.Classification = manifest.Unchanged
			} else {
				op.Classification = manifest.Change
			}
		default:
			op.Kind = manifest.OpInstallPackage
			if installed {
				op.Classification = manifest.Unchanged
			} else {
				op.Classification = manifest.Change
			}
		}
		ops = append(ops, op)
	}
	return ops
}

func (p *planner) planCmd(c manifest.Cmd) manifest.PlanOp {
	seq := p.nextSeq()
	op := baseOp(seq, c.Manifest, manifest.OpRunCommand)
	op.Program, op.Args = c.Program, c.Args
	op.Classification = manifest.Change
	return op
}
