// Package reporter renders a Plan (and, after --execute, an ApplyResult) as
// text or JSON, redacting sensitive values and deriving the process exit
// code from spec §6's table. It is the only package allowed to print a
// RenderedValue's contents — and only after checking its taint bit.
package reporter

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/icepuma/keron/internal/manifest"
)

const redacted = "***redacted***"

// Format selects the rendering mode.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
)

// ColorMode selects ANSI color behavior, matching the --color flag.
type ColorMode string

const (
	ColorAuto   ColorMode = "auto"
	ColorAlways ColorMode = "always"
	ColorNever  ColorMode = "never"
)

// Options configures one Report call.
type Options struct {
	Format  Format
	Color   ColorMode
	Verbose bool
	NoHints bool
	Out     io.Writer
}

var (
	styleUnchanged = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	styleChange    = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
	styleConflict  = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	styleError     = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	styleOk        = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	styleFailed    = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	styleHint      = lipgloss.NewStyle().Foreground(lipgloss.Color("6")).Italic(true)
)

func (o Options) out() io.Writer {
	if o.Out != nil {
		return o.Out
	}
	return os.Stdout
}

func (o Options) colorEnabled() bool {
	switch o.Color {
	case ColorAlways:
		return true
	case ColorNever:
		return false
	default:
		f, ok := o.out().(*os.File)
		return ok && isatty.IsTerminal(f.Fd())
	}
}

// Report writes plan (and, when non-nil, the outcome of applying it) in the
// requested format. elapsed is only shown in verbose text mode.
func Report(plan manifest.Plan, apply *manifest.ApplyResult, elapsed time.Duration, opts Options) error {
	if opts.Format == FormatJSON {
		return reportJSON(plan, apply, opts)
	}
	return reportText(plan, apply, elapsed, opts)
}

// ExitCode derives the process exit status per spec §6's table. Call with
// apply == nil for a dry run, non-nil after --execute.
func ExitCode(plan manifest.Plan, apply *manifest.ApplyResult) int {
	if apply == nil {
		if plan.HasDrift() {
			return 2
		}
		return 0
	}
	for _, o := range apply.Outcomes {
		if o.Kind == manifest.Failed {
			return 1
		}
	}
	return 0
}

func classificationLabel(c manifest.Classification, color bool) string {
	if !color {
		return string(c)
	}
	switch c {
	case manifest.Unchanged:
		return styleUnchanged.Render(string(c))
	case manifest.Change:
		return styleChange.Render(string(c))
	case manifest.Conflict:
		return styleConflict.Render(string(c))
	case manifest.Error:
		return styleError.Render(string(c))
	default:
		return string(c)
	}
}

func outcomeLabel(k manifest.OutcomeKind, color bool) string {
	if !color {
		return string(k)
	}
	switch k {
	case manifest.Ok:
		return styleOk.Render(string(k))
	case manifest.Skipped:
		return styleUnchanged.Render(string(k))
	case manifest.Failed:
		return styleFailed.Render(string(k))
	default:
		return string(k)
	}
}

func reportText(plan manifest.Plan, apply *manifest.ApplyResult, elapsed time.Duration, opts Options) error {
	w := opts.out()
	color := opts.colorEnabled()
	outcomeBySeq := map[uint64]manifest.ApplyOutcome{}
	if apply != nil {
		for _, o := range apply.Outcomes {
			outcomeBySeq[o.Seq] = o
		}
	}

	for _, op := range plan.Ops {
		detail := redactedOpSummary(op)
		fmt.Fprintf(w, "[%d] %s %s %s", op.Seq, op.Kind, classificationLabel(op.Classification, color), detail)
		if apply != nil {
			if o, ok := outcomeBySeq[op.Seq]; ok {
				fmt.Fprintf(w, " -> %s", outcomeLabel(o.Kind, color))
				if o.Reason != "" {
					fmt.Fprintf(w, " (%s)", o.Reason)
				}
			}
		}
		fmt.Fprintln(w)
	}

	unchanged, change, conflict, errored := plan.Counts()
	fmt.Fprintf(w, "%d unchanged, %d change, %d conflict, %d error\n", unchanged, change, conflict, errored)

	if opts.Verbose && elapsed > 0 {
		fmt.Fprintf(w, "elapsed: %s (started %s)\n", elapsed.Round(time.Millisecond), humanize.Time(time.Now().Add(-elapsed)))
	}

	if !opts.NoHints && apply == nil && plan.HasDrift() {
		fmt.Fprintln(w, hintStyle(color, "run with --execute to apply this plan"))
	}
	return nil
}

func hintStyle(color bool, msg string) string {
	if !color {
		return msg
	}
	return styleHint.Render(msg)
}

func redactedOpSummary(op manifest.PlanOp) string {
	switch op.Kind {
	case manifest.OpCreateLink, manifest.OpCreateDirsAndLink, manifest.OpReplaceWithLink:
		return fmt.Sprintf("%s -> %s", op.Src, op.Dest)
	case manifest.OpCreateFile, manifest.OpRewriteFile:
		return op.Dest
	case manifest.OpInstallPackage, manifest.OpRemovePackage:
		return fmt.Sprintf("%s:%s", op.Manager, op.Package)
	case manifest.OpRunCommand:
		return fmt.Sprintf("%s %v", op.Program, op.Args)
	default:
		return op.Detail
	}
}

// jsonOp is the JSON-rendered shape of a PlanOp, with any sensitive Vars
// entry redacted and the outcome (if applied) folded in.
type jsonOp struct {
	Seq            uint64            `json:"seq"`
	Origin         string            `json:"origin"`
	Kind           string            `json:"kind"`
	Classification string            `json:"classification"`
	Reason         string            `json:"reason,omitempty"`
	Detail         string            `json:"detail,omitempty"`
	Src            string            `json:"src,omitempty"`
	Dest           string            `json:"dest,omitempty"`
	Manager        string            `json:"manager,omitempty"`
	Package        string            `json:"package,omitempty"`
	Program        string            `json:"program,omitempty"`
	Args           []string          `json:"args,omitempty"`
	Vars           map[string]string `json:"vars,omitempty"`
	Outcome        *jsonOutcome      `json:"outcome,omitempty"`
}

type jsonOutcome struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason,omitempty"`
}

type jsonReport struct {
	Ops      []jsonOp `json:"ops"`
	Counts   counts   `json:"counts"`
	ExitCode int      `json:"exit_code"`
}

type counts struct {
	Unchanged int `json:"unchanged"`
	Change    int `json:"change"`
	Conflict  int `json:"conflict"`
	Error     int `json:"error"`
}

func reportJSON(plan manifest.Plan, apply *manifest.ApplyResult, opts Options) error {
	outcomeBySeq := map[uint64]manifest.ApplyOutcome{}
	if apply != nil {
		for _, o := range apply.Outcomes {
			outcomeBySeq[o.Seq] = o
		}
	}

	ops := make([]jsonOp, 0, len(plan.Ops))
	for _, op := range plan.Ops {
		jo := jsonOp{
			Seq: op.Seq, Origin: string(op.Origin), Kind: string(op.Kind),
			Classification: string(op.Classification), Reason: string(op.Reason), Detail: op.Detail,
			Src: op.Src, Dest: op.Dest, Manager: op.Manager, Package: op.Package,
			Program: op.Program, Args: op.Args,
		}
		if len(op.Vars) > 0 {
			jo.Vars = make(map[string]string, len(op.Vars))
			for k, v := range op.Vars {
				if v.Sensitive {
					jo.Vars[k] = redacted
				} else {
					jo.Vars[k] = v.Value
				}
			}
		}
		if o, ok := outcomeBySeq[op.Seq]; ok {
			jo.Outcome = &jsonOutcome{Kind: string(o.Kind), Reason: o.Reason}
		}
		ops = append(ops, jo)
	}

	unchanged, change, conflict, errored := plan.Counts()
	report := jsonReport{
		Ops:      ops,
		Counts:   counts{Unchanged: unchanged, Change: change, Conflict: conflict, Error: errored},
		ExitCode: ExitCode(plan, apply),
	}

	enc := json.NewEncoder(opts.out())
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
