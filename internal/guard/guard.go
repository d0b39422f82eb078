// Package guard implements the severity-graded check mechanism that gates
// a mutating operation before it runs. The Task claim is the one operation
// that uses it.
package guard

import (
	"context"
	"fmt"
	"strings"
)

// Severity indicates how a failed guard affects the operation it gates.
type Severity int

const (
	// Suggestion is advisory only; the operation proceeds.
	Suggestion Severity = iota
	// Warning is advisory only; the operation proceeds.
	Warning
	// SoftBlock stops the operation unless the caller passes Force.
	SoftBlock
	// HardBlock stops the operation unconditionally.
	HardBlock
)

func (s Severity) String() string {
	switch s {
	case Suggestion:
		return "SUGGESTION"
	case Warning:
		return "WARNING"
	case SoftBlock:
		return "SOFT_BLOCK"
	case HardBlock:
		return "HARD_BLOCK"
	default:
		return "UNKNOWN"
	}
}

// Result is the outcome of one guard check.
type Result struct {
	GuardName string
	Passed    bool
	Severity  Severity
	Message   string
	Remedy    string
}

// Outcome aggregates the results of running a set of guards.
type Outcome struct {
	Blocked bool
	Results []Result
}

func (o *Outcome) filter(sev Severity) []Result {
	var out []Result
	for _, r := range o.Results {
		if !r.Passed && r.Severity == sev {
			out = append(out, r)
		}
	}
	return out
}

func (o *Outcome) HardBlocks() []Result  { return o.filter(HardBlock) }
func (o *Outcome) SoftBlocks() []Result  { return o.filter(SoftBlock) }
func (o *Outcome) Warnings() []Result    { return o.filter(Warning) }
func (o *Outcome) Suggestions() []Result { return o.filter(Suggestion) }

// FormatBlockMessage renders every blocking result for a CLI or error string.
func (o *Outcome) FormatBlockMessage() string {
	if !o.Blocked {
		return ""
	}
	var b strings.Builder
	b.WriteString("blocked by guards:")
	for _, r := range o.HardBlocks() {
		fmt.Fprintf(&b, "\n[HARD_BLOCK] %s: %s", r.GuardName, r.Message)
		if r.Remedy != "" {
			fmt.Fprintf(&b, "\n  remedy: %s", r.Remedy)
		}
	}
	for _, r := range o.SoftBlocks() {
		fmt.Fprintf(&b, "\n[SOFT_BLOCK] %s: %s", r.GuardName, r.Message)
		if r.Remedy != "" {
			fmt.Fprintf(&b, "\n  remedy: %s", r.Remedy)
		}
	}
	if len(o.SoftBlocks()) > 0 {
		b.WriteString("\n\nrerun with force to override soft blocks.")
	}
	return b.String()
}

// Context carries everything a guard needs to make a decision, populated by
// the caller before running a set.
type Context struct {
	TaskID  string
	EpicID  string
	Force   bool

	AssignmentStatus string // "", "claimed", "complete"
	SentinelAlivePID bool
	EpicMemoryPending bool
}

// Guard is one composable check.
type Guard interface {
	Name() string
	Check(ctx context.Context, gctx *Context) Result
}

// Func adapts a plain function into a Guard.
type Func struct {
	name  string
	check func(ctx context.Context, gctx *Context) Result
}

func NewFunc(name string, fn func(ctx context.Context, gctx *Context) Result) *Func {
	return &Func{name: name, check: fn}
}

func (f *Func) Name() string { return f.name }
func (f *Func) Check(ctx context.Context, gctx *Context) Result {
	return f.check(ctx, gctx)
}

// Pass returns a passing result for guardName.
func Pass(guardName string) Result {
	return Result{GuardName: guardName, Passed: true}
}

// Fail returns a failing result at the given severity.
func Fail(guardName string, severity Severity, message, remedy string) Result {
	return Result{GuardName: guardName, Passed: false, Severity: severity, Message: message, Remedy: remedy}
}

// Runner executes a set of guards against a Context and aggregates the
// outcome, respecting Force for SoftBlock severities.
type Runner struct{}

func NewRunner() *Runner { return &Runner{} }

func (r *Runner) Run(ctx context.Context, gctx *Context, guards []Guard) *Outcome {
	outcome := &Outcome{}
	for _, g := range guards {
		result := g.Check(ctx, gctx)
		outcome.Results = append(outcome.Results, result)
		if result.Passed {
			continue
		}
		switch result.Severity {
		case HardBlock:
			outcome.Blocked = true
		case SoftBlock:
			if !gctx.Force {
				outcome.Blocked = true
			}
		}
	}
	return outcome
}
