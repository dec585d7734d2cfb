package cli

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/protograph/protograph/internal/builtins"
	"github.com/protograph/protograph/internal/compile"
	"github.com/protograph/protograph/internal/engine"
	"github.com/protograph/protograph/internal/evalctx"
	"github.com/protograph/protograph/internal/value"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Time     float64
	Scale    float64
	Viewport string // "x,y,width,height"
	Policy   string // "fail-fast" | "collect-partial"
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <document>",
		Short: "Compile and evaluate a graph document",
		Long: `Compile a graph document and evaluate its declared outputs against
the given context. The failure policy decides whether one failing branch
aborts the evaluation or leaves sibling outputs intact.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRun(opts, args[0], cmd)
		},
	}

	cmd.Flags().Float64Var(&opts.Time, "time", 0, "animation time supplied to context-reading ops")
	cmd.Flags().Float64Var(&opts.Scale, "scale", 1, "display scale supplied to context-reading ops")
	cmd.Flags().StringVar(&opts.Viewport, "viewport", "", "viewport footprint as x,y,width,height")
	cmd.Flags().StringVar(&opts.Policy, "policy", "fail-fast", "branch failure policy (fail-fast|collect-partial)")

	return cmd
}

func runRun(opts *RunOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	var policy engine.Policy
	switch opts.Policy {
	case "fail-fast":
		policy = engine.PolicyFailFast
	case "collect-partial":
		policy = engine.PolicyCollectPartial
	default:
		formatter.Error(ErrCodeEvalFailed, fmt.Sprintf("unknown policy %q", opts.Policy), nil)
		return &ExitError{Code: ExitCommandError, Message: "unknown policy"}
	}

	nw, err := LoadDocument(path)
	if err != nil {
		return reportLoadError(formatter, err)
	}

	reg := builtins.NewRegistry()
	pn, err := compile.Compile(nw, reg)
	if err != nil {
		return reportCompileError(formatter, err)
	}

	ctx := cmd.Context()
	ex := engine.New(reg, engine.Options{})
	if err := ex.Update(ctx, pn); err != nil {
		formatter.Error(ErrCodeEvalFailed, err.Error(), nil)
		return &ExitError{Code: ExitFailure, Message: "executor update failed", Err: err}
	}

	ec := evalctx.Context{Time: opts.Time, Scale: opts.Scale}
	if opts.Viewport != "" {
		fp, err := parseViewport(opts.Viewport)
		if err != nil {
			formatter.Error(ErrCodeEvalFailed, err.Error(), nil)
			return &ExitError{Code: ExitCommandError, Message: "bad viewport", Err: err}
		}
		ec.Viewport = fp
	}
	results, err := ex.Eval(ctx, ec, policy)
	if err != nil {
		var ee *engine.EvalError
		if errors.As(err, &ee) {
			formatter.Error(ErrCodeEvalFailed, ee.Error(), map[string]any{"path": ee.Path, "op": ee.Op})
		} else {
			formatter.Error(ErrCodeEvalFailed, err.Error(), nil)
		}
		return &ExitError{Code: ExitFailure, Message: "evaluation failed", Err: err}
	}

	stats := ex.Stats()
	formatter.VerboseLog("evaluated %d outputs (%d invocations, %d cache hits)",
		len(results), stats.Invocations, stats.CacheHits)

	if opts.Format == "json" {
		type outputDoc struct {
			Index int    `json:"index"`
			Value any    `json:"value,omitempty"`
			Error string `json:"error,omitempty"`
		}
		docs := make([]outputDoc, len(results))
		failed := false
		for i, res := range results {
			docs[i].Index = res.Index
			if res.Err != nil {
				docs[i].Error = res.Err.Error()
				failed = true
				continue
			}
			docs[i].Value = value.ToGo(res.Value)
		}
		if err := formatter.Success(docs); err != nil {
			return err
		}
		if failed {
			return &ExitError{Code: ExitFailure, Message: "one or more outputs failed"}
		}
		return nil
	}

	var b strings.Builder
	failed := false
	for i, res := range results {
		if res.Err != nil {
			fmt.Fprintf(&b, "output %d: error: %v\n", i, res.Err)
			failed = true
			continue
		}
		canonical, err := value.MarshalCanonical(res.Value)
		if err != nil {
			fmt.Fprintf(&b, "output %d: <unencodable>\n", i)
			continue
		}
		fmt.Fprintf(&b, "output %d: %s\n", i, canonical)
	}
	if err := formatter.Success(strings.TrimRight(b.String(), "\n")); err != nil {
		return err
	}
	if failed {
		return &ExitError{Code: ExitFailure, Message: "one or more outputs failed"}
	}
	return nil
}

// parseViewport parses "x,y,width,height" into a footprint.
func parseViewport(s string) (evalctx.Footprint, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return evalctx.Footprint{}, fmt.Errorf("viewport must be x,y,width,height, got %q", s)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return evalctx.Footprint{}, fmt.Errorf("viewport component %q: %w", p, err)
		}
		vals[i] = v
	}
	return evalctx.Footprint{X: vals[0], Y: vals[1], Width: vals[2], Height: vals[3]}, nil
}
