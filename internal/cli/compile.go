package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/protograph/protograph/internal/builtins"
	"github.com/protograph/protograph/internal/compile"
)

// CompileOptions holds flags for the compile command.
type CompileOptions struct {
	*RootOptions
	Output string // output file path for the text listing
}

// compiledNode is the JSON projection of one compiled node.
type compiledNode struct {
	Index       int    `json:"index"`
	Op          string `json:"op"`
	ID          string `json:"id"`
	Identity    string `json:"identity"`
	Fingerprint string `json:"fingerprint"`
}

// compiledDoc is the JSON projection of a compiled network.
type compiledDoc struct {
	Nodes   []compiledNode `json:"nodes"`
	Outputs []int          `json:"outputs"`
}

// NewCompileCommand creates the compile command.
func NewCompileCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CompileOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "compile <document>",
		Short: "Compile a graph document to its flat executable form",
		Long: `Compile a nested graph document: flatten compositions, elide
passthroughs, drop dead nodes, order topologically and assign stable
content-derived identities.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCompileCmd(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "", "write the text listing to a file")

	return cmd
}

func runCompileCmd(opts *CompileOptions, path string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	nw, err := LoadDocument(path)
	if err != nil {
		return reportLoadError(formatter, err)
	}
	formatter.VerboseLog("loaded %s (%d nodes)", path, len(nw.Nodes))

	pn, err := compile.Compile(nw, builtins.NewRegistry())
	if err != nil {
		return reportCompileError(formatter, err)
	}
	formatter.VerboseLog("compiled to %d nodes, %d outputs", len(pn.Nodes), len(pn.Outputs))

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, []byte(pn.Dump()), 0o644); err != nil {
			formatter.Error(ErrCodeCompileFailed, fmt.Sprintf("writing %s: %v", opts.Output, err), nil)
			return &ExitError{Code: ExitCommandError, Message: "write failed", Err: err}
		}
	}

	if opts.Format == "json" {
		doc := compiledDoc{Outputs: pn.Outputs}
		for i := range pn.Nodes {
			n := &pn.Nodes[i]
			doc.Nodes = append(doc.Nodes, compiledNode{
				Index:       i,
				Op:          n.Op,
				ID:          n.ID,
				Identity:    n.Identity,
				Fingerprint: n.Fingerprint,
			})
		}
		return formatter.Success(doc)
	}
	return formatter.Success(pn.Dump())
}

// reportLoadError emits a load failure and maps it to an exit code.
func reportLoadError(f *OutputFormatter, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		f.Error(le.Code, le.Message, nil)
		return &ExitError{Code: ExitCommandError, Message: le.Message, Err: err}
	}
	f.Error(ErrCodeLoadFailed, err.Error(), nil)
	return &ExitError{Code: ExitCommandError, Message: "load failed", Err: err}
}

// reportCompileError emits a compile failure with its code and node path.
func reportCompileError(f *OutputFormatter, err error) error {
	var se *compile.StructureError
	if errors.As(err, &se) {
		f.Error(se.Code, se.Message, map[string]any{"path": se.Path})
		return &ExitError{Code: ExitFailure, Message: se.Message, Err: err}
	}
	var te *compile.TypeCheckError
	if errors.As(err, &te) {
		f.Error(ErrCodeCompileFailed, te.Error(), map[string]any{
			"path":  te.Path,
			"input": te.InputIndex,
			"want":  te.Want,
			"got":   te.Got,
		})
		return &ExitError{Code: ExitFailure, Message: te.Error(), Err: err}
	}
	f.Error(ErrCodeCompileFailed, err.Error(), nil)
	return &ExitError{Code: ExitFailure, Message: "compile failed", Err: err}
}
