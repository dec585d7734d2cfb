package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/protograph/protograph/internal/builtins"
	"github.com/protograph/protograph/internal/compile"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <document>",
		Short: "Check a graph document without producing output",
		Long: `Validate structural integrity and run the full compile pipeline,
reporting the first structural or type error with its node path.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
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

	pn, err := compile.Compile(nw, builtins.NewRegistry())
	if err != nil {
		return reportCompileError(formatter, err)
	}

	if opts.Format == "json" {
		return formatter.Success(map[string]any{
			"document": path,
			"nodes":    len(pn.Nodes),
			"outputs":  len(pn.Outputs),
		})
	}
	return formatter.Success(fmt.Sprintf("%s: ok (%d nodes, %d outputs)", path, len(pn.Nodes), len(pn.Outputs)))
}
