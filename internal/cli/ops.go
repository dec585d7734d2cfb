package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/protograph/protograph/internal/builtins"
)

// NewOpsCommand creates the ops command, which lists the registered
// primitive operations and their signatures.
func NewOpsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "ops",
		Short:         "List the available primitive operations",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := &OutputFormatter{
				Format:    rootOpts.Format,
				Writer:    cmd.OutOrStdout(),
				ErrWriter: cmd.ErrOrStderr(),
				Verbose:   rootOpts.Verbose,
			}

			reg := builtins.NewRegistry()

			type opDoc struct {
				Name        string   `json:"name"`
				Inputs      []string `json:"inputs"`
				Output      string   `json:"output"`
				Passthrough bool     `json:"passthrough,omitempty"`
			}
			var docs []opDoc
			for _, name := range reg.Names() {
				spec, _ := reg.Lookup(name)
				doc := opDoc{Name: name, Output: spec.Output.String(), Passthrough: spec.Passthrough}
				for _, in := range spec.Inputs {
					doc.Inputs = append(doc.Inputs, in.String())
				}
				docs = append(docs, doc)
			}

			if rootOpts.Format == "json" {
				return formatter.Success(docs)
			}
			var b strings.Builder
			for _, doc := range docs {
				fmt.Fprintf(&b, "%s(%s) -> %s", doc.Name, strings.Join(doc.Inputs, ", "), doc.Output)
				if doc.Passthrough {
					b.WriteString("  [passthrough]")
				}
				b.WriteString("\n")
			}
			return formatter.Success(strings.TrimRight(b.String(), "\n"))
		},
	}
}
