package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/protograph/protograph/internal/docstore"
)

// StoreOptions holds flags shared by the store subcommands.
type StoreOptions struct {
	*RootOptions
	DB string // database path
}

// NewStoreCommand creates the store command and its subcommands.
func NewStoreCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StoreOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "store",
		Short: "Save and inspect graph documents in the local store",
	}
	cmd.PersistentFlags().StringVar(&opts.DB, "db", "protograph.db", "document database path")

	cmd.AddCommand(newStoreSaveCommand(opts))
	cmd.AddCommand(newStoreListCommand(opts))
	cmd.AddCommand(newStoreShowCommand(opts))
	return cmd
}

func newStoreSaveCommand(opts *StoreOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "save <document>",
		Short:         "Store a document, keyed by its content hash",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := storeFormatter(opts, cmd)

			nw, err := LoadDocument(args[0])
			if err != nil {
				return reportLoadError(formatter, err)
			}

			s, err := docstore.Open(opts.DB)
			if err != nil {
				return reportStoreError(formatter, err)
			}
			defer s.Close()

			name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
			hash, err := s.Put(cmd.Context(), name, nw)
			if err != nil {
				return reportStoreError(formatter, err)
			}

			if opts.Format == "json" {
				return formatter.Success(map[string]string{"name": name, "hash": hash})
			}
			return formatter.Success(fmt.Sprintf("%s %s", hash, name))
		},
	}
}

func newStoreListCommand(opts *StoreOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list",
		Short:         "List stored documents, newest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := storeFormatter(opts, cmd)

			s, err := docstore.Open(opts.DB)
			if err != nil {
				return reportStoreError(formatter, err)
			}
			defer s.Close()

			entries, err := s.List(cmd.Context())
			if err != nil {
				return reportStoreError(formatter, err)
			}

			if opts.Format == "json" {
				return formatter.Success(entries)
			}
			var b strings.Builder
			for _, e := range entries {
				fmt.Fprintf(&b, "%s  %s  %s\n", e.Hash, e.CreatedAt, e.Name)
			}
			return formatter.Success(strings.TrimRight(b.String(), "\n"))
		},
	}
}

func newStoreShowCommand(opts *StoreOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "show <hash>",
		Short:         "Print a stored document as JSON",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := storeFormatter(opts, cmd)

			s, err := docstore.Open(opts.DB)
			if err != nil {
				return reportStoreError(formatter, err)
			}
			defer s.Close()

			nw, err := s.Get(cmd.Context(), args[0])
			if err != nil {
				return reportStoreError(formatter, err)
			}

			if opts.Format == "json" {
				return formatter.Success(nw)
			}
			raw, err := json.MarshalIndent(nw, "", "  ")
			if err != nil {
				return reportStoreError(formatter, err)
			}
			return formatter.Success(string(raw))
		},
	}
}

func storeFormatter(opts *StoreOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}

func reportStoreError(f *OutputFormatter, err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		f.Error(ErrCodeNotFound, err.Error(), nil)
		return &ExitError{Code: ExitCommandError, Message: "document not found", Err: err}
	}
	f.Error(ErrCodeStoreFailed, err.Error(), nil)
	return &ExitError{Code: ExitCommandError, Message: "store operation failed", Err: err}
}
