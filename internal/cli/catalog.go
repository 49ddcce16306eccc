package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/strata/internal/catalog"
	"github.com/roach88/strata/internal/seq"
)

// CatalogOptions holds flags shared by the catalog subcommands.
type CatalogOptions struct {
	*RootOptions
	Set      bool
	Equality string
	Kind     string
}

// CatalogEntry is the JSON payload of catalog put and get.
type CatalogEntry struct {
	Name     string          `json:"name"`
	Kind     string          `json:"kind"`
	Equality string          `json:"equality,omitempty"`
	Value    json.RawMessage `json:"value,omitempty"`
}

// NewCatalogCommand creates the catalog command.
func NewCatalogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CatalogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage named stores and sets",
		Long: `Save inputs under a name so later commands can refer to them as @name.
Every catalog subcommand needs --catalog.

Examples:
  strata --catalog work.db catalog put nums data.json
  strata --catalog work.db catalog put tags tags.yaml --set --equality structural
  strata --catalog work.db catalog list
  strata --catalog work.db flat @nums --depth 2`,
	}

	put := &cobra.Command{
		Use:           "put <name> <input>",
		Short:         "Save an input under a name",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogPut(cmd, opts, args[0], args[1])
		},
	}
	put.Flags().BoolVar(&opts.Set, "set", false, "save as a key set")
	put.Flags().StringVar(&opts.Equality, "equality", "sameValueZero", "equality of the saved set")

	get := &cobra.Command{
		Use:           "get <name>",
		Short:         "Print a saved entry",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogGet(cmd, opts, args[0])
		},
	}
	get.Flags().BoolVar(&opts.Set, "set", false, "read a key set")

	list := &cobra.Command{
		Use:           "list",
		Short:         "List saved names",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogList(cmd, opts)
		},
	}
	list.Flags().StringVar(&opts.Kind, "kind", "", "only list this kind (stores|sets)")

	rm := &cobra.Command{
		Use:           "rm <name>",
		Short:         "Delete a saved entry",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCatalogRemove(cmd, opts, args[0])
		},
	}
	rm.Flags().BoolVar(&opts.Set, "set", false, "delete a key set")

	cmd.AddCommand(put, get, list, rm)
	return cmd
}

func openCatalogSession(cmd *cobra.Command, opts *CatalogOptions) (*session, error) {
	s, err := openSession(cmd, opts.RootOptions)
	if err != nil {
		return nil, err
	}
	if err := s.requireCatalog(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (o *CatalogOptions) kind() catalog.Kind {
	if o.Set {
		return catalog.KindSet
	}
	return catalog.KindStore
}

func runCatalogPut(cmd *cobra.Command, opts *CatalogOptions, name, arg string) error {
	s, err := openCatalogSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	entry := CatalogEntry{Name: name, Kind: string(opts.kind())}
	if opts.Set {
		eq, err := s.equality("equality", opts.Equality)
		if err != nil {
			return err
		}
		set, err := s.setInput(arg, eq)
		if err != nil {
			return err
		}
		if err := s.catalog.PutSet(name, set); err != nil {
			return s.commandError(ErrCodeCatalog, "put "+name, err)
		}
		entry.Equality = set.Equality().Name()
	} else {
		st, err := s.input(arg)
		if err != nil {
			return err
		}
		if err := s.catalog.PutStore(name, st); err != nil {
			return s.commandError(ErrCodeCatalog, "put "+name, err)
		}
	}

	if s.out.Format == "json" {
		return s.out.Success(entry)
	}
	return s.out.Success(fmt.Sprintf("saved %s %q", entry.Kind, name))
}

func runCatalogGet(cmd *cobra.Command, opts *CatalogOptions, name string) error {
	s, err := openCatalogSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	entry := CatalogEntry{Name: name, Kind: string(opts.kind())}
	var v seq.Value
	if opts.Set {
		set, err := s.catalog.Set(name, s.refs)
		if err != nil {
			return catalogReadError(s, name, err)
		}
		entry.Equality = set.Equality().Name()
		v = set.ToStore()
	} else {
		st, err := s.catalog.Store(name, s.refs)
		if err != nil {
			return catalogReadError(s, name, err)
		}
		v = st
	}

	raw, err := seq.MarshalCanonical(v)
	if err != nil {
		return WrapExitError(ExitFailure, "encode output", err)
	}
	if s.out.Format != "json" {
		return s.out.Success(string(raw))
	}
	entry.Value = raw
	return s.out.Success(entry)
}

func catalogReadError(s *session, name string, err error) error {
	if errors.Is(err, catalog.ErrNotFound) {
		return s.commandError(ErrCodeNotFound, "get "+name, err)
	}
	return s.commandError(ErrCodeCatalog, "get "+name, err)
}

func runCatalogList(cmd *cobra.Command, opts *CatalogOptions) error {
	s, err := openCatalogSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	kinds := catalog.Kinds
	if opts.Kind != "" {
		kinds = []catalog.Kind{catalog.Kind(opts.Kind)}
	}

	listing := make(map[string][]string, len(kinds))
	for _, k := range kinds {
		names, err := s.catalog.Names(k)
		if err != nil {
			return s.commandError(ErrCodeCatalog, "list", err)
		}
		if names == nil {
			names = []string{}
		}
		listing[string(k)] = names
	}

	if s.out.Format == "json" {
		return s.out.Success(listing)
	}
	w := cmd.OutOrStdout()
	for _, k := range kinds {
		for _, name := range listing[string(k)] {
			fmt.Fprintf(w, "%s\t%s\n", k, name)
		}
	}
	return nil
}

func runCatalogRemove(cmd *cobra.Command, opts *CatalogOptions, name string) error {
	s, err := openCatalogSession(cmd, opts)
	if err != nil {
		return err
	}
	defer s.Close()

	if err := s.catalog.Delete(opts.kind(), name); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return s.commandError(ErrCodeNotFound, "rm "+name, err)
		}
		return s.commandError(ErrCodeCatalog, "rm "+name, err)
	}
	if s.out.Format == "json" {
		return s.out.Success(CatalogEntry{Name: name, Kind: string(opts.kind())})
	}
	return s.out.Success(fmt.Sprintf("deleted %s %q", opts.kind(), name))
}
