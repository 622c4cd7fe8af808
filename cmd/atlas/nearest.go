package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lmarchau/provider-atlas/internal/spatial"
	"github.com/lmarchau/provider-atlas/internal/store"
)

func newNearestCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "nearest <address>",
		Short: "Find the providers closest to an address",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNearest(cmd, a, strings.Join(args, " "), limit)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 5, "number of providers to list")
	return cmd
}

func runNearest(cmd *cobra.Command, a *app, address string, limit int) error {
	kv, err := a.openMirror()
	if err != nil {
		return err
	}
	resolver := a.buildResolver(kv)

	origin, err := resolver.Resolve(cmd.Context(), address)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", address, err)
	}
	if origin == nil {
		return fmt.Errorf("address %q could not be located", address)
	}

	st := a.buildStore(kv, store.Options{})
	idx, err := spatial.NewIndex(st.List())
	if err != nil {
		return err
	}
	if idx.Len() == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no resolved providers in the local mirror")
		return nil
	}

	matches, err := idx.Nearest(*origin, limit)
	if err != nil {
		return err
	}

	for i, m := range matches {
		fmt.Fprintf(cmd.OutOrStdout(), "%2d. %-30s %6.1f km  %s\n",
			i+1, m.Record.CompanyName, m.Distance/1000, m.Record.Address)
	}
	return nil
}
