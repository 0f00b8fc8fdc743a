package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/secure-deps/depowners/internal/report"
	"github.com/secure-deps/depowners/internal/registry"
)

var packagesOpts queryOpts

// createPackagesCommand creates the packages subcommand
func createPackagesCommand() *cobra.Command {
	packagesCmd := &cobra.Command{
		Use:   "packages [flags]",
		Short: "list dependency packages and the publishers of each",
		Long: `List every registry package in the dependency graph together with the
people and teams that can publish updates for it.

If a local cache created by the 'update' subcommand is present and up to
date it is used; otherwise live data is fetched from the registry API.`,
		Args: cobra.NoArgs,
		RunE: executePackages,
	}
	packagesOpts.register(packagesCmd)
	return packagesCmd
}

func executePackages(cmd *cobra.Command, args []string) error {
	mapping, _, err := runQuery(cmd, &packagesOpts)
	if err != nil {
		return err
	}
	renderPackages(cmd.OutOrStdout(), report.ByPackage(mapping), packagesOpts.diffable)
	return nil
}

func renderPackages(w io.Writer, rows []report.PackageOwners, diffable bool) {
	if diffable {
		for _, row := range rows {
			if row.Unresolved {
				fmt.Fprintf(w, "package %q: <unresolved>\n", row.Name)
				continue
			}
			fmt.Fprintf(w, "package %q: %s\n", row.Name, ownerList(row.Owners))
		}
		return
	}

	if len(rows) == 0 {
		fmt.Fprintln(w, "No registry packages found in the dependency graph.")
		return
	}
	fmt.Fprintln(w, "\nDependency packages with the people and teams that can publish them:")
	fmt.Fprintln(w)
	for i, row := range rows {
		if row.Unresolved {
			fmt.Fprintf(w, "%d. %s: <unresolved>\n", i+1, row.Name)
			continue
		}
		fmt.Fprintf(w, "%d. %s: %s\n", i+1, row.Name, ownerList(row.Owners))
	}
	fmt.Fprintln(w, "\nNote: there may be outstanding publisher invitations. crates.io provides no way to list them.")
	fmt.Fprintln(w, "See https://github.com/rust-lang/crates.io/issues/2868 for more info.")
}

// ownerList renders one package's owners, teams flagged explicitly.
func ownerList(owners []registry.Owner) string {
	if len(owners) == 0 {
		return "<no owners>"
	}
	parts := make([]string, 0, len(owners))
	for _, o := range owners {
		if o.Kind == registry.KindTeam {
			parts = append(parts, fmt.Sprintf("team %q", o.Login))
		} else {
			parts = append(parts, o.Login)
		}
	}
	return strings.Join(parts, ", ")
}
