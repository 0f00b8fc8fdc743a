package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/secure-deps/depowners/internal/reconcile"
	"github.com/secure-deps/depowners/internal/report"
	"github.com/secure-deps/depowners/internal/registry"
)

var publishersOpts queryOpts

// createPublishersCommand creates the publishers subcommand
func createPublishersCommand() *cobra.Command {
	publishersCmd := &cobra.Command{
		Use:   "publishers [flags]",
		Short: "list publishers and the packages each can publish",
		Long: `List every individual and team that can publish updates for packages in
the dependency graph, together with the packages each one controls.

If a local cache created by the 'update' subcommand is present and up to
date it is used; otherwise live data is fetched from the registry API.`,
		Args: cobra.NoArgs,
		RunE: executePublishers,
	}
	publishersOpts.register(publishersCmd)
	return publishersCmd
}

func executePublishers(cmd *cobra.Command, args []string) error {
	mapping, _, err := runQuery(cmd, &publishersOpts)
	if err != nil {
		return err
	}
	renderPublishers(cmd.OutOrStdout(), mapping, publishersOpts.diffable)
	return nil
}

func renderPublishers(w io.Writer, mapping *reconcile.Mapping, diffable bool) {
	var rows []report.OwnerPackages
	if diffable {
		rows = report.ByOwnerDiffable(mapping)
	} else {
		rows = report.ByOwner(mapping)
	}

	users := filterByKind(rows, registry.KindUser)
	teams := filterByKind(rows, registry.KindTeam)

	if diffable {
		for _, row := range users {
			fmt.Fprintf(w, "user %q: %s\n", row.Owner.Login, strings.Join(row.Packages, ", "))
		}
		for _, row := range teams {
			fmt.Fprintf(w, "team %q: %s\n", row.Owner.Login, strings.Join(row.Packages, ", "))
		}
		return
	}

	if len(users) > 0 {
		fmt.Fprintln(w, "\nThe following individuals can publish updates for your dependencies:")
		fmt.Fprintln(w)
		for i, row := range users {
			fmt.Fprintf(w, " %d. %s via packages: %s\n", i+1, row.Owner.Login, strings.Join(row.Packages, ", "))
		}
		fmt.Fprintln(w, "\nNote: there may be outstanding publisher invitations. crates.io provides no way to list them.")
		fmt.Fprintln(w, "See https://github.com/rust-lang/crates.io/issues/2868 for more info.")
	}

	if len(teams) > 0 {
		fmt.Fprintln(w, "\nAll members of the following teams can publish updates for your dependencies:")
		fmt.Fprintln(w)
		for i, row := range teams {
			if org, ok := githubOrg(row.Owner.Login); ok {
				fmt.Fprintf(w, " %d. %q (https://github.com/%s) via packages: %s\n",
					i+1, row.Owner.Login, org, strings.Join(row.Packages, ", "))
			} else {
				fmt.Fprintf(w, " %d. %q via packages: %s\n",
					i+1, row.Owner.Login, strings.Join(row.Packages, ", "))
			}
		}
		fmt.Fprintln(w, "\nGithub teams are black boxes. It's impossible to get the member list without explicit permission.")
	}
}

func filterByKind(rows []report.OwnerPackages, kind registry.OwnerKind) []report.OwnerPackages {
	var out []report.OwnerPackages
	for _, row := range rows {
		if row.Owner.Kind == kind {
			out = append(out, row)
		}
	}
	return out
}

// githubOrg extracts the organization from a team login of the form
// "github:org:team".
func githubOrg(login string) (string, bool) {
	if !strings.HasPrefix(login, "github:") {
		return "", false
	}
	parts := strings.Split(login, ":")
	if len(parts) < 2 || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
