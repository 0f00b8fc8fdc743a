package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/secure-deps/depowners/internal/reconcile"
	"github.com/secure-deps/depowners/internal/utils/logger"
)

var updateCacheMaxAge time.Duration

// createUpdateCommand creates the update subcommand
func createUpdateCommand() *cobra.Command {
	updateCmd := &cobra.Command{
		Use:   "update [flags]",
		Short: "download the registry's bulk ownership dump into the local cache",
		Long: `Download the latest bulk dump from the registry to speed up the other
subcommands.

Note that this downloads the entire ownership database, which is
hundreds of megabytes of data. On a metered connection you should skip
'update' and rely on live API requests instead; they are slower but use
far less data.`,
		Args: cobra.NoArgs,
		RunE: executeUpdate,
	}
	updateCmd.Flags().DurationVar(&updateCacheMaxAge, "cache-max-age", 0,
		"Skip the download if the cached snapshot is younger than this (default 48h)")
	return updateCmd
}

func executeUpdate(cmd *cobra.Command, args []string) error {
	log := logger.Logger()

	engine, err := buildEngine(appConfig, true)
	if err != nil {
		return err
	}

	maxAge := updateCacheMaxAge
	if maxAge <= 0 {
		maxAge = appConfig.MaxAge()
	}

	if age, ok := engine.Cache.Age(); ok {
		log.Infof("cached snapshot is from %s", humanize.Time(time.Now().Add(-age)))
	}

	state, ix, err := engine.RefreshCache(cmd.Context(), maxAge)
	if err != nil {
		return fmt.Errorf("updating snapshot cache: %w", err)
	}

	out := cmd.OutOrStdout()
	switch state {
	case reconcile.RefreshNotModified:
		fmt.Fprintln(out, "The cached snapshot is still current; the registry confirmed it has not changed.")
	case reconcile.RefreshUnchanged:
		fmt.Fprintf(out, "The registry has not produced a newer dump yet; re-downloaded the same snapshot covering %d packages.\n", ix.Packages())
	case reconcile.RefreshUpdated:
		fmt.Fprintf(out, "Snapshot updated; it covers %d packages.\n", ix.Packages())
	}
	return nil
}
