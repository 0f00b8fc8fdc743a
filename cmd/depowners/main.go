package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/secure-deps/depowners/internal/config"
	"github.com/secure-deps/depowners/internal/utils/logger"
)

// Persistent command flags
var (
	cfgFile string
	verbose bool
)

// appConfig is loaded once in the root PersistentPreRunE and shared by
// all subcommands.
var appConfig *config.Config

func main() {
	rootCmd := newRootCommand()
	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "depowners",
		Short: "report who can publish updates to your dependencies",
		Long: `depowners gathers publisher and ownership data for the packages in
your project's resolved dependency graph, reconciling a locally cached
registry snapshot with live registry queries.

The dependency graph is consumed as JSON on stdin or via --input; it is
produced externally by a package-manager metadata query.`,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			appConfig = cfg
			return logger.Init(verbose || cfg.IsDebugMode())
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"Path to a yaml configuration file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"Enable debug logging")

	rootCmd.AddCommand(createPackagesCommand())
	rootCmd.AddCommand(createPublishersCommand())
	rootCmd.AddCommand(createJSONCommand())
	rootCmd.AddCommand(createUpdateCommand())
	return rootCmd
}
