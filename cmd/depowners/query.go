package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/secure-deps/depowners/internal/cache"
	"github.com/secure-deps/depowners/internal/config"
	"github.com/secure-deps/depowners/internal/depgraph"
	"github.com/secure-deps/depowners/internal/reconcile"
	"github.com/secure-deps/depowners/internal/registry"
	"github.com/secure-deps/depowners/internal/snapshot"
	"github.com/secure-deps/depowners/internal/utils/logger"
	"github.com/secure-deps/depowners/internal/utils/network"
)

// queryOpts is the flag surface shared by the querying subcommands.
type queryOpts struct {
	input       string
	cacheMaxAge time.Duration
	diffable    bool
	forceLive   bool
}

func (q *queryOpts) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&q.input, "input", "-",
		"Path to the dependency graph JSON ('-' for stdin)")
	cmd.Flags().DurationVar(&q.cacheMaxAge, "cache-max-age", 0,
		"Consider the cached snapshot valid while younger than this (default 48h)")
	cmd.Flags().BoolVarP(&q.diffable, "diffable", "d", false,
		"Make output more friendly towards tools such as diff")
	cmd.Flags().BoolVar(&q.forceLive, "live", false,
		"Bypass the snapshot cache and query the registry for every package")
}

func (q *queryOpts) maxAge(cfg *config.Config) time.Duration {
	if q.cacheMaxAge > 0 {
		return q.cacheMaxAge
	}
	return cfg.MaxAge()
}

// buildEngine wires the reconciliation engine from configuration.
// progress controls the download progress bar; it is only wanted when a
// snapshot download is expected (the update command).
func buildEngine(cfg *config.Config, progress bool) (*reconcile.Engine, error) {
	cacheDir, err := cfg.ResolveCacheDir()
	if err != nil {
		return nil, err
	}
	store, err := cache.New(cacheDir)
	if err != nil {
		return nil, err
	}

	httpClient := network.NewSecureHTTPClient(cfg.Timeout())
	fetcher := snapshot.NewFetcher(httpClient, cfg.Registry.DumpURL)
	fetcher.Progress = progress

	return &reconcile.Engine{
		Cache:   store,
		Fetcher: fetcher,
		Live:    registry.NewClient(httpClient, cfg.Registry.APIBaseURL),
		Workers: cfg.Workers,
	}, nil
}

// runQuery parses the dependency graph and reconciles ownership for its
// registry packages.
func runQuery(cmd *cobra.Command, q *queryOpts) (*reconcile.Mapping, *depgraph.Graph, error) {
	graph, err := loadGraph(cmd, q.input)
	if err != nil {
		return nil, nil, err
	}
	reportNotAudited(graph)

	engine, err := buildEngine(appConfig, false)
	if err != nil {
		return nil, nil, err
	}

	mapping, err := engine.Reconcile(cmd.Context(), graph.RegistryNames(), reconcile.Options{
		MaxAge:    q.maxAge(appConfig),
		ForceLive: q.forceLive,
	})
	if err != nil {
		return nil, nil, err
	}
	warnUnresolved(mapping)
	return mapping, graph, nil
}

func loadGraph(cmd *cobra.Command, path string) (*depgraph.Graph, error) {
	var r io.Reader
	if path == "" || path == "-" {
		r = cmd.InOrStdin()
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening dependency graph: %w", err)
		}
		defer f.Close()
		r = f
	}
	return depgraph.Parse(r)
}

// reportNotAudited lists the dependencies that ownership data cannot
// cover, so their absence from the report is explained.
func reportNotAudited(g *depgraph.Graph) {
	log := logger.Logger()
	if local := g.LocalNames(); len(local) > 0 {
		log.Warnf("ignoring %d packages that come from a local directory:", len(local))
		for _, name := range local {
			log.Warnf(" - %s", name)
		}
	}
	if foreign := g.ForeignNames(); len(foreign) > 0 {
		log.Warnf("cannot audit %d packages that are not from the registry:", len(foreign))
		for _, name := range foreign {
			log.Warnf(" - %s", name)
		}
	}
}

func warnUnresolved(m *reconcile.Mapping) {
	log := logger.Logger()
	unresolved := m.Unresolved()
	if len(unresolved) == 0 {
		return
	}
	log.Warnf("owners of %d packages could not be resolved; they are marked unresolved in the report:", len(unresolved))
	for _, name := range unresolved {
		log.Warnf(" - %s: %v", name, m.UnresolvedCause(name))
	}
}
