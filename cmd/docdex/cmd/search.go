package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gmickel/docdex/internal/config"
	"github.com/gmickel/docdex/internal/search"
	"github.com/gmickel/docdex/internal/store"
	"github.com/gmickel/docdex/internal/ui"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	limit   int
	jsonOut bool
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search the indexed collections",
		Long: `Search the indexed collections with hybrid retrieval.

The query is expanded into keyword and semantic variants, both
channels run concurrently and the ranked lists are interleaved into
one deduplicated result set with line-accurate citations.

Examples:
  docdex search "session timeout"
  docdex search "backup retention" --limit 5
  docdex search "error codes" --json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd.Context(), cmd, query, opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", search.DefaultLimit, "Maximum number of results")
	cmd.Flags().BoolVar(&opts.jsonOut, "json", false, "Output results as JSON")

	return cmd
}

func runSearch(ctx context.Context, cmd *cobra.Command, query string, opts searchOptions) error {
	root := projectRoot()

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	if !indexExists(cfg, root) {
		return fmt.Errorf("no index found. Run 'docdex index' first")
	}

	engine, cleanup, err := openEngine(cfg, root)
	if err != nil {
		return err
	}
	defer cleanup()

	slog.Info("search_started", slog.String("query", query), slog.Int("limit", opts.limit))

	results, err := engine.Search(ctx, query, search.Options{Limit: opts.limit})
	if err != nil {
		return err
	}

	renderer := ui.NewResultsRenderer(cmd.OutOrStdout(), !useColor(cmd))
	if opts.jsonOut {
		return renderer.RenderJSON(results)
	}
	return renderer.Render(query, results)
}

// openEngine wires the search engine from the on-disk indexes. The
// returned cleanup closes every opened component.
func openEngine(cfg *config.Config, root string) (*search.Engine, func(), error) {
	dataDir := cfg.DataDir(root)

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	st, err := store.New(cfg.DBPath(root))
	if err != nil {
		return nil, nil, err
	}
	closers = append(closers, func() { _ = st.Close() })

	lexical, err := search.NewBleveLexicalIndex(lexicalPath(dataDir))
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, func() { _ = lexical.Close() })

	embedder, err := buildEmbedder(cfg)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, func() { _ = embedder.Close() })

	vector, err := search.NewHNSWVectorIndex(embedder.Dimensions())
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	closers = append(closers, func() { _ = vector.Close() })

	vp := vectorPath(dataDir)
	if search.VectorIndexExists(vp) {
		if loadErr := vector.Load(vp); loadErr != nil {
			slog.Warn("vector_load_failed", slog.String("error", loadErr.Error()))
		}
	}

	engine := search.NewEngine(buildExpander(cfg), embedder, lexical, vector, st)
	return engine, cleanup, nil
}
