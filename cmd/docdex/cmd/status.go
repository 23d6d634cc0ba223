package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gmickel/docdex/internal/config"
	"github.com/gmickel/docdex/internal/status"
	"github.com/gmickel/docdex/internal/store"
	"github.com/gmickel/docdex/internal/ui"
)

// recentErrorWindow is how far back status looks for ingest errors.
const recentErrorWindow = 24 * time.Hour

func newStatusCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show index health and statistics",
		Long: `Show a health snapshot of the index: document and chunk counts per
collection, the embedding backlog and recent ingest errors.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output status as JSON")

	return cmd
}

func runStatus(cmd *cobra.Command, jsonOut bool) error {
	root := projectRoot()

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	if !indexExists(cfg, root) {
		return fmt.Errorf("no index found. Run 'docdex index' first")
	}

	st, err := store.New(cfg.DBPath(root))
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := cmd.Context()

	collections, err := st.ListCollections(ctx)
	if err != nil {
		return err
	}

	recentErrors, err := st.RecentErrorCount(ctx, time.Now().Add(-recentErrorWindow))
	if err != nil {
		return err
	}

	snapshot := status.Aggregate(status.IndexMeta{
		IndexName:  cfg.Index.Name,
		ConfigPath: config.ConfigPath(root),
		DBPath:     cfg.DBPath(root),
	}, collections, recentErrors)

	renderer := ui.NewStatusRenderer(cmd.OutOrStdout(), !useColor(cmd))
	if jsonOut {
		return renderer.RenderJSON(snapshot)
	}
	return renderer.Render(snapshot)
}
