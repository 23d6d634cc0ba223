package cmd

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/gmickel/docdex/internal/chunk"
	"github.com/gmickel/docdex/internal/config"
	dexerrors "github.com/gmickel/docdex/internal/errors"
	"github.com/gmickel/docdex/internal/search"
	"github.com/gmickel/docdex/internal/store"
	"github.com/gmickel/docdex/internal/ui"
)

// defaultEmbedBatch is how many chunks are embedded per provider call.
const defaultEmbedBatch = 32

func newIndexCmd() *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index the configured document collections",
		Long: `Walk every collection declared in .docdex.yaml, chunk the documents,
embed the chunks and build the keyword and vector indexes.

Re-running is incremental: unchanged chunks keep their embeddings and
only the embedding backlog is processed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runIndex(ctx, cmd, batchSize)
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", defaultEmbedBatch, "Chunks embedded per provider call")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, batchSize int) error {
	root := projectRoot()

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}
	if len(cfg.Collections) == 0 {
		return fmt.Errorf("no collections configured. Edit %s and declare at least one", config.ProjectConfigName)
	}
	if batchSize <= 0 {
		batchSize = defaultEmbedBatch
	}

	dataDir := cfg.DataDir(root)

	lock := store.NewIngestLock(dataDir)
	acquired, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire index lock: %w", err)
	}
	if !acquired {
		return dexerrors.New(dexerrors.ErrCodeIndexLocked,
			"another docdex process is indexing this project", nil)
	}
	defer func() { _ = lock.Unlock() }()

	st, err := store.New(cfg.DBPath(root))
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	renderer := ui.NewProgressRenderer(cmd.OutOrStdout(), !useColor(cmd))
	chunker := chunk.NewMarkdownChunker()
	start := time.Now()

	slog.Info("index_started",
		slog.String("root", root),
		slog.Int("collections", len(cfg.Collections)))

	docs, chunks, err := chunkCollections(ctx, cfg, root, st, chunker, renderer)
	if err != nil {
		return err
	}

	embedded, err := embedPending(ctx, cfg, dataDir, st, renderer, batchSize)
	if err != nil {
		return err
	}

	if err := rebuildLexical(ctx, dataDir, st, renderer); err != nil {
		return err
	}

	stats := ui.CompletionStats{
		Documents: docs,
		Chunks:    chunks,
		Embedded:  embedded,
		Duration:  time.Since(start),
		Errors:    renderer.ErrorCount(),
	}
	renderer.Complete(stats)

	slog.Info("index_completed",
		slog.Int("documents", docs),
		slog.Int("chunks", chunks),
		slog.Int("embedded", embedded),
		slog.Duration("duration", stats.Duration))

	return nil
}

// chunkCollections walks every collection, chunks its documents and
// saves them to the store. Per-document failures are recorded and
// skipped rather than aborting the run.
func chunkCollections(ctx context.Context, cfg *config.Config, root string, st *store.Store, chunker chunk.Chunker, renderer *ui.ProgressRenderer) (docs, chunks int, err error) {
	for _, col := range cfg.Collections {
		if err := ctx.Err(); err != nil {
			return docs, chunks, err
		}

		if err := st.UpsertCollection(ctx, col.Name, col.Path); err != nil {
			return docs, chunks, err
		}

		colPath := col.Path
		if !filepath.IsAbs(colPath) {
			colPath = filepath.Join(root, colPath)
		}

		files, err := scanCollection(colPath, chunker.SupportedExtensions())
		if err != nil {
			scanErr := dexerrors.New(dexerrors.ErrCodeInvalidPath,
				fmt.Sprintf("collection %s path is not readable", col.Name), err)
			_ = st.RecordError(ctx, "scan", col.Path, scanErr.Error())
			renderer.AddError(ui.ErrorEvent{File: col.Path, Err: scanErr})
			continue
		}

		renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageScanning,
			Message: fmt.Sprintf("%s: %d documents", col.Name, len(files)),
		})

		for i, file := range files {
			if err := ctx.Err(); err != nil {
				return docs, chunks, err
			}

			rel, relErr := filepath.Rel(root, file)
			if relErr != nil {
				rel = file
			}
			rel = filepath.ToSlash(rel)

			renderer.UpdateProgress(ui.ProgressEvent{
				Stage:       ui.StageChunking,
				Current:     i + 1,
				Total:       len(files),
				CurrentFile: rel,
			})

			content, readErr := os.ReadFile(file)
			if readErr != nil {
				if os.IsNotExist(readErr) {
					// Listed by the walk, gone by the read.
					readErr = dexerrors.New(dexerrors.ErrCodeFileNotFound,
						rel+" disappeared during indexing", readErr)
				}
				_ = st.RecordError(ctx, "read", rel, readErr.Error())
				renderer.AddError(ui.ErrorEvent{File: rel, Err: readErr})
				continue
			}

			doc := &chunk.Document{
				Collection: col.Name,
				Path:       rel,
				Content:    content,
			}

			docChunks, chunkErr := chunker.Chunk(ctx, doc)
			if chunkErr != nil {
				_ = st.RecordError(ctx, "chunk", rel, chunkErr.Error())
				renderer.AddError(ui.ErrorEvent{File: rel, Err: chunkErr})
				continue
			}

			if saveErr := st.SaveChunks(ctx, doc, docChunks); saveErr != nil {
				_ = st.RecordError(ctx, "store", rel, saveErr.Error())
				renderer.AddError(ui.ErrorEvent{File: rel, Err: saveErr})
				continue
			}

			docs++
			chunks += len(docChunks)
		}
	}

	return docs, chunks, nil
}

// embedPending embeds the chunk backlog and updates the vector index.
// An embedding provider failure leaves the backlog in place for the
// next run instead of failing the whole command.
func embedPending(ctx context.Context, cfg *config.Config, dataDir string, st *store.Store, renderer *ui.ProgressRenderer, batchSize int) (int, error) {
	embedder, err := buildEmbedder(cfg)
	if err != nil {
		return 0, err
	}
	defer func() { _ = embedder.Close() }()

	vector, err := search.NewHNSWVectorIndex(embedder.Dimensions())
	if err != nil {
		return 0, err
	}
	defer func() { _ = vector.Close() }()

	targets, err := st.PendingChunks(ctx, 0)
	if err != nil {
		return 0, err
	}

	vp := vectorPath(dataDir)
	if search.VectorIndexExists(vp) {
		if loadErr := vector.Load(vp); loadErr != nil {
			slog.Warn("vector_load_failed", slog.String("error", loadErr.Error()))
			renderer.AddError(ui.ErrorEvent{Err: loadErr, IsWarn: true})
			// The graph starts empty, so everything must be re-embedded
			// or the saved index would lose the old vectors.
			targets, err = st.AllChunks(ctx)
			if err != nil {
				return 0, err
			}
		} else if vector.Dimensions() != embedder.Dimensions() {
			// Embedding model changed, rebuild the vector index from scratch
			slog.Warn("vector_dimensions_changed",
				slog.Int("stored", vector.Dimensions()),
				slog.Int("embedder", embedder.Dimensions()))
			_ = vector.Close()
			vector, err = search.NewHNSWVectorIndex(embedder.Dimensions())
			if err != nil {
				return 0, err
			}
			targets, err = st.AllChunks(ctx)
			if err != nil {
				return 0, err
			}
		}
	}

	embedded := 0
	for offset := 0; offset < len(targets); offset += batchSize {
		if err := ctx.Err(); err != nil {
			return embedded, err
		}

		end := min(offset+batchSize, len(targets))
		batch := targets[offset:end]

		texts := make([]string, len(batch))
		ids := make([]string, len(batch))
		for i, rec := range batch {
			texts[i] = rec.Content
			ids[i] = rec.ID
		}

		vectors, embedErr := embedder.EmbedBatch(ctx, texts)
		if embedErr != nil {
			_ = st.RecordError(ctx, "embed", "", embedErr.Error())
			// A retryable provider outage leaves the backlog for the next
			// run; anything else is a hard error worth surfacing.
			renderer.AddError(ui.ErrorEvent{Err: embedErr, IsWarn: dexerrors.IsRetryable(embedErr)})
			break
		}

		if addErr := vector.Add(ctx, ids, vectors); addErr != nil {
			return embedded, addErr
		}
		if markErr := st.MarkEmbedded(ctx, ids); markErr != nil {
			return embedded, markErr
		}

		embedded += len(ids)
		renderer.UpdateProgress(ui.ProgressEvent{
			Stage:   ui.StageEmbedding,
			Current: embedded,
			Total:   len(targets),
		})
	}

	if vector.Count() > 0 || embedded > 0 {
		if saveErr := vector.Save(vp); saveErr != nil {
			return embedded, saveErr
		}
	}

	return embedded, nil
}

// rebuildLexical refreshes the keyword index from the stored chunks.
// Bleve upserts by chunk ID, so re-indexing everything is idempotent.
func rebuildLexical(ctx context.Context, dataDir string, st *store.Store, renderer *ui.ProgressRenderer) error {
	lexical, err := search.NewBleveLexicalIndex(lexicalPath(dataDir))
	if err != nil {
		return err
	}
	defer func() { _ = lexical.Close() }()

	all, err := st.AllChunks(ctx)
	if err != nil {
		return err
	}

	if err := lexical.Index(ctx, all); err != nil {
		return err
	}

	renderer.UpdateProgress(ui.ProgressEvent{
		Stage:   ui.StageIndexing,
		Message: fmt.Sprintf("%d chunks indexed", len(all)),
	})

	return nil
}

// scanCollection lists supported documents under dir, skipping hidden
// directories like .git and .docdex.
func scanCollection(dir string, extensions []string) ([]string, error) {
	supported := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		supported[ext] = true
	}

	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != dir && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if supported[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return files, nil
}
