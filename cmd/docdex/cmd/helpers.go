package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gmickel/docdex/internal/config"
	"github.com/gmickel/docdex/internal/embed"
	"github.com/gmickel/docdex/internal/expand"
	"github.com/gmickel/docdex/internal/ui"
)

// openAIKeyEnv is the environment variable holding the OpenAI API key.
const openAIKeyEnv = "OPENAI_API_KEY"

// projectRoot returns the directory docdex operates on.
func projectRoot() string {
	root, err := os.Getwd()
	if err != nil {
		return "."
	}
	return root
}

// useColor decides whether command output should be colored.
func useColor(cmd *cobra.Command) bool {
	if noColor {
		return false
	}
	return ui.ShouldColor(cmd.OutOrStdout())
}

// lexicalPath returns the Bleve index location under the data directory.
func lexicalPath(dataDir string) string {
	return filepath.Join(dataDir, "lexical.bleve")
}

// vectorPath returns the HNSW index location under the data directory.
func vectorPath(dataDir string) string {
	return filepath.Join(dataDir, "vectors.hnsw")
}

// indexExists reports whether the metadata store has been created.
func indexExists(cfg *config.Config, root string) bool {
	_, err := os.Stat(cfg.DBPath(root))
	return err == nil
}

// buildEmbedder creates the configured embedder, wrapped in an LRU cache.
func buildEmbedder(cfg *config.Config) (embed.Embedder, error) {
	var inner embed.Embedder

	switch cfg.Embeddings.Provider {
	case "openai":
		e, err := embed.NewOpenAIEmbedder(os.Getenv(openAIKeyEnv), cfg.Embeddings.Model)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai embedder: %w", err)
		}
		inner = e
	default:
		inner = embed.NewStaticEmbedder()
	}

	slog.Debug("embedder_initialized",
		slog.String("model", inner.ModelName()),
		slog.Int("dimensions", inner.Dimensions()))

	return embed.NewCachedEmbedder(inner, embed.DefaultEmbeddingCacheSize), nil
}

// buildExpander creates the configured query expander. When the openai
// provider is configured but no API key is present, it falls back to the
// rule generator rather than failing the whole command.
func buildExpander(cfg *config.Config) *expand.Expander {
	var generator expand.Generator = expand.NewRuleGenerator()

	if cfg.Expansion.Provider == "openai" {
		g, err := expand.NewOpenAIGenerator(os.Getenv(openAIKeyEnv), cfg.Expansion.Model, cfg.Expansion.Hyde)
		if err != nil {
			slog.Warn("expansion_provider_unavailable",
				slog.String("provider", "openai"),
				slog.String("error", err.Error()))
		} else {
			generator = g
		}
	}

	slog.Debug("expander_initialized", slog.String("generator", generator.Name()))

	return expand.New(generator, expand.WithTimeout(cfg.ExpansionTimeout()))
}
