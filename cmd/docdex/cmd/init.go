package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gmickel/docdex/internal/config"
	"github.com/gmickel/docdex/pkg/version"
)

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize docdex for a project",
		Long: `Initialize docdex for the current project.

This command:
1. Generates a .docdex.yaml configuration template
2. Adds the .docdex data directory to .gitignore

Edit .docdex.yaml to declare your document collections, then run
'docdex index' to build the index.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runInit(cmd)
		},
	}

	return cmd
}

func runInit(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	root := projectRoot()

	_, _ = fmt.Fprintf(out, "docdex %s - initializing %s\n\n", version.Version, root)

	if config.Exists(root) {
		_, _ = fmt.Fprintf(out, "Existing %s preserved\n", config.ProjectConfigName)
	} else {
		path, err := config.WriteDefault(root)
		if err != nil {
			return fmt.Errorf("failed to write config template: %w", err)
		}
		_, _ = fmt.Fprintf(out, "Created %s\n", path)
	}

	added, err := ensureGitignore(root)
	if err != nil {
		_, _ = fmt.Fprintf(out, "Warning: could not update .gitignore: %v\n", err)
	} else if added {
		_, _ = fmt.Fprintln(out, "Added .docdex/ to .gitignore")
	}

	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "Next steps:")
	_, _ = fmt.Fprintf(out, "  1. Edit %s to declare your collections\n", config.ProjectConfigName)
	_, _ = fmt.Fprintln(out, "  2. Run 'docdex index' to build the index")
	_, _ = fmt.Fprintln(out, "  3. Run 'docdex search \"your query\"'")

	return nil
}

// hasDocdexIgnore checks if .docdex is already in .gitignore.
// Handles variations: .docdex, .docdex/, /.docdex, /.docdex/
func hasDocdexIgnore(content string) bool {
	patterns := []string{
		".docdex",
		".docdex/",
		"/.docdex",
		"/.docdex/",
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		for _, pattern := range patterns {
			if line == pattern {
				return true
			}
		}
	}
	return false
}

// ensureGitignore adds .docdex to .gitignore if not present.
// Returns (true, nil) if added, (false, nil) if already present.
func ensureGitignore(root string) (bool, error) {
	gitignorePath := filepath.Join(root, ".gitignore")

	content, err := os.ReadFile(gitignorePath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("reading .gitignore: %w", err)
	}

	if hasDocdexIgnore(string(content)) {
		return false, nil
	}

	// Match existing line endings, default to LF
	lineEnding := "\n"
	if bytes.Contains(content, []byte("\r\n")) {
		lineEnding = "\r\n"
	}

	if len(content) > 0 && !bytes.HasSuffix(content, []byte("\n")) {
		content = append(content, []byte(lineEnding)...)
	}

	var entry string
	if len(content) == 0 {
		entry = fmt.Sprintf("# docdex index data%s.docdex/%s", lineEnding, lineEnding)
	} else {
		entry = fmt.Sprintf("%s# docdex index data%s.docdex/%s", lineEnding, lineEnding, lineEnding)
	}
	content = append(content, []byte(entry)...)

	if err := os.WriteFile(gitignorePath, content, 0o644); err != nil {
		return false, fmt.Errorf("writing .gitignore: %w", err)
	}

	return true, nil
}
