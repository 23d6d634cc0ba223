package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gmickel/docdex/internal/config"
)

// setupProject creates a project directory with one collection of
// markdown documents and switches the working directory to it.
func setupProject(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	t.Chdir(dir)

	cfgYAML := `version: 1
index:
  name: testproj
collections:
  - name: docs
    path: docs
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ProjectConfigName), []byte(cfgYAML), 0o644))

	docsDir := filepath.Join(dir, "docs")
	require.NoError(t, os.MkdirAll(docsDir, 0o755))

	guide := `# Backups

## Schedule

Backups run nightly at two in the morning.

## Retention

Nightly backups are retained for seven days.
`
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "backups.md"), []byte(guide), 0o644))

	auth := `# Authentication

Session tokens are signed and expire after thirty minutes.
`
	require.NoError(t, os.WriteFile(filepath.Join(docsDir, "auth.md"), []byte(auth), 0o644))

	return dir
}

func runCommand(t *testing.T, args ...string) string {
	t.Helper()

	root := NewRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)

	require.NoError(t, root.Execute())
	return buf.String()
}

func TestIndexCmd_EndToEnd(t *testing.T) {
	dir := setupProject(t)

	out := runCommand(t, "index")
	assert.Contains(t, out, "docs: 2 documents")
	assert.Contains(t, out, "Complete: 2 documents")

	// Data directory was created with all three stores
	assert.FileExists(t, filepath.Join(dir, ".docdex", "docdex.db"))
	assert.FileExists(t, filepath.Join(dir, ".docdex", "vectors.hnsw"))
	assert.DirExists(t, filepath.Join(dir, ".docdex", "lexical.bleve"))
}

func TestIndexCmd_SecondRunSkipsEmbedding(t *testing.T) {
	setupProject(t)

	first := runCommand(t, "index")
	assert.NotContains(t, first, "(0 embedded)")

	// Nothing changed, so the embedding backlog stays empty.
	second := runCommand(t, "index")
	assert.Contains(t, second, "(0 embedded)")
}

func TestIndexCmd_LoggingConfigWritesFile(t *testing.T) {
	dir := setupProject(t)

	cfgYAML := `version: 1
index:
  name: testproj
collections:
  - name: docs
    path: docs
logging:
  level: debug
  file: dex.log
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ProjectConfigName), []byte(cfgYAML), 0o644))

	runCommand(t, "index")

	content, err := os.ReadFile(filepath.Join(dir, "dex.log"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "index_started")
	// Configured debug level lets debug events through.
	assert.Contains(t, string(content), "embedder_initialized")
}

func TestIndexCmd_NoCollections(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"index"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no collections configured")
}

func TestIndexCmd_MissingCollectionPath(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfgYAML := `version: 1
collections:
  - name: docs
    path: missing
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.ProjectConfigName), []byte(cfgYAML), 0o644))

	// The run completes; the unreadable collection is recorded, not fatal.
	out := runCommand(t, "index")
	assert.Contains(t, out, "ERR_404_INVALID_PATH")
	assert.Contains(t, out, "not readable")
}

func TestSearchCmd_RequiresIndex(t *testing.T) {
	t.Chdir(t.TempDir())

	root := NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"search", "anything"})

	err := root.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no index found")
}

func TestSearchCmd_EndToEnd(t *testing.T) {
	setupProject(t)

	runCommand(t, "index")

	out := runCommand(t, "search", "backup retention")
	assert.Contains(t, out, "docs/backups.md")
	assert.Contains(t, out, "retained for seven days")

	// Citations point at real line numbers
	assert.Regexp(t, `docs/backups\.md:\d+:\d+-\d+:\d+`, out)
}

func TestSearchCmd_JSON(t *testing.T) {
	setupProject(t)

	runCommand(t, "index")

	out := runCommand(t, "search", "session tokens", "--json")
	assert.Contains(t, out, `"docPath": "docs/auth.md"`)
	assert.Contains(t, out, `"citation"`)
}

func TestStatusCmd_AfterIndex(t *testing.T) {
	setupProject(t)

	runCommand(t, "index")

	out := runCommand(t, "status")
	assert.Contains(t, out, "Index Status: testproj")
	assert.Contains(t, out, "Documents:    2")
	assert.Contains(t, out, "healthy")

	jsonOut := runCommand(t, "status", "--json")
	assert.Contains(t, jsonOut, `"indexName": "testproj"`)
	assert.Contains(t, jsonOut, `"embeddingBacklog": 0`)
}

func TestExpandCmd(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	out := runCommand(t, "expand", "backup retention policy")
	assert.Contains(t, out, "Keyword variants:")
	assert.Contains(t, out, "backup retention policy")

	jsonOut := runCommand(t, "expand", "backup retention policy", "--json")
	assert.Contains(t, jsonOut, `"lexicalQueries"`)
	assert.Contains(t, jsonOut, `"vectorQueries"`)
}
