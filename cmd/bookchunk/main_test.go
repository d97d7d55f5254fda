package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestChunkCommand_WritesOutput(t *testing.T) {
	t.Setenv("EMBED_PROVIDER", "noop")
	t.Setenv("ANTHROPIC_API_KEY", "")
	dir := t.TempDir()
	outDir := filepath.Join(dir, "out")

	bookPath := writeFile(t, dir, "geo.txt",
		"Chapter One: Map work ........ 2\nChapter Two: Climate ........ 3\f"+
			"Maps show places on the earth\f"+
			"Climate is the average weather")
	writeFile(t, dir, "info.yaml", "resource:\n  name: Geography Form Two\n"+
		"subject:\n  name: Geography\n"+
		"book_config:\n  first_page_number: 1\n  table_of_contents_page_number: 1\n")

	stdout, err := runCLI(t, "chunk", bookPath, "--out-dir", outDir, "--db", filepath.Join(dir, "books.db"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "completed")

	data, err := os.ReadFile(filepath.Join(outDir, "geo.json"))
	require.NoError(t, err)
	var doc struct {
		Resource struct {
			Name string `json:"name"`
		} `json:"resource"`
		TOC struct {
			Chapters []json.RawMessage `json:"chapters"`
		} `json:"table_of_contents"`
		Chunks []struct {
			ChapterNumber int `json:"chapter_number"`
		} `json:"chunks"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "Geography Form Two", doc.Resource.Name)
	assert.Len(t, doc.TOC.Chapters, 2)
	require.Len(t, doc.Chunks, 3)
	assert.Equal(t, 2, doc.Chunks[2].ChapterNumber)

	// Same book again with the same database is skipped.
	stdout, err = runCLI(t, "chunk", bookPath, "--out-dir", outDir, "--db", filepath.Join(dir, "books.db"))
	require.NoError(t, err)
	assert.Contains(t, stdout, "duplicate_skipped")
}

func TestChunkCommand_ReportsFailures(t *testing.T) {
	t.Setenv("EMBED_PROVIDER", "noop")
	dir := t.TempDir()
	bookPath := writeFile(t, dir, "geo.txt", "Maps show places on the earth")

	stdout, err := runCLI(t, "chunk", bookPath, "--out-dir", dir, "--strategy", "llm")
	assert.ErrorIs(t, err, errSomeFailed)
	assert.Contains(t, stdout, "failed")
}

func TestChunkCommand_SizeOnly(t *testing.T) {
	t.Setenv("EMBED_PROVIDER", "noop")
	dir := t.TempDir()
	bookPath := writeFile(t, dir, "geo.txt", "Maps show places on the earth\fClimate is the average weather")

	stdout, err := runCLI(t, "chunk", bookPath, "--out-dir", dir, "--size", "100")
	require.NoError(t, err)
	assert.Contains(t, stdout, "completed")

	data, err := os.ReadFile(filepath.Join(dir, "geo.json"))
	require.NoError(t, err)
	var doc struct {
		Config struct {
			ChunkSize    int `json:"chunk_size"`
			ChunkOverlap int `json:"chunk_overlap"`
		} `json:"chunker_config"`
	}
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, 100, doc.Config.ChunkSize)
	assert.Equal(t, 16, doc.Config.ChunkOverlap)
}

func TestTOCCommand_Markdown(t *testing.T) {
	t.Setenv("EMBED_PROVIDER", "noop")
	dir := t.TempDir()
	bookPath := writeFile(t, dir, "geo.txt",
		"Cover\f1. Map work 1\n2. Climate 18\n3. Soils 40\fBody")

	stdout, err := runCLI(t, "toc", bookPath, "--pages", "2", "--markdown", "--format", "yaml")
	require.NoError(t, err)
	assert.Contains(t, stdout, "name: Soils")
	assert.Contains(t, stdout, "start_page: 40")

	_, err = runCLI(t, "toc", bookPath)
	assert.Error(t, err)
}
