package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/bookchunk/internal/book"
	"github.com/dgallion1/bookchunk/internal/chunker"
)

func TestWrite_DocumentShape(t *testing.T) {
	info := book.Info{
		Resource: book.Resource{Name: "Geography Form Two", Type: "textbook", Authors: []string{}},
		Class:    book.Class{Name: "Form Two"},
		Subject:  book.Subject{Name: "Geography"},
	}
	p := NewPayload(info, book.TableOfContents{}, chunker.DefaultConfig(), []book.Chunk{
		{Content: "<math>$x$</math> & more", Embedding: []float32{1, 2}, PageNumber: 3, ChapterNumber: 1},
	})

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, p))

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(buf.Bytes(), &doc))
	for _, key := range []string{"resource", "class", "subject", "table_of_contents", "chunker_config", "chunks"} {
		assert.Contains(t, doc, key)
	}
	assert.JSONEq(t, `{"chapters":[]}`, string(doc["table_of_contents"]))
	assert.Contains(t, buf.String(), `"<math>$x$</math> & more"`)
	assert.Contains(t, string(doc["chunker_config"]), `"chunk_size": 800`)
}

func TestNewPayload_EmptyChunksEncodeAsArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, NewPayload(book.Info{}, book.TableOfContents{}, chunker.Config{}, nil)))
	assert.Contains(t, buf.String(), `"chunks": []`)
}

func TestWriteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")
	path, err := WriteFile(dir, "/books/geo.form2.pdf", NewPayload(book.Info{}, book.TableOfContents{}, chunker.DefaultConfig(), nil))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "geo.form2.json"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, json.Valid(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
