package chunker

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgallion1/bookchunk/internal/book"
)

func TestNew_Factory(t *testing.T) {
	emb := &recordingEmbedder{}

	s, err := New(Config{}, emb, nil)
	require.NoError(t, err)
	assert.Equal(t, StrategyMathematical, s.Name())

	s, err = New(Config{Strategy: "recursive"}, emb, nil)
	require.NoError(t, err)
	assert.Equal(t, StrategyRecursive, s.Name())

	s, err = New(Config{Strategy: "langchain"}, emb, nil)
	require.NoError(t, err)
	assert.Equal(t, StrategyRecursive, s.Name())

	_, err = New(Config{Strategy: "llm"}, emb, nil)
	assert.ErrorIs(t, err, ErrDeprecatedStrategy)

	_, err = New(Config{Strategy: "unstructured"}, emb, nil)
	assert.ErrorIs(t, err, ErrDeprecatedStrategy)

	_, err = New(Config{Strategy: "semantic"}, emb, nil)
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	_, err = New(Config{}, nil, nil)
	assert.Error(t, err)

	_, err = New(Config{ChunkSize: 10, ChunkOverlap: 20}, emb, nil)
	assert.Error(t, err)
}

func mathScenario() book.Document {
	return book.Document{
		Source: "scenario.md",
		Pages: []book.Page{
			{Content: "Intro text", Label: 1},
			{Content: "$x^2+y^2=1$ more text and a trailing fragmen", Label: 2},
		},
	}
}

func TestMathematical_EquationNeverSplit(t *testing.T) {
	emb := &recordingEmbedder{}
	s, err := New(Config{ChunkSize: 20, ChunkOverlap: 0}, emb, slog.Default())
	require.NoError(t, err)

	chunks, err := s.Chunk(context.Background(), mathScenario(), book.TableOfContents{}, 1)
	require.NoError(t, err)

	var contents []string
	for _, c := range chunks {
		contents = append(contents, c.Content)
		assert.Equal(t, 0, MathBalance(c.Content), "chunk %q", c.Content)
		assert.Equal(t, 0, c.ChapterNumber)
	}
	assert.Equal(t, []string{
		"Intro text",
		"<math>$x^2+y^2=1$</math>",
		"more text and a",
		"trailing fragmen",
	}, contents)
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Equal(t, 2, chunks[1].PageNumber)
}

func TestRecursive_NoMathMarkers(t *testing.T) {
	s, err := New(Config{Strategy: StrategyRecursive, ChunkSize: 20, ChunkOverlap: 0}, &recordingEmbedder{}, nil)
	require.NoError(t, err)

	chunks, err := s.Chunk(context.Background(), mathScenario(), book.TableOfContents{}, 1)
	require.NoError(t, err)
	for _, c := range chunks {
		assert.NotContains(t, c.Content, MathOpen)
	}
}

func TestMathematical_ChapterAndPageNumbers(t *testing.T) {
	doc := book.Document{Source: "geo.pdf"}
	for label := 1; label <= 12; label++ {
		doc.Pages = append(doc.Pages, book.Page{Content: "Page body text long enough", Label: label})
	}
	toc := book.TableOfContents{Chapters: []book.Chapter{
		{Number: 1, StartPage: 1}, {Number: 2, StartPage: 5},
	}}

	s, err := New(Config{}, &recordingEmbedder{}, nil)
	require.NoError(t, err)
	chunks, err := s.Chunk(context.Background(), doc, toc, 4)
	require.NoError(t, err)
	require.Len(t, chunks, 12)

	// Book page 1 is physical page 4; chapter 2 starts on physical page 8.
	assert.Equal(t, -2, chunks[0].PageNumber)
	assert.Equal(t, 0, chunks[0].ChapterNumber)
	assert.Equal(t, 1, chunks[3].PageNumber)
	assert.Equal(t, 1, chunks[3].ChapterNumber)
	assert.Equal(t, 1, chunks[6].ChapterNumber)
	assert.Equal(t, 2, chunks[7].ChapterNumber)
	assert.Equal(t, 2, chunks[11].ChapterNumber)
}

func TestMathematical_SkipFrontMatter(t *testing.T) {
	doc := book.Document{Source: "geo.pdf"}
	for label := 1; label <= 6; label++ {
		doc.Pages = append(doc.Pages, book.Page{Content: "Page body text long enough", Label: label})
	}
	toc := book.TableOfContents{Chapters: []book.Chapter{{Number: 1, StartPage: 1}}}

	s, err := New(Config{SkipFrontMatter: true}, &recordingEmbedder{}, nil)
	require.NoError(t, err)
	chunks, err := s.Chunk(context.Background(), doc, toc, 3)
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	assert.Equal(t, 1, chunks[0].PageNumber)
	assert.Equal(t, 1, chunks[0].ChapterNumber)
}

func TestMathematical_NoiseRemovedBeforeSplitting(t *testing.T) {
	emb := &recordingEmbedder{}
	s, err := New(Config{}, emb, nil)
	require.NoError(t, err)

	doc := book.Document{Source: "geo.pdf", Pages: []book.Page{
		{Content: "FOR ONLINE USE ONLY\nRivers shape valleys. ![fig](img.png)", Label: 1},
		{Content: "DO NOT DUPLICATE", Label: 2},
	}}
	chunks, err := s.Chunk(context.Background(), doc, book.TableOfContents{}, 0)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Rivers shape valleys.", chunks[0].Content)
	assert.Equal(t, 1, chunks[0].PageNumber)
}

func TestMathematical_AllGapsIsEmptyResult(t *testing.T) {
	emb := &recordingEmbedder{vector: func(string) []float32 { return nil }}
	s, err := New(Config{ChunkSize: 20}, emb, nil)
	require.NoError(t, err)

	chunks, err := s.Chunk(context.Background(), mathScenario(), book.TableOfContents{}, 1)
	assert.Nil(t, chunks)
	var empty *EmptyResultError
	require.ErrorAs(t, err, &empty)
	assert.Equal(t, "scenario.md", empty.Source)
}
