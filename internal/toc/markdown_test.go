package toc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMarkdown_PlainLines(t *testing.T) {
	src := "# Contents\n\n" +
		"Preface ........ iv\n" +
		"Chapter One: Map work ........ 1\n" +
		"Chapter Two: Climate ........ 18\n" +
		"Chapter 3 - Soils 40\n" +
		"Glossary ........ 150\n"

	got, err := ParseMarkdown([]byte(src))
	require.NoError(t, err)
	require.Len(t, got.Chapters, 3)

	assert.Equal(t, "Map work", got.Chapters[0].Name)
	assert.Equal(t, 1, got.Chapters[0].Number)
	assert.Equal(t, 1, got.Chapters[0].StartPage)
	assert.Equal(t, "Climate", got.Chapters[1].Name)
	assert.Equal(t, 2, got.Chapters[1].Number)
	assert.Equal(t, 18, got.Chapters[1].StartPage)
	assert.Equal(t, 3, got.Chapters[2].Number)
	assert.Equal(t, 40, got.Chapters[2].StartPage)
}

func TestParseMarkdown_OrderedList(t *testing.T) {
	src := "1. Map work 1\n2. Climate 18\n3. Soils 40\n"

	got, err := ParseMarkdown([]byte(src))
	require.NoError(t, err)
	require.Len(t, got.Chapters, 3)
	assert.Equal(t, "Soils", got.Chapters[2].Name)
	assert.Equal(t, 3, got.Chapters[2].Number)
}

func TestParseMarkdown_UnnumberedLinesAreSequential(t *testing.T) {
	src := "- Introduction 1\n- Map work 5\n- Weather 12\n"

	got, err := ParseMarkdown([]byte(src))
	require.NoError(t, err)
	require.Len(t, got.Chapters, 3)
	assert.Equal(t, "Map work", got.Chapters[1].Name)
	assert.Equal(t, []int{1, 2, 3}, []int{got.Chapters[0].Number, got.Chapters[1].Number, got.Chapters[2].Number})
}

func TestParseMarkdown_Table(t *testing.T) {
	src := "| Chapter | Title | Page |\n|---|---|---|\n| 1 | Map work | 1 |\n| 2 | Climate | 18 |\n"

	got, err := ParseMarkdown([]byte(src))
	require.NoError(t, err)
	require.Len(t, got.Chapters, 2)
	assert.Equal(t, "Climate", got.Chapters[1].Name)
	assert.Equal(t, 18, got.Chapters[1].StartPage)
}

func TestParseMarkdown_NothingFound(t *testing.T) {
	got, err := ParseMarkdown([]byte("Contents\n\nNothing numbered here."))
	require.NoError(t, err)
	assert.True(t, got.Empty())
}
