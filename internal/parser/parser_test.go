package parser

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"unicode/utf8"

	"docqa/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChunkContentShortInput(t *testing.T) {
	assert.Equal(t, []string{"hello world"}, chunkContent("  hello world \n", 100, 10))
	assert.Nil(t, chunkContent("   ", 100, 10))
	assert.Nil(t, chunkContent("text", 0, 0))
}

func TestChunkContentOverlapAndBounds(t *testing.T) {
	words := make([]string, 300)
	for i := range words {
		words[i] = "cuvânt"
	}
	content := strings.Join(words, " ")

	chunks := chunkContent(content, 200, 40)
	require.Greater(t, len(chunks), 1)
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 200)
		assert.True(t, utf8.ValidString(c))
	}
	assert.True(t, strings.HasSuffix(chunks[len(chunks)-1], "cuvânt"))
}

func TestChunkAssignsContiguousIndexesAndPages(t *testing.T) {
	p := New(50, 10)
	sections := []models.Section{
		{Content: strings.Repeat("alpha beta ", 10), PageNumber: 1},
		{Content: "short tail", PageNumber: 0},
	}

	chunks := p.Chunk(sections, 7, 42, "doc.pdf")
	require.GreaterOrEqual(t, len(chunks), 3)
	for i, ch := range chunks {
		assert.Equal(t, i, ch.ChunkIndex)
		assert.Equal(t, strconv.Itoa(i), ch.ID)
		assert.Equal(t, int64(7), ch.UserID)
		assert.Equal(t, int64(42), ch.FileID)
	}
	require.NotNil(t, chunks[0].Page)
	assert.Equal(t, 1, *chunks[0].Page)
	assert.Nil(t, chunks[len(chunks)-1].Page)
}

func TestNewFallsBackToDefaults(t *testing.T) {
	p := New(0, 0)
	assert.Equal(t, defaultChunkSize, p.ChunkSize)
	assert.Equal(t, defaultChunkOverlap, p.ChunkOverlap)
}

func TestParseDocumentText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("plain text body"), 0o600))

	sections, err := ParseDocument(path)
	require.NoError(t, err)
	require.Len(t, sections, 1)
	assert.Equal(t, "plain text body", sections[0].Content)
	assert.Zero(t, sections[0].PageNumber)
}

func TestParseDocumentMarkdownStripsSyntax(t *testing.T) {
	path := filepath.Join(t.TempDir(), "readme.md")
	md := "# Title\n\nSome **bold** and [a link](http://example.com).\n\n- one\n- two\n\n```go\nfmt.Println(1)\n```\n"
	require.NoError(t, os.WriteFile(path, []byte(md), 0o600))

	sections, err := ParseDocument(path)
	require.NoError(t, err)
	require.Len(t, sections, 1)

	got := sections[0].Content
	assert.Contains(t, got, "Title")
	assert.Contains(t, got, "Some bold and a link.")
	assert.Contains(t, got, "fmt.Println(1)")
	assert.NotContains(t, got, "**")
	assert.NotContains(t, got, "http://example.com")
}

func TestParseDocumentUnsupported(t *testing.T) {
	_, err := ParseDocument("archive.tar")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported file format")
}

func TestExtractTextFromXMLSkipsSiblingTags(t *testing.T) {
	xml := `<w:p><w:r><w:t>Hello</w:t><w:tab/><w:t xml:space="preserve">world</w:t></w:r></w:p>`
	assert.Equal(t, "Hello world ", extractTextFromXML(xml, "<w:t", "</w:t>"))
}

func TestJoinSections(t *testing.T) {
	got := JoinSections([]models.Section{{Content: "a"}, {Content: "b"}})
	assert.Equal(t, "a\n\nb", got)
}
