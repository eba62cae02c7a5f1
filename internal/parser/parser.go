package parser

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"docqa/internal/models"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/tealeg/xlsx"
	"github.com/xuri/excelize/v2"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

const (
	defaultChunkSize    = 1000 // characters
	defaultChunkOverlap = 200  // characters
)

// Parser extracts text from a document and splits it into chunks.
type Parser struct {
	ChunkSize    int
	ChunkOverlap int
}

func New(chunkSize, chunkOverlap int) *Parser {
	if chunkSize <= 0 || chunkOverlap < 0 {
		chunkSize = defaultChunkSize
		chunkOverlap = defaultChunkOverlap
	}
	return &Parser{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}
}

// SupportedExtensions lists the file types ParseDocument understands.
func SupportedExtensions() []string {
	return []string{".pdf", ".docx", ".pptx", ".xlsx", ".ods", ".md", ".txt"}
}

// ParseDocument extracts the text sections of filePath. PageNumber is set
// for formats that have pages, slides or sheets, and left 0 otherwise.
func ParseDocument(filePath string) ([]models.Section, error) {
	ext := strings.ToLower(filepath.Ext(filePath))
	switch ext {
	case ".pdf":
		return parsePDF(filePath)
	case ".docx":
		return parseDOCX(filePath)
	case ".pptx":
		return parsePPTX(filePath)
	case ".xlsx":
		return parseXLSX(filePath)
	case ".ods":
		return parseODS(filePath)
	case ".md":
		return parseMarkdown(filePath)
	case ".txt":
		return parseText(filePath)
	default:
		return nil, fmt.Errorf("unsupported file format: %s", ext)
	}
}

// Chunk splits sections into overlapping chunks with contiguous indexes.
// The chunk ID is the index so stores can address chunks without content.
func (p *Parser) Chunk(sections []models.Section, userID, fileID int64, sourcePath string) []models.Chunk {
	var chunks []models.Chunk
	for _, section := range sections {
		for _, content := range chunkContent(section.Content, p.ChunkSize, p.ChunkOverlap) {
			idx := len(chunks)
			ch := models.Chunk{
				ID:         strconv.Itoa(idx),
				Content:    content,
				ChunkIndex: idx,
				FileID:     fileID,
				UserID:     userID,
				SourcePath: sourcePath,
			}
			if section.PageNumber > 0 {
				page := section.PageNumber
				ch.Page = &page
			}
			chunks = append(chunks, ch)
		}
	}
	return chunks
}

// JoinSections concatenates section texts into the full document content.
func JoinSections(sections []models.Section) string {
	parts := make([]string, 0, len(sections))
	for _, s := range sections {
		parts = append(parts, s.Content)
	}
	return strings.Join(parts, "\n\n")
}

func parsePDF(filePath string) ([]models.Section, error) {
	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sections []models.Section
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to read page %d: %w", i, err)
		}
		if strings.TrimSpace(pageText) != "" {
			sections = append(sections, models.Section{Content: pageText, PageNumber: i})
		}
	}
	return sections, nil
}

func parseDOCX(filePath string) ([]models.Section, error) {
	r, err := docx.ReadDocxFile(filePath)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	content := extractTextFromXML(r.Editable().GetContent(), "<w:t", "</w:t>")
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	return []models.Section{{Content: content}}, nil
}

func parsePPTX(filePath string) ([]models.Section, error) {
	f, err := zip.OpenReader(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	type slide struct {
		num  int
		text string
	}
	var slides []slide
	for _, file := range f.File {
		if !strings.HasPrefix(file.Name, "ppt/slides/slide") || !strings.HasSuffix(file.Name, ".xml") {
			continue
		}
		num, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(file.Name, "ppt/slides/slide"), ".xml"))
		if err != nil {
			continue
		}
		rc, err := file.Open()
		if err != nil {
			continue
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			continue
		}
		slideText := extractTextFromXML(string(data), "<a:t", "</a:t>")
		if strings.TrimSpace(slideText) != "" {
			slides = append(slides, slide{num: num, text: slideText})
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	sections := make([]models.Section, len(slides))
	for i, s := range slides {
		sections[i] = models.Section{Content: s.text, PageNumber: s.num}
	}
	return sections, nil
}

func parseXLSX(filePath string) ([]models.Section, error) {
	f, err := xlsx.OpenFile(filePath)
	if err != nil {
		return nil, err
	}

	var sections []models.Section
	for sheetNum, sheet := range f.Sheets {
		var text strings.Builder
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheet.Name))
		for _, row := range sheet.Rows {
			for _, cell := range row.Cells {
				text.WriteString(cell.String() + "\t")
			}
			text.WriteString("\n")
		}
		if strings.TrimSpace(text.String()) != "" {
			sections = append(sections, models.Section{Content: text.String(), PageNumber: sheetNum + 1})
		}
	}
	return sections, nil
}

func parseODS(filePath string) ([]models.Section, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var sections []models.Section
	for sheetNum, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		var text strings.Builder
		text.WriteString(fmt.Sprintf("## Sheet: %s\n", sheetName))
		for _, row := range rows {
			for _, cell := range row {
				text.WriteString(cell + "\t")
			}
			text.WriteString("\n")
		}
		sections = append(sections, models.Section{Content: text.String(), PageNumber: sheetNum + 1})
	}
	return sections, nil
}

func parseText(filePath string) ([]models.Section, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil, nil
	}
	return []models.Section{{Content: string(data)}}, nil
}

func parseMarkdown(filePath string) ([]models.Section, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	content := markdownToText(data)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}
	return []models.Section{{Content: content}}, nil
}

// markdownToText walks the goldmark AST and keeps the readable text, one
// block per line. Code blocks are kept verbatim.
func markdownToText(source []byte) string {
	md := goldmark.New(goldmark.WithExtensions(extension.GFM))
	doc := md.Parser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		switch node := n.(type) {
		case *ast.Text:
			if entering {
				buf.Write(node.Segment.Value(source))
				if node.SoftLineBreak() || node.HardLineBreak() {
					buf.WriteByte('\n')
				}
			}
		case *ast.CodeSpan:
			buf.WriteByte('`')
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				buf.WriteString("```\n")
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					buf.Write(seg.Value(source))
				}
				buf.WriteString("```\n")
				return ast.WalkSkipChildren, nil
			}
		default:
			if !entering && n.Type() == ast.TypeBlock && n.Kind() != ast.KindDocument {
				buf.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}

// extractTextFromXML collects the text of every <open ...>text</close> run.
func extractTextFromXML(xmlContent, open, close string) string {
	var text strings.Builder
	parts := strings.Split(xmlContent, open)
	for i, part := range parts {
		if i == 0 {
			continue
		}
		// skip sibling tags sharing the prefix, e.g. <w:tab> or <w:tbl>
		if len(part) == 0 || (part[0] != '>' && part[0] != ' ') {
			continue
		}
		start := strings.Index(part, ">")
		endIdx := strings.Index(part, close)
		if start >= 0 && endIdx > start {
			text.WriteString(part[start+1:endIdx] + " ")
		}
	}
	return text.String()
}

// chunk content into chunks with maxChars and overlapChars
func chunkContent(content string, maxChars, overlapChars int) []string {
	// Handle edge cases
	if maxChars <= 0 {
		return nil
	}
	if overlapChars < 0 {
		overlapChars = 0
	}
	if overlapChars >= maxChars {
		overlapChars = maxChars / 2
	}

	runes := []rune(strings.TrimSpace(content))
	contentLen := len(runes)
	if contentLen == 0 {
		return nil
	}
	if contentLen <= maxChars {
		return []string{string(runes)}
	}

	var chunks []string
	start := 0
	for start < contentLen {
		end := min(start+maxChars, contentLen)

		// Look for a space or punctuation within the last 10% of the chunk
		if end < contentLen {
			lookBack := min(maxChars/10, end-start)
			for i := end - 1; i >= end-lookBack && i > start; i-- {
				if runes[i] == ' ' || runes[i] == '\n' || runes[i] == '.' {
					end = i + 1
					break
				}
			}
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end >= contentLen {
			break
		}

		// Move start forward, accounting for overlap
		next := end - overlapChars
		if next <= start {
			next = end
		}
		start = next
	}

	return chunks
}
