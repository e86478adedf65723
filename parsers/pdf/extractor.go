package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/ledongthuc/pdf"

	"github.com/sevigo/medrag/schema"
)

// ErrNoText is returned when a PDF has pages but none of them yield text,
// which usually means a scanned document.
var ErrNoText = errors.New("pdf: no text extracted")

var (
	spaceRun     = regexp.MustCompile(`[ \t]+`)
	blankLines   = regexp.MustCompile(`\n[ \t]*\n`)
	newlineRun   = regexp.MustCompile(`\n{3,}`)
	ligatures    = strings.NewReplacer("ﬁ", "fi", "ﬂ", "fl", "ﬀ", "ff", "ﬃ", "ffi", "ﬄ", "ffl")
	headerRegexp = []*regexp.Regexp{
		regexp.MustCompile(`(?i)^chapter\s+\d+\b.*$`),
		regexp.MustCompile(`(?i)^section\s+\d+\b.*$`),
		regexp.MustCompile(`^\d+(\.\d+)*\.?\s+[A-Z][^.]{2,80}$`),
		regexp.MustCompile(`(?i)^(abstract|introduction|summary|conclusion|references|bibliography|appendix|diagnosis|treatment|symptoms|causes|prevention)$`),
	}
)

type pageText struct {
	Text string
	Page int
}

// Parse returns one section per page that has text. A section's Title is the
// nearest header found on that page or on an earlier one.
func (p *PDFPlugin) Parse(ctx context.Context, path string) ([]schema.Section, error) {
	pages, err := p.extractPages(ctx, path)
	if err != nil {
		return nil, err
	}

	sections := make([]schema.Section, 0, len(pages))
	title := ""
	for _, pt := range pages {
		if h := firstHeader(pt.Text); h != "" {
			title = h
		}
		sections = append(sections, schema.Section{
			Content: pt.Text,
			Page:    pt.Page,
			Title:   title,
		})
	}

	p.logger.Debug("Parsed PDF", "path", path, "sections", len(sections))
	return sections, nil
}

func (p *PDFPlugin) extractPages(ctx context.Context, path string) ([]pageText, error) {
	f, r, err := openPDF(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	numPages := r.NumPage()
	if numPages == 0 {
		p.logger.Warn("PDF has no pages", "path", path)
		return nil, nil
	}

	var pages []pageText
	for i := 1; i <= numPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := r.Page(i)
		if page.V.IsNull() {
			p.logger.Debug("Skipping null page", "page", i, "path", path)
			continue
		}
		if text := p.pageText(page); text != "" {
			pages = append(pages, pageText{Text: text, Page: i})
		}
	}

	if len(pages) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoText, path)
	}
	return pages, nil
}

// pageText prefers GetPlainText and falls back to joining raw text runs.
func (p *PDFPlugin) pageText(page pdf.Page) (text string) {
	defer func() {
		// ledongthuc/pdf panics on some malformed content streams
		if r := recover(); r != nil {
			p.logger.Warn("Recovered from PDF page panic", "error", r)
			text = ""
		}
	}()

	if content, err := page.GetPlainText(nil); err == nil && strings.TrimSpace(content) != "" {
		return cleanText(content)
	}

	var buf bytes.Buffer
	runs := page.Content().Text
	for i, run := range runs {
		buf.WriteString(run.S)
		if i < len(runs)-1 && !strings.HasSuffix(run.S, " ") && !strings.HasSuffix(run.S, "\n") {
			buf.WriteByte(' ')
		}
	}
	return cleanText(buf.String())
}

// ExtractMetadata reads page count, size and modification time, and guesses a
// title from the first page.
func (p *PDFPlugin) ExtractMetadata(path string) (schema.FileMetadata, error) {
	metadata := schema.FileMetadata{
		FilePath:   filepath.Base(path),
		Format:     "pdf",
		Properties: make(map[string]string),
	}

	f, r, err := openPDF(path)
	if err != nil {
		return metadata, err
	}
	info, err := f.Stat()
	f.Close()
	if err != nil {
		return metadata, fmt.Errorf("failed to stat PDF %s: %w", path, err)
	}

	metadata.Properties["page_count"] = strconv.Itoa(r.NumPage())
	metadata.Properties["file_size_bytes"] = strconv.FormatInt(info.Size(), 10)
	metadata.Properties["mod_time"] = info.ModTime().UTC().Format(time.RFC3339)

	if pages, err := p.extractPages(context.Background(), path); err == nil && len(pages) > 0 {
		if title := heuristicTitle(pages[0].Text); title != "" {
			metadata.Title = title
			metadata.Properties["title_heuristic"] = title
		}
	}
	return metadata, nil
}

func openPDF(path string) (*os.File, *pdf.Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open PDF %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat PDF %s: %w", path, err)
	}
	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to read PDF %s: %w", path, err)
	}
	return f, r, nil
}

func cleanText(text string) string {
	text = ligatures.Replace(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = spaceRun.ReplaceAllString(text, " ")
	text = blankLines.ReplaceAllString(text, "\n\n")
	text = newlineRun.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func isHeader(line string) bool {
	line = strings.TrimSpace(line)
	if len(line) < 4 || len(line) > 100 {
		return false
	}
	for _, re := range headerRegexp {
		if re.MatchString(line) {
			return true
		}
	}

	words := strings.Fields(line)
	if len(words) > 10 {
		return false
	}
	letters, upper := 0, 0
	for _, r := range line {
		if unicode.IsLetter(r) {
			letters++
			if unicode.IsUpper(r) {
				upper++
			}
		}
	}
	return letters >= 4 && float64(upper)/float64(letters) > 0.8
}

func firstHeader(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if isHeader(line) {
			return strings.TrimSpace(line)
		}
	}
	return ""
}

func heuristicTitle(text string) string {
	lines := strings.SplitN(text, "\n", 5)
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if len(line) > 10 && len(line) < 150 && (i < 2 || isTitleCase(line)) {
			return line
		}
	}
	return ""
}

func isTitleCase(s string) bool {
	words := strings.Fields(s)
	if len(words) == 0 {
		return false
	}
	n := 0
	for _, w := range words {
		if r := []rune(w)[0]; unicode.IsUpper(r) {
			n++
		}
	}
	return float64(n)/float64(len(words)) >= 0.6
}
