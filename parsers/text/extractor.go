package text

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
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sevigo/medrag/schema"
)

// ErrBinaryContent is returned for files that are not valid UTF-8 text.
var ErrBinaryContent = errors.New("text: file does not contain valid UTF-8 text")

var headingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^[A-Z][A-Z0-9 ,&/()'-]{3,}$`),
	regexp.MustCompile(`^#{1,6}\s+\S.*$`),
	regexp.MustCompile(`^\d+(\.\d+)*\.?\s+[A-Z].{0,80}$`),
	regexp.MustCompile(`^[A-Z][^.!?]{2,60}:$`),
}

var headingMarkup = regexp.MustCompile(`^#+\s*`)

// Parse splits the file into sections at heading lines. Text before the first
// heading is titled after the file name.
func (p *TextPlugin) Parse(ctx context.Context, path string) ([]schema.Section, error) {
	content, err := readText(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sections := splitSections(content, TitleFromFilename(path))
	p.logger.Debug("Parsed text file", "path", path, "sections", len(sections))
	return sections, nil
}

func (p *TextPlugin) ExtractMetadata(path string) (schema.FileMetadata, error) {
	metadata := schema.FileMetadata{
		FilePath:   filepath.Base(path),
		Format:     "text",
		Title:      TitleFromFilename(path),
		Properties: make(map[string]string),
	}

	content, err := readText(path)
	if err != nil {
		return metadata, err
	}

	headings := 0
	lines := strings.Split(content, "\n")
	for _, line := range lines {
		if isHeading(line) {
			headings++
		}
	}
	metadata.Properties["size_bytes"] = strconv.Itoa(len(content))
	metadata.Properties["line_count"] = strconv.Itoa(len(lines))
	metadata.Properties["word_count"] = strconv.Itoa(len(strings.Fields(content)))
	metadata.Properties["heading_count"] = strconv.Itoa(headings)
	return metadata, nil
}

// TitleFromFilename turns "heart_disease-overview.txt" into "Heart Disease Overview".
func TitleFromFilename(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	name = strings.NewReplacer("_", " ", "-", " ", ".", " ").Replace(name)
	name = strings.Join(strings.Fields(name), " ")
	return cases.Title(language.English).String(name)
}

func readText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	if bytes.IndexByte(data, 0) >= 0 || !utf8.Valid(data) {
		return "", fmt.Errorf("%w: %s", ErrBinaryContent, path)
	}
	return strings.ReplaceAll(string(data), "\r\n", "\n"), nil
}

func splitSections(content, defaultTitle string) []schema.Section {
	var (
		sections []schema.Section
		current  []string
		title    = defaultTitle
	)

	flush := func() {
		body := strings.TrimSpace(strings.Join(current, "\n"))
		if body != "" {
			sections = append(sections, schema.Section{Content: body, Title: title})
		}
		current = nil
	}

	for _, line := range strings.Split(content, "\n") {
		if isHeading(line) {
			flush()
			title = cleanHeading(line)
		}
		current = append(current, line)
	}
	flush()
	return sections
}

func isHeading(line string) bool {
	line = strings.TrimSpace(line)
	if line == "" || len(line) > 100 {
		return false
	}
	for _, re := range headingPatterns {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

func cleanHeading(line string) string {
	line = headingMarkup.ReplaceAllString(strings.TrimSpace(line), "")
	return strings.TrimSpace(strings.TrimSuffix(line, ":"))
}
