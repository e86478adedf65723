package markdown

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/yuin/goldmark/ast"
	gmtext "github.com/yuin/goldmark/text"
	"gopkg.in/yaml.v3"

	"github.com/sevigo/medrag/parsers/text"
	"github.com/sevigo/medrag/schema"
)

// FrontMatter holds the YAML block between leading "---" lines.
type FrontMatter struct {
	Title      string
	Tags       []string
	Properties map[string]string
}

type document struct {
	frontMatter *FrontMatter
	sections    []schema.Section
	headings    int
	body        string
}

// Parse returns one section per heading. Content before the first heading is
// titled from the front matter or the file name.
func (p *MarkdownPlugin) Parse(ctx context.Context, path string) ([]schema.Section, error) {
	doc, err := p.load(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p.logger.Debug("Parsed markdown file", "path", path, "sections", len(doc.sections))
	return doc.sections, nil
}

func (p *MarkdownPlugin) ExtractMetadata(path string) (schema.FileMetadata, error) {
	metadata := schema.FileMetadata{
		FilePath:   filepath.Base(path),
		Format:     "markdown",
		Title:      text.TitleFromFilename(path),
		Properties: make(map[string]string),
	}

	doc, err := p.load(path)
	if err != nil {
		return metadata, err
	}

	if fm := doc.frontMatter; fm != nil {
		if fm.Title != "" {
			metadata.Title = fm.Title
		}
		metadata.Tags = fm.Tags
		for k, v := range fm.Properties {
			metadata.Properties[k] = v
		}
	} else if len(doc.sections) > 0 && doc.headings > 0 {
		metadata.Title = doc.sections[0].Title
	}
	metadata.Properties["heading_count"] = strconv.Itoa(doc.headings)
	metadata.Properties["word_count"] = strconv.Itoa(len(strings.Fields(doc.body)))
	return metadata, nil
}

func (p *MarkdownPlugin) load(path string) (*document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return nil, fmt.Errorf("%w: %s", text.ErrBinaryContent, path)
	}

	content := strings.ReplaceAll(string(data), "\r\n", "\n")
	fm, body := p.splitFrontMatter(content)

	defaultTitle := text.TitleFromFilename(path)
	if fm != nil && fm.Title != "" {
		defaultTitle = fm.Title
	}

	doc := &document{frontMatter: fm, body: body}
	doc.sections, doc.headings = p.sections([]byte(body), defaultTitle)
	return doc, nil
}

// splitFrontMatter separates a leading YAML block from the body. Malformed
// YAML is logged and the block is dropped.
func (p *MarkdownPlugin) splitFrontMatter(content string) (*FrontMatter, string) {
	lines := strings.Split(content, "\n")
	if len(lines) < 3 || strings.TrimSpace(lines[0]) != frontMatterSeparator {
		return nil, content
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimSpace(lines[i]) == frontMatterSeparator {
			end = i
			break
		}
	}
	if end <= 1 {
		return nil, content
	}
	body := strings.Join(lines[end+1:], "\n")

	var raw map[string]any
	if err := yaml.Unmarshal([]byte(strings.Join(lines[1:end], "\n")), &raw); err != nil {
		p.logger.Warn("Failed to parse YAML front matter", "error", err)
		return nil, body
	}

	fm := &FrontMatter{Properties: make(map[string]string)}
	for key, value := range raw {
		switch key {
		case "title":
			fm.Title = fmt.Sprint(value)
		case "tags":
			fm.Tags = toStrings(value)
		default:
			fm.Properties[key] = fmt.Sprint(value)
		}
	}
	return fm, body
}

func (p *MarkdownPlugin) sections(source []byte, defaultTitle string) ([]schema.Section, int) {
	root := p.markdown.Parser().Parse(gmtext.NewReader(source))

	var (
		sections []schema.Section
		parts    []string
		title    = defaultTitle
		headings int
	)
	flush := func() {
		body := strings.TrimSpace(strings.Join(parts, "\n\n"))
		if body != "" {
			sections = append(sections, schema.Section{Content: body, Title: title})
		}
		parts = nil
	}

	for node := root.FirstChild(); node != nil; node = node.NextSibling() {
		if h, ok := node.(*ast.Heading); ok {
			flush()
			headings++
			title = nodeText(h, source)
			parts = append(parts, title)
			continue
		}
		if block := blockText(node, source); block != "" {
			parts = append(parts, block)
		}
	}
	flush()
	return sections, headings
}

// nodeText concatenates the inline text below n.
func nodeText(n ast.Node, source []byte) string {
	var buf bytes.Buffer
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		switch t := c.(type) {
		case *ast.Text:
			buf.Write(t.Segment.Value(source))
			if t.SoftLineBreak() || t.HardLineBreak() {
				buf.WriteByte(' ')
			}
		case *ast.String:
			buf.Write(t.Value)
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimSpace(buf.String())
}

// blockText returns the raw source spanned by a block node and its children.
func blockText(n ast.Node, source []byte) string {
	lo, hi := len(source), -1
	_ = ast.Walk(n, func(c ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if c.Type() == ast.TypeBlock {
			if lines := c.Lines(); lines != nil && lines.Len() > 0 {
				lo = min(lo, lines.At(0).Start)
				hi = max(hi, lines.At(lines.Len()-1).Stop)
			}
		}
		if t, ok := c.(*ast.Text); ok {
			lo = min(lo, t.Segment.Start)
			hi = max(hi, t.Segment.Stop)
		}
		return ast.WalkContinue, nil
	})
	if hi < 0 || lo >= hi {
		return ""
	}
	return strings.TrimSpace(string(source[lo:hi]))
}

func toStrings(v any) []string {
	switch t := v.(type) {
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			out = append(out, fmt.Sprint(item))
		}
		return out
	case string:
		var out []string
		for _, s := range strings.Split(t, ",") {
			if s = strings.TrimSpace(s); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
