package markdown

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	goldmarkhtml "github.com/yuin/goldmark/renderer/html"
	"github.com/yuin/goldmark/text"
	"go.abhg.dev/goldmark/frontmatter"
)

// Renderer converts markdown clips to HTML. Raw HTML in the source is
// escaped (goldmark's default), so output is safe to serve inline.
type Renderer struct {
	md goldmark.Markdown
}

func NewRenderer() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(
			extension.GFM,
			extension.Footnote,
			extension.Typographer,
			&frontmatter.Extender{},
		),
		goldmark.WithParserOptions(
			parser.WithAutoHeadingID(),
		),
		goldmark.WithRendererOptions(
			goldmarkhtml.WithHardWraps(),
			goldmarkhtml.WithXHTML(),
		),
	)

	return &Renderer{
		md: md,
	}
}

func (r *Renderer) Render(source []byte) ([]byte, error) {
	var buf bytes.Buffer
	err := r.md.Convert(source, &buf)
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// RenderWithMeta renders source and returns its front matter alongside.
func (r *Renderer) RenderWithMeta(source []byte) (content []byte, meta map[string]any, err error) {
	context := parser.NewContext()
	var buf bytes.Buffer

	err = r.md.Convert(source, &buf, parser.WithContext(context))
	if err != nil {
		return nil, nil, err
	}

	return buf.Bytes(), decodeMeta(frontmatter.Get(context)), nil
}

// ExtractFrontmatter parses source without rendering and returns its front
// matter, or an empty map.
func (r *Renderer) ExtractFrontmatter(source []byte) map[string]any {
	context := parser.NewContext()
	r.md.Parser().Parse(text.NewReader(source), parser.WithContext(context))
	return decodeMeta(frontmatter.Get(context))
}

// Tags returns the "tags" front matter entry. Both a YAML list and a
// comma-separated string are accepted.
func (r *Renderer) Tags(source []byte) []string {
	raw, ok := r.ExtractFrontmatter(source)["tags"]
	if !ok {
		return nil
	}

	var tags []string
	switch v := raw.(type) {
	case string:
		for _, part := range strings.Split(v, ",") {
			if s := strings.TrimSpace(part); s != "" {
				tags = append(tags, s)
			}
		}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				tags = append(tags, strings.TrimSpace(s))
			}
		}
	}
	return tags
}

func decodeMeta(data *frontmatter.Data) map[string]any {
	meta := make(map[string]any)
	if data == nil {
		return meta
	}
	err := data.Decode(&meta)
	if err != nil {
		return make(map[string]any)
	}
	return meta
}
