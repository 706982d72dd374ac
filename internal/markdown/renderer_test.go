package markdown

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRender_Basic(t *testing.T) {
	r := NewRenderer()

	out, err := r.Render([]byte("# Title\n\nsome *text*"))
	require.NoError(t, err)

	assert.Contains(t, string(out), `<h1 id="title">Title</h1>`)
	assert.Contains(t, string(out), "<em>text</em>")
}

func TestRender_EscapesRawHTML(t *testing.T) {
	r := NewRenderer()

	out, err := r.Render([]byte("hello <script>alert(1)</script>"))
	require.NoError(t, err)

	assert.NotContains(t, string(out), "<script>")
}

func TestRenderWithMeta_StripsFrontmatter(t *testing.T) {
	r := NewRenderer()
	src := []byte("---\ntitle: Notes\ntags: [go, sql]\n---\nbody text\n")

	out, meta, err := r.RenderWithMeta(src)
	require.NoError(t, err)

	assert.Equal(t, "Notes", meta["title"])
	assert.Contains(t, string(out), "body text")
	assert.NotContains(t, string(out), "title: Notes")
}

func TestTags(t *testing.T) {
	r := NewRenderer()

	tests := []struct {
		name string
		src  string
		want []string
	}{
		{name: "yaml list", src: "---\ntags: [go, ' sql ']\n---\nx", want: []string{"go", "sql"}},
		{name: "comma string", src: "---\ntags: go, sql,\n---\nx", want: []string{"go", "sql"}},
		{name: "no frontmatter", src: "just text", want: nil},
		{name: "wrong type", src: "---\ntags: 42\n---\nx", want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, r.Tags([]byte(tt.src)))
		})
	}
}

func TestExtractFrontmatter_Empty(t *testing.T) {
	r := NewRenderer()
	assert.Empty(t, r.ExtractFrontmatter([]byte("no meta here")))
}
