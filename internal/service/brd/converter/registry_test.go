package converter

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RoutesByExtension(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()

	tests := []struct {
		name     string
		filename string
		input    string
		want     string
	}{
		{"text", "notes.TXT", "  plain notes \n", "plain notes"},
		{"markdown", "brief.md", "# Brief\n\n- one", "# Brief\n\n- one"},
		{"markdown frontmatter title", "brief.md", "---\ntitle: Checkout Revamp\nowner: pm\n---\n\n- one", "# Checkout Revamp\n\n- one"},
		{"markdown frontmatter without title", "brief.md", "---\nowner: pm\n---\n- one", "- one"},
		{"unclosed frontmatter kept", "brief.md", "---\nnot closed", "---\nnot closed"},
		{"html strips scripts", "page.html", `<h1>Title</h1><script>alert(1)</script><p>Body <strong>bold</strong></p>`, "# Title\n\nBody **bold**"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Convert(ctx, tt.filename, []byte(tt.input))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRegistry_Unsupported(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.Supports("deck.pptx"))
	_, err := r.Convert(context.Background(), "deck.pptx", []byte("x"))
	assert.ErrorIs(t, err, ErrUnsupportedType)
}

func TestRegistry_InvalidInput(t *testing.T) {
	r := NewRegistry()
	_, err := r.Convert(context.Background(), "bad.txt", []byte{0xff, 0xfe, 0xfd})
	assert.Error(t, err)

	_, err = r.Convert(context.Background(), "broken.pdf", []byte("not a pdf"))
	assert.Error(t, err)
}

func TestRegistry_SupportedExtensions(t *testing.T) {
	exts := NewRegistry().SupportedExtensions()
	assert.Contains(t, exts, ".pdf")
	assert.Contains(t, exts, ".htm")
	assert.Contains(t, exts, ".markdown")
	assert.IsNonDecreasing(t, exts)
}
