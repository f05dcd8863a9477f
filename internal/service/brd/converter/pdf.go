package converter

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	brdSvc "reqforge/internal/domain/services/brd"
)

const pageSeparator = "\n\n---\n\n"

type pdfConverter struct{}

// NewPDFConverter extracts the text layer of a PDF. Scanned PDFs without a
// text layer yield an error.
func NewPDFConverter() brdSvc.ContentConverter {
	return &pdfConverter{}
}

func (c *pdfConverter) Convert(ctx context.Context, input []byte) (_ string, err error) {
	// The reader panics on some malformed cross-reference tables
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed PDF: %v", r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(input), int64(len(input)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}

	var sb strings.Builder
	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil || strings.TrimSpace(text) == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(pageSeparator)
		}
		sb.WriteString(text)
	}

	if sb.Len() == 0 {
		return "", fmt.Errorf("PDF with %d pages has no extractable text", reader.NumPage())
	}
	return sb.String(), nil
}

func (c *pdfConverter) SupportedExtensions() []string { return []string{".pdf"} }
func (c *pdfConverter) Name() string                  { return "pdf" }
