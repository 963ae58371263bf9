package ingest

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// readPDF returns the text of every page, pages separated by a blank line.
// pdfcpu parses and validates the file; the page text comes from the
// content streams through ledongthuc/pdf.
func (r *Reader) readPDF(ctx context.Context, data []byte) (string, int, error) {
	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	pdfCtx, err := api.ReadContext(bytes.NewReader(data), conf)
	if err != nil {
		return "", 0, fmt.Errorf("read pdf: %w", err)
	}
	// Many producers write slightly broken files whose content streams are
	// still readable.
	if err := api.ValidateContext(pdfCtx); err != nil {
		r.logger.Warn("pdf failed validation, extracting anyway", "error", err)
	}
	if err := pdfCtx.EnsurePageCount(); err != nil {
		return "", 0, fmt.Errorf("count pages: %w", err)
	}

	doc, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, fmt.Errorf("read pdf text: %w", err)
	}

	pages := make([]string, 0, doc.NumPage())
	for nr := 1; nr <= doc.NumPage(); nr++ {
		if err := ctx.Err(); err != nil {
			return "", 0, err
		}
		page := doc.Page(nr)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", 0, fmt.Errorf("page %d text: %w", nr, err)
		}
		if text = strings.TrimSpace(text); text != "" {
			pages = append(pages, text)
		}
	}
	return strings.Join(pages, "\n\n"), pdfCtx.PageCount, nil
}
