package extract

import (
	"bytes"
	"errors"
	"strings"

	"github.com/ledongthuc/pdf"
)

// PDFExtractor returns the plain text of every page that has any.
type PDFExtractor struct{}

func (PDFExtractor) Supports(m string) bool {
	return strings.EqualFold(m, "application/pdf")
}

func (PDFExtractor) Extract(doc *Document) ([]string, error) {
	if !isPDF(doc.Data) {
		return nil, errors.New("missing PDF header")
	}
	rdr, err := pdf.NewReader(bytes.NewReader(doc.Data), int64(len(doc.Data)))
	if err != nil {
		return nil, err
	}

	n := rdr.NumPage()
	out := make([]string, 0, n)
	for i := 1; i <= n; i++ {
		pg := rdr.Page(i)
		if pg.V.IsNull() {
			continue
		}
		txt, err := pg.GetPlainText(nil)
		if err != nil {
			// image-only page
			continue
		}
		if s := strings.TrimSpace(txt); s != "" {
			out = append(out, s)
		}
	}
	return out, nil
}
