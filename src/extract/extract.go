// Package extract turns uploaded submissions into plain text.
package extract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// DefaultMaxBytes caps uploads at 10 MiB.
const DefaultMaxBytes = 10 << 20

var (
	ErrTooLarge    = errors.New("file too large")
	ErrUnsupported = errors.New("unsupported file type")
	ErrNoText      = errors.New("no text could be extracted")
)

// Document is an uploaded file held in memory.
type Document struct {
	Name string
	MIME string
	Data []byte
}

// Extractor returns the text blocks of a document, e.g. one per page.
type Extractor interface {
	Supports(mime string) bool
	Extract(doc *Document) ([]string, error)
}

// Service reads uploads under a size cap and dispatches them to the first
// extractor supporting their MIME type.
type Service struct {
	Extractors []Extractor
	MaxBytes   int64
}

func NewService() *Service {
	// PDF first, then text, so PDFs don't fall through
	return &Service{
		Extractors: []Extractor{PDFExtractor{}, TextExtractor{}},
		MaxBytes:   DefaultMaxBytes,
	}
}

// Result is the extracted text of one upload.
type Result struct {
	Name  string `json:"name"`
	MIME  string `json:"mime"`
	Text  string `json:"text"`
	Bytes int    `json:"bytes"`
}

// Read extracts text from r. mimeHint may be empty, in which case the type is
// sniffed from the content and the file name.
func (s *Service) Read(name, mimeHint string, r io.Reader) (Result, error) {
	maxBytes := s.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	buf, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return Result{}, err
	}
	if int64(len(buf)) > maxBytes {
		return Result{}, fmt.Errorf("%w: limit is %d bytes", ErrTooLarge, maxBytes)
	}

	mt := normalizeMIME(mimeHint)
	if mt == "" || mt == "application/octet-stream" {
		mt = DetectMIME(name, buf[:min(512, len(buf))])
	}
	doc := &Document{Name: name, MIME: mt, Data: buf}
	for _, ex := range s.Extractors {
		if !ex.Supports(mt) {
			continue
		}
		blocks, err := ex.Extract(doc)
		if err != nil {
			return Result{}, fmt.Errorf("extract %s: %w", name, err)
		}
		text := strings.TrimSpace(strings.Join(blocks, "\n\n"))
		if text == "" {
			return Result{}, ErrNoText
		}
		return Result{Name: name, MIME: mt, Text: text, Bytes: len(buf)}, nil
	}
	return Result{}, fmt.Errorf("%w: %s", ErrUnsupported, mt)
}

func normalizeMIME(m string) string {
	if m == "" {
		return ""
	}
	if parsed, _, err := mime.ParseMediaType(m); err == nil {
		return parsed
	}
	return strings.ToLower(strings.TrimSpace(m))
}

type TextExtractor struct{}

func (TextExtractor) Supports(m string) bool {
	return strings.HasPrefix(m, "text/") ||
		m == "application/json" ||
		m == "application/xml" ||
		m == "application/yaml" ||
		m == "application/x-yaml"
}

func (TextExtractor) Extract(doc *Document) ([]string, error) {
	if !utf8.Valid(doc.Data) {
		return nil, errors.New("text is not valid UTF-8")
	}
	s := strings.ReplaceAll(string(doc.Data), "\r\n", "\n")
	s = strings.TrimPrefix(s, "\ufeff")
	return []string{s}, nil
}

// DetectMIME sniffs the MIME type from the head of the content, then the
// file extension.
func DetectMIME(name string, head []byte) string {
	if m := normalizeMIME(http.DetectContentType(head)); m != "application/octet-stream" {
		return m
	}
	if ext := strings.ToLower(filepath.Ext(name)); ext != "" {
		if byExt := mime.TypeByExtension(ext); byExt != "" {
			return normalizeMIME(byExt)
		}
	}
	if utf8.Valid(head) {
		return "text/plain"
	}
	return "application/octet-stream"
}

func isPDF(data []byte) bool {
	return bytes.HasPrefix(data, []byte("%PDF-"))
}
