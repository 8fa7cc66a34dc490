// Package input converts uploaded answer files into either extracted text or
// page blobs ready for OCR transcription.
package input

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

// Kind tags the variant held by a ProcessedInput.
type Kind int

const (
	// KindText means the text was extracted locally (DOCX) and needs no OCR.
	KindText Kind = iota
	// KindPages means the input is one or more page blobs for the OCR model.
	KindPages
)

// Page is one page blob handed to the OCR model.
type Page struct {
	MIME string
	Data []byte
}

// ProcessedInput is a tagged variant: text extracted locally, or pages that
// still need transcription. Exactly one of Text/Pages is meaningful,
// according to Kind.
type ProcessedInput struct {
	Kind  Kind
	Text  string
	Pages []Page
}

var (
	jpegMagic = []byte{0xFF, 0xD8}
	pngMagic  = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}
	pdfMagic  = []byte("%PDF-")
	zipMagic  = []byte("PK\x03\x04")
)

// Process converts one uploaded file into a ProcessedInput. Type detection
// goes by magic bytes first and falls back to the filename extension. PDFs
// are passed through as a single page blob; the OCR model consumes them
// natively. DOCX text is extracted locally without an OCR round trip.
func Process(filename string, data []byte) (ProcessedInput, error) {
	switch {
	case bytes.HasPrefix(data, pdfMagic):
		return ProcessedInput{Kind: KindPages, Pages: []Page{{MIME: "application/pdf", Data: data}}}, nil
	case bytes.HasPrefix(data, jpegMagic):
		return ProcessedInput{Kind: KindPages, Pages: []Page{{MIME: "image/jpeg", Data: data}}}, nil
	case bytes.HasPrefix(data, pngMagic):
		return ProcessedInput{Kind: KindPages, Pages: []Page{{MIME: "image/png", Data: data}}}, nil
	case bytes.HasPrefix(data, zipMagic):
		text, err := extractDocxText(data)
		if err != nil {
			return ProcessedInput{}, fmt.Errorf("extract docx text from %s: %w", filename, err)
		}
		return ProcessedInput{Kind: KindText, Text: text}, nil
	}

	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return ProcessedInput{Kind: KindPages, Pages: []Page{{MIME: "application/pdf", Data: data}}}, nil
	case ".jpg", ".jpeg":
		return ProcessedInput{Kind: KindPages, Pages: []Page{{MIME: "image/jpeg", Data: data}}}, nil
	case ".png":
		return ProcessedInput{Kind: KindPages, Pages: []Page{{MIME: "image/png", Data: data}}}, nil
	}
	return ProcessedInput{}, fmt.Errorf("unsupported file type %q", filename)
}
