package input

import (
	"archive/zip"
	"bytes"
	"testing"
)

func TestProcessByMagicBytes(t *testing.T) {
	tests := []struct {
		name     string
		filename string
		data     []byte
		wantMIME string
	}{
		{"pdf", "key.bin", []byte("%PDF-1.7 rest of file"), "application/pdf"},
		{"jpeg", "scan.bin", []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01}, "image/jpeg"},
		{"png", "scan.bin", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A, 0x01}, "image/png"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Process(tt.filename, tt.data)
			if err != nil {
				t.Fatalf("Process: %v", err)
			}
			if got.Kind != KindPages {
				t.Fatalf("kind = %v, want KindPages", got.Kind)
			}
			if len(got.Pages) != 1 {
				t.Fatalf("got %d pages, want 1", len(got.Pages))
			}
			if got.Pages[0].MIME != tt.wantMIME {
				t.Errorf("mime = %q, want %q", got.Pages[0].MIME, tt.wantMIME)
			}
			if !bytes.Equal(got.Pages[0].Data, tt.data) {
				t.Error("page data must pass through unchanged")
			}
		})
	}
}

func TestProcessByExtensionFallback(t *testing.T) {
	// Content without a recognizable signature falls back to the extension.
	data := []byte("not a real image")
	got, err := Process("photo.JPG", data)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got.Kind != KindPages || got.Pages[0].MIME != "image/jpeg" {
		t.Errorf("got %+v, want jpeg page", got)
	}
}

func TestProcessUnsupported(t *testing.T) {
	if _, err := Process("notes.txt", []byte("plain text")); err == nil {
		t.Error("expected error for unsupported file type")
	}
}

func makeDocx(t *testing.T, documentXML string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create("word/document.xml")
	if err != nil {
		t.Fatalf("create zip entry: %v", err)
	}
	if _, err := w.Write([]byte(documentXML)); err != nil {
		t.Fatalf("write zip entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip: %v", err)
	}
	return buf.Bytes()
}

func TestProcessDocx(t *testing.T) {
	doc := `<?xml version="1.0"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Q1: Paris is the capital of France</w:t></w:r></w:p>
    <w:p><w:r><w:t>Q2: Water boils at </w:t></w:r><w:r><w:t>100 degrees</w:t></w:r></w:p>
  </w:body>
</w:document>`
	data := makeDocx(t, doc)

	got, err := Process("key.docx", data)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got.Kind != KindText {
		t.Fatalf("kind = %v, want KindText", got.Kind)
	}
	want := "Q1: Paris is the capital of France\nQ2: Water boils at 100 degrees"
	if got.Text != want {
		t.Errorf("text = %q, want %q", got.Text, want)
	}
}

func TestProcessDocxMissingDocument(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, _ := zw.Create("other.xml")
	w.Write([]byte("<x/>"))
	zw.Close()

	if _, err := Process("broken.docx", buf.Bytes()); err == nil {
		t.Error("expected error for docx without word/document.xml")
	}
}

func TestProcessDocxSplitRunsAndBreaks(t *testing.T) {
	doc := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
<w:body><w:p><w:r><w:t>line one</w:t></w:r><w:r><w:br/></w:r><w:r><w:t>line two</w:t></w:r></w:p></w:body>
</w:document>`
	got, err := Process("a.docx", makeDocx(t, doc))
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if got.Text != "line one\nline two" {
		t.Errorf("text = %q", got.Text)
	}
}
