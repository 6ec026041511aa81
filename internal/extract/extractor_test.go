package extract

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/screenpilot/screenpilot/internal/logger"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		url         string
		contentType string
		body        []byte
		want        docKind
	}{
		{name: "pdf suffix", url: "https://x/resume.pdf", want: kindPDF},
		{name: "pdf suffix with query", url: "https://x/resume.pdf?Expires=1", want: kindPDF},
		{name: "pdf content type", url: "https://x/attachment", contentType: "application/pdf", want: kindPDF},
		{name: "pdf magic bytes", url: "https://x/attachment", body: []byte("%PDF-1.7 ..."), want: kindPDF},
		{name: "docx suffix", url: "https://x/resume.docx", want: kindDOCX},
		{name: "doc suffix", url: "https://x/resume.doc", want: kindDOCX},
		{name: "docx content type", url: "https://x/a", contentType: "application/vnd.openxmlformats-officedocument.wordprocessingml.document", want: kindDOCX},
		{name: "plain text", url: "https://x/resume.txt", contentType: "text/plain", body: []byte("hello"), want: kindText},
		{name: "unknown defaults to text", url: "https://x/resume", body: []byte("plain words"), want: kindText},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classify(tt.url, tt.contentType, tt.body); got != tt.want {
				t.Errorf("classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTextPlain(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		fmt.Fprint(w, "ten years of Go experience")
	}))
	defer srv.Close()

	e := New(logger.New())
	got := e.Text(context.Background(), srv.URL+"/resume.txt")
	if got != "ten years of Go experience" {
		t.Errorf("Text() = %q", got)
	}
}

func TestFetchFailuresDegradeToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	e := New(logger.New())

	if doc := e.Fetch(context.Background(), srv.URL+"/gone.pdf"); doc != nil {
		t.Errorf("expected nil document on 404, got %+v", doc)
	}
	if got := e.Text(context.Background(), srv.URL+"/gone.pdf"); got != "" {
		t.Errorf("expected empty text on 404, got %q", got)
	}
	if got := e.Text(context.Background(), "http://127.0.0.1:1/unreachable.txt"); got != "" {
		t.Errorf("expected empty text on connection failure, got %q", got)
	}
	if doc := e.Fetch(context.Background(), ""); doc != nil {
		t.Errorf("expected nil document for empty URL")
	}
}

func TestMalformedPDFDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, "%PDF-1.4 this is not really a pdf")
	}))
	defer srv.Close()

	e := New(logger.New())
	if got := e.Text(context.Background(), srv.URL+"/broken.pdf"); got != "" {
		t.Errorf("expected empty text for malformed pdf, got %q", got)
	}
}

func TestMalformedDocxDegradesToEmpty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "PK\x03\x04 not a zip either")
	}))
	defer srv.Close()

	e := New(logger.New())
	if got := e.Text(context.Background(), srv.URL+"/broken.docx"); got != "" {
		t.Errorf("expected empty text for malformed docx, got %q", got)
	}
}

func TestPDFKeepsBytesForLLM(t *testing.T) {
	payload := "%PDF-1.7 fake body"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		fmt.Fprint(w, payload)
	}))
	defer srv.Close()

	e := New(logger.New())
	doc := e.Fetch(context.Background(), srv.URL+"/resume.pdf")
	if doc == nil || !doc.IsPDF {
		t.Fatalf("expected pdf document, got %+v", doc)
	}
	if string(doc.Bytes) != payload {
		t.Errorf("pdf bytes not preserved")
	}
	if doc.MIME != "application/pdf" {
		t.Errorf("MIME = %q", doc.MIME)
	}
}
