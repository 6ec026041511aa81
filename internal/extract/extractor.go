// Package extract fetches resume/cover-letter URLs and turns them into plain
// text or a binary payload. Every failure here degrades to "no text": a
// missing or malformed resume is a common, valid outcome, never an error.
package extract

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/sirupsen/logrus"

	"github.com/screenpilot/screenpilot/internal/logger"
)

const maxDocumentBytes = 20 << 20

// Document is a fetched attachment. PDFs keep their bytes so they can be
// handed to the LLM as an inline document; everything else carries text only.
type Document struct {
	Bytes []byte
	MIME  string
	Text  string
	IsPDF bool
}

type Extractor struct {
	http *http.Client
	log  *logrus.Entry
}

func New(l *logrus.Logger) *Extractor {
	return &Extractor{
		http: &http.Client{Timeout: 60 * time.Second},
		log:  logger.For(l, "extract"),
	}
}

// Fetch downloads a document and classifies it by URL suffix / content type.
// Returns nil on any fetch failure.
func (e *Extractor) Fetch(ctx context.Context, url string) *Document {
	if url == "" {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	resp, err := e.http.Do(req)
	if err != nil {
		e.log.WithError(err).WithField("url", url).Debug("document fetch failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		e.log.WithFields(logrus.Fields{"url": url, "status": resp.StatusCode}).Debug("document fetch non-2xx")
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBytes))
	if err != nil || len(body) == 0 {
		return nil
	}

	ct := resp.Header.Get("Content-Type")
	doc := &Document{Bytes: body, MIME: ct}

	switch classify(url, ct, body) {
	case kindPDF:
		doc.IsPDF = true
		doc.MIME = "application/pdf"
	case kindDOCX:
		text, err := docxText(body)
		if err != nil {
			e.log.WithError(err).WithField("url", url).Warn("docx extraction failed")
		}
		doc.Text = text
	default:
		doc.Text = string(body)
	}
	return doc
}

// Text returns a document's plain text, extracting from PDF/DOCX as needed.
// Empty string on any failure.
func (e *Extractor) Text(ctx context.Context, url string) string {
	doc := e.Fetch(ctx, url)
	if doc == nil {
		return ""
	}
	if doc.IsPDF {
		text, err := pdfText(doc.Bytes)
		if err != nil {
			e.log.WithError(err).WithField("url", url).Warn("pdf extraction failed")
			return ""
		}
		return text
	}
	return doc.Text
}

type docKind int

const (
	kindText docKind = iota
	kindPDF
	kindDOCX
)

func classify(url, contentType string, body []byte) docKind {
	lower := strings.ToLower(url)
	if i := strings.IndexAny(lower, "?#"); i >= 0 {
		lower = lower[:i]
	}
	switch {
	case strings.HasSuffix(lower, ".pdf") || strings.Contains(contentType, "application/pdf"):
		return kindPDF
	case strings.HasSuffix(lower, ".docx") || strings.HasSuffix(lower, ".doc") ||
		strings.Contains(contentType, "officedocument.wordprocessingml") ||
		strings.Contains(contentType, "application/msword"):
		return kindDOCX
	}
	// Unlabeled binary: sniff the magic bytes.
	if bytes.HasPrefix(body, []byte("%PDF-")) {
		return kindPDF
	}
	if bytes.HasPrefix(body, []byte("PK")) && (strings.Contains(contentType, "zip") || contentType == "") {
		return kindDOCX
	}
	return kindText
}

func pdfText(b []byte) (text string, err error) {
	// The pdf reader panics on some malformed files.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pdf reader panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", err
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	if _, err := io.Copy(&sb, plain); err != nil {
		return "", err
	}
	return sb.String(), nil
}

var xmlTagRe = regexp.MustCompile(`<[^>]+>`)

func docxText(b []byte) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("docx reader panic: %v", r)
		}
	}()

	r, err := docx.ReadDocxFromMemory(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", err
	}
	defer r.Close()

	content := r.Editable().GetContent()
	// Paragraph boundaries become newlines before the markup is stripped.
	content = strings.ReplaceAll(content, "</w:p>", "\n")
	content = xmlTagRe.ReplaceAllString(content, "")
	content = strings.ReplaceAll(content, "&amp;", "&")
	content = strings.ReplaceAll(content, "&lt;", "<")
	content = strings.ReplaceAll(content, "&gt;", ">")
	return strings.TrimSpace(content), nil
}
